// Package scheduler runs the periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/changeboard/internal/config"
	"github.com/zulandar/changeboard/internal/counters"
	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/notify"
	"github.com/zulandar/changeboard/internal/sla"
	"github.com/zulandar/changeboard/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateExpr reports whether expr is a valid 5-field cron expression.
func ValidateExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Opts holds the dependencies of the scheduled jobs.
type Opts struct {
	DB        *gorm.DB
	Schedule  config.ScheduleConfig
	SLA       config.SLAConfig
	Counters  *counters.Aggregator
	Observers events.Observers
	// Notifier receives the daily digest; nil disables it.
	Notifier notify.Notifier
	BaseURL  string
	Now      func() time.Time
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron *cron.Cron
	opts Opts
	jobs int
}

// New registers the jobs whose schedules are set. Empty schedules are skipped.
func New(opts Opts) (*Scheduler, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Scheduler{
		cron: cron.New(cron.WithParser(cronParser)),
		opts: opts,
	}
	if expr := opts.Schedule.Counters; expr != "" && opts.Counters != nil {
		if _, err := s.cron.AddFunc(expr, s.refreshCounters); err != nil {
			return nil, fmt.Errorf("scheduler: counters job %q: %w", expr, err)
		}
		s.jobs++
	}
	if expr := opts.Schedule.SLASweep; expr != "" {
		if _, err := s.cron.AddFunc(expr, s.sweep); err != nil {
			return nil, fmt.Errorf("scheduler: sla sweep job %q: %w", expr, err)
		}
		s.jobs++
	}
	if expr := opts.Schedule.Digest; expr != "" && opts.Notifier != nil {
		if _, err := s.cron.AddFunc(expr, s.digest); err != nil {
			return nil, fmt.Errorf("scheduler: digest job %q: %w", expr, err)
		}
		s.jobs++
	}
	return s, nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int { return s.jobs }

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshCounters() {
	if _, err := s.opts.Counters.Refresh(context.Background()); err != nil {
		log.Printf("scheduler: refresh counters: %v", err)
	}
}

func (s *Scheduler) sweep() {
	n, err := SweepSLA(context.Background(), s.opts.DB, s.opts.SLA, s.opts.Now(), s.opts.Observers)
	if err != nil {
		log.Printf("scheduler: sla sweep: %v", err)
		return
	}
	if n > 0 {
		log.Printf("scheduler: sla sweep raised %d alert(s)", n)
	}
}

func (s *Scheduler) digest() {
	if _, err := SendDigest(context.Background(), s.opts.DB, s.opts.Notifier, s.opts.BaseURL, s.opts.Now()); err != nil {
		log.Printf("scheduler: %v", err)
	}
}

// SweepSLA evaluates every open BCR and publishes one sla_breach change per
// (BCR, stage) that has turned red. Alerts already recorded are not repeated.
// It returns the number of new alerts.
func SweepSLA(ctx context.Context, db *gorm.DB, th config.SLAConfig, now time.Time, obs events.Observers) (int, error) {
	var open []models.Bcr
	terminal := []string{models.StatusRejected, models.StatusClosed, models.StatusWithdrawn}
	if err := db.WithContext(ctx).Where("status NOT IN ?", terminal).Order("id ASC").Find(&open).Error; err != nil {
		return 0, fmt.Errorf("scheduler: list open bcrs: %w", err)
	}
	if len(open) == 0 {
		return 0, nil
	}
	phases, err := workflow.AllPhases(db.WithContext(ctx))
	if err != nil {
		return 0, err
	}

	raised := 0
	for i := range open {
		b := &open[i]
		res := sla.Calculate(sla.InputFor(b), th, now)
		for _, st := range res.Stages() {
			if !st.Breached() {
				continue
			}
			alert := models.SlaAlert{BcrID: b.ID, Stage: st.Stage, Status: st.Status}
			result := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&alert)
			if result.Error != nil {
				return raised, fmt.Errorf("scheduler: record alert for %s: %w", b.BcrNumber, result.Error)
			}
			if result.RowsAffected == 0 {
				continue
			}
			raised++
			obs.Publish(ctx, events.Change{
				Kind:      events.KindSLABreach,
				BcrID:     b.ID,
				BcrNumber: b.BcrNumber,
				Title:     b.Title,
				Status:    b.Status,
				Phase:     workflow.PhaseName(phases, b.CurrentPhaseID),
				Actor:     "scheduler",
				Comment:   fmt.Sprintf("%s stage is %s after %s", st.Stage, st.Status, st.Elapsed.Round(time.Hour)),
				At:        now,
			})
		}
	}
	return raised, nil
}
