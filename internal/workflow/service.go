package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/models"
	"gorm.io/gorm"
)

// Service applies workflow actions and publishes a change after each commit.
type Service struct {
	DB        *gorm.DB
	Observers events.Observers
	Now       func() time.Time
}

// NewService returns a Service using the wall clock.
func NewService(db *gorm.DB, observers ...events.Observer) *Service {
	return &Service{DB: db, Observers: observers, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Result is the outcome of a successful Apply.
type Result struct {
	Bcr     *models.Bcr
	Kind    string
	Entries []models.WorkflowEntry
	Reset   bool
}

// Apply validates req against the transition table and performs it in one
// transaction.
func (s *Service) Apply(ctx context.Context, req Request) (*Result, error) {
	rule, ok := RuleFor(req.Action)
	if !ok {
		return nil, invalid("unknown action %q", req.Action)
	}
	req.Action = rule.Action
	if req.Actor == "" {
		req.Actor = "system"
	}
	now := s.now()

	var st *step
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		b, err := bcr.Get(tx, req.BcrNumber)
		if err != nil {
			return err
		}
		if !rule.Allows(b.Status) {
			return invalid("%s is not allowed while the BCR is %s", rule.Action, b.Status)
		}
		phases, err := AllPhases(tx)
		if err != nil {
			return err
		}
		history, err := bcr.History(tx, b.ID)
		if err != nil {
			return err
		}

		st = newStep(tx, req, now, b, phases, history)
		if err := rule.check(st); err != nil {
			return err
		}
		if err := rule.apply(st); err != nil {
			return err
		}

		if len(st.updates) > 0 {
			if err := tx.Model(&models.Bcr{}).Where("id = ?", b.ID).Updates(st.updates).Error; err != nil {
				return fmt.Errorf("update bcr: %w", err)
			}
		}
		for i := range st.entries {
			if err := tx.Create(&st.entries[i]).Error; err != nil {
				return fmt.Errorf("record history: %w", err)
			}
		}

		fresh, err := bcr.GetByID(tx, b.ID)
		if err != nil {
			return err
		}
		st.bcr = fresh
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: apply %s to %s: %w", req.Action, req.BcrNumber, err)
	}

	phaseName := PhaseName(st.phases, st.bcr.CurrentPhaseID)
	change := events.Change{
		BcrID:     st.bcr.ID,
		BcrNumber: st.bcr.BcrNumber,
		Title:     st.bcr.Title,
		Status:    st.bcr.Status,
		Phase:     phaseName,
		Actor:     req.Actor,
		Comment:   req.Comment,
		At:        now,
	}
	if st.reset {
		reset := change
		reset.Kind = events.KindPhasesReset
		s.Observers.Publish(ctx, reset)
	}
	change.Kind = st.kind
	s.Observers.Publish(ctx, change)

	return &Result{Bcr: st.bcr, Kind: st.kind, Entries: st.entries, Reset: st.reset}, nil
}

// Option is an action currently open to a BCR, with the phases a transition
// may target.
type Option struct {
	Action  string
	Label   string
	Targets []models.Phase
}

// AvailableActions evaluates the transition table against a BCR's current
// state without changing anything.
func AvailableActions(db *gorm.DB, b *models.Bcr) ([]Option, error) {
	phases, err := AllPhases(db)
	if err != nil {
		return nil, err
	}
	history, err := bcr.History(db, b.ID)
	if err != nil {
		return nil, err
	}
	return availableActions(b, phases, history), nil
}

func availableActions(b *models.Bcr, phases []models.Phase, history []models.WorkflowEntry) []Option {
	var opts []Option
	for _, r := range Rules {
		if !r.Allows(b.Status) {
			continue
		}
		probe := Request{Action: r.Action, Comment: "-", Assignee: "-", Decision: DecisionApprove}
		switch r.Action {
		case models.ActionTransition:
			var targets []models.Phase
			for _, p := range phases {
				probe.TargetPhaseID = p.ID
				if r.check(newStep(nil, probe, time.Time{}, b, phases, history)) == nil {
					targets = append(targets, p)
				}
			}
			if len(targets) > 0 {
				opts = append(opts, Option{Action: r.Action, Label: r.Label, Targets: targets})
			}
		default:
			if r.check(newStep(nil, probe, time.Time{}, b, phases, history)) == nil {
				opts = append(opts, Option{Action: r.Action, Label: r.Label})
			}
		}
	}
	return opts
}
