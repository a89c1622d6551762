// Package counters aggregates dashboard counts over BCRs and caches them.
package counters

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/refdata"
	"github.com/zulandar/changeboard/internal/workflow"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Count is one labelled counter.
type Count struct {
	Label string
	Count int
}

// Snapshot holds every dashboard counter at one point in time.
type Snapshot struct {
	Total       int
	Open        int
	ByPhase     []Count
	ByStatus    []Count
	ByUrgency   []Count
	ByImpact    []Count
	RefreshedAt time.Time
}

// Aggregator recomputes counters from the database and caches the result
// for TTL. It is safe for concurrent use.
type Aggregator struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	snap  *Snapshot
	stale bool
}

// New returns an Aggregator. A zero ttl refreshes on every Snapshot call.
func New(db *gorm.DB, ttl time.Duration) *Aggregator {
	return &Aggregator{db: db, ttl: ttl, now: time.Now}
}

// Invalidate marks the cached snapshot stale. The next Snapshot refreshes.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.stale = true
	a.mu.Unlock()
}

// Observe invalidates on every BCR change.
func (a *Aggregator) Observe(_ context.Context, _ events.Change) {
	a.Invalidate()
}

// Snapshot returns the cached counters, refreshing them first when they are
// missing, older than the TTL, or invalidated.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	snap, stale := a.snap, a.stale
	a.mu.Unlock()
	if snap != nil && !stale && a.now().Sub(snap.RefreshedAt) < a.ttl {
		return *snap, nil
	}
	return a.Refresh(ctx)
}

// Refresh recomputes the counters. Concurrent callers share one query run.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	v, err, _ := a.group.Do("refresh", func() (interface{}, error) {
		a.mu.Lock()
		a.stale = false
		a.mu.Unlock()

		snap, err := compute(a.db.WithContext(ctx), a.now())
		if err != nil {
			a.Invalidate()
			return nil, err
		}
		a.mu.Lock()
		a.snap = snap
		a.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return *v.(*Snapshot), nil
}

type groupRow struct {
	Label string
	Count int
}

func groupBy(db *gorm.DB, column string) ([]groupRow, error) {
	var rows []groupRow
	if err := db.Model(&models.Bcr{}).
		Select("COALESCE(" + column + ", '') AS label, count(*) AS count").
		Group(column).
		Order(column).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counters: group by %s: %w", column, err)
	}
	return rows, nil
}

func compute(db *gorm.DB, now time.Time) (*Snapshot, error) {
	snap := &Snapshot{RefreshedAt: now}

	statusRows, err := groupBy(db, "status")
	if err != nil {
		return nil, err
	}
	byStatus := make(map[string]int)
	for _, r := range statusRows {
		byStatus[r.Label] = r.Count
		snap.Total += r.Count
		if !models.IsTerminalStatus(r.Label) {
			snap.Open += r.Count
		}
	}
	for _, s := range models.Statuses {
		snap.ByStatus = append(snap.ByStatus, Count{Label: s, Count: byStatus[s]})
	}

	var phaseRows []groupRow
	if err := db.Model(&models.Bcr{}).
		Select("COALESCE(phases.name, ?) AS label, count(*) AS count", workflow.UnknownPhase).
		Joins("LEFT JOIN phases ON phases.id = bcrs.current_phase_id").
		Group("phases.name").
		Order("COALESCE(MIN(phases.display_order), 2147483647)").
		Scan(&phaseRows).Error; err != nil {
		return nil, fmt.Errorf("counters: group by phase: %w", err)
	}
	for _, r := range phaseRows {
		snap.ByPhase = append(snap.ByPhase, Count{Label: r.Label, Count: r.Count})
	}

	urgencyRows, err := groupBy(db, "urgency")
	if err != nil {
		return nil, err
	}
	for _, r := range urgencyRows {
		if r.Label == "" {
			continue
		}
		snap.ByUrgency = append(snap.ByUrgency, Count{Label: r.Label, Count: r.Count})
	}

	impactRows, err := groupBy(db, "impact_areas")
	if err != nil {
		return nil, err
	}
	snap.ByImpact = splitImpact(impactRows)
	return snap, nil
}

// splitImpact counts each area of a comma list separately.
func splitImpact(rows []groupRow) []Count {
	totals := make(map[string]int)
	for _, r := range rows {
		for _, area := range refdata.SplitList(r.Label) {
			totals[area] += r.Count
		}
	}
	out := make([]Count, 0, len(totals))
	for label, n := range totals {
		out = append(out, Count{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
