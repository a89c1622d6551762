// Package sla computes per-stage service level status for BCRs.
package sla

import (
	"time"

	"github.com/zulandar/changeboard/internal/config"
	"github.com/zulandar/changeboard/internal/models"
)

// Stage names, in lifecycle order.
const (
	StageAssignment     = "assignment"
	StageDecision       = "decision"
	StageImplementation = "implementation"
)

// Stage statuses.
const (
	StatusNotStarted = "not_started"
	StatusComplete   = "complete"
	StatusGreen      = "green"
	StatusAmber      = "amber"
	StatusRed        = "red"
)

// Input is the subset of a BCR the calculation needs.
type Input struct {
	CreatedAt          time.Time
	AssignedAt         *time.Time
	DecisionAt         *time.Time
	ImplementationDate *time.Time
	Status             string
}

// InputFor extracts the calculation input from a BCR.
func InputFor(b *models.Bcr) Input {
	return Input{
		CreatedAt:          b.CreatedAt,
		AssignedAt:         b.AssignedAt,
		DecisionAt:         b.DecisionAt,
		ImplementationDate: b.ImplementationDate,
		Status:             b.Status,
	}
}

// StageResult is the outcome for one stage. Elapsed is the time spent in the
// stage so far, or its total duration once complete.
type StageResult struct {
	Stage     string
	Status    string
	Elapsed   time.Duration
	Threshold config.Threshold
}

// Breached reports whether the stage is past its amber boundary.
func (r StageResult) Breached() bool {
	return r.Status == StatusRed
}

// Result holds the three stage results in order.
type Result struct {
	Assignment     StageResult
	Decision       StageResult
	Implementation StageResult
}

// Stages returns the results in lifecycle order.
func (r Result) Stages() []StageResult {
	return []StageResult{r.Assignment, r.Decision, r.Implementation}
}

// Calculate evaluates every stage of in at time now. A stage runs from the
// timestamp that ends the previous stage until its own terminating timestamp,
// and stays not_started until the previous stage is complete.
func Calculate(in Input, th config.SLAConfig, now time.Time) Result {
	start := in.CreatedAt
	res := Result{
		Assignment:     evaluate(StageAssignment, &start, in.AssignedAt, th.Assignment, now),
		Decision:       StageResult{Stage: StageDecision, Status: StatusNotStarted, Threshold: th.Decision},
		Implementation: StageResult{Stage: StageImplementation, Status: StatusNotStarted, Threshold: th.Implementation},
	}
	if res.Assignment.Status != StatusComplete {
		return res
	}
	res.Decision = evaluate(StageDecision, in.AssignedAt, in.DecisionAt, th.Decision, now)
	if res.Decision.Status != StatusComplete {
		return res
	}
	switch in.Status {
	case models.StatusRejected, models.StatusWithdrawn:
	default:
		res.Implementation = evaluate(StageImplementation, in.DecisionAt, in.ImplementationDate, th.Implementation, now)
	}
	return res
}

func evaluate(stage string, started, ended *time.Time, th config.Threshold, now time.Time) StageResult {
	r := StageResult{Stage: stage, Status: StatusNotStarted, Threshold: th}
	if started == nil || started.IsZero() {
		return r
	}
	if ended != nil {
		r.Status = StatusComplete
		r.Elapsed = nonNegative(ended.Sub(*started))
		return r
	}
	r.Elapsed = nonNegative(now.Sub(*started))
	r.Status = Classify(r.Elapsed, th)
	return r
}

// Classify maps an elapsed duration onto green, amber or red.
func Classify(elapsed time.Duration, th config.Threshold) string {
	switch {
	case elapsed <= th.Green:
		return StatusGreen
	case elapsed <= th.Amber:
		return StatusAmber
	}
	return StatusRed
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Default returns the built-in thresholds.
func Default() config.SLAConfig {
	return config.SLAConfig{
		Assignment:     config.Threshold{Green: 48 * time.Hour, Amber: 120 * time.Hour},
		Decision:       config.Threshold{Green: 240 * time.Hour, Amber: 480 * time.Hour},
		Implementation: config.Threshold{Green: 720 * time.Hour, Amber: 1440 * time.Hour},
	}
}
