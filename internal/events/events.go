// Package events carries BCR change notifications from the services that
// mutate records to the components that react to them.
package events

import (
	"context"
	"time"
)

// Change kinds.
const (
	KindSubmitted      = "submitted"
	KindUpdated        = "updated"
	KindDeleted        = "deleted"
	KindTransitioned   = "transitioned"
	KindPhaseCompleted = "phase_completed"
	KindPhasesReset    = "phases_reset"
	KindDecision       = "decision"
	KindAssigned       = "assigned"
	KindImplemented    = "implemented"
	KindWithdrawn      = "withdrawn"
	KindCommented      = "commented"
	KindImported       = "imported"
	KindSLABreach      = "sla_breach"
)

// Change describes one mutation of a BCR.
type Change struct {
	Kind      string
	BcrID     uint
	BcrNumber string
	Title     string
	Status    string
	Phase     string
	Actor     string
	Comment   string
	At        time.Time
}

// Observer reacts to changes. Implementations must not block for long;
// Observe is called synchronously after the mutation commits.
type Observer interface {
	Observe(ctx context.Context, ch Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ch Change)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ch Change) { f(ctx, ch) }

// Observers fans a change out to every member.
type Observers []Observer

// Publish delivers ch to each observer in order.
func (o Observers) Publish(ctx context.Context, ch Change) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ch)
		}
	}
}
