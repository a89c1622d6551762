// Package notify delivers BCR change notifications to chat platforms.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Severity levels.
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Sidebar colors per severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Event is a notification ready for a chat platform.
type Event struct {
	Kind      string
	BcrNumber string
	Title     string
	Summary   string
	Severity  string
	URL       string
	Fields    []Field
}

// Field is a key-value pair shown alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool // render side-by-side with another field
}

// Color returns the sidebar color for the event's severity.
func (e Event) Color() string {
	switch e.Severity {
	case SeveritySuccess:
		return ColorSuccess
	case SeverityWarning:
		return ColorWarning
	case SeverityError:
		return ColorError
	}
	return ColorInfo
}

// Notifier delivers one event. Errors wrapped with backoff.Permanent are not
// retried by Multi.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Event) error { return nil }

// Named pairs a notifier with the name used in log lines.
type Named struct {
	Name     string
	Notifier Notifier
}

// Multi fans events out to several notifiers, retrying each independently.
type Multi struct {
	targets    []Named
	newBackOff func() backoff.BackOff
}

const (
	maxRetries    = 4
	maxRetryDelay = 30 * time.Second
)

func defaultBackOff() backoff.BackOff {
	// BackOff implementations are stateful; return a fresh one per delivery.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = maxRetryDelay
	return backoff.WithMaxRetries(bo, maxRetries)
}

// NewMulti returns a Multi over targets.
func NewMulti(targets ...Named) *Multi {
	return &Multi{targets: targets, newBackOff: defaultBackOff}
}

// Len returns the number of targets.
func (m *Multi) Len() int { return len(m.targets) }

// Notify delivers ev to every target. Failures are logged and joined into
// the returned error; a failing target does not stop the others.
func (m *Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, t := range m.targets {
		op := func() error { return t.Notifier.Notify(ctx, ev) }
		if err := backoff.Retry(op, backoff.WithContext(m.newBackOff(), ctx)); err != nil {
			log.Printf("notify: %s: deliver %s for %s: %v", t.Name, ev.Kind, ev.BcrNumber, err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}
