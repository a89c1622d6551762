package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zulandar/changeboard/internal/events"
)

type fakeNotifier struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	got      []Event
}

func (f *fakeNotifier) Notify(_ context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	f.got = append(f.got, ev)
	return nil
}

func fastMulti(targets ...Named) *Multi {
	m := NewMulti(targets...)
	m.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return m
}

func TestMulti_RetriesTransientFailures(t *testing.T) {
	flaky := &fakeNotifier{failures: 2, err: errors.New("timeout")}
	steady := &fakeNotifier{}
	m := fastMulti(Named{Name: "flaky", Notifier: flaky}, Named{Name: "steady", Notifier: steady})

	if err := m.Notify(context.Background(), Event{Kind: "submitted"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if flaky.calls != 3 || len(flaky.got) != 1 {
		t.Errorf("flaky calls/delivered = %d/%d, want 3/1", flaky.calls, len(flaky.got))
	}
	if steady.calls != 1 {
		t.Errorf("steady calls = %d, want 1", steady.calls)
	}
}

func TestMulti_PermanentErrorNotRetried(t *testing.T) {
	bad := &fakeNotifier{failures: 10, err: backoff.Permanent(errors.New("channel_not_found"))}
	good := &fakeNotifier{}
	m := fastMulti(Named{Name: "bad", Notifier: bad}, Named{Name: "good", Notifier: good})

	err := m.Notify(context.Background(), Event{Kind: "submitted", BcrNumber: "BCR-2026-0001"})
	if err == nil || !strings.Contains(err.Error(), "bad: ") {
		t.Fatalf("err = %v, want error naming the failed target", err)
	}
	if bad.calls != 1 {
		t.Errorf("bad calls = %d, want 1", bad.calls)
	}
	if len(good.got) != 1 {
		t.Error("a failing target must not block the others")
	}
}

func TestMulti_GivesUpAfterRetries(t *testing.T) {
	down := &fakeNotifier{failures: 100, err: errors.New("503")}
	m := fastMulti(Named{Name: "down", Notifier: down})
	if err := m.Notify(context.Background(), Event{}); err == nil {
		t.Fatal("expected error")
	}
	if down.calls != 4 {
		t.Errorf("calls = %d, want 4", down.calls)
	}
}

func TestEventColor(t *testing.T) {
	tests := map[string]string{
		SeveritySuccess: ColorSuccess,
		SeverityWarning: ColorWarning,
		SeverityError:   ColorError,
		SeverityInfo:    ColorInfo,
		"":              ColorInfo,
	}
	for sev, want := range tests {
		if got := (Event{Severity: sev}).Color(); got != want {
			t.Errorf("Color(%q) = %q, want %q", sev, got, want)
		}
	}
}

func TestFromChange(t *testing.T) {
	ch := events.Change{
		Kind:      events.KindDecision,
		BcrNumber: "BCR-2026-0007",
		Title:     "Tariff change",
		Status:    "rejected",
		Phase:     "Governance",
		Actor:     "lead@example.org",
		Comment:   "Out of scope",
	}
	ev := FromChange(ch, "https://bcr.example.org/")
	if ev.Title != "BCR-2026-0007 decided" {
		t.Errorf("Title = %q", ev.Title)
	}
	if ev.Summary != "Tariff change\nOut of scope" {
		t.Errorf("Summary = %q", ev.Summary)
	}
	if ev.Severity != SeverityWarning {
		t.Errorf("Severity = %q, want warning for a rejection", ev.Severity)
	}
	if ev.URL != "https://bcr.example.org/bcr/BCR-2026-0007" {
		t.Errorf("URL = %q", ev.URL)
	}
	if len(ev.Fields) != 3 || ev.Fields[0].Value != "Governance" {
		t.Errorf("Fields = %+v", ev.Fields)
	}

	if ev := FromChange(events.Change{Kind: events.KindSLABreach, BcrNumber: "X"}, ""); ev.Severity != SeverityError || ev.URL != "" {
		t.Errorf("breach event = %+v", ev)
	}
}

func TestRelevant(t *testing.T) {
	for _, kind := range []string{events.KindUpdated, events.KindImported, events.KindCommented} {
		if Relevant(kind) {
			t.Errorf("Relevant(%q) = true", kind)
		}
	}
	if !Relevant(events.KindSubmitted) {
		t.Error("submissions should be relevant")
	}
}

func TestPublisher_DeliversInBackground(t *testing.T) {
	fake := &fakeNotifier{}
	p := NewPublisher(fake, "")
	go p.Run(context.Background())

	p.Observe(context.Background(), events.Change{Kind: events.KindSubmitted, BcrNumber: "BCR-2026-0001"})
	p.Observe(context.Background(), events.Change{Kind: events.KindUpdated, BcrNumber: "BCR-2026-0001"})
	p.Observe(context.Background(), events.Change{Kind: events.KindAssigned, BcrNumber: "BCR-2026-0001"})
	p.Close()

	if len(fake.got) != 2 {
		t.Fatalf("delivered %d events, want 2", len(fake.got))
	}
	if fake.got[0].Kind != events.KindSubmitted || fake.got[1].Kind != events.KindAssigned {
		t.Errorf("kinds = %s, %s", fake.got[0].Kind, fake.got[1].Kind)
	}

	// Observing after Close is a no-op.
	p.Observe(context.Background(), events.Change{Kind: events.KindSubmitted})
}

func TestPublisher_StopsOnCancel(t *testing.T) {
	p := NewPublisher(Nop{}, "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
