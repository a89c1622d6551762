package events

import (
	"context"
	"testing"
)

func TestObservers_PublishInOrder(t *testing.T) {
	var got []string
	obs := Observers{
		ObserverFunc(func(_ context.Context, ch Change) { got = append(got, "a:"+ch.Kind) }),
		nil,
		ObserverFunc(func(_ context.Context, ch Change) { got = append(got, "b:"+ch.BcrNumber) }),
	}
	obs.Publish(context.Background(), Change{Kind: KindSubmitted, BcrNumber: "BCR-2026-0001"})

	if len(got) != 2 || got[0] != "a:submitted" || got[1] != "b:BCR-2026-0001" {
		t.Errorf("published = %v", got)
	}
}

func TestObservers_Empty(t *testing.T) {
	var obs Observers
	obs.Publish(context.Background(), Change{Kind: KindUpdated})
}
