package messaging

import (
	"context"
	"testing"
	"time"

	eventsv1 "ballot/contracts/gen/events/v1"
)

func TestBusDeliversToTopicSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewBus(nil)

	received := make(chan eventsv1.Envelope, 1)
	if err := bus.Subscribe(ctx, "election.closed", "test-cg", func(_ context.Context, event eventsv1.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "election.created", eventsv1.Envelope{EventID: "other"}); err != nil {
		t.Fatalf("publish other topic: %v", err)
	}
	if err := bus.Publish(ctx, "election.closed", eventsv1.Envelope{EventID: "evt-1", EventType: "election.closed"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case event := <-received:
		if event.EventID != "evt-1" {
			t.Fatalf("expected evt-1, got %s", event.EventID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event was not delivered")
	}
}

func TestBusRemovesSubscriberOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus(nil)
	if err := bus.Subscribe(ctx, "token.invalidated", "test-cg", func(context.Context, eventsv1.Envelope) error {
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if bus.Subscribers("token.invalidated") != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for bus.Subscribers("token.invalidated") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber was not removed after cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
