package messagebus

import (
	"context"
	"sync"
	"testing"

	"github.com/jordanhubbard/krishi/pkg/messages"
	"github.com/jordanhubbard/krishi/pkg/models"
)

// loopbackBus delivers published events straight to tail handlers.
type loopbackBus struct {
	mu        sync.Mutex
	handlers  []func(*messages.EventMessage)
	published []*messages.EventMessage
}

func (b *loopbackBus) PublishEvent(ctx context.Context, eventType string, event *messages.EventMessage) error {
	b.mu.Lock()
	b.published = append(b.published, event)
	handlers := append([]func(*messages.EventMessage){}, b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(event)
	}
	return nil
}

func (b *loopbackBus) TailEvents(eventType string, handler func(*messages.EventMessage)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
	return nil
}

func TestEscalationBridge_SkipsOwnEvents(t *testing.T) {
	bus := &loopbackBus{}
	var got []models.EscalationRecord
	bridge := NewEscalationBridge(bus, "node-a", func(esc models.EscalationRecord) {
		got = append(got, esc)
	}, nil)
	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}

	own := messages.QueryEscalated(models.EscalationRecord{ID: "e-1"}, "node-a")
	if err := bus.PublishEvent(context.Background(), messages.EventQueryEscalated, own); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("own escalation echoed back: %+v", got)
	}

	remote := messages.QueryEscalated(models.EscalationRecord{ID: "e-2", FarmerID: "f9"}, "node-b")
	if err := bus.PublishEvent(context.Background(), messages.EventQueryEscalated, remote); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "e-2" {
		t.Errorf("remote escalation not delivered: %+v", got)
	}
}

func TestEscalationBridge_StartTwice(t *testing.T) {
	bus := &loopbackBus{}
	bridge := NewEscalationBridge(bus, "node-a", func(models.EscalationRecord) {}, nil)
	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}
	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}
	if len(bus.handlers) != 1 {
		t.Errorf("expected a single subscription, got %d", len(bus.handlers))
	}
}

func TestEscalationBridge_IgnoresEventsWithoutRecord(t *testing.T) {
	bus := &loopbackBus{}
	calls := 0
	bridge := NewEscalationBridge(bus, "node-a", func(models.EscalationRecord) { calls++ }, nil)
	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}
	_ = bus.PublishEvent(context.Background(), messages.EventQueryEscalated, &messages.EventMessage{Source: "node-b"})
	if calls != 0 {
		t.Errorf("sink called %d times for an empty event", calls)
	}
}
