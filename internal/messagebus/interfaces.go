package messagebus

import (
	"context"

	"github.com/jordanhubbard/krishi/pkg/messages"
)

// EventPublisher abstracts event publishing for testability.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, event *messages.EventMessage) error
}

// EventSubscriber abstracts live event delivery for testability.
type EventSubscriber interface {
	TailEvents(eventType string, handler func(*messages.EventMessage)) error
}

// DurableSubscriber delivers events through a named consumer that survives
// reconnects.
type DurableSubscriber interface {
	SubscribeEvents(eventType string, handler func(*messages.EventMessage)) error
}

// Verify NatsMessageBus implements all interfaces at compile time.
var (
	_ EventPublisher    = (*NatsMessageBus)(nil)
	_ EventSubscriber   = (*NatsMessageBus)(nil)
	_ DurableSubscriber = (*NatsMessageBus)(nil)
)
