package messagebus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/pkg/messages"
	"github.com/jordanhubbard/krishi/pkg/models"
)

// EscalationBridge delivers escalations raised by other service instances to
// the local sink, so every expert desk sees the whole queue. Local
// escalations are already published by the advisor and are skipped.
type EscalationBridge struct {
	sub        EventSubscriber
	instanceID string
	sink       func(models.EscalationRecord)
	logger     *zap.Logger

	mu      sync.Mutex
	started bool
}

// NewEscalationBridge creates a bridge. sink receives remote escalations.
func NewEscalationBridge(sub EventSubscriber, instanceID string, sink func(models.EscalationRecord), logger *zap.Logger) *EscalationBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationBridge{
		sub:        sub,
		instanceID: instanceID,
		sink:       sink,
		logger:     logger.Named("bridge"),
	}
}

// Start subscribes to remote escalations. It is safe to call more than once.
func (b *EscalationBridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	err := b.sub.TailEvents(messages.EventQueryEscalated, func(event *messages.EventMessage) {
		// Skip our own events to avoid echo
		if event.Source == b.instanceID || event.Escalation == nil {
			return
		}
		b.sink(*event.Escalation)
	})
	if err != nil {
		return err
	}
	b.started = true
	b.logger.Info("escalation bridge started", zap.String("instance", b.instanceID))
	return nil
}
