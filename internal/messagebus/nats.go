package messagebus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/pkg/messages"
)

// SubjectPrefix is prepended to every event subject
const SubjectPrefix = "krishi.events."

// EventSubject returns the subject an event type is published on
func EventSubject(eventType string) string {
	return SubjectPrefix + eventType
}

// NatsMessageBus implements a message bus using NATS with JetStream
type NatsMessageBus struct {
	conn           *nats.Conn
	js             nats.JetStreamContext
	mu             sync.Mutex
	subscriptions  map[string]*nats.Subscription
	streamName     string
	url            string
	consumerPrefix string
	logger         *zap.Logger
}

// Config holds NATS configuration
type Config struct {
	URL            string        // NATS server URL (e.g., "nats://nats:4222")
	StreamName     string        // JetStream stream name (default: "KRISHI")
	Timeout        time.Duration // Connection timeout
	ConsumerPrefix string        // Names the reader owning durable consumers
}

// NewNatsMessageBus creates a new NATS message bus with JetStream
func NewNatsMessageBus(cfg Config, logger *zap.Logger) (*NatsMessageBus, error) {
	if cfg.URL == "" {
		cfg.URL = "nats://localhost:4222"
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "KRISHI"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("messagebus")

	nc, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	mb := &NatsMessageBus{
		conn:           nc,
		js:             js,
		subscriptions:  make(map[string]*nats.Subscription),
		streamName:     cfg.StreamName,
		url:            cfg.URL,
		consumerPrefix: cfg.ConsumerPrefix,
		logger:         logger,
	}

	if err := mb.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", cfg.URL), zap.String("stream", cfg.StreamName))
	return mb, nil
}

// ensureStream creates or updates the JetStream stream holding all events.
// LimitsPolicy lets several consumers read the same subjects.
func (mb *NatsMessageBus) ensureStream() error {
	streamConfig := &nats.StreamConfig{
		Name:      mb.streamName,
		Subjects:  []string{SubjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  256 * 1024 * 1024, // 256MB
		Storage:   nats.FileStorage,
		Replicas:  1,
		Discard:   nats.DiscardOld,
	}

	if _, err := mb.js.StreamInfo(mb.streamName); err != nil {
		if _, err := mb.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		mb.logger.Info("created JetStream stream", zap.String("stream", mb.streamName))
		return nil
	}

	if _, err := mb.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("failed to update stream: %w", err)
	}
	return nil
}

// PublishEvent publishes an event message to krishi.events.<eventType>
func (mb *NatsMessageBus) PublishEvent(ctx context.Context, eventType string, event *messages.EventMessage) error {
	return mb.publish(ctx, EventSubject(eventType), event)
}

// publish is the internal method to publish messages
func (mb *NatsMessageBus) publish(ctx context.Context, subject string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// Publish to JetStream for durability
	if _, err := mb.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", subject, err)
	}
	return nil
}

// SubscribeEvents creates a durable consumer for an event type. eventType
// may be a NATS wildcard such as "query.*" or ">". A reader that reconnects
// with the same ConsumerPrefix resumes after the last acknowledged event.
func (mb *NatsMessageBus) SubscribeEvents(eventType string, handler func(*messages.EventMessage)) error {
	subject := EventSubject(eventType)
	consumerName := "events-" + consumerSafe(eventType)
	return mb.subscribe(subject, consumerName, mb.ackingHandler(handler))
}

// ackingHandler decodes durable deliveries. Undecodable messages are
// terminated so they are not redelivered.
func (mb *NatsMessageBus) ackingHandler(handler func(*messages.EventMessage)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var event messages.EventMessage
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			mb.logger.Warn("failed to unmarshal event message", zap.String("subject", msg.Subject), zap.Error(err))
			_ = msg.Term()
			return
		}

		handler(&event)
		_ = msg.Ack()
	}
}

// TailEvents delivers live events without a durable consumer. Every caller
// receives every event published after it subscribes.
func (mb *NatsMessageBus) TailEvents(eventType string, handler func(*messages.EventMessage)) error {
	subject := EventSubject(eventType)
	sub, err := mb.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event messages.EventMessage
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			mb.logger.Warn("failed to unmarshal event message", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(&event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	mb.track("tail:"+subject, sub)
	return nil
}

// prefixConsumer adds the optional consumer prefix for namespace isolation
func (mb *NatsMessageBus) prefixConsumer(name string) string {
	if mb.consumerPrefix != "" {
		return mb.consumerPrefix + "-" + name
	}
	return name
}

// subscribe is the internal method to set up durable subscriptions
func (mb *NatsMessageBus) subscribe(subject, consumerName string, handler nats.MsgHandler) error {
	prefixed := mb.prefixConsumer(consumerName)
	sub, err := mb.js.Subscribe(subject, handler,
		nats.Durable(prefixed),
		nats.AckExplicit(),
		nats.MaxDeliver(3),
		nats.AckWait(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	mb.track(subject, sub)
	mb.logger.Info("subscribed", zap.String("subject", subject), zap.String("consumer", prefixed))
	return nil
}

func (mb *NatsMessageBus) track(key string, sub *nats.Subscription) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.subscriptions[key] = sub
}

// Unsubscribe removes a subscription
func (mb *NatsMessageBus) Unsubscribe(key string) error {
	mb.mu.Lock()
	sub, ok := mb.subscriptions[key]
	delete(mb.subscriptions, key)
	mb.mu.Unlock()

	if !ok {
		return fmt.Errorf("no subscription found for %s", key)
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", key, err)
	}
	return nil
}

// Close closes all subscriptions and the NATS connection
func (mb *NatsMessageBus) Close() error {
	mb.mu.Lock()
	keys := make([]string, 0, len(mb.subscriptions))
	for key := range mb.subscriptions {
		keys = append(keys, key)
	}
	mb.mu.Unlock()

	for _, key := range keys {
		_ = mb.Unsubscribe(key)
	}

	mb.conn.Close()
	mb.logger.Info("closed NATS connection")
	return nil
}

// Health returns the health status of the NATS connection
func (mb *NatsMessageBus) Health() error {
	if mb.conn.IsClosed() {
		return fmt.Errorf("NATS connection is closed")
	}
	if !mb.conn.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	if _, err := mb.js.StreamInfo(mb.streamName); err != nil {
		return fmt.Errorf("JetStream stream %s is unhealthy: %w", mb.streamName, err)
	}
	return nil
}

// Stats returns statistics about the message bus
func (mb *NatsMessageBus) Stats() map[string]interface{} {
	mb.mu.Lock()
	subs := len(mb.subscriptions)
	mb.mu.Unlock()

	stats := map[string]interface{}{
		"url":           mb.url,
		"stream":        mb.streamName,
		"connected":     mb.conn.IsConnected(),
		"subscriptions": subs,
	}
	if info, err := mb.js.StreamInfo(mb.streamName); err == nil {
		stats["stream_messages"] = info.State.Msgs
		stats["stream_bytes"] = info.State.Bytes
		stats["stream_consumers"] = info.State.Consumers
	}
	return stats
}

// consumerSafe turns a subject fragment into a valid durable name
func consumerSafe(s string) string {
	r := strings.NewReplacer(".", "-", "*", "any", ">", "all")
	return r.Replace(s)
}
