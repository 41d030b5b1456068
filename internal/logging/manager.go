package logging

import (
	"container/ring"
	"fmt"
	"sync"
	"time"

	"github.com/jordanhubbard/krishi/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultBufferSize is the number of log entries kept in memory when none is configured
	DefaultBufferSize = 1000

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogEntry represents a single log entry
type LogEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Manager keeps the most recent log entries in a ring buffer
type Manager struct {
	mu     sync.RWMutex
	buffer *ring.Ring
	size   int
	count  int
	seq    int64
}

// NewManager creates a new logging manager holding up to size entries
func NewManager(size int) *Manager {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Manager{
		buffer: ring.New(size),
		size:   size,
	}
}

// New builds the service logger. Every entry is written to the configured zap
// output and also recorded in m when m is non-nil.
func New(cfg config.LoggingConfig, m *Manager) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if !cfg.JSON {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if m == nil {
		return logger, nil
	}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, m.Core(level))
	})), nil
}

// Log adds a log entry to the buffer
func (m *Manager) Log(entry LogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("log-%d", m.seq)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	m.buffer.Value = entry
	m.buffer = m.buffer.Next()
	if m.count < m.size {
		m.count++
	}
}

// Recent returns up to limit entries, newest first. An empty level matches all
// entries; otherwise only entries at that level are returned.
func (m *Manager) Recent(limit int, level string) []LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > m.count {
		limit = m.count
	}

	entries := make([]LogEntry, 0, limit)
	r := m.buffer.Prev()
	for i := 0; i < m.count && len(entries) < limit; i++ {
		if entry, ok := r.Value.(LogEntry); ok {
			if level == "" || entry.Level == level {
				entries = append(entries, entry)
			}
		}
		r = r.Prev()
	}
	return entries
}

// Core returns a zapcore.Core that records entries at or above enab into m
func (m *Manager) Core(enab zapcore.LevelEnabler) zapcore.Core {
	return &bufferCore{LevelEnabler: enab, manager: m}
}

type bufferCore struct {
	zapcore.LevelEnabler
	manager *Manager
	fields  []zapcore.Field
}

func (c *bufferCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &bufferCore{LevelEnabler: c.LevelEnabler, manager: c.manager}
	clone.fields = append(append(clone.fields, c.fields...), fields...)
	return clone
}

func (c *bufferCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *bufferCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	entry := LogEntry{
		Timestamp: ent.Time,
		Level:     ent.Level.String(),
		Source:    ent.LoggerName,
		Message:   ent.Message,
	}
	if len(enc.Fields) > 0 {
		entry.Metadata = enc.Fields
	}
	c.manager.Log(entry)
	return nil
}

func (c *bufferCore) Sync() error { return nil }
