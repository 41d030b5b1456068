package logging

import (
	"testing"

	"github.com/jordanhubbard/krishi/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestManager_RecentNewestFirst(t *testing.T) {
	m := NewManager(10)
	m.Log(LogEntry{Level: LogLevelInfo, Message: "first"})
	m.Log(LogEntry{Level: LogLevelWarn, Message: "second"})
	m.Log(LogEntry{Level: LogLevelInfo, Message: "third"})

	entries := m.Recent(0, "")
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Message)
	assert.Equal(t, "first", entries[2].Message)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())

	warn := m.Recent(10, LogLevelWarn)
	require.Len(t, warn, 1)
	assert.Equal(t, "second", warn[0].Message)

	assert.Len(t, m.Recent(2, ""), 2)
}

func TestManager_RingOverwritesOldest(t *testing.T) {
	m := NewManager(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		m.Log(LogEntry{Level: LogLevelInfo, Message: msg})
	}

	entries := m.Recent(0, "")
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{entries[0].Message, entries[1].Message, entries[2].Message})
}

func TestManager_Core(t *testing.T) {
	m := NewManager(10)
	logger := zap.New(m.Core(zapcore.InfoLevel)).Named("advisor").With(zap.String("farmer_id", "f1"))

	logger.Debug("dropped")
	logger.Warn("weather unavailable", zap.String("location", "kerala"))

	entries := m.Recent(0, "")
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "advisor", entries[0].Source)
	assert.Equal(t, "weather unavailable", entries[0].Message)
	assert.Equal(t, "f1", entries[0].Metadata["farmer_id"])
	assert.Equal(t, "kerala", entries[0].Metadata["location"])
}

func TestNew(t *testing.T) {
	m := NewManager(10)
	logger, err := New(config.LoggingConfig{Level: "info", JSON: false}, m)
	require.NoError(t, err)

	logger.Info("started")
	assert.Len(t, m.Recent(0, LogLevelInfo), 1)

	_, err = New(config.LoggingConfig{Level: "loud"}, nil)
	assert.Error(t, err)
}
