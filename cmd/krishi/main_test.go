package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/pkg/config"
)

func TestNewWeatherCache_RedisFallsBackToMemory(t *testing.T) {
	cfg := config.DefaultConfig().Cache
	cfg.Backend = "redis"
	cfg.RedisURL = "not-a-redis-url"
	deps := newDependencies()

	c := newWeatherCache(context.Background(), cfg, zap.NewNop(), deps)
	require.NotNil(t, c)
	defer c.Close()

	assert.NotContains(t, deps.checks, "redis")
	require.NoError(t, c.Set(context.Background(), "weather:kerala", []byte("{}"), time.Minute))
	_, ok := c.Get(context.Background(), "weather:kerala")
	assert.True(t, ok)
}

func TestNewWeatherProvider_RegistersCacheStats(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Backend = "memory"
	deps := newDependencies()

	weather, closeWeather := newWeatherProvider(context.Background(), cfg, nil, zap.NewNop(), deps)
	defer closeWeather()

	_, err := weather.CurrentConditions(context.Background(), "kerala")
	require.NoError(t, err)
	require.Contains(t, deps.stats, "weather_cache")
	assert.NotNil(t, deps.stats["weather_cache"](context.Background()))
}

func TestNewWeatherProvider_CacheDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Enabled = false
	deps := newDependencies()

	_, closeWeather := newWeatherProvider(context.Background(), cfg, nil, zap.NewNop(), deps)
	closeWeather()
	assert.Empty(t, deps.stats)
}
