package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestCacheBasicOperations(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	key := "weather:kerala"
	value := []byte(`{"condition":"rainy","temperature":27}`)

	if err := c.Set(ctx, key, value, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, found := c.Get(ctx, key)
	if !found {
		t.Fatal("Expected cache hit, got miss")
	}
	if string(got) != string(value) {
		t.Errorf("Expected %s, got %s", value, got)
	}

	// Mutating the caller's slice must not affect the cached copy
	value[2] = 'X'
	got, _ = c.Get(ctx, key)
	if got[2] == 'X' {
		t.Error("cache should store a copy of the value")
	}
}

func TestCacheMiss(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	if _, found := c.Get(ctx, "non-existent-key"); found {
		t.Error("Expected cache miss, got hit")
	}

	stats := c.GetStats(ctx)
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
}

func TestCacheExpiration(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	key := "test-expire"
	if err := c.Set(ctx, key, []byte("expires soon"), 100*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, found := c.Get(ctx, key); !found {
		t.Fatal("Expected cache hit before expiration")
	}

	time.Sleep(150 * time.Millisecond)

	if _, found := c.Get(ctx, key); found {
		t.Error("Expected cache miss after expiration")
	}
}

func TestCacheDefaultTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultTTL = 50 * time.Millisecond
	c := New(cfg)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if _, found := c.Get(ctx, "k"); found {
		t.Error("zero ttl should fall back to the default TTL")
	}
}

func TestCacheDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	c := New(cfg)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, found := c.Get(ctx, "k"); found {
		t.Error("disabled cache should never hit")
	}
}

func TestCacheMaxSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 3
	c := New(cfg)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := c.Set(ctx, fmt.Sprintf("key-%d", i), []byte("v"), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	stats := c.GetStats(ctx)
	if stats.TotalEntries != 3 {
		t.Errorf("Expected 3 entries, got %d", stats.TotalEntries)
	}
	if _, found := c.Get(ctx, "key-0"); found {
		t.Error("oldest entry should have been evicted")
	}
	if _, found := c.Get(ctx, "key-4"); !found {
		t.Error("newest entry should be present")
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "weather:kerala", []byte("a"), time.Hour)
	_ = c.Set(ctx, "weather:punjab", []byte("b"), time.Hour)

	if err := c.Delete(ctx, "weather:kerala"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := c.Get(ctx, "weather:kerala"); found {
		t.Error("deleted key should miss")
	}
	if _, found := c.Get(ctx, "weather:punjab"); !found {
		t.Error("unrelated key should survive")
	}
	if n := c.GetStats(ctx).TotalEntries; n != 1 {
		t.Errorf("Expected 1 entry, got %d", n)
	}
}

func TestCacheStats(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Hour)
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	c.Get(ctx, "missing")

	stats := c.GetStats(ctx)
	if stats.Hits != 3 || stats.Misses != 1 {
		t.Errorf("Expected 3 hits / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.75 {
		t.Errorf("Expected hit rate 0.75, got %f", stats.HitRate)
	}
}

func TestCacheCleanupLoopStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := DefaultConfig()
	cfg.CleanupPeriod = 10 * time.Millisecond
	c := New(cfg)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if n := c.GetStats(ctx).TotalEntries; n != 0 {
		t.Errorf("cleanup loop should have removed expired entry, %d remain", n)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestRedisBackend(t *testing.T) {
	url := os.Getenv("KRISHI_TEST_REDIS_URL")
	if url == "" {
		t.Skip("KRISHI_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	backend, err := NewRedisBackend(ctx, url, fmt.Sprintf("krishi:test:%d:", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("NewRedisBackend failed: %v", err)
	}
	c := NewWithBackend(backend, DefaultConfig())
	defer c.Close()

	if err := c.Set(ctx, "weather:kerala", []byte("rainy"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, found := c.Get(ctx, "weather:kerala")
	if !found || string(got) != "rainy" {
		t.Fatalf("Expected hit with 'rainy', got %q (found=%v)", got, found)
	}
	if n := c.GetStats(ctx).TotalEntries; n != 1 {
		t.Errorf("Expected 1 entry under the test prefix, got %d", n)
	}
	if err := c.Delete(ctx, "weather:kerala"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := c.Get(ctx, "weather:kerala"); found {
		t.Error("Expected miss after delete")
	}
}

func TestNewRedisBackend_InvalidURL(t *testing.T) {
	if _, err := NewRedisBackend(context.Background(), "not-a-url", ""); err == nil {
		t.Error("expected error for invalid url")
	}
}
