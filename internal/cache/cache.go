package cache

import (
	"context"
	"sync"
	"time"
)

// Entry represents a cached value
type Entry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Hits      int64     `json:"hits"`
}

// Config defines cache configuration
type Config struct {
	Enabled       bool          `json:"enabled"`
	DefaultTTL    time.Duration `json:"default_ttl"`    // Default time-to-live for cache entries
	MaxSize       int           `json:"max_size"`       // Maximum number of entries (memory backend)
	CleanupPeriod time.Duration `json:"cleanup_period"` // How often to drop expired entries (memory backend)
}

// DefaultConfig returns sensible defaults for caching
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		DefaultTTL:    30 * time.Minute,
		MaxSize:       1000,
		CleanupPeriod: 5 * time.Minute,
	}
}

// Backend is the interface for cache storage backends
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Len(ctx context.Context) int
	Close() error
}

// Stats tracks cache performance
type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Errors       int64   `json:"errors"`
	TotalEntries int64   `json:"total_entries"`
	HitRate      float64 `json:"hit_rate"`
}

// Cache is a TTL cache of opaque byte values in front of a Backend
type Cache struct {
	backend Backend
	config  *Config
	mu      sync.Mutex
	stats   Stats
}

// New creates a new in-memory cache instance
func New(config *Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	return &Cache{
		backend: newMemoryBackend(config),
		config:  config,
	}
}

// NewWithBackend creates a cache on top of an existing backend such as Redis
func NewWithBackend(backend Backend, config *Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	return &Cache{
		backend: backend,
		config:  config,
	}
}

// Get retrieves a cached value if available and not expired.
// Backend errors are counted and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	entry, found, err := c.backend.Get(ctx, key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.stats.Errors++
		c.stats.Misses++
		return nil, false
	}
	if !found {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return entry.Value, true
}

// Set stores a value in the cache. A zero ttl uses the configured default.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.config.Enabled {
		return nil
	}
	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		c.mu.Lock()
		c.stats.Errors++
		c.mu.Unlock()
		return err
	}
	return nil
}

// Delete removes an entry from the cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.config.Enabled {
		return nil
	}
	return c.backend.Delete(ctx, key)
}

// GetStats returns current cache statistics
func (c *Cache) GetStats(ctx context.Context) Stats {
	c.mu.Lock()
	stats := c.stats
	c.mu.Unlock()

	stats.TotalEntries = int64(c.backend.Len(ctx))
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close releases the backend
func (c *Cache) Close() error {
	return c.backend.Close()
}

// memoryBackend keeps entries in a map with TTL expiry and oldest-first eviction
type memoryBackend struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	maxSize   int
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newMemoryBackend(config *Config) *memoryBackend {
	b := &memoryBackend{
		entries: make(map[string]*Entry),
		maxSize: config.MaxSize,
		done:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupPeriod > 0 {
		b.wg.Add(1)
		go b.cleanupLoop(config.CleanupPeriod)
	}
	return b
}

func (b *memoryBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, exists := b.entries[key]
	if !exists {
		return nil, false, nil
	}
	if time.Now().After(entry.ExpiresAt) {
		delete(b.entries, key)
		return nil, false, nil
	}
	entry.Hits++
	copied := *entry
	return &copied, true, nil
}

func (b *memoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	entry := &Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[key]; !exists && b.maxSize > 0 && len(b.entries) >= b.maxSize {
		b.evictOldest()
	}
	b.entries[key] = entry
	return nil
}

func (b *memoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
	return nil
}

func (b *memoryBackend) Len(ctx context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *memoryBackend) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	b.wg.Wait()
	return nil
}

// cleanupLoop periodically removes expired entries
func (b *memoryBackend) cleanupLoop(period time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.cleanup()
		case <-b.done:
			return
		}
	}
}

func (b *memoryBackend) cleanup() {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for key, entry := range b.entries {
		if now.After(entry.ExpiresAt) {
			delete(b.entries, key)
		}
	}
}

// evictOldest removes the entry cached first. Callers hold b.mu.
func (b *memoryBackend) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entry := range b.entries {
		if first || entry.CachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CachedAt
			first = false
		}
	}

	if oldestKey != "" {
		delete(b.entries, oldestKey)
	}
}
