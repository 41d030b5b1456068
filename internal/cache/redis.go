package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores cache entries in Redis under a key prefix.
// Expiry is delegated to Redis TTLs.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to the Redis instance at url (redis://host:port/db)
func NewRedisBackend(ctx context.Context, url, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisBackendFromClient(client, prefix), nil
}

// NewRedisBackendFromClient wraps an existing client
func NewRedisBackendFromClient(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "krishi:cache:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) key(k string) string {
	return r.prefix + k
}

func (r *RedisBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return &Entry{Key: key, Value: val}, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Len(ctx context.Context) int {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// Ping checks that Redis is reachable
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
