package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements CacheStore using Redis.
// It leverages Redis's native TTL for entry expiry, so GetSearch never
// needs to check timestamps itself. Combine it with a relational store
// for sessions, matches and activity.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisConfig contains configuration options for Redis.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string

	// Password is the Redis password (empty for no auth)
	Password string

	// DB is the Redis database number (0-15)
	DB int

	// KeyPrefix is prepended to all keys (default: "paywatch:search:").
	// Typically ends with a colon.
	KeyPrefix string
}

// NewRedisCache creates a new Redis search cache from an existing client
// and a key prefix.
func NewRedisCache(client *redis.Client, keyPrefix string) (*RedisCache, error) {
	return &RedisCache{
		client: client,
		prefix: keyPrefix,
	}, nil
}

// NewRedisFromConfig creates a new Redis search cache.
func NewRedisFromConfig(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "paywatch:search:"
	}

	return &RedisCache{
		client: client,
		prefix: prefix,
	}, nil
}

// GetSearch returns cached results for the key. Expired keys are removed
// by Redis itself, so a missing key is the only miss condition.
func (c *RedisCache) GetSearch(key string) ([]byte, bool, error) {
	ctx := context.Background()

	results, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: failed to get key: %w", err)
	}
	return results, true, nil
}

// PutSearch stores results under the key with the given TTL, overwriting
// any existing entry. The serialized request is not retained; Redis holds
// only the value needed to serve hits.
func (c *RedisCache) PutSearch(key string, request, results []byte, ttl time.Duration) error {
	ctx := context.Background()

	if err := c.client.Set(ctx, c.prefix+key, results, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set key: %w", err)
	}
	return nil
}

// Delete removes a cache entry (useful for testing).
func (c *RedisCache) Delete(key string) error {
	ctx := context.Background()

	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete key: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
