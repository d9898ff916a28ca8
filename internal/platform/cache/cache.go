// Package cache stores scorer rankings in Redis so identical board requests
// do not hit the scorer again until the entry expires.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phrazzld/questboard-api/internal/platform/scorer"
)

// keyPrefix namespaces ranking entries in a shared Redis.
const keyPrefix = "questboard:ranking:"

// RankingCache keeps scorer responses keyed by request hash.
type RankingCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Connect opens a Redis client and verifies it with a PING.
func Connect(ctx context.Context, opts Options) (*RankingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(client, opts.TTL), nil
}

// New wraps an existing client.
func New(client redis.UniversalClient, ttl time.Duration) *RankingCache {
	if client == nil {
		// ALLOW-PANIC: constructor misuse
		panic("redis client cannot be nil")
	}
	return &RankingCache{client: client, ttl: ttl}
}

// Get returns the cached ranking for key. A miss is (nil, false, nil).
func (c *RankingCache) Get(ctx context.Context, key string) ([]scorer.Record, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached ranking: %w", err)
	}

	var ranked []scorer.Record
	if err := json.Unmarshal(data, &ranked); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached ranking: %w", err)
	}
	return ranked, true, nil
}

// Set stores a ranking under key for the configured TTL.
func (c *RankingCache) Set(ctx context.Context, key string, ranked []scorer.Record) error {
	data, err := json.Marshal(ranked)
	if err != nil {
		return fmt.Errorf("failed to encode ranking: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache ranking: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RankingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *RankingCache) Close() error {
	return c.client.Close()
}
