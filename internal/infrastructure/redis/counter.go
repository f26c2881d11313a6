package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterCache is the fast shared store for rate-limit counters. It is a
// cache, not the system of record: the durable counter table remains the
// fallback when redis is unavailable.
type CounterCache struct {
	client *redis.Client
}

// NewCounterCache connects to redis and verifies the connection.
func NewCounterCache(addr, password string, db int) (*CounterCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &CounterCache{client: client}, nil
}

// Close releases the underlying connection pool.
func (c *CounterCache) Close() error {
	return c.client.Close()
}

// Increment atomically bumps the counter for key and returns the new count.
// The window TTL is attached when the key is created, so the counter
// expires with its window and a fresh window starts the count at 1.
func (c *CounterCache) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := fmt.Sprintf("rate_limit:%s", key)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to execute rate limit transaction: %w", err)
	}

	return incr.Val(), nil
}

// TTL reports how long until the counter's window expires. Used to fill
// the Retry-After hint on throttled responses.
func (c *CounterCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	redisKey := fmt.Sprintf("rate_limit:%s", key)

	ttl, err := c.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit ttl: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
