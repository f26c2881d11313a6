package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CounterCache is the fast shared counter store (redis in production).
type CounterCache interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// CounterStore is the durable fallback of record when the cache is down.
type CounterStore interface {
	// Increment atomically bumps the counter for (identifier, endpoint,
	// windowStart) and returns the new count. A new window starts at 1.
	Increment(ctx context.Context, identifier, endpoint string, windowStart time.Time) (int64, error)
}

// Result is the limiter's verdict on one request.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter enforces a fixed-window request ceiling per (identifier, endpoint).
// Counting happens in the cache when available and falls back to the durable
// store otherwise. When the fallback store also fails the limiter fails open:
// availability over strictness, a throttle outage must not take down all
// traffic.
type Limiter struct {
	cache     CounterCache
	store     CounterStore
	threshold int64
	window    time.Duration
	now       func() time.Time
}

// NewLimiter creates a rate limiter allowing threshold requests per window.
func NewLimiter(cache CounterCache, store CounterStore, threshold int64, window time.Duration) *Limiter {
	return &Limiter{
		cache:     cache,
		store:     store,
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

// Check counts the request and reports whether it is allowed. Counting and
// comparison use an atomic increment, never read-then-write, so concurrent
// handlers on the same key cannot race past the threshold.
func (l *Limiter) Check(ctx context.Context, identifier, endpoint string) Result {
	key := fmt.Sprintf("%s:%s", identifier, endpoint)

	if l.cache != nil {
		count, err := l.cache.Increment(ctx, key, l.window)
		if err == nil {
			if count <= l.threshold {
				return Result{Allowed: true}
			}
			return Result{Allowed: false, RetryAfter: l.retryAfter(ctx, key)}
		}
		log.Printf("Rate limit cache unavailable, falling back to durable store: %v", err)
	}

	windowStart := l.now().Truncate(l.window)
	count, err := l.store.Increment(ctx, identifier, endpoint, windowStart)
	if err != nil {
		log.Printf("WARNING: rate limit store unavailable, failing open for %s: %v", key, err)
		return Result{Allowed: true}
	}

	if count <= l.threshold {
		return Result{Allowed: true}
	}
	return Result{Allowed: false, RetryAfter: windowStart.Add(l.window).Sub(l.now())}
}

func (l *Limiter) retryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := l.cache.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return l.window
	}
	return ttl
}
