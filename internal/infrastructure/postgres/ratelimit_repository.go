package postgres

import (
	"context"
	"fmt"
	"time"

	"bancora/internal/domain/ratelimit"
)

// RateLimitRepository is the durable fallback counter store behind the
// redis cache. One row per (identifier, endpoint, window_start); the
// increment is a single atomic upsert, never read-then-write.
type RateLimitRepository struct {
	db *DB
}

// NewRateLimitRepository creates a new PostgreSQL rate limit repository
func NewRateLimitRepository(db *DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

var _ ratelimit.CounterStore = (*RateLimitRepository)(nil)

// Increment bumps the counter for the window and returns the new count.
// A fresh window inserts with count 1.
func (r *RateLimitRepository) Increment(ctx context.Context, identifier, endpoint string, windowStart time.Time) (int64, error) {
	query := `
		INSERT INTO rate_limit_counters (identifier, endpoint, window_start, count, last_request_at)
		VALUES ($1, $2, $3, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (identifier, endpoint, window_start)
		DO UPDATE SET
			count = rate_limit_counters.count + 1,
			last_request_at = CURRENT_TIMESTAMP
		RETURNING count
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, identifier, endpoint, windowStart).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return count, nil
}

// PurgeBefore drops counters for windows that ended before the cutoff.
// Run periodically by the scheduler to keep the table bounded.
func (r *RateLimitRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM rate_limit_counters WHERE window_start < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate limit counters: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}
