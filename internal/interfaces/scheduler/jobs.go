package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"bancora/internal/domain/session"
	"bancora/internal/domain/webhook"
)

// WebhookProcessJob applies one ingested webhook event. Submitted by the
// webhook handler right after the delivery is persisted and ACKed, so heavy
// processing never blocks the provider's response deadline.
type WebhookProcessJob struct {
	Processor *webhook.Processor
	Event     *webhook.Event
}

func (j *WebhookProcessJob) Execute(ctx context.Context) error {
	return j.Processor.Process(ctx, j.Event)
}

func (j *WebhookProcessJob) UserID() string {
	if j.Event.UserID != nil {
		return *j.Event.UserID
	}
	return "system"
}

func (j *WebhookProcessJob) Description() string {
	return fmt.Sprintf("webhook %s/%s", j.Event.WebhookType, j.Event.WebhookCode)
}

// WebhookSweepJob reprocesses webhook events left unprocessed by a crash or
// a transient effect failure. Safe to run repeatedly.
type WebhookSweepJob struct {
	Processor *webhook.Processor
	BatchSize int
}

func (j *WebhookSweepJob) Execute(ctx context.Context) error {
	processed, err := j.Processor.Sweep(ctx, j.BatchSize)
	if err != nil {
		return err
	}
	if processed > 0 {
		log.Printf("Webhook sweep reprocessed %d events", processed)
	}
	return nil
}

func (j *WebhookSweepJob) UserID() string { return "system" }

func (j *WebhookSweepJob) Description() string { return "webhook recovery sweep" }

// SessionEvictionJob drops expired entries from the session cache.
type SessionEvictionJob struct {
	Cache session.Cache
}

func (j *SessionEvictionJob) Execute(ctx context.Context) error {
	j.Cache.EvictExpired()
	return nil
}

func (j *SessionEvictionJob) UserID() string { return "system" }

func (j *SessionEvictionJob) Description() string { return "session cache eviction" }

// CounterPurger drops durable rate-limit counters for closed windows.
type CounterPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitPurgeJob keeps the durable counter table bounded by deleting
// rows whose window closed more than Retention ago.
type RateLimitPurgeJob struct {
	Store     CounterPurger
	Retention time.Duration
}

func (j *RateLimitPurgeJob) Execute(ctx context.Context) error {
	_, err := j.Store.PurgeBefore(ctx, time.Now().Add(-j.Retention))
	return err
}

func (j *RateLimitPurgeJob) UserID() string { return "system" }

func (j *RateLimitPurgeJob) Description() string { return "rate limit counter purge" }
