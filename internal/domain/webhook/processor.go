package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bancora/internal/domain/audit"
)

// ErrMalformedPayload is returned by Ingest when the delivery body cannot be
// parsed. Distinguishes caller errors (reject, no retry) from persistence
// failures (the provider should redeliver).
var ErrMalformedPayload = errors.New("malformed webhook payload")

// ItemStatusWriter is the slice of the item service the processor needs.
type ItemStatusWriter interface {
	MarkError(ctx context.Context, externalItemID, errorCode string) error
	MarkActive(ctx context.Context, externalItemID string) error
}

// Processor ingests provider notifications: persist first, then classify and
// apply. Durability before side effects means a crash mid-processing leaves
// an unprocessed row the recovery sweep picks up, and status updates are
// idempotent so reprocessing is safe.
type Processor struct {
	repo  Repository
	items ItemStatusWriter
	audit audit.Recorder
}

// NewProcessor creates a webhook processor.
func NewProcessor(repo Repository, items ItemStatusWriter, recorder audit.Recorder) *Processor {
	return &Processor{repo: repo, items: items, audit: recorder}
}

// Ingest persists the raw delivery and returns the stored event. It does NOT
// apply effects; callers ACK the provider after Ingest and hand the event to
// Process asynchronously. Duplicate deliveries (same provider event id)
// return the already-stored event and are not re-persisted.
func (p *Processor) Ingest(ctx context.Context, body []byte) (*Event, bool, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.WebhookType == "" || payload.WebhookCode == "" {
		return nil, false, fmt.Errorf("%w: missing webhook_type or webhook_code", ErrMalformedPayload)
	}

	event := Event{
		WebhookType: payload.WebhookType,
		WebhookCode: payload.WebhookCode,
		Payload:     json.RawMessage(body),
		ReceivedAt:  time.Now(),
	}
	if payload.ItemID != "" {
		event.ItemID = &payload.ItemID
	}
	if payload.ProviderEventID != "" {
		event.ProviderEventID = &payload.ProviderEventID
	}
	if payload.Error != nil && payload.Error.ErrorCode != "" {
		event.ErrorCode = &payload.Error.ErrorCode
	}

	stored, inserted, err := p.repo.Insert(ctx, event)
	if err != nil {
		return nil, false, fmt.Errorf("failed to persist webhook event: %w", err)
	}
	if !inserted {
		log.Printf("Duplicate webhook delivery %s (%s/%s), skipping",
			deref(stored.ProviderEventID), stored.WebhookType, stored.WebhookCode)
	}
	return stored, inserted, nil
}

// Process classifies the event and applies its effect, then marks it
// processed. Already-processed events are a no-op.
func (p *Processor) Process(ctx context.Context, event *Event) error {
	if event.Processed {
		return nil
	}

	if err := p.apply(ctx, event); err != nil {
		return err
	}

	if err := p.repo.MarkProcessed(ctx, event.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return nil
}

func (p *Processor) apply(ctx context.Context, event *Event) error {
	effect := Classify(event.WebhookType, event.WebhookCode)

	switch effect {
	case EffectMarkError:
		if event.ItemID == nil {
			log.Printf("Webhook %s/%s carries no item id, skipping status change",
				event.WebhookType, event.WebhookCode)
			return nil
		}
		errorCode := event.WebhookCode
		if event.ErrorCode != nil {
			errorCode = *event.ErrorCode
		}
		if err := p.items.MarkError(ctx, *event.ItemID, errorCode); err != nil {
			return fmt.Errorf("failed to mark item %s as errored: %w", *event.ItemID, err)
		}
		p.record(ctx, event, audit.EventItemError, errorCode)

	case EffectMarkActive:
		if event.ItemID == nil {
			return nil
		}
		if err := p.items.MarkActive(ctx, *event.ItemID); err != nil {
			return fmt.Errorf("failed to mark item %s as active: %w", *event.ItemID, err)
		}
		p.record(ctx, event, audit.EventItemOK, "")

	case EffectNone:
		log.Printf("Webhook %s/%s has no item effect", event.WebhookType, event.WebhookCode)
	}

	return nil
}

// Sweep reprocesses unprocessed events, oldest first. Safe to run repeatedly
// since effects are idempotent status writes.
func (p *Processor) Sweep(ctx context.Context, limit int) (int, error) {
	events, err := p.repo.ListUnprocessed(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unprocessed webhook events: %w", err)
	}

	processed := 0
	for _, event := range events {
		if err := p.Process(ctx, event); err != nil {
			log.Printf("Failed to reprocess webhook event %s: %v", event.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (p *Processor) record(ctx context.Context, event *Event, eventType, errorCode string) {
	if p.audit == nil {
		return
	}
	data := map[string]any{
		"webhookType": event.WebhookType,
		"webhookCode": event.WebhookCode,
	}
	if event.ItemID != nil {
		data["itemId"] = *event.ItemID
	}
	if errorCode != "" {
		data["errorCode"] = errorCode
	}
	if err := p.audit.Record(ctx, audit.Entry{
		UserID:    event.UserID,
		EventType: eventType,
		EventData: data,
		Success:   true,
	}); err != nil {
		log.Printf("Failed to audit webhook effect for event %s: %v", event.ID, err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
