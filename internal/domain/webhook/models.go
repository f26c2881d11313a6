package webhook

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one received provider notification, stored verbatim before any
// processing so a crash mid-processing leaves a reprocessable residue.
type Event struct {
	ID              string          `json:"id"`
	WebhookType     string          `json:"webhookType"`
	WebhookCode     string          `json:"webhookCode"`
	ItemID          *string         `json:"itemId"`
	ErrorCode       *string         `json:"errorCode"`
	ProviderEventID *string         `json:"providerEventId"`
	Payload         json.RawMessage `json:"payload"`
	UserID          *string         `json:"userId"`
	Processed       bool            `json:"processed"`
	ProcessedAt     *time.Time      `json:"processedAt"`
	ReceivedAt      time.Time       `json:"receivedAt"`
}

// Payload is the provider's delivery shape. Only the fields this subsystem
// routes on are modeled; the full body is persisted as-is.
type Payload struct {
	WebhookType     string `json:"webhook_type"`
	WebhookCode     string `json:"webhook_code"`
	ItemID          string `json:"item_id"`
	ProviderEventID string `json:"webhook_id"`
	Error           *struct {
		ErrorCode    string `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"error"`
}

// Repository persists webhook events.
type Repository interface {
	// Insert stores a new event with processed=false. When the provider
	// supplied an event id and an event with that id already exists, Insert
	// returns the existing event and inserted=false so deliveries can be
	// deduplicated before side effects run.
	Insert(ctx context.Context, event Event) (stored *Event, inserted bool, err error)

	// MarkProcessed stamps the event as handled.
	MarkProcessed(ctx context.Context, id string, processedAt time.Time) error

	// ListUnprocessed returns events still awaiting processing, oldest
	// first, for the recovery sweep.
	ListUnprocessed(ctx context.Context, limit int) ([]*Event, error)
}
