package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bancora/internal/domain/webhook"
)

// WebhookEventRepository implements the webhook.Repository interface for PostgreSQL
type WebhookEventRepository struct {
	db *DB
}

// NewWebhookEventRepository creates a new PostgreSQL webhook event repository
func NewWebhookEventRepository(db *DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

var _ webhook.Repository = (*WebhookEventRepository)(nil)

// Insert persists a received event with processed=false. Provider event ids
// carry a unique index; a duplicate delivery returns the already-stored
// event so processing can be skipped.
func (r *WebhookEventRepository) Insert(ctx context.Context, event webhook.Event) (*webhook.Event, bool, error) {
	query := `
		INSERT INTO webhook_events (id, webhook_type, webhook_code, item_id, error_code, provider_event_id, payload, user_id, processed, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
		RETURNING id, webhook_type, webhook_code, item_id, error_code, provider_event_id, payload, user_id, processed, processed_at, received_at
	`

	stored, err := scanEvent(r.db.QueryRowContext(
		ctx, query,
		uuid.NewString(), event.WebhookType, event.WebhookCode,
		event.ItemID, event.ErrorCode, event.ProviderEventID,
		[]byte(event.Payload), event.UserID, event.ReceivedAt,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && event.ProviderEventID != nil {
			existing, getErr := r.getByProviderEventID(ctx, *event.ProviderEventID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to load duplicate webhook event: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert webhook event: %w", err)
	}

	return stored, true, nil
}

// MarkProcessed stamps the event as handled
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id string, processedAt time.Time) error {
	query := `UPDATE webhook_events SET processed = true, processed_at = $1 WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, processedAt, id); err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}

	return nil
}

// ListUnprocessed returns pending events, oldest first, for the recovery sweep
func (r *WebhookEventRepository) ListUnprocessed(ctx context.Context, limit int) ([]*webhook.Event, error) {
	query := `
		SELECT id, webhook_type, webhook_code, item_id, error_code, provider_event_id, payload, user_id, processed, processed_at, received_at
		FROM webhook_events
		WHERE processed = false
		ORDER BY received_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed webhook events: %w", err)
	}
	defer rows.Close()

	var events []*webhook.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook events: %w", err)
	}

	return events, nil
}

func (r *WebhookEventRepository) getByProviderEventID(ctx context.Context, providerEventID string) (*webhook.Event, error) {
	query := `
		SELECT id, webhook_type, webhook_code, item_id, error_code, provider_event_id, payload, user_id, processed, processed_at, received_at
		FROM webhook_events
		WHERE provider_event_id = $1
	`

	return scanEvent(r.db.QueryRowContext(ctx, query, providerEventID))
}

func scanEvent(row scanner) (*webhook.Event, error) {
	var event webhook.Event
	var itemID, errorCode, providerEventID, userID sql.NullString
	var processedAt sql.NullTime
	var payload []byte

	err := row.Scan(
		&event.ID, &event.WebhookType, &event.WebhookCode,
		&itemID, &errorCode, &providerEventID, &payload, &userID,
		&event.Processed, &processedAt, &event.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Payload = payload
	if itemID.Valid {
		event.ItemID = &itemID.String
	}
	if errorCode.Valid {
		event.ErrorCode = &errorCode.String
	}
	if providerEventID.Valid {
		event.ProviderEventID = &providerEventID.String
	}
	if userID.Valid {
		event.UserID = &userID.String
	}
	if processedAt.Valid {
		event.ProcessedAt = &processedAt.Time
	}

	return &event, nil
}
