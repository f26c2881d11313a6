package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bancora/internal/domain/item"
)

// ItemRepository implements the item.Repository interface for PostgreSQL
type ItemRepository struct {
	db *DB
}

// NewItemRepository creates a new PostgreSQL item repository
func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

var _ item.Repository = (*ItemRepository)(nil)

const uniqueViolation = "23505"

// Create inserts a new connection. The unique index on
// (user_id, external_item_id) is the enforcement point for the one-row-per-
// connection invariant; a violation surfaces as item.ErrDuplicateItem.
func (r *ItemRepository) Create(ctx context.Context, rec item.Record) (*item.Item, error) {
	query := `
		INSERT INTO items (id, user_id, external_item_id, encrypted_access_token, institution_id, institution_name, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, 'active', $7)
		RETURNING id, user_id, external_item_id, encrypted_access_token, access_token, institution_id, institution_name,
		          status, error_code, last_synced_at, created_at, metadata
	`

	metadata, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return nil, err
	}

	it, err := scanItem(r.db.QueryRowContext(
		ctx, query,
		uuid.NewString(), rec.UserID, rec.ExternalItemID, rec.EncryptedToken,
		nullString(rec.InstitutionID), nullString(rec.InstitutionName), metadata,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, item.ErrDuplicateItem
		}
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	return it, nil
}

// GetByID retrieves an item by its internal ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*item.Item, error) {
	query := `
		SELECT id, user_id, external_item_id, encrypted_access_token, access_token, institution_id, institution_name,
		       status, error_code, last_synced_at, created_at, metadata
		FROM items
		WHERE id = $1
	`

	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, item.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return it, nil
}

// GetByExternalID retrieves an item by the provider's item ID
func (r *ItemRepository) GetByExternalID(ctx context.Context, externalItemID string) (*item.Item, error) {
	query := `
		SELECT id, user_id, external_item_id, encrypted_access_token, access_token, institution_id, institution_name,
		       status, error_code, last_synced_at, created_at, metadata
		FROM items
		WHERE external_item_id = $1
	`

	it, err := scanItem(r.db.QueryRowContext(ctx, query, externalItemID))
	if err == sql.ErrNoRows {
		return nil, item.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return it, nil
}

// ListByUserID retrieves a user's items, newest first
func (r *ItemRepository) ListByUserID(ctx context.Context, userID string, activeOnly bool) ([]*item.Item, error) {
	query := `
		SELECT id, user_id, external_item_id, encrypted_access_token, access_token, institution_id, institution_name,
		       status, error_code, last_synced_at, created_at, metadata
		FROM items
		WHERE user_id = $1 AND ($2 = false OR status = 'active')
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*item.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// CountActive counts a user's active items
func (r *ItemRepository) CountActive(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM items WHERE user_id = $1 AND status = 'active'`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active items: %w", err)
	}

	return count, nil
}

// UpdateStatus transitions the item identified by its external ID. A missing
// row is a no-op: webhooks may reference connections never recorded here.
func (r *ItemRepository) UpdateStatus(ctx context.Context, externalItemID string, status item.Status, errorCode *string) error {
	query := `
		UPDATE items
		SET status = $1, error_code = $2
		WHERE external_item_id = $3
	`

	if _, err := r.db.ExecContext(ctx, query, string(status), errorCode, externalItemID); err != nil {
		return fmt.Errorf("failed to update item status: %w", err)
	}

	return nil
}

// scanner covers both *sql.Rows and the traced row wrapper.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*item.Item, error) {
	var it item.Item
	var encrypted, legacy, institutionID, institutionName, errorCode sql.NullString
	var lastSyncedAt sql.NullTime
	var metadata []byte

	err := row.Scan(
		&it.ID, &it.UserID, &it.ExternalItemID, &encrypted, &legacy,
		&institutionID, &institutionName, &it.Status, &errorCode,
		&lastSyncedAt, &it.CreatedAt, &metadata,
	)
	if err != nil {
		return nil, err
	}

	it.Credential = item.Credential{Encrypted: encrypted.String, Legacy: legacy.String}
	it.InstitutionID = institutionID.String
	it.InstitutionName = institutionName.String
	if errorCode.Valid {
		it.ErrorCode = &errorCode.String
	}
	if lastSyncedAt.Valid {
		it.LastSyncedAt = &lastSyncedAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &it.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item metadata: %w", err)
		}
	}

	return &it, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item metadata: %w", err)
	}
	return data, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
