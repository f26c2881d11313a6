package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"bancora/internal/domain/link"
)

// UserRepository reads user contact details and device tokens. User records
// are owned by the external authorization authority; this table mirrors the
// slice needed for notifications.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ link.UserDirectory = (*UserRepository)(nil)

// GetContact resolves a user's notification contact details
func (r *UserRepository) GetContact(ctx context.Context, userID string) (*link.Contact, error) {
	query := `SELECT id, email, name FROM users WHERE id = $1`

	var contact link.Contact
	var name sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&contact.UserID, &contact.Email, &name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user contact: %w", err)
	}
	contact.Name = name.String

	return &contact, nil
}

// ListActiveDeviceTokens returns the user's active FCM tokens
func (r *UserRepository) ListActiveDeviceTokens(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT token FROM device_tokens WHERE user_id = $1 AND active = true`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device tokens: %w", err)
	}

	return tokens, nil
}

// DeactivateDeviceToken marks a push token inactive after FCM rejects it
func (r *UserRepository) DeactivateDeviceToken(ctx context.Context, token string) error {
	query := `UPDATE device_tokens SET active = false WHERE token = $1`

	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("failed to deactivate device token: %w", err)
	}

	return nil
}
