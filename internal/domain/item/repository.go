package item

import "context"

// Repository is the durable store for bank connections. All mutating
// operations are single-row and transactional; no multi-row transaction is
// needed because each item is independently owned.
type Repository interface {
	// Create inserts a new connection with status active. A violation of
	// the (userID, externalItemID) uniqueness constraint returns
	// ErrDuplicateItem.
	Create(ctx context.Context, rec Record) (*Item, error)

	// GetByID returns a connection by internal id.
	GetByID(ctx context.Context, id string) (*Item, error)

	// GetByExternalID returns a connection by the provider's item id.
	GetByExternalID(ctx context.Context, externalItemID string) (*Item, error)

	// ListByUserID returns a user's connections, optionally only active ones.
	ListByUserID(ctx context.Context, userID string, activeOnly bool) ([]*Item, error)

	// CountActive counts a user's active connections (quota checks).
	CountActive(ctx context.Context, userID string) (int, error)

	// UpdateStatus transitions the item identified by externalItemID.
	// A missing item is a no-op, not an error: webhooks may reference
	// connections this system never recorded.
	UpdateStatus(ctx context.Context, externalItemID string, status Status, errorCode *string) error
}
