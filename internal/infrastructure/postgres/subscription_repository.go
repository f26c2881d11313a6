package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"bancora/internal/domain/billing"
)

// SubscriptionRepository reads billing state. This subsystem never writes
// subscriptions; plan management lives elsewhere.
type SubscriptionRepository struct {
	db *DB
}

// NewSubscriptionRepository creates a new PostgreSQL subscription repository
func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

var _ billing.PlanReader = (*SubscriptionRepository)(nil)

// CurrentPlan returns the user's tier from their newest active or trialing
// subscription. billing.ErrNoSubscription when none qualifies.
func (r *SubscriptionRepository) CurrentPlan(ctx context.Context, userID string) (billing.PlanTier, error) {
	query := `
		SELECT plan
		FROM subscriptions
		WHERE user_id = $1 AND status IN ('active', 'trialing')
		ORDER BY current_period_end DESC
		LIMIT 1
	`

	var plan string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&plan)
	if err == sql.ErrNoRows {
		return "", billing.ErrNoSubscription
	}
	if err != nil {
		return "", fmt.Errorf("failed to read subscription: %w", err)
	}

	return billing.PlanTier(plan), nil
}
