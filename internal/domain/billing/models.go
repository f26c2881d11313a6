package billing

import (
	"context"
	"errors"
	"time"
)

// PlanTier is a subscription level. It caps how many bank connections a
// user may hold at once.
type PlanTier string

const (
	PlanBasic      PlanTier = "basic"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// ErrNoSubscription means the user has no active or trialing subscription.
var ErrNoSubscription = errors.New("no active subscription")

// unlimited is the effective cap for enterprise plans.
const unlimited = int(^uint(0) >> 1)

// MaxItems returns the connection quota for the tier. Unknown tiers get the
// basic quota rather than failing: billing data drifts and a stale tier name
// must not lock a paying user out entirely.
func (p PlanTier) MaxItems() int {
	switch p {
	case PlanPro:
		return 10
	case PlanEnterprise:
		return unlimited
	default:
		return 3
	}
}

// Subscription is the slice of billing state this subsystem reads. Billing
// management lives elsewhere; this is reference data only.
type Subscription struct {
	UserID           string    `json:"userId"`
	Plan             PlanTier  `json:"plan"`
	Status           string    `json:"status"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`
}

// IsActive reports whether the subscription entitles the user to link
// connections. Trialing counts: trials get full plan features.
func (s *Subscription) IsActive() bool {
	return s.Status == "active" || s.Status == "trialing"
}

// PlanReader resolves a user's current plan.
type PlanReader interface {
	// CurrentPlan returns the user's tier. ErrNoSubscription when the user
	// has no active or trialing subscription.
	CurrentPlan(ctx context.Context, userID string) (PlanTier, error)
}
