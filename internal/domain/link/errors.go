package link

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel results of the connection flow. Each maps to a distinct,
// user-actionable response: sign in, upgrade, or back off.
var (
	ErrUnauthenticated      = errors.New("authentication required")
	ErrSubscriptionRequired = errors.New("active subscription required")
	ErrAlreadyConnected     = errors.New("bank account already connected")
)

// ThrottledError means the caller exceeded the request ceiling.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// QuotaExceededError means the user is at their plan's connection limit.
type QuotaExceededError struct {
	Limit int
	Count int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("connection limit reached: %d of %d accounts linked", e.Count, e.Limit)
}

// LinkTokenError wraps a provider failure during link-token issuance. Safe
// to retry: no state was created.
type LinkTokenError struct {
	Cause error
}

func (e *LinkTokenError) Error() string {
	return "failed to initialize bank connection"
}

func (e *LinkTokenError) Unwrap() error {
	return e.Cause
}

// ExchangeError wraps a provider failure during public-token exchange.
// Never retried: the provider may have consumed the one-time token even
// when the call failed mid-flight. TimedOut failures are alert-worthy for
// the same reason.
type ExchangeError struct {
	Cause    error
	TimedOut bool
}

func (e *ExchangeError) Error() string {
	return "failed to complete bank connection"
}

func (e *ExchangeError) Unwrap() error {
	return e.Cause
}
