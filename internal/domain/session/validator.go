package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bancora/internal/infrastructure/authority"
)

// ErrUnauthenticated means the authority rejected the bearer credential:
// no session, expired session, or malformed token. It is a result, not an
// exception; callers branch on it to render the sign-in prompt.
var ErrUnauthenticated = errors.New("session is not authenticated")

// Identity is the resolved caller.
type Identity struct {
	UserID    string
	SessionID string
}

// Validator resolves bearer credentials to user identities through the
// external authorization authority. Stateless; validation is a pure lookup.
type Validator struct {
	authority authority.ClientInterface
}

// NewValidator creates a session validator backed by the given authority.
func NewValidator(client authority.ClientInterface) *Validator {
	return &Validator{authority: client}
}

// Validate resolves the Authorization header value to an identity. The raw
// header is forwarded verbatim so the authority sees exactly what the caller
// presented.
//
// overrideToken, when non-empty, is substituted as the bearer credential
// before validation. Popup-window flows cannot carry headers, so the token
// arrives out-of-band in a request parameter instead.
func (v *Validator) Validate(ctx context.Context, authorization, overrideToken string) (*Identity, error) {
	if overrideToken != "" {
		authorization = "Bearer " + overrideToken
	}

	if strings.TrimSpace(authorization) == "" {
		return nil, ErrUnauthenticated
	}

	identity, err := v.authority.ValidateSession(ctx, authorization)
	if err != nil {
		if errors.Is(err, authority.ErrUnauthenticated) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}

	return &Identity{UserID: identity.UserID, SessionID: identity.SessionID}, nil
}
