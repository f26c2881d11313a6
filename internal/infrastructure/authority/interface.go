package authority

import (
	"context"
)

// ClientInterface defines the methods required from the session authority client
type ClientInterface interface {
	ValidateSession(ctx context.Context, authorization string) (*Identity, error)
}
