package bankapi

import (
	"context"
)

// ClientInterface defines the methods required from the banking provider client
type ClientInterface interface {
	CreateLinkToken(ctx context.Context, userID string, products []string, webhookURL string) (*LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error)
	GetVerificationKey(ctx context.Context, keyID string) (*VerificationKeyResponse, error)
}
