package bankapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout       = 30 * time.Second
	linkTokenPath        = "/link/token/create"
	exchangePath         = "/item/public_token/exchange"
	verificationKeyPath  = "/webhook_verification_key/get"
	maxResponseBodyBytes = 1 << 20 // 1 MiB
)

// Client handles communication with the banking provider API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// Config holds provider credentials and endpoint configuration.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// NewClient creates a new banking provider API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

// LinkTokenResponse is the provider response for a link token request.
type LinkTokenResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"` // RFC 3339
	RequestID  string `json:"request_id"`
}

// GetExpiration parses and returns the expiration timestamp.
func (r *LinkTokenResponse) GetExpiration() (*time.Time, error) {
	if r.Expiration == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, r.Expiration)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expiration '%s': %w", r.Expiration, err)
	}
	return &t, nil
}

// ExchangeResponse is the provider response for a public token exchange.
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// VerificationKeyResponse carries the JWK used to verify webhook signatures.
type VerificationKeyResponse struct {
	Key       json.RawMessage `json:"key"`
	RequestID string          `json:"request_id"`
}

// ErrorResponse represents an error response from the provider.
type ErrorResponse struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id"`
}

type linkTokenRequest struct {
	ClientID     string   `json:"client_id"`
	Secret       string   `json:"secret"`
	ClientUserID string   `json:"client_user_id"`
	Products     []string `json:"products"`
	WebhookURL   string   `json:"webhook,omitempty"`
}

type exchangeRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	PublicToken string `json:"public_token"`
}

type verificationKeyRequest struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
	KeyID    string `json:"key_id"`
}

// CreateLinkToken requests a short-lived link token scoped to the given
// user and product set, with the webhook callback URL attached.
func (c *Client) CreateLinkToken(ctx context.Context, userID string, products []string, webhookURL string) (*LinkTokenResponse, error) {
	reqBody := linkTokenRequest{
		ClientID:     c.clientID,
		Secret:       c.clientSecret,
		ClientUserID: userID,
		Products:     products,
		WebhookURL:   webhookURL,
	}

	var linkResp LinkTokenResponse
	if err := c.post(ctx, linkTokenPath, reqBody, &linkResp); err != nil {
		return nil, err
	}

	if linkResp.LinkToken == "" {
		return nil, fmt.Errorf("provider returned empty link token")
	}

	return &linkResp, nil
}

// ExchangePublicToken exchanges a one-time public token for a long-lived
// access token and the provider's item id. The public token is consumed by
// the provider even when the call fails mid-flight, so callers must not
// retry blindly.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	reqBody := exchangeRequest{
		ClientID:    c.clientID,
		Secret:      c.clientSecret,
		PublicToken: publicToken,
	}

	var exchResp ExchangeResponse
	if err := c.post(ctx, exchangePath, reqBody, &exchResp); err != nil {
		return nil, err
	}

	if exchResp.AccessToken == "" || exchResp.ItemID == "" {
		return nil, fmt.Errorf("provider returned incomplete exchange response")
	}

	return &exchResp, nil
}

// GetVerificationKey fetches the JWK the provider used to sign a webhook.
func (c *Client) GetVerificationKey(ctx context.Context, keyID string) (*VerificationKeyResponse, error) {
	reqBody := verificationKeyRequest{
		ClientID: c.clientID,
		Secret:   c.clientSecret,
		KeyID:    keyID,
	}

	var keyResp VerificationKeyResponse
	if err := c.post(ctx, verificationKeyPath, reqBody, &keyResp); err != nil {
		return nil, err
	}

	return &keyResp, nil
}

// post executes a JSON POST against the provider and unmarshals the
// response into out. Provider errors are wrapped with the provider's
// error_type/error_code preserved for classification upstream.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil {
			return fmt.Errorf("provider request failed with status %d", resp.StatusCode)
		}
		return &ProviderError{
			StatusCode: resp.StatusCode,
			Type:       errResp.ErrorType,
			Code:       errResp.ErrorCode,
			Message:    errResp.ErrorMessage,
			RequestID:  errResp.RequestID,
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// ProviderError carries the provider's structured error fields. The raw
// message is kept for logs; callers surface sanitized text to users.
type ProviderError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
	RequestID  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s/%s", e.StatusCode, e.Type, e.Code)
}
