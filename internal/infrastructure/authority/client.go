package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout  = 10 * time.Second
	introspectPath  = "/oauth/introspect"
	maxResponseSize = 1 << 20 // 1 MiB
)

// ErrUnauthenticated is returned when the authority reports no session,
// an expired session, or a malformed token.
var ErrUnauthenticated = errors.New("session rejected by authority")

// Identity is the resolved caller behind a bearer credential.
type Identity struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// Client talks to the external OAuth authority that owns session state.
// It is a pure lookup: no session is ever created or mutated here.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates an authority client. A zero timeout falls back to the
// package default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type introspectResponse struct {
	Active    bool   `json:"active"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ValidateSession resolves a bearer credential to a stable user identity.
// The authorization value is forwarded verbatim: callers that substitute a
// token out-of-band must pass the full substituted header value.
func (c *Client) ValidateSession(ctx context.Context, authorization string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+introspectPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach authority: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read authority response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, fmt.Errorf("authority request failed with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("authority error (status %d): %s", resp.StatusCode, errResp.Error)
	}

	var introspect introspectResponse
	if err := json.Unmarshal(body, &introspect); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authority response: %w", err)
	}

	if !introspect.Active || introspect.UserID == "" {
		return nil, ErrUnauthenticated
	}

	return &Identity{UserID: introspect.UserID, SessionID: introspect.SessionID}, nil
}
