package audit

import (
	"context"
	"time"
)

// Event types recorded by the connection subsystem. The log is append-only;
// entries are never updated or deleted.
const (
	EventLinkTokenCreated        = "link_token_created"
	EventItemConnected           = "item_connected"
	EventItemConnectFailed       = "item_connect_failed"
	EventItemError               = "item_error"
	EventItemOK                  = "item_ok"
	EventItemRevoked             = "item_revoked"
	EventCredentialDecryptFailed = "credential_decrypt_failed"
)

// Entry is one audit record. UserID is nil for events that cannot be
// attributed to a user, such as webhooks for unknown items.
type Entry struct {
	ID           string         `json:"id"`
	UserID       *string        `json:"userId"`
	EventType    string         `json:"eventType"`
	EventData    map[string]any `json:"eventData"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Recorder appends entries to the audit log. Implementations must not let
// audit failures break the operation being audited; callers log and move on.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}
