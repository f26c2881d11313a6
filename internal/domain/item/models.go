package item

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a bank connection.
type Status string

const (
	StatusActive  Status = "active"
	StatusError   Status = "error"
	StatusRevoked Status = "revoked"
)

// Domain errors
var (
	// ErrDuplicateItem means (userID, externalItemID) already exists.
	// Policy: reject rather than treat as idempotent success, since access
	// tokens rotate on every exchange and silently keeping the old row
	// would strand the fresh token.
	ErrDuplicateItem = errors.New("item already connected")

	ErrItemNotFound = errors.New("item not found")
	ErrForbidden    = errors.New("access forbidden")

	// ErrNeedsReconnect is surfaced when the stored credential cannot be
	// decrypted. The connection is unusable and the user must relink.
	ErrNeedsReconnect = errors.New("item credential unusable, reconnection required")
)

// Item represents one external bank connection. At most one row exists per
// (userID, externalItemID); the store enforces this with a unique constraint.
type Item struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	ExternalItemID  string            `json:"externalItemId"`
	Credential      Credential        `json:"-"`
	InstitutionID   string            `json:"institutionId"`
	InstitutionName string            `json:"institutionName"`
	Status          Status            `json:"status"`
	ErrorCode       *string           `json:"errorCode"`
	LastSyncedAt    *time.Time        `json:"lastSyncedAt"`
	CreatedAt       time.Time         `json:"createdAt"`
	Metadata        map[string]string `json:"metadata"`
}

// Credential is the two-variant representation of the stored access token:
// encrypted (every write path) or legacy plaintext (rows predating column
// encryption, read-only). Resolve is the single normalizing accessor;
// call sites never branch on the raw columns.
type Credential struct {
	Encrypted string
	Legacy    string
}

// Decryptor opens an encrypted credential blob.
type Decryptor interface {
	Decrypt(blob string) (string, error)
}

// Resolve returns the plaintext access token, preferring the encrypted
// value and falling back to legacy plaintext only when no encrypted value
// exists. Decrypt failures propagate: a tampered or key-mismatched blob
// must never be silently replaced by the legacy value.
func (c Credential) Resolve(dec Decryptor) (string, error) {
	if c.Encrypted != "" {
		return dec.Decrypt(c.Encrypted)
	}
	return c.Legacy, nil
}

// Empty reports whether no credential is stored in either variant.
func (c Credential) Empty() bool {
	return c.Encrypted == "" && c.Legacy == ""
}

// CreateParams contains parameters for creating a new connection.
// AccessToken is plaintext here; it is encrypted before it reaches storage.
type CreateParams struct {
	UserID          string
	ExternalItemID  string
	AccessToken     string
	InstitutionID   string
	InstitutionName string
	Metadata        map[string]string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.UserID == "" {
		return errors.New("user ID is required")
	}
	if p.ExternalItemID == "" {
		return errors.New("external item ID is required")
	}
	if p.AccessToken == "" {
		return errors.New("access token is required")
	}
	return nil
}

// Record is what the repository persists: the same fields as CreateParams
// with the token already encrypted.
type Record struct {
	UserID          string
	ExternalItemID  string
	EncryptedToken  string
	InstitutionID   string
	InstitutionName string
	Metadata        map[string]string
}
