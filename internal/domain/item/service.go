package item

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bancora/internal/domain/audit"
)

// Cipher is the credential cipher the service encrypts and decrypts with.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// ErrorNotifier prompts the user to reconnect when a connection drops.
// Best effort: failures are logged, never propagated.
type ErrorNotifier interface {
	SendConnectionError(ctx context.Context, userID, institutionName string) error
}

// Service contains the business logic for bank-connection operations.
type Service struct {
	repo     Repository
	cipher   Cipher
	audit    audit.Recorder
	notifier ErrorNotifier
}

// NewService creates a new item service
func NewService(repo Repository, cipher Cipher, recorder audit.Recorder) *Service {
	return &Service{repo: repo, cipher: cipher, audit: recorder}
}

// SetErrorNotifier enables reconnection pushes. Optional: without it the
// error transition is silent on the user's devices.
func (s *Service) SetErrorNotifier(notifier ErrorNotifier) {
	s.notifier = notifier
}

// Create encrypts the access token and persists a new active connection.
// The plaintext token never reaches storage.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Item, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(params.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	return s.repo.Create(ctx, Record{
		UserID:          params.UserID,
		ExternalItemID:  params.ExternalItemID,
		EncryptedToken:  encrypted,
		InstitutionID:   params.InstitutionID,
		InstitutionName: params.InstitutionName,
		Metadata:        params.Metadata,
	})
}

// ListByUserID returns a user's connections.
func (s *Service) ListByUserID(ctx context.Context, userID string, activeOnly bool) ([]*Item, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	return s.repo.ListByUserID(ctx, userID, activeOnly)
}

// CountActive counts a user's active connections for quota enforcement.
func (s *Service) CountActive(ctx context.Context, userID string) (int, error) {
	return s.repo.CountActive(ctx, userID)
}

// MarkError transitions a connection to error with the provider's code.
// Missing items are a no-op: a webhook may reference a connection that was
// linked out-of-band or lost in a race. The reconnection push fires only on
// the transition into error, so repeated error webhooks stay quiet.
func (s *Service) MarkError(ctx context.Context, externalItemID, errorCode string) error {
	prev, err := s.repo.GetByExternalID(ctx, externalItemID)
	if err != nil && !errors.Is(err, ErrItemNotFound) {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, externalItemID, StatusError, &errorCode); err != nil {
		return err
	}

	if s.notifier != nil && prev != nil && prev.Status == StatusActive {
		if notifyErr := s.notifier.SendConnectionError(ctx, prev.UserID, prev.InstitutionName); notifyErr != nil {
			log.Printf("Failed to send reconnection push for item %s: %v", externalItemID, notifyErr)
		}
	}

	return nil
}

// MarkActive returns a connection to active and clears any error code.
func (s *Service) MarkActive(ctx context.Context, externalItemID string) error {
	return s.repo.UpdateStatus(ctx, externalItemID, StatusActive, nil)
}

// MarkRevoked transitions a connection to revoked.
func (s *Service) MarkRevoked(ctx context.Context, externalItemID string) error {
	return s.repo.UpdateStatus(ctx, externalItemID, StatusRevoked, nil)
}

// Disconnect revokes a connection after verifying ownership.
func (s *Service) Disconnect(ctx context.Context, itemID, userID string) error {
	it, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if it.UserID != userID {
		return ErrForbidden
	}

	return s.repo.UpdateStatus(ctx, it.ExternalItemID, StatusRevoked, nil)
}

// AccessToken resolves the plaintext access token for a connection.
// A decrypt failure is a security event: it is audited, the item is marked
// as needing reconnection, and ErrNeedsReconnect is returned instead of
// crashing the read path.
func (s *Service) AccessToken(ctx context.Context, it *Item) (string, error) {
	token, err := it.Credential.Resolve(s.cipher)
	if err != nil {
		log.Printf("Credential decrypt failed for item %s (user %s): %v", it.ID, it.UserID, err)

		if s.audit != nil {
			if auditErr := s.audit.Record(ctx, audit.Entry{
				UserID:       &it.UserID,
				EventType:    audit.EventCredentialDecryptFailed,
				EventData:    map[string]any{"itemId": it.ID},
				Success:      false,
				ErrorMessage: err.Error(),
			}); auditErr != nil {
				log.Printf("Failed to audit decrypt failure for item %s: %v", it.ID, auditErr)
			}
		}

		if updErr := s.MarkError(ctx, it.ExternalItemID, "CREDENTIAL_DECRYPT_FAILED"); updErr != nil {
			log.Printf("Failed to mark item %s for reconnection: %v", it.ID, updErr)
		}

		return "", fmt.Errorf("%w: %v", ErrNeedsReconnect, err)
	}

	if token == "" {
		return "", ErrNeedsReconnect
	}

	return token, nil
}
