package item

import (
	"context"
	"errors"
	"testing"
	"time"

	"bancora/internal/domain/audit"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	CreateFunc          func(ctx context.Context, rec Record) (*Item, error)
	GetByIDFunc         func(ctx context.Context, id string) (*Item, error)
	GetByExternalIDFunc func(ctx context.Context, externalItemID string) (*Item, error)
	ListByUserIDFunc    func(ctx context.Context, userID string, activeOnly bool) ([]*Item, error)
	CountActiveFunc     func(ctx context.Context, userID string) (int, error)
	UpdateStatusFunc    func(ctx context.Context, externalItemID string, status Status, errorCode *string) error
}

func (m *MockRepository) Create(ctx context.Context, rec Record) (*Item, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rec)
	}
	return nil, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockRepository) GetByExternalID(ctx context.Context, externalItemID string) (*Item, error) {
	if m.GetByExternalIDFunc != nil {
		return m.GetByExternalIDFunc(ctx, externalItemID)
	}
	return nil, ErrItemNotFound
}

func (m *MockRepository) ListByUserID(ctx context.Context, userID string, activeOnly bool) ([]*Item, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID, activeOnly)
	}
	return nil, nil
}

func (m *MockRepository) CountActive(ctx context.Context, userID string) (int, error) {
	if m.CountActiveFunc != nil {
		return m.CountActiveFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockRepository) UpdateStatus(ctx context.Context, externalItemID string, status Status, errorCode *string) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, externalItemID, status, errorCode)
	}
	return nil
}

// MockCipher is a mock credential cipher
type MockCipher struct {
	EncryptFunc func(plaintext string) (string, error)
	DecryptFunc func(blob string) (string, error)
}

func (m *MockCipher) Encrypt(plaintext string) (string, error) {
	if m.EncryptFunc != nil {
		return m.EncryptFunc(plaintext)
	}
	return "enc:" + plaintext, nil
}

func (m *MockCipher) Decrypt(blob string) (string, error) {
	if m.DecryptFunc != nil {
		return m.DecryptFunc(blob)
	}
	return blob, nil
}

// MockRecorder captures audit entries
type MockRecorder struct {
	Entries []audit.Entry
}

func (m *MockRecorder) Record(ctx context.Context, entry audit.Entry) error {
	m.Entries = append(m.Entries, entry)
	return nil
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		params  CreateParams
		cipher  *MockCipher
		mock    func() *MockRepository
		wantErr bool
		errType error
	}{
		{
			name: "Success",
			params: CreateParams{
				UserID:          "user-1",
				ExternalItemID:  "item-abc",
				AccessToken:     "access-token-123",
				InstitutionID:   "ins-1",
				InstitutionName: "Test Bank",
			},
			cipher: &MockCipher{},
			mock: func() *MockRepository {
				return &MockRepository{
					CreateFunc: func(ctx context.Context, rec Record) (*Item, error) {
						if rec.EncryptedToken != "enc:access-token-123" {
							return nil, errors.New("token reached the repository unencrypted")
						}
						return &Item{
							ID:             "id-1",
							UserID:         rec.UserID,
							ExternalItemID: rec.ExternalItemID,
							Status:         StatusActive,
							CreatedAt:      time.Now(),
						}, nil
					},
				}
			},
			wantErr: false,
		},
		{
			name: "Missing Access Token",
			params: CreateParams{
				UserID:         "user-1",
				ExternalItemID: "item-abc",
			},
			cipher:  &MockCipher{},
			mock:    func() *MockRepository { return &MockRepository{} },
			wantErr: true,
		},
		{
			name: "Duplicate Item",
			params: CreateParams{
				UserID:         "user-1",
				ExternalItemID: "item-abc",
				AccessToken:    "access-token-123",
			},
			cipher: &MockCipher{},
			mock: func() *MockRepository {
				return &MockRepository{
					CreateFunc: func(ctx context.Context, rec Record) (*Item, error) {
						return nil, ErrDuplicateItem
					},
				}
			},
			wantErr: true,
			errType: ErrDuplicateItem,
		},
		{
			name: "Encrypt Failure",
			params: CreateParams{
				UserID:         "user-1",
				ExternalItemID: "item-abc",
				AccessToken:    "access-token-123",
			},
			cipher: &MockCipher{
				EncryptFunc: func(plaintext string) (string, error) {
					return "", errors.New("cipher unavailable")
				},
			},
			mock:    func() *MockRepository { return &MockRepository{} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := tt.mock()
			service := NewService(repo, tt.cipher, &MockRecorder{})

			it, err := service.Create(ctx, tt.params)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Create() expected error, got nil")
				}
				if tt.errType != nil && !errors.Is(err, tt.errType) {
					t.Errorf("Create() expected error type %v, got %v", tt.errType, err)
				}
			} else {
				if err != nil {
					t.Errorf("Create() unexpected error: %v", err)
				}
				if it == nil {
					t.Errorf("Create() expected item, got nil")
				} else if it.Status != StatusActive {
					t.Errorf("Create() expected status %s, got %s", StatusActive, it.Status)
				}
			}
		})
	}
}

// MockNotifier records reconnection pushes
type MockNotifier struct {
	Sent []string
	Err  error
}

func (m *MockNotifier) SendConnectionError(ctx context.Context, userID, institutionName string) error {
	m.Sent = append(m.Sent, userID+"/"+institutionName)
	return m.Err
}

func TestMarkError(t *testing.T) {
	ctx := context.Background()

	activeItem := func(ctx context.Context, externalItemID string) (*Item, error) {
		return &Item{
			ID:              "id-1",
			UserID:          "user-1",
			ExternalItemID:  externalItemID,
			InstitutionName: "Test Bank",
			Status:          StatusActive,
		}, nil
	}

	t.Run("Transition Sends Reconnection Push", func(t *testing.T) {
		var markedCode *string
		repo := &MockRepository{
			GetByExternalIDFunc: activeItem,
			UpdateStatusFunc: func(ctx context.Context, externalItemID string, status Status, errorCode *string) error {
				markedCode = errorCode
				return nil
			},
		}
		notifier := &MockNotifier{}
		service := NewService(repo, &MockCipher{}, &MockRecorder{})
		service.SetErrorNotifier(notifier)

		if err := service.MarkError(ctx, "item-abc", "ITEM_LOGIN_REQUIRED"); err != nil {
			t.Fatalf("MarkError() unexpected error: %v", err)
		}
		if markedCode == nil || *markedCode != "ITEM_LOGIN_REQUIRED" {
			t.Errorf("expected ITEM_LOGIN_REQUIRED error code, got %v", markedCode)
		}
		if len(notifier.Sent) != 1 || notifier.Sent[0] != "user-1/Test Bank" {
			t.Errorf("expected one push to user-1/Test Bank, got %v", notifier.Sent)
		}
	})

	t.Run("Already Errored Stays Quiet", func(t *testing.T) {
		repo := &MockRepository{
			GetByExternalIDFunc: func(ctx context.Context, externalItemID string) (*Item, error) {
				return &Item{ID: "id-1", UserID: "user-1", ExternalItemID: externalItemID, Status: StatusError}, nil
			},
		}
		notifier := &MockNotifier{}
		service := NewService(repo, &MockCipher{}, &MockRecorder{})
		service.SetErrorNotifier(notifier)

		if err := service.MarkError(ctx, "item-abc", "ITEM_LOGIN_REQUIRED"); err != nil {
			t.Fatalf("MarkError() unexpected error: %v", err)
		}
		if len(notifier.Sent) != 0 {
			t.Errorf("repeated error webhooks must not re-push, got %v", notifier.Sent)
		}
	})

	t.Run("Missing Item Is No-Op Without Push", func(t *testing.T) {
		notifier := &MockNotifier{}
		service := NewService(&MockRepository{}, &MockCipher{}, &MockRecorder{})
		service.SetErrorNotifier(notifier)

		if err := service.MarkError(ctx, "item-unknown", "ERROR"); err != nil {
			t.Fatalf("MarkError() unexpected error: %v", err)
		}
		if len(notifier.Sent) != 0 {
			t.Errorf("unknown items must not trigger pushes, got %v", notifier.Sent)
		}
	})

	t.Run("Push Failure Does Not Fail The Transition", func(t *testing.T) {
		repo := &MockRepository{GetByExternalIDFunc: activeItem}
		notifier := &MockNotifier{Err: errors.New("fcm unavailable")}
		service := NewService(repo, &MockCipher{}, &MockRecorder{})
		service.SetErrorNotifier(notifier)

		if err := service.MarkError(ctx, "item-abc", "ERROR"); err != nil {
			t.Errorf("MarkError() must not propagate push failures, got %v", err)
		}
	})

	t.Run("No Notifier Configured", func(t *testing.T) {
		repo := &MockRepository{GetByExternalIDFunc: activeItem}
		service := NewService(repo, &MockCipher{}, &MockRecorder{})

		if err := service.MarkError(ctx, "item-abc", "ERROR"); err != nil {
			t.Errorf("MarkError() unexpected error: %v", err)
		}
	})
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		itemID  string
		userID  string
		mock    func() *MockRepository
		errType error
	}{
		{
			name:   "Success",
			itemID: "id-1",
			userID: "user-1",
			mock: func() *MockRepository {
				return &MockRepository{
					GetByIDFunc: func(ctx context.Context, id string) (*Item, error) {
						return &Item{ID: id, UserID: "user-1", ExternalItemID: "item-abc"}, nil
					},
					UpdateStatusFunc: func(ctx context.Context, externalItemID string, status Status, errorCode *string) error {
						if status != StatusRevoked {
							return errors.New("expected revoked status")
						}
						return nil
					},
				}
			},
		},
		{
			name:   "Not Found",
			itemID: "id-999",
			userID: "user-1",
			mock: func() *MockRepository {
				return &MockRepository{
					GetByIDFunc: func(ctx context.Context, id string) (*Item, error) {
						return nil, ErrItemNotFound
					},
				}
			},
			errType: ErrItemNotFound,
		},
		{
			name:   "Forbidden",
			itemID: "id-1",
			userID: "user-2",
			mock: func() *MockRepository {
				return &MockRepository{
					GetByIDFunc: func(ctx context.Context, id string) (*Item, error) {
						return &Item{ID: id, UserID: "user-1", ExternalItemID: "item-abc"}, nil
					},
				}
			},
			errType: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(tt.mock(), &MockCipher{}, &MockRecorder{})

			err := service.Disconnect(ctx, tt.itemID, tt.userID)

			if tt.errType != nil {
				if !errors.Is(err, tt.errType) {
					t.Errorf("Disconnect() expected error type %v, got %v", tt.errType, err)
				}
			} else if err != nil {
				t.Errorf("Disconnect() unexpected error: %v", err)
			}
		})
	}
}

func TestAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("Encrypted Credential", func(t *testing.T) {
		service := NewService(&MockRepository{}, &MockCipher{
			DecryptFunc: func(blob string) (string, error) {
				if blob != "blob-1" {
					t.Errorf("Decrypt called with %q, want blob-1", blob)
				}
				return "plain-token", nil
			},
		}, &MockRecorder{})

		token, err := service.AccessToken(ctx, &Item{
			ID:         "id-1",
			UserID:     "user-1",
			Credential: Credential{Encrypted: "blob-1", Legacy: "stale-legacy"},
		})
		if err != nil {
			t.Fatalf("AccessToken() unexpected error: %v", err)
		}
		if token != "plain-token" {
			t.Errorf("AccessToken() = %q, want plain-token", token)
		}
	})

	t.Run("Legacy Credential", func(t *testing.T) {
		service := NewService(&MockRepository{}, &MockCipher{
			DecryptFunc: func(blob string) (string, error) {
				t.Error("Decrypt must not be called for legacy-only credentials")
				return "", nil
			},
		}, &MockRecorder{})

		token, err := service.AccessToken(ctx, &Item{
			ID:         "id-1",
			UserID:     "user-1",
			Credential: Credential{Legacy: "legacy-token"},
		})
		if err != nil {
			t.Fatalf("AccessToken() unexpected error: %v", err)
		}
		if token != "legacy-token" {
			t.Errorf("AccessToken() = %q, want legacy-token", token)
		}
	})

	t.Run("Decrypt Failure", func(t *testing.T) {
		var markedStatus Status
		var markedCode *string
		recorder := &MockRecorder{}
		repo := &MockRepository{
			UpdateStatusFunc: func(ctx context.Context, externalItemID string, status Status, errorCode *string) error {
				markedStatus = status
				markedCode = errorCode
				return nil
			},
		}
		service := NewService(repo, &MockCipher{
			DecryptFunc: func(blob string) (string, error) {
				return "", errors.New("authentication failed")
			},
		}, recorder)

		_, err := service.AccessToken(ctx, &Item{
			ID:             "id-1",
			UserID:         "user-1",
			ExternalItemID: "item-abc",
			Credential:     Credential{Encrypted: "blob-1", Legacy: "stale-legacy"},
		})
		if !errors.Is(err, ErrNeedsReconnect) {
			t.Fatalf("AccessToken() expected ErrNeedsReconnect, got %v", err)
		}
		if markedStatus != StatusError {
			t.Errorf("expected item marked with status error, got %q", markedStatus)
		}
		if markedCode == nil || *markedCode != "CREDENTIAL_DECRYPT_FAILED" {
			t.Errorf("expected CREDENTIAL_DECRYPT_FAILED error code, got %v", markedCode)
		}
		if len(recorder.Entries) != 1 || recorder.Entries[0].EventType != audit.EventCredentialDecryptFailed {
			t.Errorf("expected one credential_decrypt_failed audit entry, got %v", recorder.Entries)
		}
	})

	t.Run("Empty Credential", func(t *testing.T) {
		service := NewService(&MockRepository{}, &MockCipher{}, &MockRecorder{})

		_, err := service.AccessToken(ctx, &Item{ID: "id-1", UserID: "user-1"})
		if !errors.Is(err, ErrNeedsReconnect) {
			t.Errorf("AccessToken() expected ErrNeedsReconnect, got %v", err)
		}
	})
}
