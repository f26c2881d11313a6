package session

import (
	"context"
	"errors"
	"testing"

	"bancora/internal/infrastructure/authority"
)

// MockAuthority is a mock implementation of authority.ClientInterface
type MockAuthority struct {
	ValidateSessionFunc func(ctx context.Context, authorization string) (*authority.Identity, error)
}

func (m *MockAuthority) ValidateSession(ctx context.Context, authorization string) (*authority.Identity, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, authorization)
	}
	return nil, nil
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		authorization string
		override      string
		mock          func(t *testing.T) *MockAuthority
		wantUserID    string
		errType       error
	}{
		{
			name:          "Success",
			authorization: "Bearer opaque-token",
			mock: func(t *testing.T) *MockAuthority {
				return &MockAuthority{
					ValidateSessionFunc: func(ctx context.Context, authorization string) (*authority.Identity, error) {
						if authorization != "Bearer opaque-token" {
							t.Errorf("authority received %q, want raw header forwarded verbatim", authorization)
						}
						return &authority.Identity{UserID: "user-1", SessionID: "sess-1"}, nil
					},
				}
			},
			wantUserID: "user-1",
		},
		{
			name:          "Override Token Substitutes Header",
			authorization: "",
			override:      "popup-token",
			mock: func(t *testing.T) *MockAuthority {
				return &MockAuthority{
					ValidateSessionFunc: func(ctx context.Context, authorization string) (*authority.Identity, error) {
						if authorization != "Bearer popup-token" {
							t.Errorf("authority received %q, want substituted bearer", authorization)
						}
						return &authority.Identity{UserID: "user-2", SessionID: "sess-2"}, nil
					},
				}
			},
			wantUserID: "user-2",
		},
		{
			name:          "Missing Header",
			authorization: "",
			mock: func(t *testing.T) *MockAuthority {
				return &MockAuthority{
					ValidateSessionFunc: func(ctx context.Context, authorization string) (*authority.Identity, error) {
						t.Error("authority must not be called without a credential")
						return nil, nil
					},
				}
			},
			errType: ErrUnauthenticated,
		},
		{
			name:          "Authority Rejects",
			authorization: "Bearer expired",
			mock: func(t *testing.T) *MockAuthority {
				return &MockAuthority{
					ValidateSessionFunc: func(ctx context.Context, authorization string) (*authority.Identity, error) {
						return nil, authority.ErrUnauthenticated
					},
				}
			},
			errType: ErrUnauthenticated,
		},
		{
			name:          "Authority Unreachable",
			authorization: "Bearer opaque-token",
			mock: func(t *testing.T) *MockAuthority {
				return &MockAuthority{
					ValidateSessionFunc: func(ctx context.Context, authorization string) (*authority.Identity, error) {
						return nil, errors.New("connection refused")
					},
				}
			},
			errType: nil, // wrapped transport error, not ErrUnauthenticated
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewValidator(tt.mock(t))

			identity, err := validator.Validate(ctx, tt.authorization, tt.override)

			if tt.wantUserID != "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				if identity.UserID != tt.wantUserID {
					t.Errorf("Validate() userID = %s, want %s", identity.UserID, tt.wantUserID)
				}
				return
			}

			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if tt.errType != nil && !errors.Is(err, tt.errType) {
				t.Errorf("Validate() expected error type %v, got %v", tt.errType, err)
			}
			if tt.errType == nil && errors.Is(err, ErrUnauthenticated) {
				t.Errorf("Validate() transport failure must not map to ErrUnauthenticated: %v", err)
			}
		})
	}
}
