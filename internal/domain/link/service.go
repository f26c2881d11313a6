package link

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bancora/internal/domain/audit"
	"bancora/internal/domain/billing"
	"bancora/internal/domain/item"
	"bancora/internal/domain/ratelimit"
	"bancora/internal/domain/session"
	"bancora/internal/infrastructure/bankapi"
)

// SessionValidator resolves bearer credentials to identities.
type SessionValidator interface {
	Validate(ctx context.Context, authorization, overrideToken string) (*session.Identity, error)
}

// Throttle is the request ceiling the flow consults before provider calls.
type Throttle interface {
	Check(ctx context.Context, identifier, endpoint string) ratelimit.Result
}

// ItemService is the slice of the item domain the flow depends on.
type ItemService interface {
	Create(ctx context.Context, params item.CreateParams) (*item.Item, error)
	CountActive(ctx context.Context, userID string) (int, error)
}

// Contact is the delivery address for connection notifications.
type Contact struct {
	UserID string
	Email  string
	Name   string
}

// UserDirectory resolves a user id to contact details.
type UserDirectory interface {
	GetContact(ctx context.Context, userID string) (*Contact, error)
}

// Notifier sends the connection-confirmation notification. Best effort:
// failures are logged, never propagated.
type Notifier interface {
	SendConnectionConfirmation(ctx context.Context, contact Contact, institutionName string, isFirst bool) error
}

// RequestMeta carries caller attribution for the audit trail.
type RequestMeta struct {
	Authorization string
	OverrideToken string
	IPAddress     string
	UserAgent     string
}

// LinkToken is the result of a successful token issuance.
type LinkToken struct {
	Token      string     `json:"linkToken"`
	Expiration *time.Time `json:"expiration"`
}

// Config scopes provider requests.
type Config struct {
	Products        []string
	WebhookURL      string
	ExchangeTimeout time.Duration
}

// Service orchestrates the bank-connection flow: authenticate, authorize,
// check quota, then talk to the provider. The ordering is load-bearing:
// no provider call happens until the caller is authenticated, subscribed,
// and under quota, so link tokens never leak to callers who cannot use them.
type Service struct {
	sessions session.Cache
	auth     SessionValidator
	throttle Throttle
	plans    billing.PlanReader
	items    ItemService
	provider bankapi.ClientInterface
	audit    audit.Recorder
	users    UserDirectory
	notifier Notifier
	cfg      Config
}

// NewService creates the link orchestrator.
func NewService(
	auth SessionValidator,
	throttle Throttle,
	plans billing.PlanReader,
	items ItemService,
	provider bankapi.ClientInterface,
	sessions session.Cache,
	recorder audit.Recorder,
	users UserDirectory,
	notifier Notifier,
	cfg Config,
) *Service {
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = 30 * time.Second
	}
	return &Service{
		sessions: sessions,
		auth:     auth,
		throttle: throttle,
		plans:    plans,
		items:    items,
		provider: provider,
		audit:    recorder,
		users:    users,
		notifier: notifier,
		cfg:      cfg,
	}
}

// CreateLinkToken runs steps one through four of the connection flow and
// returns a short-lived provider token the client uses to open the linking
// handshake.
func (s *Service) CreateLinkToken(ctx context.Context, meta RequestMeta) (*LinkToken, error) {
	identity, err := s.authorize(ctx, meta, "/api/link/token")
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.CreateLinkToken(ctx, identity.UserID, s.cfg.Products, s.cfg.WebhookURL)
	if err != nil {
		log.Printf("Link token issuance failed for user %s: %v", identity.UserID, err)
		return nil, &LinkTokenError{Cause: err}
	}

	expiration, err := resp.GetExpiration()
	if err != nil {
		log.Printf("Unparseable link token expiration for user %s: %v", identity.UserID, err)
	}

	s.record(ctx, identity.UserID, meta, audit.EventLinkTokenCreated, map[string]any{
		"requestId": resp.RequestID,
	}, true, "")

	return &LinkToken{Token: resp.LinkToken, Expiration: expiration}, nil
}

// ExchangePublicToken completes the flow: swap the one-time public token
// for a long-lived access token, encrypt and persist it, then fire the
// audit and notification side effects. The notification is best effort;
// committed state is never unwound for it.
func (s *Service) ExchangePublicToken(ctx context.Context, meta RequestMeta, publicToken string, institutionID, institutionName string) (*item.Item, error) {
	if publicToken == "" {
		return nil, fmt.Errorf("public token is required")
	}

	identity, err := s.authorize(ctx, meta, "/api/link/exchange")
	if err != nil {
		return nil, err
	}

	exchCtx, cancel := context.WithTimeout(ctx, s.cfg.ExchangeTimeout)
	defer cancel()

	resp, err := s.provider.ExchangePublicToken(exchCtx, publicToken)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded)
		if timedOut {
			// The provider may have consumed the public token. Not
			// retryable, and worth waking someone up for.
			log.Printf("ALERT: public token exchange timed out for user %s, token state unknown: %v", identity.UserID, err)
		} else {
			log.Printf("Public token exchange failed for user %s: %v", identity.UserID, err)
		}
		s.record(ctx, identity.UserID, meta, audit.EventItemConnectFailed, map[string]any{
			"stage": "exchange",
		}, false, err.Error())
		return nil, &ExchangeError{Cause: err, TimedOut: timedOut}
	}

	isFirst, err := s.isFirstConnection(ctx, identity.UserID)
	if err != nil {
		log.Printf("Failed to count connections for user %s: %v", identity.UserID, err)
		isFirst = false
	}

	created, err := s.items.Create(ctx, item.CreateParams{
		UserID:          identity.UserID,
		ExternalItemID:  resp.ItemID,
		AccessToken:     resp.AccessToken,
		InstitutionID:   institutionID,
		InstitutionName: institutionName,
	})
	if err != nil {
		s.record(ctx, identity.UserID, meta, audit.EventItemConnectFailed, map[string]any{
			"stage":          "persist",
			"externalItemId": resp.ItemID,
		}, false, err.Error())
		if errors.Is(err, item.ErrDuplicateItem) {
			return nil, ErrAlreadyConnected
		}
		return nil, fmt.Errorf("failed to persist connection: %w", err)
	}

	if s.sessions != nil {
		s.sessions.Put(identity.SessionID, session.Entry{
			AccessToken: resp.AccessToken,
			ItemID:      resp.ItemID,
		})
	}

	s.record(ctx, identity.UserID, meta, audit.EventItemConnected, map[string]any{
		"itemId":         created.ID,
		"externalItemId": created.ExternalItemID,
		"institution":    institutionName,
	}, true, "")

	s.notify(ctx, identity.UserID, institutionName, isFirst)

	return created, nil
}

// authorize runs the shared gate: authenticate, throttle, subscription,
// quota. All must pass before any provider call.
func (s *Service) authorize(ctx context.Context, meta RequestMeta, endpoint string) (*session.Identity, error) {
	identity, err := s.auth.Validate(ctx, meta.Authorization, meta.OverrideToken)
	if err != nil {
		if errors.Is(err, session.ErrUnauthenticated) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("session validation failed: %w", err)
	}

	if res := s.throttle.Check(ctx, identity.UserID, endpoint); !res.Allowed {
		return nil, &ThrottledError{RetryAfter: res.RetryAfter}
	}

	plan, err := s.plans.CurrentPlan(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrNoSubscription) {
			return nil, ErrSubscriptionRequired
		}
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	limit := plan.MaxItems()
	count, err := s.items.CountActive(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active connections: %w", err)
	}
	if count >= limit {
		return nil, &QuotaExceededError{Limit: limit, Count: count}
	}

	return identity, nil
}

func (s *Service) isFirstConnection(ctx context.Context, userID string) (bool, error) {
	count, err := s.items.CountActive(ctx, userID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (s *Service) notify(ctx context.Context, userID, institutionName string, isFirst bool) {
	if s.notifier == nil || s.users == nil {
		return
	}

	contact, err := s.users.GetContact(ctx, userID)
	if err != nil {
		log.Printf("Failed to resolve contact for user %s, skipping notification: %v", userID, err)
		return
	}

	if err := s.notifier.SendConnectionConfirmation(ctx, *contact, institutionName, isFirst); err != nil {
		log.Printf("Failed to send connection confirmation to user %s: %v", userID, err)
	}
}

func (s *Service) record(ctx context.Context, userID string, meta RequestMeta, eventType string, data map[string]any, success bool, errMsg string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Entry{
		UserID:       &userID,
		EventType:    eventType,
		EventData:    data,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Success:      success,
		ErrorMessage: errMsg,
	}); err != nil {
		log.Printf("Failed to write audit entry %s for user %s: %v", eventType, userID, err)
	}
}
