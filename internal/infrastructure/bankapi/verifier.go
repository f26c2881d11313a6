package bankapi

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSignature is returned when a webhook signature header fails
	// verification. The delivery must be rejected before anything is persisted.
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// errKeyUnavailable marks a transient failure to fetch the verification
	// key. Distinct from ErrInvalidSignature so callers reject the delivery
	// as retryable instead of claiming a bad signature.
	errKeyUnavailable = errors.New("verification key unavailable")
)

const signatureMaxAge = 5 * time.Minute

// Verifier checks the signed JWT header the provider attaches to webhook
// deliveries. Verification keys are fetched per key id and cached for the
// process lifetime; the provider rotates keys rarely and re-fetching on an
// unknown kid covers rotation.
type Verifier struct {
	client ClientInterface

	mu   sync.Mutex
	keys map[string]*ecdsa.PublicKey
}

// NewVerifier creates a webhook signature verifier backed by the provider's
// verification-key endpoint.
func NewVerifier(client ClientInterface) *Verifier {
	return &Verifier{
		client: client,
		keys:   make(map[string]*ecdsa.PublicKey),
	}
}

type jwkKey struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// Verify validates the signature JWT against the raw request body.
// The token must be ES256-signed by a provider key and its body digest
// claim must match the delivered payload.
func (v *Verifier) Verify(ctx context.Context, signature string, body []byte) error {
	if signature == "" {
		return fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(signature, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("signature missing key id")
		}
		return v.publicKey(ctx, kid)
	}, jwt.WithValidMethods([]string{"ES256"}))
	if err != nil {
		if errors.Is(err, errKeyUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !token.Valid {
		return ErrInvalidSignature
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return fmt.Errorf("%w: missing issued-at claim", ErrInvalidSignature)
	}
	if time.Since(iat.Time) > signatureMaxAge {
		return fmt.Errorf("%w: signature too old", ErrInvalidSignature)
	}

	wantDigest, _ := claims["request_body_sha256"].(string)
	digest := sha256.Sum256(body)
	if subtle.ConstantTimeCompare([]byte(wantDigest), []byte(hex.EncodeToString(digest[:]))) != 1 {
		return fmt.Errorf("%w: body digest mismatch", ErrInvalidSignature)
	}

	return nil
}

// publicKey returns the cached key for kid, fetching it from the provider
// on first sight.
func (v *Verifier) publicKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	v.mu.Lock()
	if key, ok := v.keys[kid]; ok {
		v.mu.Unlock()
		return key, nil
	}
	v.mu.Unlock()

	resp, err := v.client.GetVerificationKey(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errKeyUnavailable, err)
	}

	var jwk jwkKey
	if err := json.Unmarshal(resp.Key, &jwk); err != nil {
		return nil, fmt.Errorf("failed to parse verification key: %w", err)
	}

	key, err := parseECKey(jwk)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.keys[kid] = key
	v.mu.Unlock()

	return key, nil
}

func parseECKey(jwk jwkKey) (*ecdsa.PublicKey, error) {
	if jwk.Kty != "EC" || jwk.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported verification key type %s/%s", jwk.Kty, jwk.Crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("invalid key coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("invalid key coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
