package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrInvalidKey is returned when the key is not exactly 32 bytes.
	ErrInvalidKey = errors.New("encryption key must be exactly 32 bytes")

	// ErrDecryptFailed is returned on tamper detection or key mismatch.
	// Callers must not swallow it: a failed decrypt means the stored
	// credential is unusable and the owning item needs reconnection.
	ErrDecryptFailed = errors.New("decryption failed")
)

// Encryptor provides authenticated encryption for provider access tokens.
// The key is loaded once at startup and is read-only afterwards; it must
// never be logged.
type Encryptor struct {
	key []byte
}

// NewEncryptor creates an Encryptor from a 32-byte secret.
func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return &Encryptor{key: []byte(key)}, nil
}

// Encrypt seals plaintext with a fresh random nonce and returns a base64
// blob of nonce || ciphertext || tag. Empty input stays empty so that
// nullable columns round-trip unchanged.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := chacha20poly1305.New(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any tampering with the blob,
// or a key mismatch, yields ErrDecryptFailed.
func (e *Encryptor) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecryptFailed)
	}

	aead, err := chacha20poly1305.New(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: blob shorter than nonce", ErrDecryptFailed)
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}
