package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Sealer encrypts token records before they reach disk. The key is derived
// from an operator-supplied secret with HKDF-SHA256.
type Sealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewSealer creates a Sealer from the configured secret.
// Returns nil if secret is empty (sealing disabled).
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, nil
	}

	kdf := hkdf.New(sha256.New, []byte(secret), []byte("wayfinder-token-store"), []byte("fallback-seal"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving seal key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns base64-encoded ciphertext with
// prepended nonce. A nil Sealer returns plaintext unchanged.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil {
		return plaintext, nil
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts base64-encoded ciphertext produced by Seal. A nil Sealer
// returns the input unchanged (assumes unsealed).
func (s *Sealer) Open(ciphertext string) (string, error) {
	if s == nil {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding base64: %w", err)
	}

	if len(data) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:chacha20poly1305.NonceSizeX], data[chacha20poly1305.NonceSizeX:]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("opening sealed record: %w", err)
	}

	return string(plaintext), nil
}
