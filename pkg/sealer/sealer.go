// Package sealer turns internal identifiers into opaque URL-safe tokens so
// public URLs, such as the audio a carrier fetches, cannot be enumerated.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const separator = "\x1f"

var ErrInvalidToken = errors.New("invalid token")

type Sealer struct {
	aead cipher.AEAD
}

// New builds a sealer from a base64 encoded 32 byte key.
func New(key string) (*Sealer, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealing key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("sealing key must be 32 bytes, got %d", len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aesgcm}, nil
}

// GenerateKey returns a fresh random key in the format New expects.
func GenerateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Seal encrypts parts into one token.
func (s *Sealer) Seal(parts ...string) (string, error) {
	for _, p := range parts {
		if strings.Contains(p, separator) {
			return "", fmt.Errorf("token part contains separator")
		}
	}
	plaintext := []byte(strings.Join(parts, separator))

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

// Open reverses Seal and checks the token carries exactly n parts.
func (s *Sealer) Open(token string, n int) ([]string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrInvalidToken
	}
	nonce := data[:nonceSize]
	ciphertext := data[nonceSize:]

	pt, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	parts := strings.Split(string(pt), separator)
	if len(parts) != n {
		return nil, ErrInvalidToken
	}
	return parts, nil
}
