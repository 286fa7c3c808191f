// Package seal encrypts access tokens before they are written to a token store.
package seal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	// ErrEmptySecret is returned by New when no secret is configured.
	ErrEmptySecret = errors.New("seal: secret is required")
	// ErrCorrupt is returned when a sealed value cannot be opened.
	ErrCorrupt = errors.New("seal: value is corrupt or was sealed with another key")
)

// Box seals and opens token values with a key derived from the session secret.
type Box struct {
	key [keySize]byte
}

// New derives the box key from secret with HKDF-SHA256.
func New(secret string) (*Box, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	b := &Box{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("foodrankr-web token store"))
	if _, err := io.ReadFull(kdf, b.key[:]); err != nil {
		return nil, fmt.Errorf("seal: derive key: %w", err)
	}
	return b, nil
}

// Seal encrypts plaintext and returns it base64 encoded with the nonce prepended.
func (b *Box) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("seal: nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrCorrupt
	}
	return string(plain), nil
}
