package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrCorrupt is returned when a sealed value cannot be opened with the current key.
var ErrCorrupt = errors.New("storage: sealed value corrupt")

// Sealed encrypts values with AES-GCM before handing them to the inner Port.
type Sealed struct {
	inner Port
	aead  cipher.AEAD
}

// NewSealed wraps inner. The key is 32 raw bytes or their base64 encoding.
func NewSealed(inner Port, rawKey string) (*Sealed, error) {
	key, err := decodeKey(strings.TrimSpace(rawKey))
	if err != nil {
		return nil, fmt.Errorf("decode seal key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Sealed{inner: inner, aead: aead}, nil
}

func decodeKey(raw string) ([]byte, error) {
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length %d, want 32", len(key))
	}
	return key, nil
}

func (s *Sealed) Get(ctx context.Context, key string) (string, error) {
	stored, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", ErrCorrupt
	}
	ns := s.aead.NonceSize()
	if len(data) < ns {
		return "", ErrCorrupt
	}
	// key is bound as additional data so values cannot be swapped between keys
	plain, err := s.aead.Open(nil, data[:ns], data[ns:], []byte(key))
	if err != nil {
		return "", ErrCorrupt
	}
	return string(plain), nil
}

func (s *Sealed) Set(ctx context.Context, key, value string) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	buf := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(buf))
}

func (s *Sealed) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}
