package storage

import (
	"context"
	"errors"
)

// Keys written by the client.
const (
	KeyToken = "token"
	KeyTheme = "theme"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Port is the durable key-value store behind the session token and UI preferences.
type Port interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
