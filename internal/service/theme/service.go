package theme

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/storage"
)

// Mode is the UI colour scheme.
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// Service owns the persisted theme preference.
type Service struct {
	store  storage.Port
	logger *zap.Logger

	mu   sync.RWMutex
	mode Mode
}

func NewService(store storage.Port, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger.Named("theme"), mode: Light}
}

// Load reads the persisted mode. Missing or unknown values fall back to light.
func (s *Service) Load(ctx context.Context) error {
	v, err := s.store.Get(ctx, storage.KeyTheme)
	mode := Light
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load theme: %w", err)
	case Mode(v) == Dark:
		mode = Dark
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

func (s *Service) Current() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Set persists mode and then applies it.
func (s *Service) Set(ctx context.Context, mode Mode) error {
	if mode != Light && mode != Dark {
		return fmt.Errorf("unknown theme %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, storage.KeyTheme, string(mode)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	s.mode = mode
	s.logger.Debug("theme set", zap.String("mode", string(mode)))
	return nil
}

// Toggle switches between light and dark and returns the new mode.
func (s *Service) Toggle(ctx context.Context) (Mode, error) {
	next := Dark
	if s.Current() == Dark {
		next = Light
	}
	if err := s.Set(ctx, next); err != nil {
		return s.Current(), err
	}
	return next, nil
}
