package admin

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Backend is the part of the backend client the admin pages need.
type Backend interface {
	ListUsers(ctx context.Context, limit int) ([]models.UserProfile, error)
	DeleteUser(ctx context.Context, id int64) error
	AssignRole(ctx context.Context, id int64, role models.UserRole) error
}

// Gate checks that the session user is an admin.
type Gate interface {
	RequireAdmin(op string) error
}

// Service manages users on behalf of an admin and keeps the last fetched page.
type Service struct {
	backend      Backend
	gate         Gate
	notifier     *notify.Notifier
	logger       *zap.Logger
	defaultLimit int

	mu    sync.RWMutex
	users []models.UserProfile
}

func NewService(b Backend, gate Gate, notifier *notify.Notifier, logger *zap.Logger, defaultLimit int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultLimit <= 0 || defaultLimit > MaxLimit {
		defaultLimit = DefaultLimit
	}
	return &Service{
		backend:      b,
		gate:         gate,
		notifier:     notifier,
		logger:       logger.Named("admin"),
		defaultLimit: defaultLimit,
	}
}

// ListUsers fetches up to limit users. 0 means the configured default.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]models.UserProfile, error) {
	const op = "list users"
	if err := s.gate.RequireAdmin(op); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, apperr.Precondition(op, fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	users, err := s.backend.ListUsers(ctx, limit)
	if err != nil {
		s.notifier.Failure(op, "Failed to load users", err)
		return nil, apperr.New(apperr.KindAdmin, op, err)
	}
	s.mu.Lock()
	s.users = append([]models.UserProfile(nil), users...)
	s.mu.Unlock()
	return users, nil
}

// Users returns the last fetched page.
func (s *Service) Users() []models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.UserProfile(nil), s.users...)
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	const op = "delete user"
	if err := s.gate.RequireAdmin(op); err != nil {
		return err
	}
	if id <= 0 {
		return apperr.Precondition(op, "invalid user id")
	}
	tracker := s.notifier.Start(op, "Deleting user...")
	if err := s.backend.DeleteUser(ctx, id); err != nil {
		tracker.Failure("Failed to delete user", err)
		return apperr.New(apperr.KindAdmin, op, err)
	}
	s.mu.Lock()
	for i := range s.users {
		if s.users[i].ID == id {
			s.users = append(s.users[:i:i], s.users[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	tracker.Success("User deleted")
	return nil
}

// ToggleRole flips user between admin and user and returns the new role.
func (s *Service) ToggleRole(ctx context.Context, user models.UserProfile) (models.UserRole, error) {
	const op = "toggle role"
	if err := s.gate.RequireAdmin(op); err != nil {
		return "", err
	}
	next := user.Role.Opposite()
	tracker := s.notifier.Start(op, "Updating role...")
	if err := s.backend.AssignRole(ctx, user.ID, next); err != nil {
		tracker.Failure("Failed to update role", err)
		return "", apperr.New(apperr.KindAdmin, op, err)
	}
	s.mu.Lock()
	for i := range s.users {
		if s.users[i].ID == user.ID {
			s.users[i].Role = next
		}
	}
	s.mu.Unlock()
	tracker.Success(fmt.Sprintf("User is now %s", next))
	return next, nil
}
