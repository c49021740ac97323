package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/backend"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
	"github.com/BhargavCodes/ai-vault/internal/storage"
)

// Backend is the part of the backend client the session needs.
type Backend interface {
	Me(ctx context.Context) (*models.UserProfile, error)
	Login(ctx context.Context, name, password string) (string, error)
	Signup(ctx context.Context, req backend.SignupRequest) error
	ForgotPassword(ctx context.Context, name string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	UploadAvatar(ctx context.Context, p backend.Payload) (string, error)
}

// Session is a point-in-time copy of the authenticated state.
type Session struct {
	Token   string
	User    *models.UserProfile
	Loading bool
}

// Authenticated reports whether a validated user is present.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// UserChangeListener is called after the session user changes. 0 means nobody.
type UserChangeListener func(prevID, nextID int64)

// Service owns the session lifecycle and is the only writer of the token key.
type Service struct {
	backend  Backend
	store    storage.Port
	notifier *notify.Notifier
	logger   *zap.Logger

	mu      sync.RWMutex
	token   string
	user    *models.UserProfile
	loading bool
	// epoch advances on logout so in-flight logins cannot resurrect a session.
	epoch uint64

	// serializes restore, login and refresh
	opMu sync.Mutex

	lmu       sync.Mutex
	listeners map[int]UserChangeListener
	nextLID   int
}

// NewService builds a session service. It reports Loading until Restore, Login or
// Logout settles the session.
func NewService(b Backend, store storage.Port, notifier *notify.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:   b,
		store:     store,
		notifier:  notifier,
		logger:    logger.Named("session"),
		loading:   true,
		listeners: make(map[int]UserChangeListener),
	}
}

// OnUserChange registers l and returns a function that removes it.
func (s *Service) OnUserChange(l UserChangeListener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = l
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Service) emit(prev, next int64) {
	if prev == next {
		return
	}
	s.lmu.Lock()
	ls := make([]UserChangeListener, 0, len(s.listeners))
	for i := 0; i < s.nextLID; i++ {
		if l, ok := s.listeners[i]; ok {
			ls = append(ls, l)
		}
	}
	s.lmu.Unlock()
	for _, l := range ls {
		l(prev, next)
	}
}

// Snapshot returns a copy of the current session.
func (s *Service) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{Token: s.token, User: cloneUser(s.user), Loading: s.loading}
}

// User returns a copy of the authenticated user, or nil.
func (s *Service) User() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// Restore validates a persisted token against the identity endpoint. An invalid
// token is removed from storage.
func (s *Service) Restore(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.setLoading(true)
	defer s.setLoading(false)

	token, err := s.store.Get(ctx, storage.KeyToken)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Warn("read persisted token", zap.Error(err))
		s.dropPersisted(ctx)
		return nil
	}

	user, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.Info("persisted token rejected", zap.Error(err))
		s.dropPersisted(ctx)
		prev := s.replace("", nil)
		s.emit(prev, 0)
		return apperr.New(apperr.KindAuth, "restore session", err)
	}

	prev := s.replace(token, user)
	s.emit(prev, user.ID)
	s.logger.Debug("session restored", zap.Int64("user_id", user.ID))
	return nil
}

// Login exchanges credentials for a token, persists it and loads the identity. If
// either step fails no token is left behind.
func (s *Service) Login(ctx context.Context, name, password string) error {
	const op = "login"
	in := loginInput{Name: name, Password: password}
	if err := validate(in); err != nil {
		return apperr.Precondition(op, err.Error())
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	epoch := s.currentEpoch()

	tracker := s.notifier.Start(op, "Logging in...")
	token, err := s.backend.Login(ctx, in.Name, in.Password)
	if err != nil {
		tracker.Failure(failureText(err, "Login failed"), err)
		return apperr.New(apperr.KindAuth, op, err)
	}
	if err := s.store.Set(ctx, storage.KeyToken, token); err != nil {
		tracker.Failure("Could not save session", err)
		return apperr.New(apperr.KindAuth, op, err)
	}

	user, err := s.backend.Me(ctx)
	if err != nil {
		s.dropPersisted(ctx)
		tracker.Failure(failureText(err, "Could not load profile"), err)
		return apperr.New(apperr.KindAuth, op, err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.dropPersisted(ctx)
		err := errors.New("logged out during login")
		tracker.Failure("Login cancelled", err)
		return apperr.New(apperr.KindAuth, op, err)
	}
	prev := userID(s.user)
	s.token, s.user, s.loading = token, user, false
	s.mu.Unlock()
	s.emit(prev, user.ID)

	s.logger.Info("logged in", zap.Int64("user_id", user.ID))
	tracker.Success("Welcome, " + user.Name + "!")
	return nil
}

// Logout clears the session locally. It never fails and makes no network call.
func (s *Service) Logout(ctx context.Context) {
	s.mu.Lock()
	s.epoch++
	prev := userID(s.user)
	s.token, s.user, s.loading = "", nil, false
	s.mu.Unlock()
	s.dropPersisted(ctx)
	s.emit(prev, 0)
	s.logger.Info("logged out")
}

// Refresh re-fetches the identity with the current token. Failures are logged and
// the session is kept.
func (s *Service) Refresh(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	token, epoch := s.token, s.epoch
	s.mu.RUnlock()
	if token == "" {
		return
	}
	user, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.Warn("refresh identity", zap.Error(err))
		return
	}
	s.mu.Lock()
	if s.epoch == epoch && s.token == token {
		s.user = user
	}
	s.mu.Unlock()
}

// RequireUser fails with a precondition error when nobody is logged in.
func (s *Service) RequireUser(op string) (*models.UserProfile, error) {
	user := s.User()
	if user == nil {
		return nil, apperr.Precondition(op, "login required")
	}
	return user, nil
}

// RequireAdmin fails with a precondition error unless the session user is an admin.
func (s *Service) RequireAdmin(op string) error {
	user, err := s.RequireUser(op)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return apperr.Precondition(op, "admin role required")
	}
	return nil
}

func (s *Service) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Service) dropPersisted(ctx context.Context) {
	if err := s.store.Remove(ctx, storage.KeyToken); err != nil {
		s.logger.Warn("remove persisted token", zap.Error(err))
	}
}

// replace swaps the session identity and returns the previous user id.
func (s *Service) replace(token string, user *models.UserProfile) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := userID(s.user)
	s.token, s.user = token, user
	return prev
}

func userID(u *models.UserProfile) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func cloneUser(u *models.UserProfile) *models.UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// failureText prefers the backend's error message.
func failureText(err error, fallback string) string {
	var se *backend.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}
