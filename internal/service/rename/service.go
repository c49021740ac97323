package rename

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

// Backend is the part of the backend client renaming needs.
type Backend interface {
	SuggestName(ctx context.Context, id int64) (string, error)
	Rename(ctx context.Context, id int64, filename string) (*models.FileEntity, error)
}

// Collection is the file store the flow reads from and commits to.
type Collection interface {
	Get(id int64) (models.FileEntity, bool)
	ApplyRename(id int64, filename string) bool
}

// State is a snapshot of the edit mode.
type State struct {
	Editing    bool
	FileID     int64
	Buffer     string
	Suggesting bool
}

// Service drives edit mode, AI name suggestions and committing a new name.
type Service struct {
	backend    Backend
	collection Collection
	notifier   *notify.Notifier
	logger     *zap.Logger

	mu    sync.Mutex
	state State
	epoch uint64
}

func NewService(b Backend, collection Collection, notifier *notify.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: b, collection: collection, notifier: notifier, logger: logger.Named("rename")}
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin opens edit mode with the buffer set to the current filename.
func (s *Service) Begin(id int64) error {
	entity, ok := s.collection.Get(id)
	if !ok {
		return apperr.Precondition("rename", fmt.Sprintf("file %d not found", id))
	}
	s.mu.Lock()
	s.epoch++
	s.state = State{Editing: true, FileID: id, Buffer: entity.Filename}
	s.mu.Unlock()
	return nil
}

func (s *Service) Cancel() {
	s.mu.Lock()
	s.epoch++
	s.state = State{}
	s.mu.Unlock()
}

// Reset closes edit mode and drops any suggestion still in flight. It is wired to
// selection changes.
func (s *Service) Reset() {
	s.mu.Lock()
	s.epoch++
	s.state = State{}
	s.mu.Unlock()
}

// SetBuffer records typing into the edit field.
func (s *Service) SetBuffer(text string) {
	s.mu.Lock()
	s.state.Buffer = text
	s.mu.Unlock()
}

// Suggest asks the backend for a name and, if id is still being edited, puts it in
// the edit buffer without committing. It never opens edit mode. The file must be
// analyzed.
func (s *Service) Suggest(ctx context.Context, id int64) (string, error) {
	const op = "suggest name"
	entity, ok := s.collection.Get(id)
	if !ok {
		return "", apperr.Precondition(op, fmt.Sprintf("file %d not found", id))
	}
	if !entity.IsAnalyzed {
		return "", apperr.Precondition(op, "analysis required")
	}

	s.mu.Lock()
	epoch := s.epoch
	s.state.Suggesting = true
	s.mu.Unlock()

	tracker := s.notifier.Start(op, "Suggesting a name...")
	name, err := s.backend.SuggestName(ctx, id)

	s.mu.Lock()
	stale := s.epoch != epoch
	if !stale {
		s.state.Suggesting = false
		if err == nil && s.state.Editing && s.state.FileID == id {
			s.state.Buffer = name
		}
	}
	s.mu.Unlock()

	if err != nil {
		tracker.Failure("Failed to suggest name", err)
		return "", apperr.New(apperr.KindRename, op, err)
	}
	if stale {
		s.logger.Debug("suggestion arrived after reset", zap.Int64("file_id", id))
	}
	tracker.Success("Name suggested!")
	return name, nil
}

// Commit renames id to name. Whitespace-only names are rejected locally. On failure
// edit mode and the buffer are kept.
func (s *Service) Commit(ctx context.Context, id int64, name string) error {
	const op = "rename"
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Precondition(op, "filename is required")
	}
	if _, ok := s.collection.Get(id); !ok {
		return apperr.Precondition(op, fmt.Sprintf("file %d not found", id))
	}

	tracker := s.notifier.Start(op, "Renaming...")
	updated, err := s.backend.Rename(ctx, id, name)
	if err != nil {
		s.logger.Warn("rename failed", zap.Int64("file_id", id), zap.Error(err))
		tracker.Failure("Rename failed.", err)
		return apperr.New(apperr.KindRename, op, err)
	}

	s.collection.ApplyRename(id, updated.Filename)
	s.mu.Lock()
	if s.state.FileID == id {
		s.state = State{}
	}
	s.mu.Unlock()
	tracker.Success("Renamed!")
	return nil
}

// CommitBuffer commits the edit buffer for the file in edit mode.
func (s *Service) CommitBuffer(ctx context.Context) error {
	st := s.State()
	if !st.Editing {
		return apperr.Precondition("rename", "not editing")
	}
	return s.Commit(ctx, st.FileID, st.Buffer)
}
