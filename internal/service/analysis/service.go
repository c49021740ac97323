package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/backend"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

// ErrBusy is returned when another analysis holds the slot.
var ErrBusy = errors.New("another analysis is running")

// Status is the per-file analysis state.
type Status int

const (
	Unanalyzed Status = iota
	Analyzing
	Analyzed
	Failed
)

func (s Status) String() string {
	switch s {
	case Analyzing:
		return "analyzing"
	case Analyzed:
		return "analyzed"
	case Failed:
		return "failed"
	default:
		return "unanalyzed"
	}
}

// Backend is the part of the backend client analysis needs.
type Backend interface {
	Analyze(ctx context.Context, id int64) (*models.FileEntity, error)
}

// Collection is where results land.
type Collection interface {
	Get(id int64) (models.FileEntity, bool)
	ApplyAnalysisResult(id int64, entity models.FileEntity) bool
}

// Service runs at most one analysis at a time. The admission slot is separate from
// the per-file status so a failed file can be retried once the slot is free.
type Service struct {
	backend    Backend
	collection Collection
	notifier   *notify.Notifier
	logger     *zap.Logger

	mu     sync.Mutex
	slot   int64 // file id holding the slot, 0 when free
	status map[int64]Status
	epoch  uint64
}

func NewService(b Backend, collection Collection, notifier *notify.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:    b,
		collection: collection,
		notifier:   notifier,
		logger:     logger.Named("analysis"),
		status:     make(map[int64]Status),
	}
}

// Run analyzes file id. It is rejected without a network call if the slot is taken,
// the file is unknown, or the file is already analyzed.
func (s *Service) Run(ctx context.Context, id int64) error {
	const op = "analysis"
	entity, ok := s.collection.Get(id)
	if !ok {
		return apperr.Precondition(op, fmt.Sprintf("file %d not found", id))
	}

	s.mu.Lock()
	if s.slot != 0 {
		busy := s.slot
		s.mu.Unlock()
		s.logger.Debug("analysis rejected, slot busy", zap.Int64("file_id", id), zap.Int64("busy_with", busy))
		return apperr.New(apperr.KindPrecondition, op, ErrBusy)
	}
	if entity.IsAnalyzed || s.status[id] == Analyzed {
		s.mu.Unlock()
		return apperr.Precondition(op, "file is already analyzed")
	}
	s.slot = id
	s.status[id] = Analyzing
	epoch := s.epoch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.slot = 0
		s.mu.Unlock()
	}()

	tracker := s.notifier.Start(op, "Analyzing with AI...")
	result, err := s.backend.Analyze(ctx, id)
	if err != nil {
		s.setStatus(epoch, id, Failed)
		s.logger.Warn("analysis failed", zap.Int64("file_id", id), zap.Error(err))
		tracker.Failure(failureText(err, "Analysis Failed"), err)
		return apperr.New(apperr.KindAnalysis, op, err)
	}

	if !s.collection.ApplyAnalysisResult(id, *result) {
		s.logger.Debug("analyzed file no longer listed", zap.Int64("file_id", id))
		s.forget(id)
	} else {
		s.setStatus(epoch, id, Analyzed)
	}
	tracker.Success("Analysis Complete!")
	return nil
}

// Status reports the state of id, seeding Analyzed from the collection. Entries for
// files that left the collection are dropped.
func (s *Service) Status(id int64) Status {
	e, found := s.collection.Get(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[id]
	switch {
	case ok && (found || s.slot == id):
		return st
	case ok:
		delete(s.status, id)
	}
	if found && e.IsAnalyzed {
		return Analyzed
	}
	return Unanalyzed
}

// Reset forgets every per-file status. An analysis still in flight keeps the slot
// until it returns but no longer records its outcome.
func (s *Service) Reset() {
	s.mu.Lock()
	s.epoch++
	clear(s.status)
	s.mu.Unlock()
}

// Current returns the id holding the slot.
func (s *Service) Current() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot, s.slot != 0
}

func (s *Service) setStatus(epoch uint64, id int64, st Status) {
	s.mu.Lock()
	if s.epoch == epoch {
		s.status[id] = st
	}
	s.mu.Unlock()
}

func (s *Service) forget(id int64) {
	s.mu.Lock()
	delete(s.status, id)
	s.mu.Unlock()
}

func failureText(err error, fallback string) string {
	var se *backend.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}
