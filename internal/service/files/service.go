package files

import (
	"context"

	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

// Backend is the part of the backend client file operations need.
type Backend interface {
	DeleteFile(ctx context.Context, id int64) error
	History(ctx context.Context) ([]models.ActivityLog, error)
}

// Collection receives confirmed deletions.
type Collection interface {
	ApplyDelete(id int64) bool
}

// Service handles deletion and the activity history.
type Service struct {
	backend    Backend
	collection Collection
	notifier   *notify.Notifier
	logger     *zap.Logger
}

func NewService(b Backend, collection Collection, notifier *notify.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: b, collection: collection, notifier: notifier, logger: logger.Named("files")}
}

// Delete removes the file remotely and then locally. The selection is cleared by the
// collection when it pointed at id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	const op = "delete"
	if id <= 0 {
		return apperr.Precondition(op, "invalid file id")
	}
	tracker := s.notifier.Start(op, "Deleting...")
	if err := s.backend.DeleteFile(ctx, id); err != nil {
		s.logger.Warn("delete failed", zap.Int64("file_id", id), zap.Error(err))
		tracker.Failure("Delete failed.", err)
		return apperr.New(apperr.KindDelete, op, err)
	}
	s.collection.ApplyDelete(id)
	tracker.Success("Deleted.")
	return nil
}

// History returns the user's activity log, newest first as the backend sends it.
func (s *Service) History(ctx context.Context) ([]models.ActivityLog, error) {
	logs, err := s.backend.History(ctx)
	if err != nil {
		s.notifier.Failure("history", "Could not load history.", err)
		return nil, apperr.New(apperr.KindFetch, "history", err)
	}
	return logs, nil
}
