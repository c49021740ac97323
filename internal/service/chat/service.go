package chat

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

// FallbackAnswer is appended as the assistant turn when the backend fails.
const FallbackAnswer = "Error getting answer."

// Backend is the part of the backend client chat needs.
type Backend interface {
	Chat(ctx context.Context, id int64, question string) (string, error)
}

// Selection resolves the file the conversation is about.
type Selection interface {
	Selected() (models.FileEntity, bool)
}

// Service is the ephemeral conversation about the selected file. Reset wipes it;
// answers that arrive after a reset are dropped.
type Service struct {
	backend   Backend
	selection Selection
	notifier  *notify.Notifier
	logger    *zap.Logger

	mu      sync.Mutex
	fileID  int64
	history []models.ChatMessage
	input   string
	pending bool
	epoch   uint64
}

func NewService(b Backend, selection Selection, notifier *notify.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: b, selection: selection, notifier: notifier, logger: logger.Named("chat")}
}

// Reset starts an empty conversation for fileID (0 for none).
func (s *Service) Reset(fileID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.fileID = fileID
	s.history = nil
	s.input = ""
	s.pending = false
}

// Ask sends question about the selected file. Backend failures do not return an
// error; they show up as the fallback assistant turn and a failure notification.
func (s *Service) Ask(ctx context.Context, question string) error {
	return s.ask(ctx, question, false)
}

func (s *Service) ask(ctx context.Context, question string, fromInput bool) error {
	const op = "chat"
	if strings.TrimSpace(question) == "" {
		return apperr.Precondition(op, "question is empty")
	}
	file, ok := s.selection.Selected()
	if !ok {
		return apperr.Precondition(op, "no file selected")
	}
	if !file.IsAnalyzed {
		return apperr.Precondition(op, "analysis required")
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return apperr.Precondition(op, "an answer is still pending")
	}
	if s.fileID != file.ID {
		s.epoch++
		s.fileID = file.ID
		s.history = nil
	}
	epoch := s.epoch
	if fromInput {
		s.input = ""
	}
	s.history = append(s.history, models.ChatMessage{Role: models.RoleUser, Text: question})
	s.pending = true
	s.mu.Unlock()

	tracker := s.notifier.Start(op, "AI is thinking...")
	answer, err := s.backend.Chat(ctx, file.ID, question)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("dropping answer after reset", zap.Int64("file_id", file.ID))
		tracker.Failure("Conversation was reset", err)
		return nil
	}
	text := answer
	if err != nil {
		text = FallbackAnswer
	}
	s.history = append(s.history, models.ChatMessage{Role: models.RoleAssistant, Text: text})
	s.pending = false
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("chat failed", zap.Int64("file_id", file.ID), zap.Error(apperr.New(apperr.KindChat, op, err)))
		tracker.Failure(FallbackAnswer, apperr.New(apperr.KindChat, op, err))
		return nil
	}
	tracker.Success("Answered")
	return nil
}

// Submit asks the current input, clearing it once the question is admitted.
func (s *Service) Submit(ctx context.Context) error {
	return s.ask(ctx, s.Input(), true)
}

// History returns a copy of the turns in order.
func (s *Service) History() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Service) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Service) FileID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID
}

func (s *Service) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

func (s *Service) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}
