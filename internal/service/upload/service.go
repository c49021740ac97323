package upload

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/backend"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Backend is the part of the backend client uploads need.
type Backend interface {
	Upload(ctx context.Context, p backend.Payload) error
}

// Resyncer reloads the file list after a successful upload.
type Resyncer interface {
	List(ctx context.Context) error
}

// Item is one dropped file.
type Item struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Service sends one document at a time to the backend and resyncs the collection.
// Concurrent uploads are allowed; Uploading reports whether any is in flight.
type Service struct {
	backend  Backend
	resync   Resyncer
	notifier *notify.Notifier
	logger   *zap.Logger
	inFlight atomic.Int32
}

func NewService(b Backend, resync Resyncer, notifier *notify.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: b, resync: resync, notifier: notifier, logger: logger.Named("upload")}
}

// Uploading reports whether at least one upload is in flight.
func (s *Service) Uploading() bool {
	return s.inFlight.Load() > 0
}

// Upload sends data. An empty mimeType is sniffed from the content.
func (s *Service) Upload(ctx context.Context, data []byte, filename, mimeType string) error {
	const op = "upload"
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return apperr.Precondition(op, "filename is required")
	}
	if mimeType == "" {
		mimeType = Detect(data)
	}

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	tracker := s.notifier.Start(op, fmt.Sprintf("Uploading %s...", filename))
	err := s.backend.Upload(ctx, backend.Payload{
		Filename: filename,
		MIMEType: mimeType,
		Data:     bytes.NewReader(data),
	})
	if err != nil {
		s.logger.Warn("upload failed", zap.String("filename", filename), zap.Error(err))
		tracker.Failure("Upload failed.", err)
		return apperr.New(apperr.KindUpload, op, err)
	}

	// A failed resync is reported by the collection itself; the upload still succeeded.
	if err := s.resync.List(ctx); err != nil {
		s.logger.Warn("resync after upload", zap.Error(err))
	}
	tracker.Success("File uploaded!")
	return nil
}

// UploadPath reads a local file and uploads it under its base name.
func (s *Service) UploadPath(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.Precondition("upload", fmt.Sprintf("read %s: %v", path, err))
	}
	return s.Upload(ctx, data, filepath.Base(path), "")
}

// Drop uploads the first accepted item and ignores the rest. An empty drop does
// nothing.
func (s *Service) Drop(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	for _, it := range items {
		mt := it.MIMEType
		if mt == "" {
			mt = Detect(it.Data)
		}
		if Accepted(mt) {
			return s.Upload(ctx, it.Data, it.Filename, mt)
		}
	}
	return apperr.Precondition("upload", "none of the dropped files is a supported type")
}

// Detect sniffs the content type, without parameters.
func Detect(data []byte) string {
	return baseType(mimetype.Detect(data).String())
}

// Accepted reports whether the drop zone takes this type: images, PDF, plain text
// and Word documents.
func Accepted(mimeType string) bool {
	mt := baseType(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return true
	case mt == "application/pdf", mt == "text/plain", mt == docxMIME:
		return true
	}
	return false
}

func baseType(mt string) string {
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
