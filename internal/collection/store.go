// Package collection holds the local view of the user's files and the selected file.
package collection

import (
	"context"
	"iter"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

// Lister fetches the authoritative file list.
type Lister interface {
	ListFiles(ctx context.Context) ([]models.FileEntity, error)
}

// SelectionListener is called after the selected id changes. 0 means no selection.
type SelectionListener func(prevID, nextID int64)

// Store is the authoritative local file list. It never performs mutation I/O; the
// apply* methods are fed by the controllers after the backend confirmed a change.
type Store struct {
	lister   Lister
	notifier *notify.Notifier
	logger   *zap.Logger

	mu         sync.RWMutex
	files      []models.FileEntity
	selectedID int64

	lmu       sync.Mutex
	listeners map[int]SelectionListener
	nextLID   int
}

func NewStore(lister Lister, notifier *notify.Notifier, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		lister:    lister,
		notifier:  notifier,
		logger:    logger.Named("collection"),
		listeners: make(map[int]SelectionListener),
	}
}

// List replaces the collection with the backend's list. On failure nothing changes.
func (s *Store) List(ctx context.Context) error {
	files, err := s.lister.ListFiles(ctx)
	if err != nil {
		s.logger.Warn("list files", zap.Error(err))
		s.notifier.Failure("list", "Could not load files.", err)
		return apperr.New(apperr.KindFetch, "list files", err)
	}
	next := make([]models.FileEntity, len(files))
	copy(next, files)

	s.mu.Lock()
	s.files = dedupe(next)
	prev := s.selectedID
	if prev != 0 && s.indexLocked(prev) < 0 {
		s.selectedID = 0
	}
	cur := s.selectedID
	s.mu.Unlock()

	s.logger.Debug("files replaced", zap.Int("count", len(next)))
	s.emit(prev, cur)
	return nil
}

// Reset empties the list and clears the selection. Used when the session ends or
// changes hands.
func (s *Store) Reset() {
	s.mu.Lock()
	s.files = nil
	prev := s.selectedID
	s.selectedID = 0
	s.mu.Unlock()

	s.emit(prev, 0)
}

// ApplyUpload appends entity, or updates it in place if the id is already present.
func (s *Store) ApplyUpload(entity models.FileEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(entity.ID); i >= 0 {
		s.files[i] = merge(s.files[i], entity)
		return
	}
	s.files = append(s.files, entity)
}

// ApplyDelete removes the entity and clears the selection if it pointed there.
func (s *Store) ApplyDelete(id int64) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.files = append(s.files[:i:i], s.files[i+1:]...)
	prev := s.selectedID
	if prev == id {
		s.selectedID = 0
	}
	cur := s.selectedID
	s.mu.Unlock()

	s.emit(prev, cur)
	return true
}

func (s *Store) ApplyRename(id int64, filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.files[i].Filename = filename
	return true
}

// ApplyAnalysisResult replaces the entity in place. Because the selection is held by
// id, the selected view sees the result in the same commit.
func (s *Store) ApplyAnalysisResult(id int64, entity models.FileEntity) bool {
	entity.ID = id
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.files[i] = merge(s.files[i], entity)
	return true
}

// Get returns a copy of the entity with id.
func (s *Store) Get(id int64) (models.FileEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return models.FileEntity{}, false
	}
	return s.files[i], true
}

// Snapshot returns a copy of the list in display order.
func (s *Store) Snapshot() []models.FileEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FileEntity, len(s.files))
	copy(out, s.files)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Filter yields files whose filename, tags or summary contain query, ignoring case.
// The match runs over a snapshot taken when iteration starts.
func (s *Store) Filter(query string) iter.Seq[models.FileEntity] {
	q := strings.ToLower(query)
	return func(yield func(models.FileEntity) bool) {
		for _, f := range s.Snapshot() {
			if !matches(f, q) {
				continue
			}
			if !yield(f) {
				return
			}
		}
	}
}

func matches(f models.FileEntity, q string) bool {
	return strings.Contains(strings.ToLower(f.Filename), q) ||
		strings.Contains(strings.ToLower(f.Tags()), q) ||
		strings.Contains(strings.ToLower(f.SummaryText()), q)
}

// Select makes id the selected file. Unknown ids are rejected.
func (s *Store) Select(id int64) bool {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return false
	}
	prev := s.selectedID
	s.selectedID = id
	s.mu.Unlock()

	s.emit(prev, id)
	return true
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	prev := s.selectedID
	s.selectedID = 0
	s.mu.Unlock()
	s.emit(prev, 0)
}

// Selected resolves the selected id against the current list.
func (s *Store) Selected() (models.FileEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedID == 0 {
		return models.FileEntity{}, false
	}
	i := s.indexLocked(s.selectedID)
	if i < 0 {
		return models.FileEntity{}, false
	}
	return s.files[i], true
}

func (s *Store) SelectedID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// OnSelectionChange registers l and returns a function that removes it.
func (s *Store) OnSelectionChange(l SelectionListener) func() {
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

func (s *Store) emit(prev, next int64) {
	if prev == next {
		return
	}
	s.lmu.Lock()
	ls := make([]SelectionListener, 0, len(s.listeners))
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

func (s *Store) indexLocked(id int64) int {
	for i := range s.files {
		if s.files[i].ID == id {
			return i
		}
	}
	return -1
}

// merge applies next over cur without letting is_analyzed fall back to false.
func merge(cur, next models.FileEntity) models.FileEntity {
	if cur.IsAnalyzed && !next.IsAnalyzed {
		next.IsAnalyzed = true
		if next.Summary == nil {
			next.Summary = cur.Summary
		}
		if next.AITags == nil {
			next.AITags = cur.AITags
		}
		if next.OCRText == nil {
			next.OCRText = cur.OCRText
		}
		if next.VisionAnalysis == nil {
			next.VisionAnalysis = cur.VisionAnalysis
		}
	}
	return next
}

// dedupe keeps the first occurrence of every id.
func dedupe(files []models.FileEntity) []models.FileEntity {
	seen := make(map[int64]struct{}, len(files))
	out := files[:0]
	for _, f := range files {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out
}
