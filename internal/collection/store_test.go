package collection

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

type fakeLister struct {
	files []models.FileEntity
	err   error
	calls int
}

func (f *fakeLister) ListFiles(context.Context) ([]models.FileEntity, error) {
	f.calls++
	return f.files, f.err
}

func strPtr(s string) *string { return &s }

func file(id int64, name string) models.FileEntity {
	return models.FileEntity{ID: id, Filename: name}
}

func ids(files []models.FileEntity) []int64 {
	out := make([]int64, len(files))
	for i, f := range files {
		out[i] = f.ID
	}
	return out
}

func TestListReplacesWholesale(t *testing.T) {
	lister := &fakeLister{files: []models.FileEntity{file(1, "a"), file(2, "b"), file(1, "dup")}}
	s := NewStore(lister, nil, nil)
	s.ApplyUpload(file(9, "stale"))

	require.NoError(t, s.List(context.Background()))
	assert.Equal(t, []int64{1, 2}, ids(s.Snapshot()))
}

func TestListFailureLeavesStateAndNotifies(t *testing.T) {
	n := notify.New()
	var notes []notify.Notification
	n.Subscribe(func(note notify.Notification) { notes = append(notes, note) })

	lister := &fakeLister{err: errors.New("offline")}
	s := NewStore(lister, n, nil)
	s.ApplyUpload(file(1, "kept"))

	err := s.List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrFetch)
	assert.Equal(t, []int64{1}, ids(s.Snapshot()))
	require.Len(t, notes, 1)
	assert.Equal(t, notify.PhaseFailure, notes[0].Phase)
}

func TestListDropsVanishedSelection(t *testing.T) {
	lister := &fakeLister{files: []models.FileEntity{file(1, "a")}}
	s := NewStore(lister, nil, nil)
	s.ApplyUpload(file(2, "b"))
	require.True(t, s.Select(2))

	var changes [][2]int64
	s.OnSelectionChange(func(prev, next int64) { changes = append(changes, [2]int64{prev, next}) })

	require.NoError(t, s.List(context.Background()))
	_, ok := s.Selected()
	assert.False(t, ok)
	assert.Equal(t, [][2]int64{{2, 0}}, changes)
}

func TestApplyOperationsPreserveOrderAndUniqueness(t *testing.T) {
	s := NewStore(&fakeLister{}, nil, nil)
	rng := rand.New(rand.NewSource(7))
	var model []int64

	for step := 0; step < 500; step++ {
		id := int64(rng.Intn(12) + 1)
		switch rng.Intn(4) {
		case 0:
			s.ApplyUpload(file(id, "f"))
			if !slices.Contains(model, id) {
				model = append(model, id)
			}
		case 1:
			s.ApplyDelete(id)
			if i := slices.Index(model, id); i >= 0 {
				model = slices.Delete(model, i, i+1)
			}
		case 2:
			s.ApplyRename(id, "renamed")
		case 3:
			s.ApplyAnalysisResult(id, models.FileEntity{Filename: "f", IsAnalyzed: true})
		}
		require.Equal(t, model, ids(s.Snapshot()), "step %d", step)
	}
}

func TestIsAnalyzedNeverReverts(t *testing.T) {
	s := NewStore(&fakeLister{}, nil, nil)
	s.ApplyUpload(file(3, "scan.png"))
	require.True(t, s.ApplyAnalysisResult(3, models.FileEntity{Filename: "scan.png", IsAnalyzed: true, Summary: strPtr("a scan")}))

	s.ApplyUpload(file(3, "scan.png"))
	s.ApplyAnalysisResult(3, models.FileEntity{Filename: "scan.png"})

	got, ok := s.Get(3)
	require.True(t, ok)
	assert.True(t, got.IsAnalyzed)
	assert.Equal(t, "a scan", got.SummaryText())
}

func TestApplyOnUnknownIDIsNoop(t *testing.T) {
	s := NewStore(&fakeLister{}, nil, nil)
	assert.False(t, s.ApplyRename(5, "x"))
	assert.False(t, s.ApplyDelete(5))
	assert.False(t, s.ApplyAnalysisResult(5, file(5, "x")))
	assert.Zero(t, s.Len())
}

func TestFilterMatchesNameTagsSummary(t *testing.T) {
	s := NewStore(&fakeLister{}, nil, nil)
	s.ApplyUpload(file(1, "Quarterly-Report.pdf"))
	s.ApplyUpload(models.FileEntity{ID: 2, Filename: "img.png", AITags: strPtr("Receipt,food")})
	s.ApplyUpload(models.FileEntity{ID: 3, Filename: "notes.txt", Summary: strPtr("Meeting about the REPORT")})
	s.ApplyUpload(file(4, "other"))

	var got []int64
	for f := range s.Filter("report") {
		got = append(got, f.ID)
	}
	assert.Equal(t, []int64{1, 3}, got)

	got = got[:0]
	for f := range s.Filter("RECEIPT") {
		got = append(got, f.ID)
	}
	assert.Equal(t, []int64{2}, got)

	count := 0
	for range s.Filter("") {
		count++
	}
	assert.Equal(t, 4, count)
	assert.Equal(t, 4, s.Len(), "filter never mutates the list")
}

func TestSelectionResolvesByID(t *testing.T) {
	s := NewStore(&fakeLister{}, nil, nil)
	s.ApplyUpload(file(1, "a"))
	s.ApplyUpload(file(2, "b"))

	assert.False(t, s.Select(99))
	require.True(t, s.Select(1))
	s.ApplyRename(1, "renamed")
	s.ApplyAnalysisResult(1, models.FileEntity{Filename: "renamed", IsAnalyzed: true})

	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "renamed", sel.Filename)
	assert.True(t, sel.IsAnalyzed)
}

func TestSelectionListenersFireOnChangeOnly(t *testing.T) {
	s := NewStore(&fakeLister{}, nil, nil)
	s.ApplyUpload(file(1, "a"))
	s.ApplyUpload(file(2, "b"))

	var changes [][2]int64
	cancel := s.OnSelectionChange(func(prev, next int64) { changes = append(changes, [2]int64{prev, next}) })

	s.Select(1)
	s.Select(1)
	s.Select(2)
	s.ApplyDelete(2)
	s.ClearSelection()
	cancel()
	s.Select(1)

	assert.Equal(t, [][2]int64{{0, 1}, {1, 2}, {2, 0}}, changes)
	assert.Equal(t, int64(1), s.SelectedID())
}

func TestResetEmptiesListAndSelection(t *testing.T) {
	s := NewStore(&fakeLister{}, nil, nil)
	s.ApplyUpload(file(1, "a"))
	s.ApplyUpload(file(2, "b"))
	require.True(t, s.Select(2))

	var changes [][2]int64
	s.OnSelectionChange(func(prev, next int64) { changes = append(changes, [2]int64{prev, next}) })

	s.Reset()
	assert.Zero(t, s.Len())
	assert.Zero(t, s.SelectedID())
	assert.Equal(t, [][2]int64{{2, 0}}, changes)

	s.Reset()
	assert.Len(t, changes, 1)
}
