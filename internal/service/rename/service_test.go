package rename

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BhargavCodes/ai-vault/internal/api/apitest"
	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/collection"
	"github.com/BhargavCodes/ai-vault/internal/models"
)

const (
	suggestRoute = "/files/:id/suggest_name"
	renameRoute  = "/files/:id/rename"
)

type fixture struct {
	env   *apitest.Env
	store *collection.Store
	svc   *Service
	owner int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	env := apitest.New(t)
	user := env.SeedUser(t, "renamer", "pw", models.UserRoleUser)
	env.Authenticate(t, user.ID)
	store := collection.NewStore(env.Client, nil, nil)
	return fixture{env: env, store: store, svc: NewService(env.Client, store, nil, nil), owner: user.ID}
}

func (f fixture) seed(t *testing.T, name string, analyzed bool) models.FileEntity {
	t.Helper()
	entity := f.env.SeedFile(f.owner, name, []byte("invoice total 12"))
	if analyzed {
		var err error
		entity, err = f.env.Handler.State().Analyze(f.owner, entity.ID)
		require.NoError(t, err)
	}
	require.NoError(t, f.store.List(context.Background()))
	return entity
}

func TestCommitEmptyNameIsRejectedLocally(t *testing.T) {
	f := newFixture(t)
	file := f.seed(t, "three.txt", false)
	require.NoError(t, f.svc.Begin(file.ID))

	for _, name := range []string{"", "   "} {
		err := f.svc.Commit(context.Background(), file.ID, name)
		assert.ErrorIs(t, err, apperr.ErrPrecondition)
	}
	got, _ := f.store.Get(file.ID)
	assert.Equal(t, "three.txt", got.Filename)
	assert.Zero(t, f.env.Handler.Calls(http.MethodPut, renameRoute))
	assert.True(t, f.svc.State().Editing)
}

func TestSuggestRequiresAnalysis(t *testing.T) {
	f := newFixture(t)
	file := f.seed(t, "nine.txt", false)

	_, err := f.svc.Suggest(context.Background(), file.ID)
	assert.ErrorIs(t, err, apperr.ErrPrecondition)
	assert.Zero(t, f.env.Handler.Calls(http.MethodPost, suggestRoute))
}

func TestSuggestFillsBufferWithoutCommitting(t *testing.T) {
	f := newFixture(t)
	file := f.seed(t, "scan.txt", true)
	require.NoError(t, f.svc.Begin(file.ID))
	assert.Equal(t, "scan.txt", f.svc.State().Buffer)

	name, err := f.svc.Suggest(context.Background(), file.ID)
	require.NoError(t, err)
	assert.Regexp(t, `^invoice_\d{8}\.txt$`, name)

	st := f.svc.State()
	assert.True(t, st.Editing)
	assert.Equal(t, name, st.Buffer)
	got, _ := f.store.Get(file.ID)
	assert.Equal(t, "scan.txt", got.Filename)

	require.NoError(t, f.svc.CommitBuffer(context.Background()))
	got, _ = f.store.Get(file.ID)
	assert.Equal(t, name, got.Filename)
	assert.False(t, f.svc.State().Editing)
}

func TestCommitFailureKeepsEditMode(t *testing.T) {
	f := newFixture(t)
	file := f.seed(t, "a.txt", false)
	require.NoError(t, f.svc.Begin(file.ID))
	f.svc.SetBuffer("b.txt")
	f.env.Handler.Fail(http.MethodPut, renameRoute, http.StatusInternalServerError, "nope")

	err := f.svc.CommitBuffer(context.Background())
	assert.ErrorIs(t, err, apperr.ErrRename)
	st := f.svc.State()
	assert.True(t, st.Editing)
	assert.Equal(t, "b.txt", st.Buffer)
	got, _ := f.store.Get(file.ID)
	assert.Equal(t, "a.txt", got.Filename)
}

func TestCommitUsesServerFilename(t *testing.T) {
	f := newFixture(t)
	file := f.seed(t, "a.txt", false)
	require.NoError(t, f.svc.Commit(context.Background(), file.ID, "  padded.txt  "))
	got, _ := f.store.Get(file.ID)
	assert.Equal(t, "padded.txt", got.Filename)
}

func TestResetDropsLateSuggestion(t *testing.T) {
	f := newFixture(t)
	file := f.seed(t, "a.txt", true)
	require.NoError(t, f.svc.Begin(file.ID))
	hold := f.env.Handler.Hold(http.MethodPost, suggestRoute)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Suggest(context.Background(), file.ID)
		done <- err
	}()
	<-hold.Arrived()
	f.svc.Reset()
	hold.Release()
	require.NoError(t, <-done)

	assert.Equal(t, State{}, f.svc.State())
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	file := f.seed(t, "a.txt", false)
	require.NoError(t, f.svc.Begin(file.ID))
	f.svc.Cancel()
	assert.False(t, f.svc.State().Editing)
	assert.ErrorIs(t, f.svc.CommitBuffer(context.Background()), apperr.ErrPrecondition)
	assert.ErrorIs(t, f.svc.Begin(999), apperr.ErrPrecondition)
}

func TestLateSuggestionDoesNotTakeOverAnotherEdit(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "a.txt", true)
	b := f.seed(t, "b.txt", true)
	require.NoError(t, f.svc.Begin(a.ID))
	hold := f.env.Handler.Hold(http.MethodPost, suggestRoute)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Suggest(context.Background(), a.ID)
		done <- err
	}()
	<-hold.Arrived()
	require.NoError(t, f.svc.Begin(b.ID))
	f.svc.SetBuffer("typed-for-b.txt")
	hold.Release()
	require.NoError(t, <-done)

	assert.Equal(t, State{Editing: true, FileID: b.ID, Buffer: "typed-for-b.txt"}, f.svc.State())
}

func TestLateSuggestionAfterCancelStaysClosed(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "a.txt", true)
	require.NoError(t, f.svc.Begin(a.ID))
	hold := f.env.Handler.Hold(http.MethodPost, suggestRoute)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Suggest(context.Background(), a.ID)
		done <- err
	}()
	<-hold.Arrived()
	f.svc.Cancel()
	hold.Release()
	require.NoError(t, <-done)

	assert.Equal(t, State{}, f.svc.State())
}

func TestSuggestOutsideEditModeLeavesStateClosed(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "a.txt", true)

	name, err := f.svc.Suggest(context.Background(), a.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, name)
	assert.Equal(t, State{}, f.svc.State())
}
