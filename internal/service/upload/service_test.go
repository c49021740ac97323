package upload

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BhargavCodes/ai-vault/internal/api/apitest"
	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/collection"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

type fixture struct {
	env   *apitest.Env
	store *collection.Store
	svc   *Service
	notes *[]notify.Notification
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	env := apitest.New(t)
	user := env.SeedUser(t, "uploader", "pw", models.UserRoleUser)
	env.Authenticate(t, user.ID)

	n := notify.New()
	var notes []notify.Notification
	n.Subscribe(func(note notify.Notification) { notes = append(notes, note) })
	store := collection.NewStore(env.Client, n, nil)
	return fixture{env: env, store: store, svc: NewService(env.Client, store, n, nil), notes: &notes}
}

func TestUploadResyncsCollection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Upload(context.Background(), []byte("hello world"), "hello.txt", ""))

	files := f.store.Snapshot()
	require.Len(t, files, 1)
	assert.Equal(t, "hello.txt", files[0].Filename)
	assert.Equal(t, "text/plain", files[0].FileType)
	assert.Equal(t, 1, f.env.Handler.Calls(http.MethodGet, "/files/list"))
	assert.False(t, f.svc.Uploading())

	notes := *f.notes
	require.Len(t, notes, 2)
	assert.Equal(t, notify.PhaseSuccess, notes[1].Phase)
	assert.Equal(t, "File uploaded!", notes[1].Message)
}

func TestUploadFailureLeavesCollection(t *testing.T) {
	f := newFixture(t)
	f.store.ApplyUpload(models.FileEntity{ID: 50, Filename: "existing"})
	f.env.Handler.Fail(http.MethodPost, "/files/upload", http.StatusInternalServerError, "disk full")

	err := f.svc.Upload(context.Background(), []byte("x"), "x.txt", "text/plain")
	assert.ErrorIs(t, err, apperr.ErrUpload)
	assert.Len(t, f.store.Snapshot(), 1)
	assert.Zero(t, f.env.Handler.Calls(http.MethodGet, "/files/list"))
	assert.False(t, f.svc.Uploading())
}

func TestResyncFailureIsSeparateNotification(t *testing.T) {
	f := newFixture(t)
	f.env.Handler.Fail(http.MethodGet, "/files/list", http.StatusInternalServerError, "down")

	require.NoError(t, f.svc.Upload(context.Background(), []byte("x"), "x.txt", ""))

	var phases []string
	for _, n := range *f.notes {
		phases = append(phases, n.Op+":"+string(n.Phase))
	}
	assert.Equal(t, []string{"upload:started", "list:failure", "upload:success"}, phases)
}

func TestUploadingFlagWhileInFlight(t *testing.T) {
	f := newFixture(t)
	hold := f.env.Handler.Hold(http.MethodPost, "/files/upload")

	done := make(chan error, 1)
	go func() { done <- f.svc.Upload(context.Background(), []byte("x"), "x.txt", "") }()

	<-hold.Arrived()
	assert.True(t, f.svc.Uploading())
	hold.Release()
	require.NoError(t, <-done)
	assert.False(t, f.svc.Uploading())
}

func TestDropTakesFirstAcceptedItem(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Drop(context.Background(), nil))
	assert.Zero(t, f.env.Handler.Calls(http.MethodPost, "/files/upload"))

	items := []Item{
		{Filename: "tool.zip", Data: []byte("PK\x03\x04 not really"), MIMEType: "application/zip"},
		{Filename: "notes.txt", Data: []byte("first")},
		{Filename: "second.txt", Data: []byte("second")},
	}
	require.NoError(t, f.svc.Drop(context.Background(), items))
	assert.Equal(t, 1, f.env.Handler.Calls(http.MethodPost, "/files/upload"))
	files := f.store.Snapshot()
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].Filename)

	err := f.svc.Drop(context.Background(), items[:1])
	assert.ErrorIs(t, err, apperr.ErrPrecondition)
}

func TestUploadPath(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("quarterly report"), 0o600))

	require.NoError(t, f.svc.UploadPath(context.Background(), path))
	assert.Equal(t, "report.txt", f.store.Snapshot()[0].Filename)

	err := f.svc.UploadPath(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, apperr.ErrPrecondition)
}

func TestAccepted(t *testing.T) {
	assert.True(t, Accepted("image/jpeg"))
	assert.True(t, Accepted("text/plain; charset=utf-8"))
	assert.True(t, Accepted("application/PDF"))
	assert.True(t, Accepted(docxMIME))
	assert.False(t, Accepted("application/zip"))
	assert.False(t, Accepted("text/html"))
}
