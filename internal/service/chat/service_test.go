package chat

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
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

const chatRoute = "/files/:id/chat"

type fixture struct {
	env   *apitest.Env
	store *collection.Store
	svc   *Service
	notes *[]notify.Notification
	a, b  models.FileEntity
}

// newFixture seeds two analyzed files and selects the first.
func newFixture(t *testing.T) fixture {
	t.Helper()
	env := apitest.New(t)
	user := env.SeedUser(t, "chatter", "pw", models.UserRoleUser)
	env.Authenticate(t, user.ID)
	state := env.Handler.State()
	a := env.SeedFile(user.ID, "bill.txt", []byte("Bill for March.\nTotal: 42 EUR"))
	b := env.SeedFile(user.ID, "memo.txt", []byte("Memo."))
	for _, id := range []int64{a.ID, b.ID} {
		_, err := state.Analyze(user.ID, id)
		require.NoError(t, err)
	}

	n := notify.New()
	var notes []notify.Notification
	n.Subscribe(func(note notify.Notification) { notes = append(notes, note) })

	store := collection.NewStore(env.Client, nil, nil)
	require.NoError(t, store.List(context.Background()))
	svc := NewService(env.Client, store, n, nil)
	store.OnSelectionChange(func(_, next int64) { svc.Reset(next) })
	require.True(t, store.Select(a.ID))
	return fixture{env: env, store: store, svc: svc, notes: &notes, a: a, b: b}
}

func TestAskAppendsBothTurns(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Ask(context.Background(), "What is the total?"))

	assert.Equal(t, []models.ChatMessage{
		{Role: models.RoleUser, Text: "What is the total?"},
		{Role: models.RoleAssistant, Text: "Total: 42 EUR"},
	}, f.svc.History())
	assert.False(t, f.svc.Pending())
	assert.Equal(t, f.a.ID, f.svc.FileID())
}

func TestBlankQuestionsNeverReachBackend(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"", "   "} {
		err := f.svc.Ask(context.Background(), q)
		assert.ErrorIs(t, err, apperr.ErrPrecondition)
	}
	assert.Empty(t, f.svc.History())
	assert.Zero(t, f.env.Handler.Calls(http.MethodPost, chatRoute))
	assert.Empty(t, *f.notes)
}

func TestFailureAppendsFallbackTurn(t *testing.T) {
	f := newFixture(t)
	f.env.Handler.Fail(http.MethodPost, chatRoute, http.StatusInternalServerError, "AI Chat failed")

	require.NoError(t, f.svc.Ask(context.Background(), "total?"))
	history := f.svc.History()
	require.Len(t, history, 2)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Text: "total?"}, history[0])
	assert.Equal(t, models.ChatMessage{Role: models.RoleAssistant, Text: FallbackAnswer}, history[1])

	last := (*f.notes)[len(*f.notes)-1]
	assert.Equal(t, notify.PhaseFailure, last.Phase)
	assert.ErrorIs(t, last.Err, apperr.ErrChat)
}

func TestRequiresAnalyzedSelection(t *testing.T) {
	f := newFixture(t)
	f.store.ClearSelection()
	assert.ErrorIs(t, f.svc.Ask(context.Background(), "hi"), apperr.ErrPrecondition)

	f.store.ApplyUpload(models.FileEntity{ID: 999, Filename: "raw.png"})
	require.True(t, f.store.Select(999))
	assert.ErrorIs(t, f.svc.Ask(context.Background(), "hi"), apperr.ErrPrecondition)
	assert.Zero(t, f.env.Handler.Calls(http.MethodPost, chatRoute))
}

func TestSelectionChangeClearsPendingConversation(t *testing.T) {
	f := newFixture(t)
	hold := f.env.Handler.Hold(http.MethodPost, chatRoute)

	done := make(chan error, 1)
	go func() { done <- f.svc.Ask(context.Background(), "What is the total?") }()
	<-hold.Arrived()
	assert.True(t, f.svc.Pending())

	assert.ErrorIs(t, f.svc.Ask(context.Background(), "another"), apperr.ErrPrecondition)

	require.True(t, f.store.Select(f.b.ID))
	assert.Empty(t, f.svc.History())
	assert.False(t, f.svc.Pending())
	assert.Equal(t, f.b.ID, f.svc.FileID())

	hold.Release()
	require.NoError(t, <-done)
	assert.Empty(t, f.svc.History(), "late answer must not land in the new conversation")
}

func TestSubmitClearsInputOnlyWhenAdmitted(t *testing.T) {
	f := newFixture(t)
	f.svc.SetInput("   ")
	assert.ErrorIs(t, f.svc.Submit(context.Background()), apperr.ErrPrecondition)
	assert.Equal(t, "   ", f.svc.Input())

	f.svc.SetInput("What is the total?")
	require.NoError(t, f.svc.Submit(context.Background()))
	assert.Empty(t, f.svc.Input())
	assert.Len(t, f.svc.History(), 2)

	f.svc.SetInput("draft")
	require.True(t, f.store.Select(f.b.ID))
	assert.Empty(t, f.svc.Input())
}
