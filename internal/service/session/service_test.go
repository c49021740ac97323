package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BhargavCodes/ai-vault/internal/api/apitest"
	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
	"github.com/BhargavCodes/ai-vault/internal/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newService(t *testing.T) (*Service, *apitest.Env, *[]notify.Notification) {
	t.Helper()
	env := apitest.New(t)
	n := notify.New()
	var notes []notify.Notification
	n.Subscribe(func(note notify.Notification) { notes = append(notes, note) })
	return NewService(env.Client, env.Store, n, nil), env, &notes
}

func persistedToken(t *testing.T, env *apitest.Env) (string, bool) {
	t.Helper()
	v, err := env.Store.Get(context.Background(), storage.KeyToken)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	require.NoError(t, err)
	return v, true
}

func TestRestoreWithoutTokenIsNoop(t *testing.T) {
	svc, env, _ := newService(t)
	require.NoError(t, svc.Restore(context.Background()))

	snap := svc.Snapshot()
	assert.False(t, snap.Authenticated())
	assert.False(t, snap.Loading)
	assert.Zero(t, env.Handler.Calls(http.MethodGet, "/auth/me"))
}

func TestRestoreValidToken(t *testing.T) {
	svc, env, _ := newService(t)
	user := env.SeedUser(t, "alice", "pw", models.UserRoleUser)
	token := env.Authenticate(t, user.ID)

	require.NoError(t, svc.Restore(context.Background()))
	snap := svc.Snapshot()
	assert.Equal(t, token, snap.Token)
	require.NotNil(t, snap.User)
	assert.Equal(t, "alice", snap.User.Name)
	assert.False(t, snap.Loading)
}

func TestRestoreInvalidTokenClearsPersistence(t *testing.T) {
	svc, env, _ := newService(t)
	require.NoError(t, env.Store.Set(context.Background(), storage.KeyToken, "garbage"))

	err := svc.Restore(context.Background())
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, ok := persistedToken(t, env)
	assert.False(t, ok)
	assert.Nil(t, svc.User())
	assert.False(t, svc.Snapshot().Loading)
}

func TestLoginThenIdentityWithEmptyFileList(t *testing.T) {
	svc, env, notes := newService(t)
	env.SeedUser(t, "alice", "pw", models.UserRoleUser)

	require.NoError(t, svc.Login(context.Background(), "alice", "pw"))
	snap := svc.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, "alice", snap.User.Name)
	token, ok := persistedToken(t, env)
	require.True(t, ok)
	assert.Equal(t, snap.Token, token)

	files, err := env.Client.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)

	require.Len(t, *notes, 2)
	assert.Equal(t, notify.PhaseStarted, (*notes)[0].Phase)
	assert.Equal(t, notify.PhaseSuccess, (*notes)[1].Phase)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, env, notes := newService(t)
	env.SeedUser(t, "alice", "pw", models.UserRoleUser)

	err := svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, ok := persistedToken(t, env)
	assert.False(t, ok)
	assert.Nil(t, svc.User())
	require.Len(t, *notes, 2)
	assert.Equal(t, "Invalid credentials", (*notes)[1].Message)
}

func TestLoginRemovesTokenWhenIdentityFails(t *testing.T) {
	svc, env, _ := newService(t)
	env.SeedUser(t, "alice", "pw", models.UserRoleUser)
	env.Handler.Fail(http.MethodGet, "/auth/me", http.StatusInternalServerError, "boom")

	err := svc.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, ok := persistedToken(t, env)
	assert.False(t, ok)
	assert.False(t, svc.Snapshot().Authenticated())
}

func TestLoginValidatesLocally(t *testing.T) {
	svc, env, _ := newService(t)
	err := svc.Login(context.Background(), "   ", "pw")
	assert.ErrorIs(t, err, apperr.ErrPrecondition)
	assert.Zero(t, env.Handler.Calls(http.MethodPost, "/auth/login"))
}

func TestLogoutDuringLoginWins(t *testing.T) {
	svc, env, _ := newService(t)
	env.SeedUser(t, "alice", "pw", models.UserRoleUser)
	hold := env.Handler.Hold(http.MethodGet, "/auth/me")

	done := make(chan error, 1)
	go func() { done <- svc.Login(context.Background(), "alice", "pw") }()

	<-hold.Arrived()
	svc.Logout(context.Background())
	hold.Release()

	err := <-done
	assert.ErrorIs(t, err, apperr.ErrAuth)
	assert.False(t, svc.Snapshot().Authenticated())
	_, ok := persistedToken(t, env)
	assert.False(t, ok)
}

func TestLogoutClearsEverything(t *testing.T) {
	svc, env, _ := newService(t)
	env.SeedUser(t, "alice", "pw", models.UserRoleUser)
	require.NoError(t, svc.Login(context.Background(), "alice", "pw"))

	svc.Logout(context.Background())
	assert.False(t, svc.Snapshot().Authenticated())
	_, ok := persistedToken(t, env)
	assert.False(t, ok)
}

func TestLoadingUntilSettled(t *testing.T) {
	svc, env, _ := newService(t)
	assert.True(t, svc.Snapshot().Loading)
	require.NoError(t, svc.Restore(context.Background()))
	assert.False(t, svc.Snapshot().Loading)

	fresh := NewService(env.Client, env.Store, nil, nil)
	assert.True(t, fresh.Snapshot().Loading)
	fresh.Logout(context.Background())
	assert.False(t, fresh.Snapshot().Loading)
}

func TestUserChangeListeners(t *testing.T) {
	svc, env, _ := newService(t)
	alice := env.SeedUser(t, "alice", "pw", models.UserRoleUser)
	bob := env.SeedUser(t, "bob", "pw", models.UserRoleUser)
	ctx := context.Background()

	var changes [][2]int64
	cancel := svc.OnUserChange(func(prev, next int64) { changes = append(changes, [2]int64{prev, next}) })

	require.NoError(t, svc.Login(ctx, "alice", "pw"))
	require.NoError(t, svc.Login(ctx, "alice", "pw"))
	require.NoError(t, svc.Login(ctx, "bob", "pw"))
	svc.Logout(ctx)
	svc.Logout(ctx)
	assert.Error(t, svc.Login(ctx, "bob", "wrong"))

	env.Authenticate(t, alice.ID)
	require.NoError(t, svc.Restore(ctx))
	cancel()
	svc.Logout(ctx)

	assert.Equal(t, [][2]int64{
		{0, alice.ID},
		{alice.ID, bob.ID},
		{bob.ID, 0},
		{0, alice.ID},
	}, changes)
}

func TestRefreshKeepsSessionOnFailure(t *testing.T) {
	svc, env, _ := newService(t)
	user := env.SeedUser(t, "alice", "pw", models.UserRoleUser)
	require.NoError(t, svc.Login(context.Background(), "alice", "pw"))

	_, err := env.Handler.State().AssignRole(user.ID, user.ID, models.UserRoleAdmin)
	require.NoError(t, err)
	svc.Refresh(context.Background())
	assert.True(t, svc.User().IsAdmin())

	env.Handler.Fail(http.MethodGet, "/auth/me", http.StatusUnauthorized, "Invalid token")
	svc.Refresh(context.Background())
	snap := svc.Snapshot()
	assert.True(t, snap.Authenticated())
	_, ok := persistedToken(t, env)
	assert.True(t, ok)
}

func TestRequireAdmin(t *testing.T) {
	svc, env, _ := newService(t)
	assert.ErrorIs(t, svc.RequireAdmin("list users"), apperr.ErrPrecondition)

	env.SeedUser(t, "plain", "pw", models.UserRoleUser)
	require.NoError(t, svc.Login(context.Background(), "plain", "pw"))
	assert.ErrorIs(t, svc.RequireAdmin("list users"), apperr.ErrPrecondition)

	env.SeedUser(t, "boss", "pw", models.UserRoleAdmin)
	require.NoError(t, svc.Login(context.Background(), "boss", "pw"))
	assert.NoError(t, svc.RequireAdmin("list users"))
}

func TestClaims(t *testing.T) {
	svc, env, _ := newService(t)
	_, err := svc.Claims()
	assert.ErrorIs(t, err, apperr.ErrPrecondition)

	user := env.SeedUser(t, "alice", "pw", models.UserRoleUser)
	require.NoError(t, svc.Login(context.Background(), "alice", "pw"))

	claims, err := svc.Claims()
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
	assert.False(t, claims.Expired(time.Now()))
}
