// Package apitest starts the stub backend on a loopback listener for controller tests.
package apitest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BhargavCodes/ai-vault/internal/api"
	"github.com/BhargavCodes/ai-vault/internal/auth"
	"github.com/BhargavCodes/ai-vault/internal/backend"
	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/storage"
)

const Secret = "apitest-secret"

// Env is a running stub backend plus a client pointed at it.
type Env struct {
	Server  *httptest.Server
	Handler *api.Handler
	Auth    *auth.Service
	Store   *storage.MemoryStore
	Client  *backend.Client
}

// New starts a stub backend that is shut down when the test ends.
func New(t testing.TB) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authSvc := auth.NewService(Secret, time.Hour)
	handler := api.NewHandler(api.NewState(), authSvc, nil)
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)

	store := storage.NewMemoryStore()
	return &Env{
		Server:  srv,
		Handler: handler,
		Auth:    authSvc,
		Store:   store,
		Client:  backend.NewClient(srv.URL, 5*time.Second, store, nil),
	}
}

// SeedUser creates an account directly in the backend state.
func (e *Env) SeedUser(t testing.TB, name, password string, role models.UserRole) models.UserProfile {
	t.Helper()
	user, err := e.Handler.State().CreateUser(name, 30, password, role)
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return user
}

// Authenticate stores a valid token for the user in the client's port.
func (e *Env) Authenticate(t testing.TB, userID int64) string {
	t.Helper()
	token, err := e.Auth.IssueToken(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if err := e.Store.Set(context.Background(), storage.KeyToken, token); err != nil {
		t.Fatalf("store token: %v", err)
	}
	return token
}

// SeedFile uploads content on behalf of owner, bypassing the client.
func (e *Env) SeedFile(owner int64, filename string, content []byte) models.FileEntity {
	return e.Handler.State().AddFile(owner, filename, "", content)
}
