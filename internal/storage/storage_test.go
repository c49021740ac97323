package storage

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BhargavCodes/ai-vault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSealKey = "0123456789abcdef0123456789abcdef"

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{
		"sqlite3": {DSN: filepath.Join(t.TempDir(), "state", "state.db")},
	}}
	db, err := Open("sqlite3", cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db, "sqlite3"))
	store, err := NewSQLStore(db, "sqlite3")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func exercisePort(t *testing.T, p Port) {
	t.Helper()
	ctx := context.Background()

	_, err := p.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.Set(ctx, KeyToken, "first"))
	require.NoError(t, p.Set(ctx, KeyToken, "second"))
	got, err := p.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	require.NoError(t, p.Remove(ctx, KeyToken))
	_, err = p.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)

	// removing a missing key is not an error
	require.NoError(t, p.Remove(ctx, KeyTheme))
}

func TestSQLStore(t *testing.T) {
	exercisePort(t, newSQLiteStore(t))
}

func TestMemoryStore(t *testing.T) {
	exercisePort(t, NewMemoryStore())
}

func TestSealedStore(t *testing.T) {
	inner := NewMemoryStore()
	sealed, err := NewSealed(inner, testSealKey)
	require.NoError(t, err)
	exercisePort(t, sealed)

	ctx := context.Background()
	require.NoError(t, sealed.Set(ctx, KeyToken, "jwt-value"))
	raw, err := inner.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.NotContains(t, raw, "jwt-value")

	got, err := sealed.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "jwt-value", got)
}

func TestSealedRejectsTamperedAndSwappedValues(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	sealed, err := NewSealed(inner, base64.StdEncoding.EncodeToString([]byte(testSealKey)))
	require.NoError(t, err)

	require.NoError(t, inner.Set(ctx, KeyToken, "not-base64!"))
	_, err = sealed.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, sealed.Set(ctx, KeyTheme, "dark"))
	raw, err := inner.Get(ctx, KeyTheme)
	require.NoError(t, err)
	require.NoError(t, inner.Set(ctx, KeyToken, raw))
	_, err = sealed.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNewSealedRejectsShortKey(t *testing.T) {
	_, err := NewSealed(NewMemoryStore(), strings.Repeat("a", 12))
	assert.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"postgres": {}}}
	_, err := Open("postgres", cfg)
	assert.Error(t, err)
	assert.Error(t, Migrate(nil, "postgres"))
}
