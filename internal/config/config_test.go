package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.BasicConfig.BackendURL)
	assert.Equal(t, "sqlite3", cfg.Persistence.Driver)
	assert.Equal(t, filepath.Join(dir, defaultStateDir, "state.db"), cfg.Databases["sqlite3"].DSN)
	assert.Equal(t, 100, cfg.Admin.PageSize)
	assert.Equal(t, 60*time.Second, cfg.Timeout())
}

func TestLoadResolvesRelativeSQLitePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.json")
	body := `{
		"basic_config": {"backend_url": "https://vault.example.com/", "request_timeout": 5},
		"persistence": {"driver": "SQLite3"},
		"databases": {"sqlite3": {"dsn": "data/state.db"}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://vault.example.com", cfg.BasicConfig.BackendURL)
	assert.Equal(t, "sqlite3", cfg.Persistence.Driver)
	assert.Equal(t, filepath.Join(dir, "data", "state.db"), cfg.Databases["sqlite3"].DSN)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("VAULT_PERSISTENCE_DRIVER", "memory")
	t.Setenv("VAULT_BASIC_CONFIG_BACKEND_URL", "http://127.0.0.1:9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Persistence.Driver)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.BasicConfig.BackendURL)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"persistence": {"driver": "etcd"}}`), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported persistence driver")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
