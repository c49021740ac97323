// Package app assembles the vault controllers around one persistence port and one
// backend client.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/backend"
	"github.com/BhargavCodes/ai-vault/internal/collection"
	"github.com/BhargavCodes/ai-vault/internal/config"
	"github.com/BhargavCodes/ai-vault/internal/logger"
	"github.com/BhargavCodes/ai-vault/internal/notify"
	"github.com/BhargavCodes/ai-vault/internal/redis"
	"github.com/BhargavCodes/ai-vault/internal/service/admin"
	"github.com/BhargavCodes/ai-vault/internal/service/analysis"
	"github.com/BhargavCodes/ai-vault/internal/service/chat"
	"github.com/BhargavCodes/ai-vault/internal/service/files"
	"github.com/BhargavCodes/ai-vault/internal/service/rename"
	"github.com/BhargavCodes/ai-vault/internal/service/session"
	"github.com/BhargavCodes/ai-vault/internal/service/theme"
	"github.com/BhargavCodes/ai-vault/internal/service/upload"
	"github.com/BhargavCodes/ai-vault/internal/storage"
)

// SealKeyEnv overrides persistence.seal_key.
const SealKeyEnv = "VAULT_TOKEN_KEY"

// App owns every controller of one client instance.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Notifier *notify.Notifier
	Port     storage.Port
	Backend  *backend.Client

	Files    *collection.Store
	Session  *session.Service
	Upload   *upload.Service
	Analysis *analysis.Service
	Rename   *rename.Service
	Chat     *chat.Service
	FileOps  *files.Service
	Admin    *admin.Service
	Theme    *theme.Service

	closers []io.Closer
	unwatch []func()
}

// Option adjusts Init.
type Option func(*initOptions)

type initOptions struct {
	logger  *zap.Logger
	console bool
}

// WithLogger skips building the file logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *initOptions) { o.logger = l }
}

// WithConsole mirrors warnings to stderr.
func WithConsole() Option {
	return func(o *initOptions) { o.console = true }
}

// Init builds the controllers, restores the persisted session and loads the theme.
// A rejected persisted token is logged and cleared; Init still succeeds.
func Init(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Notifier: notify.New()}
	if o.logger != nil {
		a.Logger = o.logger
	} else {
		l, err := logger.New(logger.Options{
			FilePath: cfg.BasicConfig.LogFile,
			Debug:    cfg.BasicConfig.Debug,
			Console:  o.console,
		})
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.Logger = l
	}

	port, err := a.openPort()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Port = port

	a.Backend = backend.NewClient(cfg.BasicConfig.BackendURL, cfg.Timeout(), a.Port, a.Logger)
	a.Files = collection.NewStore(a.Backend, a.Notifier, a.Logger)
	a.Session = session.NewService(a.Backend, a.Port, a.Notifier, a.Logger)
	a.Upload = upload.NewService(a.Backend, a.Files, a.Notifier, a.Logger)
	a.Analysis = analysis.NewService(a.Backend, a.Files, a.Notifier, a.Logger)
	a.Rename = rename.NewService(a.Backend, a.Files, a.Notifier, a.Logger)
	a.Chat = chat.NewService(a.Backend, a.Files, a.Notifier, a.Logger)
	a.FileOps = files.NewService(a.Backend, a.Files, a.Notifier, a.Logger)
	a.Admin = admin.NewService(a.Backend, a.Session, a.Notifier, a.Logger, cfg.Admin.PageSize)
	a.Theme = theme.NewService(a.Port, a.Logger)

	a.unwatch = append(a.unwatch,
		a.Files.OnSelectionChange(func(_, next int64) {
			a.Chat.Reset(next)
			a.Rename.Reset()
		}),
		a.Session.OnUserChange(func(prev, next int64) {
			a.Logger.Debug("session user changed", zap.Int64("prev", prev), zap.Int64("next", next))
			a.Files.Reset()
			a.Chat.Reset(0)
			a.Rename.Reset()
			a.Analysis.Reset()
		}),
	)

	if err := a.Theme.Load(ctx); err != nil {
		a.Logger.Warn("load theme", zap.Error(err))
	}
	if err := a.Session.Restore(ctx); err != nil {
		a.Logger.Info("session not restored", zap.Error(err))
	}
	return a, nil
}

func (a *App) openPort() (storage.Port, error) {
	cfg := a.Config
	var port storage.Port
	switch driver := cfg.Persistence.Driver; driver {
	case "memory":
		port = storage.NewMemoryStore()
	case "redis":
		client, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		a.closers = append(a.closers, client)
		port = client
	case "sqlite", "sqlite3", "mysql":
		if driver == "sqlite" {
			driver = "sqlite3"
		}
		db, err := storage.Open(driver, cfg)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(db, driver); err != nil {
			db.Close()
			return nil, err
		}
		store, err := storage.NewSQLStore(db, driver)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.closers = append(a.closers, store)
		port = store
	default:
		return nil, fmt.Errorf("unsupported persistence driver: %s", driver)
	}

	key := os.Getenv(SealKeyEnv)
	if key == "" {
		key = cfg.Persistence.SealKey
	}
	if key == "" {
		return port, nil
	}
	sealed, err := storage.NewSealed(port, key)
	if err != nil {
		return nil, fmt.Errorf("init sealed storage: %w", err)
	}
	a.Logger.Debug("persistence sealed", zap.String("driver", cfg.Persistence.Driver))
	return sealed, nil
}

// Close releases the persistence port and flushes the logger.
func (a *App) Close() error {
	for _, stop := range a.unwatch {
		stop()
	}
	a.unwatch = nil
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
