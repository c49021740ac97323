package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents runtime configuration for the vault client.
type Config struct {
	BasicConfig BasicConfig               `mapstructure:"basic_config"`
	Persistence PersistenceConfig         `mapstructure:"persistence"`
	Databases   map[string]DatabaseConfig `mapstructure:"databases"`
	Redis       RedisConfig               `mapstructure:"redis"`
	Stub        StubConfig                `mapstructure:"stub"`
	Admin       AdminConfig               `mapstructure:"admin"`
}

type BasicConfig struct {
	BackendURL     string `mapstructure:"backend_url"`
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds
	StateDir       string `mapstructure:"state_dir"`
	LogFile        string `mapstructure:"log_file"`
	Debug          bool   `mapstructure:"debug"`
}

// PersistenceConfig selects the backend of the durable key-value port.
type PersistenceConfig struct {
	Driver  string `mapstructure:"driver"` // sqlite3 | mysql | redis | memory
	SealKey string `mapstructure:"seal_key"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	Params   string `mapstructure:"params"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StubConfig drives the in-process backend used by `vault stub` and tests.
type StubConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
	TokenTTL  int    `mapstructure:"token_ttl"` // minutes
}

type AdminConfig struct {
	PageSize int `mapstructure:"page_size"`
}

const (
	envPrefix         = "VAULT"
	defaultConfigFile = "config.json"
	defaultStateDir   = ".aivault"
)

// Load reads configuration from the provided path (defaults to config.json when it
// exists) and applies VAULT_* environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional; the process environment wins either way.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if _, err := os.Stat(absPath); err == nil {
		v.SetConfigFile(absPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(filepath.Dir(absPath)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.backend_url", "http://localhost:5000")
	v.SetDefault("basic_config.request_timeout", 60)
	v.SetDefault("basic_config.state_dir", "")
	v.SetDefault("basic_config.log_file", "")
	v.SetDefault("basic_config.debug", false)
	v.SetDefault("persistence.driver", "sqlite3")
	v.SetDefault("persistence.seal_key", "")
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "aivault:")
	v.SetDefault("stub.address", ":5000")
	v.SetDefault("stub.jwt_secret", "supersecretkey")
	v.SetDefault("stub.token_ttl", 24*60)
	v.SetDefault("admin.page_size", 100)
}

func (c *Config) normalize(baseDir string) error {
	c.BasicConfig.BackendURL = strings.TrimRight(strings.TrimSpace(c.BasicConfig.BackendURL), "/")
	if c.BasicConfig.BackendURL == "" {
		return errors.New("basic_config.backend_url must be configured")
	}
	if c.BasicConfig.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.BasicConfig.StateDir = filepath.Join(home, defaultStateDir)
	}
	if c.BasicConfig.LogFile == "" {
		c.BasicConfig.LogFile = filepath.Join(c.BasicConfig.StateDir, "logs", "vault.log")
	}

	c.Persistence.Driver = strings.ToLower(strings.TrimSpace(c.Persistence.Driver))
	switch c.Persistence.Driver {
	case "sqlite", "sqlite3", "mysql", "redis", "memory":
	default:
		return fmt.Errorf("unsupported persistence driver: %s", c.Persistence.Driver)
	}

	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	sqliteCfg := c.Databases["sqlite3"]
	if sqliteCfg.DSN == "" {
		sqliteCfg.DSN = filepath.Join(c.BasicConfig.StateDir, "state.db")
	} else if sqliteCfg.DSN != ":memory:" && !filepath.IsAbs(sqliteCfg.DSN) {
		sqliteCfg.DSN = filepath.Join(baseDir, sqliteCfg.DSN)
	}
	c.Databases["sqlite3"] = sqliteCfg

	if c.Admin.PageSize <= 0 {
		c.Admin.PageSize = 100
	}
	return nil
}

// Timeout returns the HTTP timeout for backend requests.
func (c *Config) Timeout() time.Duration {
	if c.BasicConfig.RequestTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.BasicConfig.RequestTimeout) * time.Second
}

// StubTokenTTL returns the lifetime of tokens minted by the stub backend.
func (c *Config) StubTokenTTL() time.Duration {
	if c.Stub.TokenTTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Stub.TokenTTL) * time.Minute
}
