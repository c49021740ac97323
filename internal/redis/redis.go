package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BhargavCodes/ai-vault/internal/config"
	"github.com/BhargavCodes/ai-vault/internal/storage"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis and implements storage.Port under a key prefix.
type Client struct {
	inner  *redis.Client
	prefix string
}

var errNotInitialized = errors.New("redis client not initialized")

// NewRedisClient creates the redis client from app config.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{inner: client, prefix: cfg.Redis.KeyPrefix}, nil
}

func (c *Client) key(k string) string {
	return c.prefix + k
}

// Get fetches the key, mapping a miss to storage.ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.inner == nil {
		return "", errNotInitialized
	}
	v, err := c.inner.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// Set stores the key without expiry.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Set(ctx, c.key(key), value, 0).Err()
}

func (c *Client) Remove(ctx context.Context, key string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Del(ctx, c.key(key)).Err()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
