package storage

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is a process-local Port. Values never expire.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	if v, found := m.cache.Get(key); found {
		return v.(string), nil
	}
	return "", ErrNotFound
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}
