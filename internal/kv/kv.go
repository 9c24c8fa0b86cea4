// Package kv provides the durable namespaced key/value port used by the
// persisted collections, together with its backends.
//
// A namespace holds a single string value that is always replaced as a whole.
// Every backend makes Set all-or-nothing: a reader observes either the old
// value or the new one, never a partial write.
package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/rewired-gh/mandinetra/internal/config"
)

// Store is a namespaced string key/value store.
type Store interface {
	// Get returns the value for namespace and whether it exists.
	Get(ctx context.Context, namespace string) (string, bool, error)
	// Set replaces the value for namespace.
	Set(ctx context.Context, namespace, value string) error
}

// Backend is a Store that owns resources.
type Backend interface {
	Store
	Close() error
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case "file":
		return NewFileStore(cfg.DataDir, 0o600, 0o755)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.DBPath)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.KeyPrefix)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
}

// MemoryStore is an in-process Store, used by tests and the memory backend.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, namespace string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[namespace]
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, namespace, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[namespace] = value
	return nil
}

// Close implements Backend.
func (m *MemoryStore) Close() error {
	return nil
}
