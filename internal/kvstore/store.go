// Package kvstore is the persistent key-value store behind settings, usage
// counters and translation history.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"horse.fit/voxlate/internal/db"
)

// ErrNotFound is returned by GetItem when the key has never been set or was removed.
var ErrNotFound = errors.New("kv item not found")

// Store persists string values by key.
type Store interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// MemoryStore keeps items in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

func (s *MemoryStore) GetItem(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[normalizeKey(key)]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) SetItem(_ context.Context, key, value string) error {
	normalized := normalizeKey(key)
	if normalized == "" {
		return fmt.Errorf("kv key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[normalized] = value
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, normalizeKey(key))
	return nil
}

type itemPool interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// PostgresStore stores items in the voxlate.kv_items table.
type PostgresStore struct {
	pool itemPool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetItem(ctx context.Context, key string) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("kv store is not initialized")
	}
	value, err := s.pool.GetItem(ctx, normalizeKey(key))
	if err != nil {
		if db.IsNoRows(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *PostgresStore) SetItem(ctx context.Context, key, value string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("kv store is not initialized")
	}
	normalized := normalizeKey(key)
	if normalized == "" {
		return fmt.Errorf("kv key is required")
	}
	return s.pool.SetItem(ctx, normalized, value)
}

func (s *PostgresStore) RemoveItem(ctx context.Context, key string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("kv store is not initialized")
	}
	return s.pool.RemoveItem(ctx, normalizeKey(key))
}

func normalizeKey(raw string) string {
	return strings.TrimSpace(raw)
}
