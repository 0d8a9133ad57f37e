// Package progress implements job progress publication: a key-value store
// with per-key TTL, and a Tracker that writes complete progress snapshots
// for a polling reader.
//
// Two Store implementations are provided:
//   - RedisStore, the production store, shares its Redis instance with the
//     task queue. Keys expire server-side.
//   - MemoryStore, a mutex-guarded map with lazy expiration, used by tests
//     and by single-binary runs without Redis.
//
// Every write is a full snapshot; there is no read-modify-write anywhere in
// this package, so concurrent readers only ever observe complete states.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a minimal TTL'd key-value store for serialized snapshots.
type Store interface {
	// Set stores value under key and (re)arms its expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value for key, or (nil, nil) when the key is absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store with lazy TTL eviction.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Set stores value under key with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.mu.Lock()
	s.items[key] = memoryItem{value: cp, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Get returns the stored value, or (nil, nil) when absent or expired.
// Expired entries are removed on access.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.now().After(it.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed it.
		if cur, ok := s.items[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, nil
	}
	return it.value, nil
}

// Delete removes key if present.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// RedisStore is a Store backed by a Redis string per key, expiring
// server-side via SET with TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Set stores value under key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value for key, mapping redis.Nil to (nil, nil).
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
