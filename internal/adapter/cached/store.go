// Package cached layers a ristretto in-process cache over a storage backend.
//
// Reads are served from the cache when possible; writes and deletes go
// through to the backend and update the cache. Listing always hits the
// backend, since the cache has no prefix index.
package cached

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/SandForge/internal/port/storage"
)

// Store is a read-through cache wrapper around another storage port.
type Store struct {
	inner storage.Port
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

// New wraps inner with an L1 cache of at most maxSizeBytes of values.
func New(inner storage.Port, maxSizeBytes int64, ttl time.Duration) (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxSizeBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxSizeBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto init: %w", err)
	}
	return &Store{inner: inner, cache: cache, ttl: ttl}, nil
}

// Get returns the cached value if present, otherwise reads through.
// Absent keys are not negatively cached.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	v, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if v != nil {
		s.cache.SetWithTTL(key, v, int64(len(v)), s.ttl)
	}
	return v, nil
}

// Set writes through to the backend and refreshes the cache.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.inner.Set(ctx, key, value); err != nil {
		return err
	}
	s.cache.SetWithTTL(key, value, int64(len(value)), s.ttl)
	return nil
}

// Delete removes the key from the backend and the cache.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.inner.Delete(ctx, key); err != nil {
		return err
	}
	s.cache.Del(key)
	return nil
}

// ListKeys delegates to the backend.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.ListKeys(ctx, prefix)
}

// Exists checks the cache first, then the backend.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if _, ok := s.cache.Get(key); ok {
		return true, nil
	}
	return s.inner.Exists(ctx, key)
}

// BackendName identifies the wrapped backend.
func (s *Store) BackendName() string {
	return s.inner.BackendName() + "+cache"
}

// Close releases cache resources.
func (s *Store) Close() {
	s.cache.Close()
}
