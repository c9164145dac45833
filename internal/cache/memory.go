package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const memoryJanitorInterval = time.Minute

// MemoryStore implements the cache Store interface in process memory. Used by
// tests and by deployments that do not want cache rows in the database.
type MemoryStore struct {
	inner *gocache.Cache
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		inner: gocache.New(gocache.NoExpiration, memoryJanitorInterval),
	}
}

// Get retrieves a value by key. Expired entries report absent.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.inner == nil {
		return nil, false, errors.New("cache: memory store not initialised")
	}

	raw, found := s.inner.Get(key)
	if !found {
		return nil, false, nil
	}

	value, ok := raw.([]byte)
	if !ok {
		return nil, false, errors.New("cache: unexpected value type")
	}
	return value, true, nil
}

// Set stores a value under key with the supplied ttl. A non-positive ttl means
// no expiry.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.inner == nil {
		return errors.New("cache: memory store not initialised")
	}

	expiry := time.Duration(gocache.NoExpiration)
	if ttl > 0 {
		expiry = ttl
	}
	s.inner.Set(key, value, expiry)
	return nil
}

// Delete removes keys from the store. Missing keys are ignored.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	if s == nil || s.inner == nil {
		return errors.New("cache: memory store not initialised")
	}

	for _, key := range keys {
		s.inner.Delete(key)
	}
	return nil
}

// DeletePrefix removes every entry whose key starts with the supplied prefix.
func (s *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	if s == nil || s.inner == nil {
		return errors.New("cache: memory store not initialised")
	}
	if prefix == "" {
		return errors.New("cache: prefix is required")
	}

	for key := range s.inner.Items() {
		if strings.HasPrefix(key, prefix) {
			s.inner.Delete(key)
		}
	}
	return nil
}
