package cache

import (
	"context"
	"time"
)

// Store is the key-value cache consumed across the application. Reads after
// expiry report absent, never stale data, and a missing key is not an error.
// Last write wins; callers that need per-key serialisation must provide it
// themselves (the sweep dispatcher writes each organization's key from a
// single goroutine).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes exactly the entries whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
