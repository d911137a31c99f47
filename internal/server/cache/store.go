package cache

import (
	"context"
	"time"
)

// Store is a string-keyed, string-valued, TTL-bearing key/value store.
// No multi-key atomicity is assumed; callers that need consistency across
// several entries must handle partial failures themselves.
type Store interface {
	// SetString writes value under key with the given TTL, overwriting any
	// previous value and its expiry.
	SetString(ctx context.Context, key, value string, ttl time.Duration) error

	// GetString returns the value stored under key, or common.ErrorNotFound
	// when the key is absent or expired.
	GetString(ctx context.Context, key string) (string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
