package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the key is absent or already expired.
var ErrNotFound = errors.New("kv: key not found")

var errNonPositiveTTL = errors.New("kv: ttl must be positive")

// Store is the narrow key-value surface the auth core needs: TTL-expiring
// writes, reads, plain deletes, and one atomic check-and-delete used by the
// refresh rotate-on-use protocol.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL writes key with a relative expiry. TTL must be positive.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// CheckAndDelete atomically removes key and returns its value, or
	// ErrNotFound if the key did not exist. Exactly one of N concurrent
	// callers for the same key observes the value.
	CheckAndDelete(ctx context.Context, key string) ([]byte, error)
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
