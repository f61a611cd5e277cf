package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers client-supplied idempotency keys
type IdempotencyStore interface {
	// MarkProcessed claims a key with a TTL.
	// Returns true if the key was newly claimed, false if it was already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been claimed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release forgets a claimed key so a failed request can be retried
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
