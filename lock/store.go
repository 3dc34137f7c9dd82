package lock

import (
	"context"
	"time"
)

// Store defines the persistence contract for locks. The whole subsystem's
// correctness reduces to AcquireLock being a single atomic
// "set if not exists or expired" operation in the backing store.
type Store interface {
	// AcquireLock atomically creates or takes over the lock for key if it
	// is absent or expired, recording token as the holder. It returns
	// (true, "", nil) on success, or (false, holder, nil) when a live
	// lock exists, where holder is the current holder token string.
	// It must not block on contention.
	AcquireLock(ctx context.Context, key string, token Token, ttl time.Duration) (bool, string, error)

	// ReleaseLock removes the lock only if the stored token matches.
	// A mismatched or absent token is a no-op, not an error.
	ReleaseLock(ctx context.Context, key string, token Token) error

	// RefreshLock extends the TTL of a lock the token still holds.
	// Returns false when the token no longer holds the lock (expired and
	// re-acquired, or released).
	RefreshLock(ctx context.Context, key string, token Token, ttl time.Duration) (bool, error)

	// GetLock returns the current lock for key, or nil when absent.
	// Intended for telemetry and tests, not for acquisition decisions.
	GetLock(ctx context.Context, key string) (*Lock, error)
}
