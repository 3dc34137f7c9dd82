package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/id"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger for the manager.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// Manager acquires and releases named TTL locks through a Store. It mints
// a fresh holder token per acquisition and never blocks on contention.
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TryAcquire attempts to take the lock for key. On success it returns the
// holder token. On contention it returns a *Conflict error wrapping
// rostersync.ErrLockHeld; check with errors.Is. It never waits.
func (m *Manager) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Token, error) {
	token := id.NewTokenID()

	acquired, holder, err := m.store.AcquireLock(ctx, key, token, ttl)
	if err != nil {
		return id.Nil, fmt.Errorf("rostersync/lock: acquire %q: %w", key, err)
	}
	if !acquired {
		m.logger.Debug("lock conflict",
			slog.String("key", key),
			slog.String("holder", holder),
		)
		return id.Nil, &Conflict{Key: key, Holder: holder}
	}

	m.logger.Debug("lock acquired",
		slog.String("key", key),
		slog.String("token", token.String()),
		slog.Duration("ttl", ttl),
	)
	return token, nil
}

// Release removes the lock if token still holds it. A stale token is a
// no-op; releasing is always safe to call from a defer.
func (m *Manager) Release(ctx context.Context, key string, token Token) {
	if err := m.store.ReleaseLock(ctx, key, token); err != nil {
		// The lock self-heals at TTL expiry, so a failed release is
		// worth a warning, not an error path.
		m.logger.Warn("lock release failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Refresh extends the TTL for long-running work. Returns false when the
// token no longer holds the lock.
func (m *Manager) Refresh(ctx context.Context, key string, token Token, ttl time.Duration) (bool, error) {
	ok, err := m.store.RefreshLock(ctx, key, token, ttl)
	if err != nil {
		return false, fmt.Errorf("rostersync/lock: refresh %q: %w", key, err)
	}
	return ok, nil
}

// Conflict reports that a live lock already exists for a key. It unwraps
// to rostersync.ErrLockHeld so callers can match with errors.Is without
// caring about the holder detail.
type Conflict struct {
	// Key is the contended lock key.
	Key string
	// Holder is the current holder's token string, for telemetry.
	Holder string
}

// Error implements the error interface.
func (c *Conflict) Error() string {
	return fmt.Sprintf("rostersync/lock: %q held by %s", c.Key, c.Holder)
}

// Unwrap returns rostersync.ErrLockHeld.
func (c *Conflict) Unwrap() error { return rostersync.ErrLockHeld }
