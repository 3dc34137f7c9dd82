package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/rostersync/lock"
)

// AcquireLock atomically creates or takes over the lock for key. The
// ON CONFLICT clause only fires its UPDATE when the existing row has
// expired, so a single statement decides the race for all contenders.
func (s *Store) AcquireLock(ctx context.Context, key string, token lock.Token, ttl time.Duration) (bool, string, error) {
	now := time.Now().UTC()
	expires := now.Add(ttl)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO rostersync_locks (key, holder, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			holder = EXCLUDED.holder,
			acquired_at = EXCLUDED.acquired_at,
			expires_at = EXCLUDED.expires_at
		WHERE rostersync_locks.expires_at <= NOW()`,
		key, token.String(), now, expires,
	)
	if err != nil {
		return false, "", fmt.Errorf("rostersync/postgres: acquire lock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, "", nil
	}

	// Lost the race; report who holds it.
	var holder string
	err = s.pool.QueryRow(ctx,
		`SELECT holder FROM rostersync_locks WHERE key = $1 AND expires_at > NOW()`,
		key,
	).Scan(&holder)
	if err != nil {
		if isNoRows(err) {
			// Released or expired between statements.
			return false, "", nil
		}
		return false, "", fmt.Errorf("rostersync/postgres: get lock holder: %w", err)
	}
	return false, holder, nil
}

// ReleaseLock removes the lock only if the stored token matches.
func (s *Store) ReleaseLock(ctx context.Context, key string, token lock.Token) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM rostersync_locks WHERE key = $1 AND holder = $2`,
		key, token.String(),
	)
	if err != nil {
		return fmt.Errorf("rostersync/postgres: release lock: %w", err)
	}
	return nil
}

// RefreshLock extends the TTL of a lock the token still holds.
func (s *Store) RefreshLock(ctx context.Context, key string, token lock.Token, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rostersync_locks
		SET expires_at = $3
		WHERE key = $1 AND holder = $2 AND expires_at > NOW()`,
		key, token.String(), time.Now().UTC().Add(ttl),
	)
	if err != nil {
		return false, fmt.Errorf("rostersync/postgres: refresh lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetLock returns the current lock for key, or nil when absent.
func (s *Store) GetLock(ctx context.Context, key string) (*lock.Lock, error) {
	var (
		holder string
		l      lock.Lock
	)
	err := s.pool.QueryRow(ctx,
		`SELECT key, holder, acquired_at, expires_at FROM rostersync_locks WHERE key = $1`,
		key,
	).Scan(&l.Key, &holder, &l.AcquiredAt, &l.ExpiresAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("rostersync/postgres: get lock: %w", err)
	}

	tok, parseErr := lock.ParseToken(holder)
	if parseErr != nil {
		return nil, fmt.Errorf("rostersync/postgres: parse lock holder %q: %w", holder, parseErr)
	}
	l.Holder = tok
	return &l, nil
}
