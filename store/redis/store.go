// Package redis implements the lock store on Redis. SET NX with a TTL
// gives the atomic "set if not exists" the lock contract reduces to, and
// key expiry implements TTL takeover without a reaper.
//
// Redis carries locks only. The mirrored dataset stays in Postgres (or
// memory in tests); split deployments pair this store with a relational
// mirror store.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/rostersync/lock"
)

// Compile-time interface check.
var _ lock.Store = (*Store)(nil)

// releaseScript deletes the lock key only when the stored token matches.
// Scripted so the compare and the delete are one atomic step; a plain
// GET then DEL would let a zombie holder release a newer lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only when the stored token matches.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements lock.Store backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed lock store. The caller owns the Redis
// client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// AcquireLock takes the lock for key if absent. Expired locks never
// appear here: Redis evicts the key at TTL, so absence is the only
// takeover condition.
func (s *Store) AcquireLock(ctx context.Context, key string, token lock.Token, ttl time.Duration) (bool, string, error) {
	k := lockKey(key)

	ok, err := s.client.SetNX(ctx, k, token.String(), ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("rostersync/redis: acquire lock setnx: %w", err)
	}
	if ok {
		return true, "", nil
	}

	holder, err := s.client.Get(ctx, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET; report contention with an
			// unknown holder and let the caller's next attempt win.
			return false, "", nil
		}
		return false, "", fmt.Errorf("rostersync/redis: acquire lock get holder: %w", err)
	}
	return false, holder, nil
}

// ReleaseLock removes the lock only if the stored token matches.
func (s *Store) ReleaseLock(ctx context.Context, key string, token lock.Token) error {
	err := releaseScript.Run(ctx, s.client, []string{lockKey(key)}, token.String()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("rostersync/redis: release lock: %w", err)
	}
	return nil
}

// RefreshLock extends the TTL of a lock the token still holds.
func (s *Store) RefreshLock(ctx context.Context, key string, token lock.Token, ttl time.Duration) (bool, error) {
	res, err := refreshScript.Run(ctx, s.client, []string{lockKey(key)}, token.String(), ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("rostersync/redis: refresh lock: %w", err)
	}
	return res == 1, nil
}

// GetLock returns the current lock for key, or nil when absent. The
// acquisition time is not stored in Redis; AcquiredAt is approximated
// from the remaining TTL and is informational only.
func (s *Store) GetLock(ctx context.Context, key string) (*lock.Lock, error) {
	k := lockKey(key)

	holder, err := s.client.Get(ctx, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("rostersync/redis: get lock: %w", err)
	}

	tok, err := lock.ParseToken(holder)
	if err != nil {
		return nil, fmt.Errorf("rostersync/redis: parse lock holder %q: %w", holder, err)
	}

	l := &lock.Lock{Key: key, Holder: tok}
	if ttl, ttlErr := s.client.PTTL(ctx, k).Result(); ttlErr == nil && ttl > 0 {
		l.ExpiresAt = time.Now().UTC().Add(ttl)
	}
	return l, nil
}
