package store

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/rostersync/lock"
	"github.com/xraph/rostersync/mirror"
)

// LockBackend is a backend that serves locks plus lifecycle. The Redis
// store implements this without carrying the mirror.
type LockBackend interface {
	lock.Store

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time interface check.
var _ Store = (*Split)(nil)

// Split composes a dedicated lock backend with a primary data store into
// one aggregate Store: lock traffic goes to the lock backend, mirror
// reads to the data store, and lifecycle operations to both.
type Split struct {
	locks LockBackend
	data  Store
}

// NewSplit creates a Split store.
func NewSplit(locks LockBackend, data Store) *Split {
	return &Split{locks: locks, data: data}
}

func (s *Split) AcquireLock(ctx context.Context, key string, token lock.Token, ttl time.Duration) (bool, string, error) {
	return s.locks.AcquireLock(ctx, key, token, ttl)
}

func (s *Split) ReleaseLock(ctx context.Context, key string, token lock.Token) error {
	return s.locks.ReleaseLock(ctx, key, token)
}

func (s *Split) RefreshLock(ctx context.Context, key string, token lock.Token, ttl time.Duration) (bool, error) {
	return s.locks.RefreshLock(ctx, key, token, ttl)
}

func (s *Split) GetLock(ctx context.Context, key string) (*lock.Lock, error) {
	return s.locks.GetLock(ctx, key)
}

func (s *Split) GetProgram(ctx context.Context, ref mirror.ProgramRef) (*mirror.Program, error) {
	return s.data.GetProgram(ctx, ref)
}

func (s *Split) ListPrograms(ctx context.Context, status mirror.ProgramStatus) ([]*mirror.Program, error) {
	return s.data.ListPrograms(ctx, status)
}

func (s *Split) ListParticipants(ctx context.Context, ref mirror.ProgramRef) ([]*mirror.Participant, error) {
	return s.data.ListParticipants(ctx, ref)
}

// Migrate migrates both backends.
func (s *Split) Migrate(ctx context.Context) error {
	if err := s.locks.Migrate(ctx); err != nil {
		return err
	}
	return s.data.Migrate(ctx)
}

// Ping checks both backends.
func (s *Split) Ping(ctx context.Context) error {
	return errors.Join(s.locks.Ping(ctx), s.data.Ping(ctx))
}

// Close closes both backends.
func (s *Split) Close() error {
	return errors.Join(s.locks.Close(), s.data.Close())
}
