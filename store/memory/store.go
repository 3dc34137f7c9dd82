// Package memory is a fully in-memory store implementation. Safe for
// concurrent access. Intended for unit testing and development; the
// mirror side is seeded by hand instead of by the CRM copier.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/lock"
	"github.com/xraph/rostersync/mirror"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ lock.Store   = (*Store)(nil)
	_ mirror.Store = (*Store)(nil)
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	locks        map[string]*lock.Lock
	programs     map[mirror.ProgramRef]*mirror.Program
	participants map[mirror.ProgramRef][]*mirror.Participant
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		locks:        make(map[string]*lock.Lock),
		programs:     make(map[mirror.ProgramRef]*mirror.Program),
		participants: make(map[mirror.ProgramRef][]*mirror.Participant),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Lock Store
// ──────────────────────────────────────────────────

// AcquireLock atomically takes the lock for key if it is absent or
// expired.
func (m *Store) AcquireLock(_ context.Context, key string, token lock.Token, ttl time.Duration) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.locks[key]; ok && !existing.Expired(now) {
		return false, existing.Holder.String(), nil
	}

	m.locks[key] = &lock.Lock{
		Key:        key,
		Holder:     token,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	return true, "", nil
}

// ReleaseLock removes the lock only if the stored token matches.
func (m *Store) ReleaseLock(_ context.Context, key string, token lock.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[key]
	if !ok || existing.Holder != token {
		return nil
	}
	delete(m.locks, key)
	return nil
}

// RefreshLock extends the TTL of a lock the token still holds.
func (m *Store) RefreshLock(_ context.Context, key string, token lock.Token, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := m.locks[key]
	if !ok || existing.Holder != token || existing.Expired(now) {
		return false, nil
	}
	existing.ExpiresAt = now.Add(ttl)
	return true, nil
}

// GetLock returns the current lock for key, or nil when absent.
func (m *Store) GetLock(_ context.Context, key string) (*lock.Lock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	existing, ok := m.locks[key]
	if !ok {
		return nil, nil
	}
	cp := *existing
	return &cp, nil
}

// ──────────────────────────────────────────────────
// Mirror Store
// ──────────────────────────────────────────────────

// GetProgram retrieves a program by its CRM reference.
func (m *Store) GetProgram(_ context.Context, ref mirror.ProgramRef) (*mirror.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.programs[ref]
	if !ok {
		return nil, rostersync.ErrProgramNotFound
	}
	cp := *p
	return &cp, nil
}

// ListPrograms returns all programs with the given status. An empty
// status returns every program.
func (m *Store) ListPrograms(_ context.Context, status mirror.ProgramStatus) ([]*mirror.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*mirror.Program, 0, len(m.programs))
	for _, p := range m.programs {
		if status != "" && p.Status != status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ListParticipants returns all participants of a program.
func (m *Store) ListParticipants(_ context.Context, ref mirror.ProgramRef) ([]*mirror.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.participants[ref]
	out := make([]*mirror.Participant, 0, len(src))
	for _, p := range src {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Seeding — the mirror has its writer elsewhere in production; tests
// and development seed it directly.
// ──────────────────────────────────────────────────

// PutProgram inserts or replaces a mirrored program.
func (m *Store) PutProgram(p *mirror.Program) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.programs[p.Ref] = &cp
}

// PutParticipants replaces the participant roster of a program.
func (m *Store) PutParticipants(ref mirror.ProgramRef, parts []*mirror.Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cps := make([]*mirror.Participant, len(parts))
	for i, p := range parts {
		cp := *p
		cps[i] = &cp
	}
	m.participants[ref] = cps
}
