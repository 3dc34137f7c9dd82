// Package lock provides named, TTL-bounded mutual exclusion backed by a
// shared store with atomic conditional writes. It is the only concurrency
// primitive the sync subsystem needs: at most one unexpired lock exists
// per key, enforced by the store's compare-and-set.
//
// Acquisition is non-blocking. A conflict is a normal outcome, reported
// immediately as rostersync.ErrLockHeld; callers skip the run and let the
// next trigger interval self-heal. A lock left behind by a crashed runner
// becomes acquirable again once its TTL elapses.
package lock

import (
	"time"

	"github.com/xraph/rostersync/id"
)

// Token is the opaque holder token minted on each successful acquisition.
// Release and Refresh only act when the stored token matches, so a
// delayed zombie holder can never release a lock acquired by a newer
// holder after TTL expiry.
type Token = id.TokenID

// ParseToken parses a stored holder token string.
func ParseToken(s string) (Token, error) {
	return id.ParseTokenID(s)
}

// Lock is the stored state of a named lock.
type Lock struct {
	Key        string    `json:"key"`
	Holder     Token     `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lock's TTL has elapsed as of now.
func (l *Lock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// KeyForProgram derives the lock key for a program sync run. The key is a
// function of the program id alone: notify addresses, force flags, and
// every other secondary argument are excluded so that all invocations for
// the same program contend for the same lock.
func KeyForProgram(programID string) string {
	return "sync:program:" + programID
}

// FleetKey is the lock key guarding a full recurring pass over all
// current programs. Exactly one worker in the fleet runs the pass.
const FleetKey = "sync:fleet"
