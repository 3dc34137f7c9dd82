// Package ext defines the extension system for rostersync.
// Extensions are notified of lifecycle events (run started, completed,
// lock conflicts, participant failures, etc.) and can react to them —
// metrics, audit trails, alerting.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/rostersync/syncer"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// RunStarted is called when a sync run begins executing.
type RunStarted interface {
	OnRunStarted(ctx context.Context, run *syncer.Run) error
}

// RunCompleted is called after a run finishes, clean or with
// participant failures.
type RunCompleted interface {
	OnRunCompleted(ctx context.Context, run *syncer.Run, out *syncer.Outcome, elapsed time.Duration) error
}

// RunFailed is called when a run aborts fatally before participant work.
type RunFailed interface {
	OnRunFailed(ctx context.Context, run *syncer.Run, err error) error
}

// ParticipantFailed is called for each participant whose sync broke.
type ParticipantFailed interface {
	OnParticipantFailed(ctx context.Context, run *syncer.Run, f syncer.Failure) error
}

// LockConflict is called when a trigger finds the program's lock held.
type LockConflict interface {
	OnLockConflict(ctx context.Context, run *syncer.Run, holder string) error
}

// NotificationSent is called after an outcome report is dispatched.
type NotificationSent interface {
	OnNotificationSent(ctx context.Context, run *syncer.Run, address string) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
