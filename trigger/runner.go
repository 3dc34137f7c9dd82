// Package trigger turns requests into sync runs. The Runner wraps one
// run in the program's distributed lock and dispatches its outcome
// report; the Scheduler fires a recurring fleet-wide pass over all
// current programs.
package trigger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/rostersync/ext"
	"github.com/xraph/rostersync/lock"
	"github.com/xraph/rostersync/notify"
	"github.com/xraph/rostersync/syncer"
	"github.com/xraph/rostersync/worker"
)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the structured logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithLockTTL sets the per-program lock TTL. It must exceed the longest
// expected run; an expired lock under a live run permits a bounded
// duplicate, never corruption.
func WithLockTTL(d time.Duration) RunnerOption {
	return func(r *Runner) { r.lockTTL = d }
}

// WithNotifier sets the outcome report dispatcher.
func WithNotifier(n notify.Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// Runner executes sync runs under per-program mutual exclusion. It is
// the single entry point for both trigger paths; recurring and
// on-demand requests contend for the same lock key.
type Runner struct {
	locks      *lock.Manager
	executor   *worker.Executor
	extensions *ext.Registry
	notifier   notify.Notifier
	lockTTL    time.Duration
	logger     *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(locks *lock.Manager, executor *worker.Executor, extensions *ext.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		locks:      locks,
		executor:   executor,
		extensions: extensions,
		notifier:   notify.Noop{},
		lockTTL:    15 * time.Minute,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunNow executes one run for a program, or reports contention.
// The lock key derives from the program alone, so concurrent requests
// with different notify addresses or force flags still exclude each
// other. On contention the error matches rostersync.ErrLockHeld and no
// sync work happens. The outcome report goes out exactly once, after
// the lock is released, for every run that executed.
func (r *Runner) RunNow(ctx context.Context, run *syncer.Run) (*syncer.Outcome, error) {
	key := lock.KeyForProgram(string(run.Program))

	token, err := r.locks.TryAcquire(ctx, key, r.lockTTL)
	if err != nil {
		var conflict *lock.Conflict
		if errors.As(err, &conflict) {
			r.extensions.EmitLockConflict(ctx, run, conflict.Holder)
			r.logger.Info("sync already in progress, skipping",
				slog.String("run_id", run.ID.String()),
				slog.String("program", string(run.Program)),
			)
		}
		return nil, err
	}

	out, execErr := r.executor.Execute(ctx, run)

	// Release before notifying: the report is advisory and must not
	// extend the exclusion window.
	r.locks.Release(ctx, key, token)

	r.dispatchReport(ctx, run, out)
	return out, execErr
}

// dispatchReport sends the outcome notification for a finished run.
func (r *Runner) dispatchReport(ctx context.Context, run *syncer.Run, out *syncer.Outcome) {
	if run.NotifyAddress == "" || out == nil {
		return
	}
	if err := r.notifier.Notify(ctx, run, out); err != nil {
		r.logger.Warn("outcome report delivery failed",
			slog.String("run_id", run.ID.String()),
			slog.String("address", run.NotifyAddress),
			slog.String("error", err.Error()),
		)
		return
	}
	r.extensions.EmitNotificationSent(ctx, run, run.NotifyAddress)
}
