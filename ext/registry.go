package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/rostersync/syncer"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type runStartedEntry struct {
	name string
	hook RunStarted
}

type runCompletedEntry struct {
	name string
	hook RunCompleted
}

type runFailedEntry struct {
	name string
	hook RunFailed
}

type participantFailedEntry struct {
	name string
	hook ParticipantFailed
}

type lockConflictEntry struct {
	name string
	hook LockConflict
}

type notificationSentEntry struct {
	name string
	hook NotificationSent
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	runStarted        []runStartedEntry
	runCompleted      []runCompletedEntry
	runFailed         []runFailedEntry
	participantFailed []participantFailedEntry
	lockConflict      []lockConflictEntry
	notificationSent  []notificationSentEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(RunStarted); ok {
		r.runStarted = append(r.runStarted, runStartedEntry{name, h})
	}
	if h, ok := e.(RunCompleted); ok {
		r.runCompleted = append(r.runCompleted, runCompletedEntry{name, h})
	}
	if h, ok := e.(RunFailed); ok {
		r.runFailed = append(r.runFailed, runFailedEntry{name, h})
	}
	if h, ok := e.(ParticipantFailed); ok {
		r.participantFailed = append(r.participantFailed, participantFailedEntry{name, h})
	}
	if h, ok := e.(LockConflict); ok {
		r.lockConflict = append(r.lockConflict, lockConflictEntry{name, h})
	}
	if h, ok := e.(NotificationSent); ok {
		r.notificationSent = append(r.notificationSent, notificationSentEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitRunStarted notifies all extensions that implement RunStarted.
func (r *Registry) EmitRunStarted(ctx context.Context, run *syncer.Run) {
	for _, e := range r.runStarted {
		if err := e.hook.OnRunStarted(ctx, run); err != nil {
			r.logHookError("OnRunStarted", e.name, err)
		}
	}
}

// EmitRunCompleted notifies all extensions that implement RunCompleted.
func (r *Registry) EmitRunCompleted(ctx context.Context, run *syncer.Run, out *syncer.Outcome, elapsed time.Duration) {
	for _, e := range r.runCompleted {
		if err := e.hook.OnRunCompleted(ctx, run, out, elapsed); err != nil {
			r.logHookError("OnRunCompleted", e.name, err)
		}
	}
}

// EmitRunFailed notifies all extensions that implement RunFailed.
func (r *Registry) EmitRunFailed(ctx context.Context, run *syncer.Run, runErr error) {
	for _, e := range r.runFailed {
		if err := e.hook.OnRunFailed(ctx, run, runErr); err != nil {
			r.logHookError("OnRunFailed", e.name, err)
		}
	}
}

// EmitParticipantFailed notifies all extensions that implement
// ParticipantFailed. It also satisfies syncer.Emitter.
func (r *Registry) EmitParticipantFailed(ctx context.Context, run *syncer.Run, f syncer.Failure) {
	for _, e := range r.participantFailed {
		if err := e.hook.OnParticipantFailed(ctx, run, f); err != nil {
			r.logHookError("OnParticipantFailed", e.name, err)
		}
	}
}

// EmitLockConflict notifies all extensions that implement LockConflict.
func (r *Registry) EmitLockConflict(ctx context.Context, run *syncer.Run, holder string) {
	for _, e := range r.lockConflict {
		if err := e.hook.OnLockConflict(ctx, run, holder); err != nil {
			r.logHookError("OnLockConflict", e.name, err)
		}
	}
}

// EmitNotificationSent notifies all extensions that implement
// NotificationSent.
func (r *Registry) EmitNotificationSent(ctx context.Context, run *syncer.Run, address string) {
	for _, e := range r.notificationSent {
		if err := e.hook.OnNotificationSent(ctx, run, address); err != nil {
			r.logHookError("OnNotificationSent", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a hook failure. Extension errors never propagate to
// the caller; a broken extension must not break a sync run.
func (r *Registry) logHookError(hook, extension string, err error) {
	r.logger.Error("extension hook failed",
		slog.String("hook", hook),
		slog.String("extension", extension),
		slog.String("error", err.Error()),
	)
}
