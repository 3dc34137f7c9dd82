package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/rostersync/ext"
	"github.com/xraph/rostersync/syncer"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.RunStarted        = (*Extension)(nil)
	_ ext.RunCompleted      = (*Extension)(nil)
	_ ext.RunFailed         = (*Extension)(nil)
	_ ext.ParticipantFailed = (*Extension)(nil)
	_ ext.LockConflict      = (*Extension)(nil)
	_ ext.NotificationSent  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so this package does not import any particular
// audit system — callers inject their concrete backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event. Callers provide
// a RecorderFunc adapter that bridges it to their audit backend.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges sync lifecycle events to an audit trail backend. Each
// lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// OnRunStarted implements ext.RunStarted.
func (e *Extension) OnRunStarted(ctx context.Context, run *syncer.Run) error {
	return e.record(ctx, ActionRunStarted, SeverityInfo, OutcomeSuccess,
		ResourceRun, run.ID.String(), CategoryRun, nil,
		"program", string(run.Program),
		"force", run.Force,
	)
}

// OnRunCompleted implements ext.RunCompleted.
func (e *Extension) OnRunCompleted(ctx context.Context, run *syncer.Run, out *syncer.Outcome, elapsed time.Duration) error {
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if out.Status == syncer.StatusCompletedWithFailures {
		severity = SeverityWarning
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionRunCompleted, severity, outcome,
		ResourceRun, run.ID.String(), CategoryRun, nil,
		"program", string(run.Program),
		"status", string(out.Status),
		"total", out.Total,
		"skipped", out.Skipped,
		"failed", len(out.Failures),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnRunFailed implements ext.RunFailed.
func (e *Extension) OnRunFailed(ctx context.Context, run *syncer.Run, runErr error) error {
	return e.record(ctx, ActionRunFailed, SeverityCritical, OutcomeFailure,
		ResourceRun, run.ID.String(), CategoryRun, runErr,
		"program", string(run.Program),
	)
}

// OnParticipantFailed implements ext.ParticipantFailed.
func (e *Extension) OnParticipantFailed(ctx context.Context, run *syncer.Run, f syncer.Failure) error {
	return e.record(ctx, ActionParticipantFailed, SeverityWarning, OutcomeFailure,
		ResourceRun, run.ID.String(), CategoryRun, nil,
		"program", string(run.Program),
		"participant", string(f.Participant),
		"system", f.System,
		"detail", f.Detail,
	)
}

// OnLockConflict implements ext.LockConflict.
func (e *Extension) OnLockConflict(ctx context.Context, run *syncer.Run, holder string) error {
	return e.record(ctx, ActionLockConflict, SeverityWarning, OutcomeFailure,
		ResourceRun, run.ID.String(), CategoryLock, nil,
		"program", string(run.Program),
		"holder", holder,
	)
}

// OnNotificationSent implements ext.NotificationSent.
func (e *Extension) OnNotificationSent(ctx context.Context, run *syncer.Run, address string) error {
	return e.record(ctx, ActionNotificationSent, SeverityInfo, OutcomeSuccess,
		ResourceRun, run.ID.String(), CategoryNotify, nil,
		"program", string(run.Program),
		"address", address,
	)
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
