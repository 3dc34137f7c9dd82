package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/downstream"
	"github.com/xraph/rostersync/mirror"
)

// Emitter receives engine-level lifecycle events. It is a narrow view of
// the extension registry so this package does not depend on it.
type Emitter interface {
	EmitParticipantFailed(ctx context.Context, run *Run, f Failure)
}

// noopEmitter is used when no emitter is configured.
type noopEmitter struct{}

func (noopEmitter) EmitParticipantFailed(context.Context, *Run, Failure) {}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithEmitter sets the lifecycle event emitter.
func WithEmitter(em Emitter) EngineOption {
	return func(e *Engine) { e.emitter = em }
}

// Engine reconciles one program's roster against the downstream systems.
// It holds no locks and keeps no run state; mutual exclusion is the
// trigger layer's concern.
type Engine struct {
	mirror  mirror.Store
	systems []downstream.System
	emitter Emitter
	logger  *slog.Logger
}

// NewEngine creates an Engine reading from the given mirror store and
// writing through the given systems, in order.
func NewEngine(m mirror.Store, systems []downstream.System, opts ...EngineOption) *Engine {
	e := &Engine{
		mirror:  m,
		systems: systems,
		emitter: noopEmitter{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one sync run to completion. Fatal conditions (program
// missing from the mirror, course linkage never configured) abort before
// any downstream call and return a *rostersync.FatalError alongside an
// AbortedFatal outcome. Everything past that point is per-participant:
// the first error for a participant is recorded and the engine moves on
// to the next one.
func (e *Engine) Run(ctx context.Context, run *Run) (*Outcome, error) {
	out := &Outcome{
		RunID:     run.ID,
		Program:   run.Program,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}

	program, err := e.mirror.GetProgram(ctx, run.Program)
	if err != nil {
		if errors.Is(err, rostersync.ErrProgramNotFound) {
			return abort(out, rostersync.FatalProgramNotFound, err)
		}
		return abort(out, rostersync.FatalOther, err)
	}
	if program.CourseID == "" {
		return abort(out, rostersync.FatalMissingConfig,
			fmt.Errorf("%w: program %q has no linked course", rostersync.ErrMissingLocalConfiguration, run.Program))
	}

	participants, err := e.mirror.ListParticipants(ctx, run.Program)
	if err != nil {
		return abort(out, rostersync.FatalOther,
			fmt.Errorf("rostersync/syncer: list participants: %w", err))
	}

	out.Total = len(participants)
	for _, p := range participants {
		if err := ctx.Err(); err != nil {
			return abort(out, rostersync.FatalOther, err)
		}
		e.syncParticipant(ctx, run, program, p, out)
	}

	out.FinishedAt = time.Now().UTC()
	if out.Failed() {
		out.Status = StatusCompletedWithFailures
	} else {
		out.Status = StatusCompleted
	}

	e.logger.Info("sync run finished",
		slog.String("run_id", run.ID.String()),
		slog.String("program", string(run.Program)),
		slog.String("status", string(out.Status)),
		slog.Int("total", out.Total),
		slog.Int("skipped", out.Skipped),
		slog.Int("failed", len(out.Failures)),
		slog.Duration("elapsed", out.Duration()),
	)
	return out, nil
}

// abort finalizes the outcome as fatally aborted, recording why, and
// wraps the cause so callers can classify it with rostersync.FatalKindOf.
func abort(out *Outcome, kind rostersync.FatalKind, err error) (*Outcome, error) {
	out.Status = StatusAbortedFatal
	out.Reason = err.Error()
	out.FinishedAt = time.Now().UTC()
	return out, rostersync.Fatal(kind, err)
}

// syncParticipant converges one participant across all systems. The
// first error stops further systems for this participant and records
// exactly one failure.
func (e *Engine) syncParticipant(ctx context.Context, run *Run, program *mirror.Program, p *mirror.Participant, out *Outcome) {
	present := p.Status == mirror.EnrollmentActive
	target := downstream.Target{Program: program, Participant: p}

	// A role with no counterpart in any system is a skip, decided before
	// any downstream call.
	if present && !e.roleMapped(p.Role) {
		out.Skipped++
		e.logger.Debug("participant skipped",
			slog.String("participant", string(p.Ref)),
			slog.String("role", string(p.Role)),
		)
		return
	}

	for _, sys := range e.systems {
		if !sys.Addressable(target) {
			continue
		}

		desired := downstream.Membership{}
		if present {
			role, ok := sys.RoleFor(p.Role)
			if !ok {
				continue
			}
			desired = downstream.Membership{Present: true, Role: role}
		}

		if err := e.converge(ctx, run, sys, target, desired); err != nil {
			f := Failure{
				Participant: p.Ref,
				System:      sys.Name(),
				Detail:      err.Error(),
			}
			out.Failures = append(out.Failures, f)
			e.emitter.EmitParticipantFailed(ctx, run, f)
			e.logger.Warn("participant sync failed",
				slog.String("participant", string(p.Ref)),
				slog.String("system", sys.Name()),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// converge observes then writes. The observe step exists to keep repeat
// runs write-free: when the system already matches, nothing is sent,
// unless the run forces a recheck.
func (e *Engine) converge(ctx context.Context, run *Run, sys downstream.System, t downstream.Target, desired downstream.Membership) error {
	observed, err := sys.ObserveMembership(ctx, t)
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	if observed.Equal(desired) && !run.Force {
		return nil
	}
	if err := sys.EnsureMembership(ctx, t, desired); err != nil {
		return fmt.Errorf("ensure: %w", err)
	}
	return nil
}

// roleMapped reports whether at least one system knows the role.
func (e *Engine) roleMapped(role mirror.Role) bool {
	for _, sys := range e.systems {
		if _, ok := sys.RoleFor(role); ok {
			return true
		}
	}
	return false
}
