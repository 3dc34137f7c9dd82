// Package worker provides the run execution engine — an Executor that
// drives the sync engine through middleware, and a Pool that fans
// program runs out over a bounded set of goroutines.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/rostersync/ext"
	"github.com/xraph/rostersync/middleware"
	"github.com/xraph/rostersync/syncer"
)

// Executor runs a single sync run through the middleware chain and the
// engine, then emits lifecycle events.
type Executor struct {
	engine     *syncer.Engine
	extensions *ext.Registry
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	engine *syncer.Engine,
	extensions *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		engine:     engine,
		extensions: extensions,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs one sync run to completion.
// On a normal finish (clean or with participant failures) it emits
// RunCompleted. On a fatal abort it emits RunFailed and returns the
// aborted outcome; a recovered panic returns a nil outcome.
func (e *Executor) Execute(ctx context.Context, run *syncer.Run) (*syncer.Outcome, error) {
	e.extensions.EmitRunStarted(ctx, run)

	start := time.Now()

	var out *syncer.Outcome
	terminal := func(ctx context.Context) error {
		var runErr error
		out, runErr = e.engine.Run(ctx, run)
		return runErr
	}

	err := e.mw(ctx, run, terminal)
	elapsed := time.Since(start)

	if err != nil {
		e.extensions.EmitRunFailed(ctx, run, err)
		return out, err
	}

	e.extensions.EmitRunCompleted(ctx, run, out, elapsed)
	return out, nil
}
