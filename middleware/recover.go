package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/syncer"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to fatal run errors (FatalOther) and logged with a
// stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, run *syncer.Run, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("sync run panicked",
					slog.String("run_id", run.ID.String()),
					slog.String("program", string(run.Program)),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = rostersync.Fatal(rostersync.FatalOther,
					fmt.Errorf("panic in sync run for program %s: %v", run.Program, r))
			}
		}()
		return next(ctx)
	}
}
