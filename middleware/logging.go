package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/rostersync/syncer"
)

// Logging returns middleware that logs run start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, run *syncer.Run, next Handler) error {
		logger.Info("sync run started",
			slog.String("run_id", run.ID.String()),
			slog.String("program", string(run.Program)),
			slog.Bool("force", run.Force),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("sync run failed",
				slog.String("run_id", run.ID.String()),
				slog.String("program", string(run.Program)),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("sync run completed",
				slog.String("run_id", run.ID.String()),
				slog.String("program", string(run.Program)),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
