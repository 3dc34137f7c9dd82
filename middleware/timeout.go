package middleware

import (
	"context"
	"time"

	"github.com/xraph/rostersync/syncer"
)

// Timeout returns middleware that enforces a per-run execution deadline.
// A non-positive duration disables the deadline entirely. When the
// deadline is exceeded the context is cancelled and the engine aborts at
// the next participant boundary.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *syncer.Run, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
