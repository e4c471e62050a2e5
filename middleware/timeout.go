package middleware

import (
	"context"
	"log/slog"

	"github.com/xraph/stategraph/task"
)

// Timeout returns middleware that enforces a per-invocation deadline.
// If the invocation has a non-zero Timeout, a context.WithTimeout wraps the
// handler call. When the deadline is exceeded the context is cancelled and
// the handler should return context.DeadlineExceeded, which classifies as
// an infrastructure-transient failure.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *task.Invocation, next Handler) (map[string]any, error) {
		if inv.Timeout > 0 {
			logger.Debug("task timeout set",
				slog.String("execution_id", inv.ExecutionID.String()),
				slog.String("node", inv.NodeName),
				slog.Duration("timeout", inv.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
