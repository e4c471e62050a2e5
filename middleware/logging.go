package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/stategraph/task"
)

// Logging returns middleware that logs handler invocation start and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *task.Invocation, next Handler) (map[string]any, error) {
		logger.Info("task invoked",
			slog.String("handler", inv.HandlerRef),
			slog.String("node", inv.NodeName),
			slog.String("graph", inv.GraphName),
			slog.String("execution_id", inv.ExecutionID.String()),
			slog.Int("attempt", inv.Attempt),
		)

		start := time.Now()
		result, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("task failed",
				slog.String("handler", inv.HandlerRef),
				slog.String("node", inv.NodeName),
				slog.String("execution_id", inv.ExecutionID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("task completed",
				slog.String("handler", inv.HandlerRef),
				slog.String("node", inv.NodeName),
				slog.String("execution_id", inv.ExecutionID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return result, err
	}
}
