package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/stategraph/task"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *task.Invocation, next Handler) (result map[string]any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("task handler panicked",
					slog.String("handler", inv.HandlerRef),
					slog.String("node", inv.NodeName),
					slog.String("execution_id", inv.ExecutionID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				result = nil
				retErr = fmt.Errorf("panic in handler %s: %v", inv.HandlerRef, r)
			}
		}()
		return next(ctx)
	}
}
