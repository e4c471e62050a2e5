// Package middleware provides composable middleware around task handler
// invocations. Middleware wraps handler calls synchronously and can modify
// execution (recover from panics, log, enforce timeouts, add tracing, etc.).
package middleware

import (
	"context"

	"github.com/xraph/stategraph/task"
)

// Handler is the terminal function that invokes the task handler.
type Handler func(ctx context.Context) (map[string]any, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the invocation being performed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, inv *task.Invocation, next Handler) (map[string]any, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, inv *task.Invocation, next Handler) (map[string]any, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (map[string]any, error) {
				return mw(ctx, inv, prev)
			}
		}
		return h(ctx)
	}
}
