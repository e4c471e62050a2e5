// Package middleware provides composable middleware around task handler
// invocations.
//
// A [Middleware] is a function that wraps a handler call. Middleware are
// composed into a chain using [Chain] and applied before each invocation.
// They are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs handler, node, duration, and outcome at each invocation
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the invocation context after the node's timeout
//   - [Tracing] — wraps invocation in an OpenTelemetry span
//   - [Metrics] — records per-invocation duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, inv *task.Invocation, next middleware.Handler) (map[string]any, error) {
//	        // pre-processing
//	        result, err := next(ctx)
//	        // post-processing
//	        return result, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
