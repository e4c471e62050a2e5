package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/stategraph/task"
)

// tracerName is the instrumentation scope name for stategraph tracing.
const tracerName = "github.com/xraph/stategraph"

// Tracing returns middleware that wraps handler invocation in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: stategraph.execution.id, stategraph.graph,
// stategraph.node, stategraph.handler, stategraph.attempt.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, inv *task.Invocation, next Handler) (map[string]any, error) {
		ctx, span := tracer.Start(ctx, "stategraph.task.invoke",
			trace.WithAttributes(
				attribute.String("stategraph.execution.id", inv.ExecutionID.String()),
				attribute.String("stategraph.graph", inv.GraphName),
				attribute.String("stategraph.node", inv.NodeName),
				attribute.String("stategraph.handler", inv.HandlerRef),
				attribute.Int("stategraph.attempt", inv.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		result, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return result, err
	}
}
