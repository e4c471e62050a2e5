package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/ext"
	"github.com/xraph/stategraph/policy"
)

// meterName is the instrumentation scope name for stategraph metrics.
const meterName = "github.com/xraph/stategraph"

// Compile-time interface checks.
var (
	_ ext.Extension             = (*MetricsExtension)(nil)
	_ ext.ExecutionStarted      = (*MetricsExtension)(nil)
	_ ext.TaskRetrying          = (*MetricsExtension)(nil)
	_ ext.ErrorCaught           = (*MetricsExtension)(nil)
	_ ext.ExecutionSucceeded    = (*MetricsExtension)(nil)
	_ ext.ExecutionFailed       = (*MetricsExtension)(nil)
	_ ext.ExecutionTimedOut     = (*MetricsExtension)(nil)
	_ ext.ExecutionDeadLettered = (*MetricsExtension)(nil)
)

// MetricsExtension records execution lifecycle counters via OpenTelemetry.
// Register it as an engine extension to track submission rates, terminal
// outcomes, retries, caught errors, and dead letter volume per graph.
type MetricsExtension struct {
	started      metric.Int64Counter
	succeeded    metric.Int64Counter
	failed       metric.Int64Counter
	timedOut     metric.Int64Counter
	retried      metric.Int64Counter
	caught       metric.Int64Counter
	deadLettered metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If none is configured, noop instruments are used.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. This variant allows injecting a specific MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	m.started, _ = meter.Int64Counter("stategraph.execution.started",
		metric.WithDescription("Total number of executions submitted"),
		metric.WithUnit("{execution}"))
	m.succeeded, _ = meter.Int64Counter("stategraph.execution.succeeded",
		metric.WithDescription("Total number of executions that reached a terminal node"),
		metric.WithUnit("{execution}"))
	m.failed, _ = meter.Int64Counter("stategraph.execution.failed",
		metric.WithDescription("Total number of executions that failed fatally"),
		metric.WithUnit("{execution}"))
	m.timedOut, _ = meter.Int64Counter("stategraph.execution.timed_out",
		metric.WithDescription("Total number of executions that exceeded their deadline"),
		metric.WithUnit("{execution}"))
	m.retried, _ = meter.Int64Counter("stategraph.task.retried",
		metric.WithDescription("Total number of task retries scheduled"),
		metric.WithUnit("{retry}"))
	m.caught, _ = meter.Int64Counter("stategraph.error.caught",
		metric.WithDescription("Total number of task failures routed to a catch target"),
		metric.WithUnit("{error}"))
	m.deadLettered, _ = meter.Int64Counter("stategraph.execution.dead_lettered",
		metric.WithDescription("Total number of terminal failures archived to the dead letter store"),
		metric.WithUnit("{execution}"))
	m.duration, _ = meter.Float64Histogram("stategraph.execution.duration",
		metric.WithDescription("End-to-end duration of succeeded executions in seconds"),
		metric.WithUnit("s"))

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func graphAttrs(e *execution.Execution) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("graph", e.GraphName))
}

// OnExecutionStarted implements ext.ExecutionStarted.
func (m *MetricsExtension) OnExecutionStarted(ctx context.Context, e *execution.Execution) error {
	m.started.Add(ctx, 1, graphAttrs(e))
	return nil
}

// OnTaskRetrying implements ext.TaskRetrying.
func (m *MetricsExtension) OnTaskRetrying(ctx context.Context, e *execution.Execution, node string, kind policy.Kind, _ int, _ time.Time) error {
	m.retried.Add(ctx, 1, metric.WithAttributes(
		attribute.String("graph", e.GraphName),
		attribute.String("node", node),
		attribute.String("kind", string(kind)),
	))
	return nil
}

// OnErrorCaught implements ext.ErrorCaught.
func (m *MetricsExtension) OnErrorCaught(ctx context.Context, e *execution.Execution, node string, kind policy.Kind, _ string) error {
	m.caught.Add(ctx, 1, metric.WithAttributes(
		attribute.String("graph", e.GraphName),
		attribute.String("node", node),
		attribute.String("kind", string(kind)),
	))
	return nil
}

// OnExecutionSucceeded implements ext.ExecutionSucceeded.
func (m *MetricsExtension) OnExecutionSucceeded(ctx context.Context, e *execution.Execution, elapsed time.Duration) error {
	m.succeeded.Add(ctx, 1, graphAttrs(e))
	m.duration.Record(ctx, elapsed.Seconds(), graphAttrs(e))
	return nil
}

// OnExecutionFailed implements ext.ExecutionFailed.
func (m *MetricsExtension) OnExecutionFailed(ctx context.Context, e *execution.Execution, cause *execution.FailureCause) error {
	attrs := []attribute.KeyValue{attribute.String("graph", e.GraphName)}
	if cause != nil {
		attrs = append(attrs, attribute.String("kind", string(cause.Kind)))
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attrs...))
	return nil
}

// OnExecutionTimedOut implements ext.ExecutionTimedOut.
func (m *MetricsExtension) OnExecutionTimedOut(ctx context.Context, e *execution.Execution) error {
	m.timedOut.Add(ctx, 1, graphAttrs(e))
	return nil
}

// OnExecutionDeadLettered implements ext.ExecutionDeadLettered.
func (m *MetricsExtension) OnExecutionDeadLettered(ctx context.Context, e *execution.Execution) error {
	m.deadLettered.Add(ctx, 1, graphAttrs(e))
	return nil
}
