package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/event"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/ext"
	"github.com/xraph/stategraph/graph"
	"github.com/xraph/stategraph/id"
	"github.com/xraph/stategraph/limits"
	"github.com/xraph/stategraph/middleware"
	"github.com/xraph/stategraph/observability"
	"github.com/xraph/stategraph/task"
)

// instrumentationName is the OTel scope for engine-built instrumentation.
const instrumentationName = "github.com/xraph/stategraph"

// buildOptions collects Build configuration.
type buildOptions struct {
	extensions     []ext.Extension
	middleware     []middleware.Middleware
	graphLimits    []limits.Config
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	now            func() time.Time
}

// Option configures Build.
type Option func(*buildOptions)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(o *buildOptions) { o.extensions = append(o.extensions, e) }
}

// WithMiddleware appends custom middleware inside the default stack.
func WithMiddleware(m middleware.Middleware) Option {
	return func(o *buildOptions) { o.middleware = append(o.middleware, m) }
}

// WithGraphLimits sets per-graph concurrency and rate limits.
func WithGraphLimits(cfgs ...limits.Config) Option {
	return func(o *buildOptions) { o.graphLimits = append(o.graphLimits, cfgs...) }
}

// WithTracerProvider sets the TracerProvider for task invocation spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *buildOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the MeterProvider for engine metrics.
// Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *buildOptions) { o.meterProvider = mp }
}

// WithClock overrides the engine's clock. Intended for tests that need to
// control wake times, retry delays, and deadlines deterministically.
func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) { o.now = now }
}

// Engine is the fully wired execution runtime: registries, coordinator,
// stepper pool, event bus, and dead letter archive around one Runtime.
type Engine struct {
	runtime     *stategraph.Runtime
	coordinator *Coordinator
	pool        *Pool
	graphs      *graph.Registry
	handlers    *task.Registry
	events      *event.Bus
	deadletters *deadletter.Service
	extensions  *ext.Registry
	limiter     *limits.Manager
}

// Build wires all subsystems into an Engine and attaches the stepper pool
// and extensions to the Runtime. The Runtime's store must implement the
// execution, event, and dead letter store interfaces (store.Store does).
func Build(rt *stategraph.Runtime, opts ...Option) (*Engine, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	s := rt.Store()
	if s == nil {
		return nil, stategraph.ErrNoStore
	}
	execStore, ok := s.(execution.Store)
	if !ok {
		return nil, fmt.Errorf("engine: store %T does not implement execution.Store", s)
	}
	eventStore, ok := s.(event.Store)
	if !ok {
		return nil, fmt.Errorf("engine: store %T does not implement event.Store", s)
	}
	dlStore, ok := s.(deadletter.Store)
	if !ok {
		return nil, fmt.Errorf("engine: store %T does not implement deadletter.Store", s)
	}

	logger := rt.Logger()
	cfg := rt.Config()

	now := bo.now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	// Extensions: built-in metrics first, then user extensions in order.
	extensions := ext.NewRegistry(logger)
	if bo.meterProvider != nil {
		extensions.Register(observability.NewMetricsExtensionWithMeter(bo.meterProvider.Meter(instrumentationName)))
	} else {
		extensions.Register(observability.NewMetricsExtension())
	}
	for _, e := range bo.extensions {
		extensions.Register(e)
	}

	tracing := middleware.Tracing()
	if bo.tracerProvider != nil {
		tracing = middleware.TracingWithTracer(bo.tracerProvider.Tracer(instrumentationName))
	}
	metrics := middleware.Metrics()
	if bo.meterProvider != nil {
		metrics = middleware.MetricsWithMeter(bo.meterProvider.Meter(instrumentationName))
	}

	// Default stack, outermost first. Custom middleware runs innermost,
	// closest to the handler.
	stack := []middleware.Middleware{
		middleware.Recover(logger),
		tracing,
		metrics,
		middleware.Logging(logger),
		middleware.Timeout(logger),
	}
	stack = append(stack, bo.middleware...)

	graphs := graph.NewRegistry()
	handlers := task.NewRegistry()
	bus := event.NewBus(eventStore)
	limiter := limits.NewManager(bo.graphLimits...)

	coordinator := &Coordinator{
		graphs:     graphs,
		handlers:   handlers,
		store:      execStore,
		events:     bus,
		extensions: extensions,
		invoke:     middleware.Chain(stack...),
		logger:     logger,
		now:        now,
	}
	coordinator.deadletters = deadletter.NewService(dlStore, coordinator.Submit)

	pool := NewPool(coordinator, execStore, limiter, logger, cfg, now)

	rt.SetPool(pool)
	rt.SetExtensions(extensions)

	return &Engine{
		runtime:     rt,
		coordinator: coordinator,
		pool:        pool,
		graphs:      graphs,
		handlers:    handlers,
		events:      bus,
		deadletters: coordinator.deadletters,
		extensions:  extensions,
		limiter:     limiter,
	}, nil
}

// RegisterGraph validates and registers a graph. A graph without its own
// timeout gets the runtime's default execution timeout.
func (e *Engine) RegisterGraph(g *graph.Graph) error {
	if g.Timeout <= 0 {
		g.Timeout = e.runtime.Config().DefaultGraphTimeout
	}
	return e.graphs.Register(g)
}

// RegisterHandler registers a task handler under the given reference.
func (e *Engine) RegisterHandler(ref string, h task.Handler) error {
	return e.handlers.Register(ref, h)
}

// Submit starts a new execution of the named graph.
func (e *Engine) Submit(ctx context.Context, graphName string, input map[string]any) (*execution.Execution, error) {
	return e.coordinator.Submit(ctx, graphName, input)
}

// Status returns the execution by ID.
func (e *Engine) Status(ctx context.Context, execID id.ExecutionID) (*execution.Execution, error) {
	return e.coordinator.Status(ctx, execID)
}

// History returns the execution's recorded transitions in order.
func (e *Engine) History(ctx context.Context, execID id.ExecutionID) ([]*execution.HistoryEntry, error) {
	return e.coordinator.History(ctx, execID)
}

// Coordinator returns the stepping coordinator.
func (e *Engine) Coordinator() *Coordinator { return e.coordinator }

// Pool returns the stepper pool.
func (e *Engine) Pool() *Pool { return e.pool }

// Graphs returns the graph registry.
func (e *Engine) Graphs() *graph.Registry { return e.graphs }

// Handlers returns the task handler registry.
func (e *Engine) Handlers() *task.Registry { return e.handlers }

// Events returns the event bus.
func (e *Engine) Events() *event.Bus { return e.events }

// DeadLetters returns the dead letter service.
func (e *Engine) DeadLetters() *deadletter.Service { return e.deadletters }

// Extensions returns the extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// Limits returns the per-graph limits manager.
func (e *Engine) Limits() *limits.Manager { return e.limiter }
