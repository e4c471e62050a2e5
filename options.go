package stategraph

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/stategraph/backoff"
)

// Option configures a Runtime.
type Option func(*Runtime) error

// Storer is the minimal store interface held by the Runtime.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for stepper pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Runtime is the central handle for graph execution. It owns the store
// and the stepper pool lifecycle.
//
// Create one with New() and functional options. The Runtime holds
// references to subsystem components via internal interfaces to avoid
// import cycles. Use engine.Build() to wire everything together.
type Runtime struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Runtime with the given options.
func New(opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Store returns the runtime's store.
func (rt *Runtime) Store() Storer { return rt.store }

// Config returns a copy of the runtime's configuration.
func (rt *Runtime) Config() Config { return rt.config }

// SetPool sets the stepper pool (called by the engine package).
func (rt *Runtime) SetPool(p poolRunner) { rt.pool = p }

// SetExtensions sets the extension emitter (called by the engine package).
func (rt *Runtime) SetExtensions(e extensionEmitter) { rt.extensions = e }

// Start begins stepping due executions.
func (rt *Runtime) Start(ctx context.Context) error {
	if rt.pool == nil {
		return ErrNoStore
	}
	if err := rt.pool.Start(ctx); err != nil {
		return err
	}
	rt.started = true
	return nil
}

// Stop gracefully shuts down the runtime.
func (rt *Runtime) Stop(ctx context.Context) error {
	if rt.pool != nil && rt.started {
		if err := rt.pool.Stop(ctx); err != nil {
			rt.logger.Error("pool stop error", "error", err)
		}
	}
	if rt.extensions != nil {
		rt.extensions.EmitShutdown(ctx)
	}
	if rt.store != nil {
		return rt.store.Close()
	}
	return nil
}

// WithConcurrency sets the maximum number of concurrent execution steps.
func WithConcurrency(n int) Option {
	return func(rt *Runtime) error {
		rt.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often idle steppers poll for due executions.
func WithPollInterval(d time.Duration) Option {
	return func(rt *Runtime) error {
		rt.config.PollInterval = d
		return nil
	}
}

// WithIdleBackoff sets the backoff strategy idle steppers use between
// empty polls.
func WithIdleBackoff(s backoff.Strategy) Option {
	return func(rt *Runtime) error {
		rt.config.IdleBackoff = s
		return nil
	}
}

// WithLogger sets the structured logger for the runtime.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) error {
		rt.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the runtime.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(rt *Runtime) error {
		rt.store = s
		return nil
	}
}
