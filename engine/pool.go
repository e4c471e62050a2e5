package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/backoff"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/limits"
)

// Pool runs the stepper loops. Each loop claims one due execution at a
// time, steps it through the Coordinator, and sleeps when nothing is due.
// Several pools may run against the same store; the claim protocol keeps
// them from stepping the same execution twice.
type Pool struct {
	coordinator *Coordinator
	store       execution.Store
	limiter     *limits.Manager
	logger      *slog.Logger
	now         func() time.Time

	concurrency     int
	pollInterval    time.Duration
	idleBackoff     backoff.Strategy
	claimTTL        time.Duration
	shutdownTimeout time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool

	// active tracks cancel funcs for in-flight steps so a hard shutdown
	// can interrupt them.
	activeMu sync.Mutex
	active   map[string]context.CancelFunc
}

// NewPool creates a stepper pool.
func NewPool(c *Coordinator, store execution.Store, limiter *limits.Manager, logger *slog.Logger, cfg stategraph.Config, now func() time.Time) *Pool {
	idle := cfg.IdleBackoff
	if idle == nil {
		idle = backoff.NewExponentialWithJitter(cfg.PollInterval, 10*cfg.PollInterval)
	}
	return &Pool{
		coordinator:     c,
		store:           store,
		limiter:         limiter,
		logger:          logger,
		now:             now,
		concurrency:     cfg.Concurrency,
		pollInterval:    cfg.PollInterval,
		idleBackoff:     idle,
		claimTTL:        cfg.ClaimTTL,
		shutdownTimeout: cfg.ShutdownTimeout,
		active:          make(map[string]context.CancelFunc),
	}
}

// Start launches the stepper loops. Idempotent while running.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}
	p.stopCh = make(chan struct{})
	p.started = true

	for range p.concurrency {
		p.wg.Add(1)
		go p.stepLoop(ctx)
	}

	p.logger.Info("stepper pool started",
		slog.Int("concurrency", p.concurrency),
		slog.Duration("poll_interval", p.pollInterval),
	)
	return nil
}

// Stop gracefully shuts down the pool. Steppers finish their current step;
// after the shutdown timeout (or context cancellation) in-flight steps are
// cancelled. An interrupted step leaves its claim behind, which expires
// after the claim TTL and is reclaimed by another stepper.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	close(p.stopCh)
	p.started = false
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timeout := p.shutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	select {
	case <-done:
		p.logger.Info("stepper pool stopped")
		return nil
	case <-time.After(timeout):
		p.logger.Warn("shutdown timeout exceeded, cancelling in-flight steps")
		p.cancelActiveSteps()
		<-done
		return nil
	case <-ctx.Done():
		p.cancelActiveSteps()
		<-done
		return ctx.Err()
	}
}

// stepLoop is the body of one stepper goroutine.
func (p *Pool) stepLoop(ctx context.Context) {
	defer p.wg.Done()

	idle := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		claimed, err := p.store.ClaimDue(ctx, p.now(), p.claimTTL, 1)
		if err != nil {
			p.logger.Error("claim due executions", slog.String("error", err.Error()))
			idle++
			p.sleep(idle)
			continue
		}
		if len(claimed) == 0 {
			idle++
			p.sleep(idle)
			continue
		}

		idle = 0
		p.step(ctx, claimed[0])
	}
}

// step runs one claimed execution through the Coordinator, honoring
// per-graph limits.
func (p *Pool) step(ctx context.Context, e *execution.Execution) {
	if !p.limiter.Acquire(e.GraphName) {
		// Over this graph's limit. Release the claim by persisting the
		// execution unchanged with a short deferral, so another poll picks
		// it up once pressure drops.
		e.WakeAt = p.now().Add(p.pollInterval)
		if err := p.store.CompleteStep(ctx, e); err != nil && !errors.Is(err, stategraph.ErrStaleStep) {
			p.logger.Error("defer throttled execution",
				slog.String("execution_id", e.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	defer p.limiter.Release(e.GraphName)

	stepCtx, cancel := context.WithCancel(ctx)
	key := e.ID.String()
	p.trackStep(key, cancel)
	defer func() {
		p.untrackStep(key)
		cancel()
	}()

	if err := p.coordinator.Step(stepCtx, e); err != nil {
		p.logger.Error("step execution",
			slog.String("execution_id", key),
			slog.String("graph", e.GraphName),
			slog.String("error", err.Error()),
		)
	}
}

// sleep waits before the next poll, backing off across consecutive idle
// polls, or returns early when the pool stops. Full jitter can land near
// zero, so the wait is floored to keep an idle loop from spinning.
func (p *Pool) sleep(idle int) {
	d := p.idleBackoff.Delay(idle)
	if minWait := p.pollInterval / 4; d < minWait {
		d = minWait
	}
	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}

func (p *Pool) trackStep(key string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	p.active[key] = cancel
}

func (p *Pool) untrackStep(key string) {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	delete(p.active, key)
}

func (p *Pool) cancelActiveSteps() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for _, cancel := range p.active {
		cancel()
	}
}
