// Package limits controls per-graph stepping pressure: how many executions
// of a graph may be stepped simultaneously and at what sustained rate. The
// pool consults it before stepping a claimed execution; a denied acquire
// defers the step to a later poll rather than dropping it.
package limits

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-graph behaviour such as rate limiting and concurrency.
type Config struct {
	// GraphName is the graph this config applies to.
	GraphName string

	// MaxConcurrency limits how many executions of this graph may be
	// stepped simultaneously across the local pool. Zero means no
	// graph-specific limit (pool-wide concurrency still applies).
	MaxConcurrency int

	// RateLimit is the maximum sustained steps per second for this graph.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// graphState tracks runtime state for a single graph.
type graphState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-graph rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	graphs map[string]*graphState
}

// NewManager creates a Manager with the given graph configurations.
// Graphs not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{graphs: make(map[string]*graphState, len(configs))}
	for _, cfg := range configs {
		m.graphs[cfg.GraphName] = newGraphState(cfg)
	}
	return m
}

func newGraphState(cfg Config) *graphState {
	gs := &graphState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		gs.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return gs
}

// Acquire checks rate limits and concurrency for the given graph. If the
// step is allowed to proceed it increments the active counter and returns
// true. The caller MUST call Release when the step completes.
func (m *Manager) Acquire(graphName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	gs := m.graphs[graphName]
	if gs == nil {
		return true
	}
	// Concurrency first: a step refused on concurrency must not consume
	// a rate-limiter token.
	if gs.config.MaxConcurrency > 0 && gs.active >= gs.config.MaxConcurrency {
		return false
	}
	if gs.limiter != nil && !gs.limiter.Allow() {
		return false
	}

	gs.active++
	return true
}

// Release decrements the active step count for the graph.
func (m *Manager) Release(graphName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gs := m.graphs[graphName]; gs != nil && gs.active > 0 {
		gs.active--
	}
}

// SetConfig dynamically updates (or creates) a graph configuration.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.graphs[cfg.GraphName]
	gs := newGraphState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		gs.active = existing.active
	}
	m.graphs[cfg.GraphName] = gs
}

// ActiveCount returns the current number of active steps for a graph.
func (m *Manager) ActiveCount(graphName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gs := m.graphs[graphName]; gs != nil {
		return gs.active
	}
	return 0
}
