package stategraph

import (
	"time"

	"github.com/xraph/stategraph/backoff"
)

// Config holds configuration for the Runtime.
type Config struct {
	// Concurrency is the maximum number of execution steps processed
	// concurrently by the stepper pool.
	Concurrency int

	// PollInterval is how often idle steppers poll for due executions.
	PollInterval time.Duration

	// IdleBackoff shapes how a stepper's wait grows across consecutive
	// empty polls, desynchronizing steppers that share a store. Nil means
	// exponential backoff with full jitter from PollInterval up to
	// 10×PollInterval.
	IdleBackoff backoff.Strategy

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// ClaimTTL is how long a step claim may be held before another
	// stepper may reclaim the execution. It bounds recovery time after
	// a stepper crashes mid-step and must exceed the longest expected
	// task handler invocation.
	ClaimTTL time.Duration

	// DefaultGraphTimeout applies to graphs that do not declare their
	// own execution timeout.
	DefaultGraphTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:         10,
		PollInterval:        1 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		ClaimTTL:            5 * time.Minute,
		DefaultGraphTimeout: 24 * time.Hour,
	}
}
