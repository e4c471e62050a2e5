// Package ext defines the extension system for the engine.
// Extensions are notified of execution lifecycle events (started, stepped,
// retrying, terminal) and can react to them.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/policy"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Execution lifecycle hooks
// ──────────────────────────────────────────────────

// ExecutionStarted is called after an execution is submitted.
type ExecutionStarted interface {
	OnExecutionStarted(ctx context.Context, e *execution.Execution) error
}

// StepCompleted is called after one node transition is persisted.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, e *execution.Execution, node string, transition execution.Transition, elapsed time.Duration) error
}

// TaskRetrying is called when a Task failure is scheduled for retry.
type TaskRetrying interface {
	OnTaskRetrying(ctx context.Context, e *execution.Execution, node string, kind policy.Kind, attempt int, wakeAt time.Time) error
}

// ErrorCaught is called when a catch rule routes a failure to a recovery node.
type ErrorCaught interface {
	OnErrorCaught(ctx context.Context, e *execution.Execution, node string, kind policy.Kind, target string) error
}

// ExecutionSucceeded is called when an execution reaches a terminal node.
type ExecutionSucceeded interface {
	OnExecutionSucceeded(ctx context.Context, e *execution.Execution, elapsed time.Duration) error
}

// ExecutionFailed is called when an execution fails fatally.
type ExecutionFailed interface {
	OnExecutionFailed(ctx context.Context, e *execution.Execution, cause *execution.FailureCause) error
}

// ExecutionTimedOut is called when an execution exceeds its deadline.
type ExecutionTimedOut interface {
	OnExecutionTimedOut(ctx context.Context, e *execution.Execution) error
}

// ExecutionDeadLettered is called when a terminal failure is archived.
type ExecutionDeadLettered interface {
	OnExecutionDeadLettered(ctx context.Context, e *execution.Execution) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
