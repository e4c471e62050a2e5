package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/policy"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type executionStartedEntry struct {
	name string
	hook ExecutionStarted
}

type stepCompletedEntry struct {
	name string
	hook StepCompleted
}

type taskRetryingEntry struct {
	name string
	hook TaskRetrying
}

type errorCaughtEntry struct {
	name string
	hook ErrorCaught
}

type executionSucceededEntry struct {
	name string
	hook ExecutionSucceeded
}

type executionFailedEntry struct {
	name string
	hook ExecutionFailed
}

type executionTimedOutEntry struct {
	name string
	hook ExecutionTimedOut
}

type executionDeadLetteredEntry struct {
	name string
	hook ExecutionDeadLettered
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	executionStarted      []executionStartedEntry
	stepCompleted         []stepCompletedEntry
	taskRetrying          []taskRetryingEntry
	errorCaught           []errorCaughtEntry
	executionSucceeded    []executionSucceededEntry
	executionFailed       []executionFailedEntry
	executionTimedOut     []executionTimedOutEntry
	executionDeadLettered []executionDeadLetteredEntry
	shutdown              []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ExecutionStarted); ok {
		r.executionStarted = append(r.executionStarted, executionStartedEntry{name, h})
	}
	if h, ok := e.(StepCompleted); ok {
		r.stepCompleted = append(r.stepCompleted, stepCompletedEntry{name, h})
	}
	if h, ok := e.(TaskRetrying); ok {
		r.taskRetrying = append(r.taskRetrying, taskRetryingEntry{name, h})
	}
	if h, ok := e.(ErrorCaught); ok {
		r.errorCaught = append(r.errorCaught, errorCaughtEntry{name, h})
	}
	if h, ok := e.(ExecutionSucceeded); ok {
		r.executionSucceeded = append(r.executionSucceeded, executionSucceededEntry{name, h})
	}
	if h, ok := e.(ExecutionFailed); ok {
		r.executionFailed = append(r.executionFailed, executionFailedEntry{name, h})
	}
	if h, ok := e.(ExecutionTimedOut); ok {
		r.executionTimedOut = append(r.executionTimedOut, executionTimedOutEntry{name, h})
	}
	if h, ok := e.(ExecutionDeadLettered); ok {
		r.executionDeadLettered = append(r.executionDeadLettered, executionDeadLetteredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Event emitters
// ──────────────────────────────────────────────────

// EmitExecutionStarted notifies all extensions that implement ExecutionStarted.
func (r *Registry) EmitExecutionStarted(ctx context.Context, e *execution.Execution) {
	for _, entry := range r.executionStarted {
		if err := entry.hook.OnExecutionStarted(ctx, e); err != nil {
			r.logHookError("OnExecutionStarted", entry.name, err)
		}
	}
}

// EmitStepCompleted notifies all extensions that implement StepCompleted.
func (r *Registry) EmitStepCompleted(ctx context.Context, e *execution.Execution, node string, transition execution.Transition, elapsed time.Duration) {
	for _, entry := range r.stepCompleted {
		if err := entry.hook.OnStepCompleted(ctx, e, node, transition, elapsed); err != nil {
			r.logHookError("OnStepCompleted", entry.name, err)
		}
	}
}

// EmitTaskRetrying notifies all extensions that implement TaskRetrying.
func (r *Registry) EmitTaskRetrying(ctx context.Context, e *execution.Execution, node string, kind policy.Kind, attempt int, wakeAt time.Time) {
	for _, entry := range r.taskRetrying {
		if err := entry.hook.OnTaskRetrying(ctx, e, node, kind, attempt, wakeAt); err != nil {
			r.logHookError("OnTaskRetrying", entry.name, err)
		}
	}
}

// EmitErrorCaught notifies all extensions that implement ErrorCaught.
func (r *Registry) EmitErrorCaught(ctx context.Context, e *execution.Execution, node string, kind policy.Kind, target string) {
	for _, entry := range r.errorCaught {
		if err := entry.hook.OnErrorCaught(ctx, e, node, kind, target); err != nil {
			r.logHookError("OnErrorCaught", entry.name, err)
		}
	}
}

// EmitExecutionSucceeded notifies all extensions that implement ExecutionSucceeded.
func (r *Registry) EmitExecutionSucceeded(ctx context.Context, e *execution.Execution, elapsed time.Duration) {
	for _, entry := range r.executionSucceeded {
		if err := entry.hook.OnExecutionSucceeded(ctx, e, elapsed); err != nil {
			r.logHookError("OnExecutionSucceeded", entry.name, err)
		}
	}
}

// EmitExecutionFailed notifies all extensions that implement ExecutionFailed.
func (r *Registry) EmitExecutionFailed(ctx context.Context, e *execution.Execution, cause *execution.FailureCause) {
	for _, entry := range r.executionFailed {
		if err := entry.hook.OnExecutionFailed(ctx, e, cause); err != nil {
			r.logHookError("OnExecutionFailed", entry.name, err)
		}
	}
}

// EmitExecutionTimedOut notifies all extensions that implement ExecutionTimedOut.
func (r *Registry) EmitExecutionTimedOut(ctx context.Context, e *execution.Execution) {
	for _, entry := range r.executionTimedOut {
		if err := entry.hook.OnExecutionTimedOut(ctx, e); err != nil {
			r.logHookError("OnExecutionTimedOut", entry.name, err)
		}
	}
}

// EmitExecutionDeadLettered notifies all extensions that implement ExecutionDeadLettered.
func (r *Registry) EmitExecutionDeadLettered(ctx context.Context, e *execution.Execution) {
	for _, entry := range r.executionDeadLettered {
		if err := entry.hook.OnExecutionDeadLettered(ctx, e); err != nil {
			r.logHookError("OnExecutionDeadLettered", entry.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, entry := range r.shutdown {
		if err := entry.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", entry.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block stepping.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
