// Package ext defines the extension system for the engine.
//
// Extensions are notified of execution lifecycle events and can react to
// them: recording metrics, emitting webhooks, writing audit logs.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnExecutionSucceeded(ctx context.Context, ex *execution.Execution, elapsed time.Duration) error {
//	    log.Printf("execution %s finished in %s", ex.ID, elapsed)
//	    return nil
//	}
//
// # Lifecycle Hooks
//
//   - [ExecutionStarted] — an execution was submitted
//   - [StepCompleted] — one node transition was persisted
//   - [TaskRetrying] — a Task failure was scheduled for retry
//   - [ErrorCaught] — a catch rule routed a failure to a recovery node
//   - [ExecutionSucceeded] — a terminal node was reached
//   - [ExecutionFailed] — the execution failed fatally
//   - [ExecutionTimedOut] — the execution exceeded its deadline
//   - [ExecutionDeadLettered] — a terminal failure was archived
//   - [Shutdown] — the runtime is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
