package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/document"
	"github.com/xraph/stategraph/event"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/graph"
	"github.com/xraph/stategraph/policy"
	"github.com/xraph/stategraph/task"
)

// errorInfoPath is where a caught failure is recorded in the Document so
// recovery nodes can read it.
var errorInfoPath = document.MustPath("$.ErrorInfo")

// Step performs exactly one transition of a claimed execution and persists
// the outcome. The caller must hold a fresh step token from ClaimDue; if the
// claim was reissued in the meantime the persisted write is rejected and the
// whole step is dropped without side effects.
//
// The deadline is checked before the node runs, so an expired execution is
// timed out without invoking another handler.
func (c *Coordinator) Step(ctx context.Context, e *execution.Execution) error {
	now := c.now()

	g, err := c.graphs.Get(e.GraphName)
	if err != nil {
		// The graph was unregistered after this execution started. It can
		// never proceed, so fail it rather than leaving it claimed forever.
		return c.finishFailed(ctx, e, now, e.CurrentNode, policy.KindCatchAll,
			fmt.Sprintf("graph %q is not registered", e.GraphName))
	}

	if !e.Deadline.After(now) {
		return c.finishTimedOut(ctx, e, now)
	}

	nodeName := e.CurrentNode
	node, ok := g.Node(nodeName)
	if !ok {
		return c.finishFailed(ctx, e, now, nodeName, policy.KindCatchAll,
			fmt.Sprintf("node %q does not exist in graph %q", nodeName, g.Name))
	}

	switch n := node.(type) {
	case *graph.TaskNode:
		return c.stepTask(ctx, e, now, nodeName, n)

	case *graph.ChoiceNode:
		next := n.Pick(e.Document)
		e.CurrentNode = next
		e.WakeAt = now
		return c.complete(ctx, e, now, nodeName, execution.TransitionChose, next, nil)

	case *graph.WaitNode:
		e.CurrentNode = n.Next
		e.WakeAt = now.Add(n.Duration)
		return c.complete(ctx, e, now, nodeName, execution.TransitionWaitStarted, n.Duration.String(), nil)

	case *graph.PassNode:
		if applyErr := n.Apply(e.Document, c.metadata(e)); applyErr != nil {
			return c.finishFailed(ctx, e, now, nodeName, policy.KindCatchAll, applyErr.Error())
		}
		e.CurrentNode = n.Next
		e.WakeAt = now
		return c.complete(ctx, e, now, nodeName, execution.TransitionPassed, "", nil)

	case *graph.TerminalNode:
		e.Output = n.Result(e.Document, c.metadata(e), e.Input)
		e.Status = execution.StatusSucceeded
		e.CompletedAt = now
		after := func(ctx context.Context) {
			payload, _ := json.Marshal(e.Output)
			c.publish(ctx, event.ExecutionSucceeded, e, payload)
			c.extensions.EmitExecutionSucceeded(ctx, e, now.Sub(e.StartedAt))
			c.logger.Info("execution succeeded",
				slog.String("execution_id", e.ID.String()),
				slog.String("graph", e.GraphName),
				slog.Duration("elapsed", now.Sub(e.StartedAt)),
			)
		}
		return c.complete(ctx, e, now, nodeName, execution.TransitionSucceeded, "", after)

	default:
		return c.finishFailed(ctx, e, now, nodeName, policy.KindCatchAll,
			fmt.Sprintf("node %q has unknown kind", nodeName))
	}
}

// stepTask invokes the node's handler through the middleware chain and
// routes the outcome: merge and advance on success, retry/catch/fail on
// error.
func (c *Coordinator) stepTask(ctx context.Context, e *execution.Execution, now time.Time, name string, n *graph.TaskNode) error {
	handler, ok := c.handlers.Get(n.HandlerRef)
	if !ok {
		return c.finishFailed(ctx, e, now, name, policy.KindCatchAll,
			fmt.Sprintf("no handler registered for %q", n.HandlerRef))
	}

	inv := &task.Invocation{
		ExecutionID: e.ID,
		GraphName:   e.GraphName,
		NodeName:    name,
		HandlerRef:  n.HandlerRef,
		Attempt:     totalAttempts(e, name) + 1,
		Timeout:     n.InvokeTimeout,
	}

	// The handler gets a deep copy; its result is merged back only through
	// ResultPath, never by mutation.
	input := e.Document.Map()
	result, err := c.invoke(ctx, inv, func(ctx context.Context) (map[string]any, error) {
		return handler(ctx, input)
	})
	if err != nil {
		return c.handleTaskFailure(ctx, e, now, name, n, err)
	}

	if result != nil {
		if mergeErr := e.Document.Merge(n.ResultPath, result); mergeErr != nil {
			return c.finishFailed(ctx, e, now, name, policy.KindCatchAll, mergeErr.Error())
		}
	}
	e.ClearAttempts(name)
	e.CurrentNode = n.Next
	e.WakeAt = now
	return c.complete(ctx, e, now, name, execution.TransitionTaskSucceeded, n.HandlerRef, nil)
}

// handleTaskFailure runs a classified handler failure through the node's
// retry and catch rules.
func (c *Coordinator) handleTaskFailure(ctx context.Context, e *execution.Execution, now time.Time, name string, n *graph.TaskNode, err error) error {
	kind := task.Classify(err)
	out := policy.Decide(n.Retry, n.Catch, kind, e.AttemptCount(name, kind))

	switch out.Decision {
	case policy.DecideRetry:
		e.RecordAttempt(name, kind)
		e.WakeAt = now.Add(out.Delay)
		attempt := e.AttemptCount(name, kind)
		after := func(ctx context.Context) {
			c.extensions.EmitTaskRetrying(ctx, e, name, kind, attempt, e.WakeAt)
		}
		detail := fmt.Sprintf("%s attempt %d, next in %s", kind, attempt, out.Delay)
		return c.complete(ctx, e, now, name, execution.TransitionRetryScheduled, detail, after)

	case policy.DecideCatch:
		info := map[string]any{
			"Kind":  string(kind),
			"Cause": failureMessage(err),
		}
		if setErr := e.Document.Set(errorInfoPath, info); setErr != nil {
			return c.finishFailed(ctx, e, now, name, kind, setErr.Error())
		}
		e.CurrentNode = out.Next
		e.WakeAt = now
		after := func(ctx context.Context) {
			c.extensions.EmitErrorCaught(ctx, e, name, kind, out.Next)
		}
		return c.complete(ctx, e, now, name, execution.TransitionCaught, string(kind)+" -> "+out.Next, after)

	default:
		return c.finishFailed(ctx, e, now, name, kind, failureMessage(err))
	}
}

// finishFailed ends the execution as FAILED, archives it, and publishes the
// failure event.
func (c *Coordinator) finishFailed(ctx context.Context, e *execution.Execution, now time.Time, node string, kind policy.Kind, message string) error {
	e.Status = execution.StatusFailed
	e.Failure = &execution.FailureCause{Kind: kind, Message: message}
	e.CompletedAt = now

	after := func(ctx context.Context) {
		c.deadLetter(ctx, e)
		payload, _ := json.Marshal(e.Failure)
		c.publish(ctx, event.ExecutionFailed, e, payload)
		c.extensions.EmitExecutionFailed(ctx, e, e.Failure)
		c.logger.Warn("execution failed",
			slog.String("execution_id", e.ID.String()),
			slog.String("graph", e.GraphName),
			slog.String("node", node),
			slog.String("kind", string(kind)),
			slog.String("cause", message),
		)
	}
	return c.complete(ctx, e, now, node, execution.TransitionFailed, message, after)
}

// finishTimedOut ends the execution as TIMED_OUT. The step token CAS
// guarantees the transition is recorded exactly once even when several
// steppers see the expired deadline.
func (c *Coordinator) finishTimedOut(ctx context.Context, e *execution.Execution, now time.Time) error {
	e.Status = execution.StatusTimedOut
	e.CompletedAt = now

	after := func(ctx context.Context) {
		c.deadLetter(ctx, e)
		payload, _ := json.Marshal(map[string]any{"deadline": e.Deadline})
		c.publish(ctx, event.ExecutionTimedOut, e, payload)
		c.extensions.EmitExecutionTimedOut(ctx, e)
		c.logger.Warn("execution timed out",
			slog.String("execution_id", e.ID.String()),
			slog.String("graph", e.GraphName),
			slog.String("node", e.CurrentNode),
			slog.Time("deadline", e.Deadline),
		)
	}
	return c.complete(ctx, e, now, e.CurrentNode, execution.TransitionTimedOut, "", after)
}

// complete persists the step outcome. On success it records history, runs
// the step's side effects, and notifies extensions. A stale claim drops the
// step entirely: no history, no events, no hooks.
func (c *Coordinator) complete(ctx context.Context, e *execution.Execution, start time.Time, node string, transition execution.Transition, detail string, after func(context.Context)) error {
	if err := c.store.CompleteStep(ctx, e); err != nil {
		if errors.Is(err, stategraph.ErrStaleStep) {
			c.logger.Debug("step dropped, claim was reissued",
				slog.String("execution_id", e.ID.String()),
				slog.String("node", node),
			)
			return nil
		}
		return fmt.Errorf("complete step: %w", err)
	}

	c.record(ctx, e, node, transition, detail)
	if after != nil {
		after(ctx)
	}
	c.extensions.EmitStepCompleted(ctx, e, node, transition, c.now().Sub(start))
	return nil
}

// totalAttempts sums consumed retries for a node across all error kinds.
func totalAttempts(e *execution.Execution, node string) int {
	total := 0
	for _, n := range e.Attempts[node] {
		total += n
	}
	return total
}

// failureMessage extracts the handler's message verbatim from a classified
// error, falling back to the raw error text.
func failureMessage(err error) string {
	var te *task.Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}
