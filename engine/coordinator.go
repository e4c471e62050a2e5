package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/document"
	"github.com/xraph/stategraph/event"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/ext"
	"github.com/xraph/stategraph/graph"
	"github.com/xraph/stategraph/id"
	"github.com/xraph/stategraph/middleware"
	"github.com/xraph/stategraph/task"
)

// Coordinator implements the execution semantics: submission and the
// single-transition Step. It holds no per-execution state; everything an
// execution needs lives in its store record, so any stepper in any process
// can pick it up.
type Coordinator struct {
	graphs      *graph.Registry
	handlers    *task.Registry
	store       execution.Store
	events      *event.Bus
	deadletters *deadletter.Service
	extensions  *ext.Registry
	invoke      middleware.Middleware
	logger      *slog.Logger

	// now is the clock used for deadlines, wake times, and retry delays.
	// Injectable for tests.
	now func() time.Time
}

// Submit starts a new execution of the named graph. The input becomes both
// the initial Document and the immutable original input. The execution is
// created due immediately, so the next poll steps its start node.
func (c *Coordinator) Submit(ctx context.Context, graphName string, input map[string]any) (*execution.Execution, error) {
	g, err := c.graphs.Get(graphName)
	if err != nil {
		return nil, err
	}

	now := c.now()
	e := &execution.Execution{
		Entity:      stategraph.NewEntity(),
		ID:          id.NewExecutionID(),
		GraphName:   g.Name,
		Status:      execution.StatusRunning,
		CurrentNode: g.StartNode,
		Document:    document.FromMap(input),
		Input:       document.FromMap(input).Map(),
		StartedAt:   now,
		Deadline:    now.Add(g.Timeout),
		WakeAt:      now,
	}

	if err := c.store.CreateExecution(ctx, e); err != nil {
		return nil, err
	}
	c.record(ctx, e, g.StartNode, execution.TransitionStarted, "")
	c.extensions.EmitExecutionStarted(ctx, e)

	c.logger.Info("execution submitted",
		slog.String("execution_id", e.ID.String()),
		slog.String("graph", g.Name),
		slog.Time("deadline", e.Deadline),
	)
	return e, nil
}

// Status returns the execution by ID.
func (c *Coordinator) Status(ctx context.Context, execID id.ExecutionID) (*execution.Execution, error) {
	return c.store.GetExecution(ctx, execID)
}

// History returns the execution's recorded transitions in order.
func (c *Coordinator) History(ctx context.Context, execID id.ExecutionID) ([]*execution.HistoryEntry, error) {
	return c.store.ListHistory(ctx, execID)
}

// List returns executions matching opts, newest first.
func (c *Coordinator) List(ctx context.Context, opts execution.ListOpts) ([]*execution.Execution, error) {
	return c.store.ListExecutions(ctx, opts)
}

// metadata builds the read-only $$ document for path resolution.
func (c *Coordinator) metadata(e *execution.Execution) *document.Document {
	return document.FromMap(map[string]any{
		"Execution": map[string]any{
			"Id":        e.ID.String(),
			"GraphName": e.GraphName,
			"StartTime": e.StartedAt.UTC().Format(time.RFC3339),
			"Input":     e.Input,
		},
	})
}

// record appends one history entry. History is advisory; a write failure is
// logged but never blocks stepping.
func (c *Coordinator) record(ctx context.Context, e *execution.Execution, node string, transition execution.Transition, detail string) {
	entry := &execution.HistoryEntry{
		Entity:      stategraph.NewEntity(),
		ID:          id.NewHistoryID(),
		ExecutionID: e.ID,
		Node:        node,
		Transition:  transition,
		Detail:      detail,
	}
	if err := c.store.AppendHistory(ctx, entry); err != nil {
		c.logger.Warn("append history",
			slog.String("execution_id", e.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// publish emits a terminal event. Event delivery is at-least-once and
// advisory; a publish failure is logged but never blocks stepping.
func (c *Coordinator) publish(ctx context.Context, name string, e *execution.Execution, payload []byte) {
	if _, err := c.events.Publish(ctx, name, e.ID, e.GraphName, payload); err != nil {
		c.logger.Warn("publish event",
			slog.String("event", name),
			slog.String("execution_id", e.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// deadLetter archives a terminally failed execution.
func (c *Coordinator) deadLetter(ctx context.Context, e *execution.Execution) {
	if err := c.deadletters.Push(ctx, e); err != nil {
		c.logger.Error("push dead letter",
			slog.String("execution_id", e.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	c.extensions.EmitExecutionDeadLettered(ctx, e)
}
