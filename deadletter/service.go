package deadletter

import (
	"context"
	"time"

	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
)

// SubmitFunc starts a new execution of a graph. The engine's Submit
// satisfies this; it is injected so the archive does not depend on the
// engine.
type SubmitFunc func(ctx context.Context, graphName string, input map[string]any) (*execution.Execution, error)

// Service provides high-level dead letter operations over a Store.
type Service struct {
	store  Store
	submit SubmitFunc
}

// NewService creates a dead letter service. submit may be nil when
// resubmission is not needed (inspection-only deployments).
func NewService(store Store, submit SubmitFunc) *Service {
	return &Service{store: store, submit: submit}
}

// Push archives a terminally failed execution.
func (s *Service) Push(ctx context.Context, e *execution.Execution) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:          id.NewDeadLetterID(),
		ExecutionID: e.ID,
		GraphName:   e.GraphName,
		Status:      e.Status,
		Node:        e.CurrentNode,
		Input:       e.Input,
		Cause:       e.Failure,
		FailedAt:    now,
		CreatedAt:   now,
	}
	if e.Document != nil {
		entry.Document = e.Document.Map()
	}
	return s.store.PushDeadLetter(ctx, entry)
}

// Resubmit starts a fresh execution of the entry's graph with its original
// input and marks the entry as resubmitted. The new execution gets a new ID
// and a full timeout budget.
func (s *Service) Resubmit(ctx context.Context, entryID id.DeadLetterID) (*execution.Execution, error) {
	entry, err := s.store.GetDeadLetter(ctx, entryID)
	if err != nil {
		return nil, err
	}

	e, err := s.submit(ctx, entry.GraphName, entry.Input)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkResubmitted(ctx, entryID); err != nil {
		// The new execution is already running. Surface the error but
		// return the execution so the caller can track it.
		return e, err
	}
	return e, nil
}

// Store returns the underlying dead letter store for direct access to
// List, Get, Purge, and Count operations.
func (s *Service) Store() Store {
	return s.store
}
