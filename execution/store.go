package execution

import (
	"context"
	"time"

	"github.com/xraph/stategraph/id"
)

// ListOpts filters and pages execution listings.
type ListOpts struct {
	GraphName string
	Status    Status
	Limit     int
	Offset    int
}

// Store persists executions and their step history. Backends must implement
// ClaimDue and CompleteStep atomically; the pair is what makes stepping
// exactly-once under concurrent steppers.
type Store interface {
	// CreateExecution persists a new execution.
	// Returns stategraph.ErrExecutionExists when the ID is already stored.
	CreateExecution(ctx context.Context, e *Execution) error

	// GetExecution returns the execution by ID.
	// Returns stategraph.ErrUnknownExecution when absent.
	GetExecution(ctx context.Context, execID id.ExecutionID) (*Execution, error)

	// ListExecutions returns executions matching opts, newest first.
	ListExecutions(ctx context.Context, opts ListOpts) ([]*Execution, error)

	// ClaimDue atomically claims up to limit RUNNING executions whose wake
	// time or deadline has passed, stamping each with a fresh step token.
	// An execution already claimed is skipped until its claim is older
	// than claimTTL, after which it may be reissued (its holder crashed).
	ClaimDue(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*Execution, error)

	// CompleteStep persists the outcome of one step. The stored step token
	// must match e.StepToken; otherwise the claim was reissued and the
	// write is rejected with stategraph.ErrStaleStep. On success the claim
	// is released.
	CompleteStep(ctx context.Context, e *Execution) error

	// AppendHistory records one step transition. When entry.Seq is zero the
	// store assigns the next sequence number for the execution.
	AppendHistory(ctx context.Context, entry *HistoryEntry) error

	// ListHistory returns an execution's history ordered by sequence.
	ListHistory(ctx context.Context, execID id.ExecutionID) ([]*HistoryEntry, error)
}
