package deadletter

import (
	"context"
	"time"

	"github.com/xraph/stategraph/id"
)

// ListOpts controls pagination and filtering for dead letter list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// GraphName filters by graph. Empty means all graphs.
	GraphName string
}

// Store defines the persistence contract for the dead letter archive.
type Store interface {
	// PushDeadLetter archives a terminal failure.
	PushDeadLetter(ctx context.Context, entry *Entry) error

	// ListDeadLetters returns entries matching the given options.
	ListDeadLetters(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetDeadLetter retrieves an entry by ID.
	// Returns stategraph.ErrDeadLetterNotFound when absent.
	GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*Entry, error)

	// MarkResubmitted stamps an entry's ResubmittedAt. The actual
	// resubmission is handled at the service layer.
	MarkResubmitted(ctx context.Context, entryID id.DeadLetterID) error

	// PurgeDeadLetters removes entries with FailedAt before the given time.
	// Returns the number of entries removed.
	PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error)

	// CountDeadLetters returns the total number of archived entries.
	CountDeadLetters(ctx context.Context) (int64, error)
}
