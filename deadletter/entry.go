package deadletter

import (
	"time"

	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
)

// Entry is an archived terminal failure: the execution's identity, the
// original submission input, the Document at the time of failure, and the
// classified cause.
type Entry struct {
	ID            id.DeadLetterID         `json:"id"`
	ExecutionID   id.ExecutionID          `json:"execution_id"`
	GraphName     string                  `json:"graph_name"`
	Status        execution.Status        `json:"status"`
	Node          string                  `json:"node"`
	Input         map[string]any          `json:"input"`
	Document      map[string]any          `json:"document,omitempty"`
	Cause         *execution.FailureCause `json:"cause,omitempty"`
	FailedAt      time.Time               `json:"failed_at"`
	ResubmittedAt *time.Time              `json:"resubmitted_at,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}
