package event

import (
	"time"

	"github.com/xraph/stategraph/id"
)

// Well-known event names published by the engine when an execution reaches
// a terminal status. Notification collaborators subscribe to these.
const (
	ExecutionSucceeded = "execution.succeeded"
	ExecutionFailed    = "execution.failed"
	ExecutionTimedOut  = "execution.timed_out"
)

// Event is a named notification published to the event bus, tied to the
// execution that produced it.
type Event struct {
	ID          id.EventID     `json:"id"`
	Name        string         `json:"name"`
	ExecutionID id.ExecutionID `json:"execution_id"`
	GraphName   string         `json:"graph_name"`
	Payload     []byte         `json:"payload,omitempty"`
	Acked       bool           `json:"acked"`
	CreatedAt   time.Time      `json:"created_at"`
}
