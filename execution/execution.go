// Package execution defines the durable execution entity that moves through
// a state graph, its status lifecycle, per-step history, and the Store
// contract backends implement.
package execution

import (
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/document"
	"github.com/xraph/stategraph/id"
	"github.com/xraph/stategraph/policy"
)

// Status is the lifecycle state of an execution. RUNNING is the only
// non-terminal status; a terminal status is reached exactly once and the
// execution is immutable afterwards.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusTimedOut  Status = "TIMED_OUT"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusTimedOut
}

// FailureCause carries the classified error that ended a FAILED execution,
// with the handler's kind and message verbatim.
type FailureCause struct {
	Kind    policy.Kind `json:"kind"`
	Message string      `json:"message"`
}

// Execution is one durable run of a graph. The engine is the only writer;
// between steps the execution lives entirely in its Store, with no goroutine
// attached.
type Execution struct {
	stategraph.Entity

	ID          id.ExecutionID     `json:"id"`
	GraphName   string             `json:"graph_name"`
	Status      Status             `json:"status"`
	CurrentNode string             `json:"current_node"`
	Document    *document.Document `json:"document"`
	Input       map[string]any     `json:"input"`
	Output      map[string]any     `json:"output,omitempty"`
	Failure     *FailureCause      `json:"failure,omitempty"`

	// Attempts counts consumed retries per node per error kind. Counters
	// for a node are cleared when the node succeeds, so a poll loop that
	// revisits the node starts each visit with a fresh budget.
	Attempts map[string]map[policy.Kind]int `json:"attempts,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	Deadline    time.Time `json:"deadline"`
	WakeAt      time.Time `json:"wake_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// StepToken and ClaimedAt implement exactly-once stepping: ClaimDue
	// issues a fresh token, CompleteStep rejects stale ones. A claim whose
	// ClaimedAt is older than the store's claim TTL may be reissued.
	StepToken string    `json:"step_token,omitempty"`
	ClaimedAt time.Time `json:"claimed_at,omitzero"`
}

// DueAt returns when the execution next needs a step: its wake time, or its
// deadline if that comes first. Timeouts fire even while suspended.
func (e *Execution) DueAt() time.Time {
	if e.Deadline.Before(e.WakeAt) {
		return e.Deadline
	}
	return e.WakeAt
}

// Due reports whether the execution needs a step at the given instant.
func (e *Execution) Due(now time.Time) bool {
	return e.Status == StatusRunning && !e.DueAt().After(now)
}

// AttemptCount returns the consumed retries for a node and error kind.
func (e *Execution) AttemptCount(node string, kind policy.Kind) int {
	return e.Attempts[node][kind]
}

// RecordAttempt increments the retry counter for a node and error kind.
func (e *Execution) RecordAttempt(node string, kind policy.Kind) {
	if e.Attempts == nil {
		e.Attempts = make(map[string]map[policy.Kind]int)
	}
	if e.Attempts[node] == nil {
		e.Attempts[node] = make(map[policy.Kind]int)
	}
	e.Attempts[node][kind]++
}

// ClearAttempts drops all retry counters for a node.
func (e *Execution) ClearAttempts(node string) {
	delete(e.Attempts, node)
}

// Clone returns an independent deep copy.
func (e *Execution) Clone() *Execution {
	out := *e
	if e.Document != nil {
		out.Document = e.Document.Clone()
	}
	out.Input = copyObject(e.Input)
	out.Output = copyObject(e.Output)
	if e.Failure != nil {
		f := *e.Failure
		out.Failure = &f
	}
	if e.Attempts != nil {
		out.Attempts = make(map[string]map[policy.Kind]int, len(e.Attempts))
		for node, kinds := range e.Attempts {
			m := make(map[policy.Kind]int, len(kinds))
			for k, n := range kinds {
				m[k] = n
			}
			out.Attempts[node] = m
		}
	}
	return &out
}

func copyObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return document.FromMap(m).Map()
}

// Transition is the kind of step a history entry records.
type Transition string

const (
	TransitionStarted        Transition = "started"
	TransitionTaskSucceeded  Transition = "task-succeeded"
	TransitionRetryScheduled Transition = "retry-scheduled"
	TransitionCaught         Transition = "caught"
	TransitionChose          Transition = "chose"
	TransitionWaitStarted    Transition = "wait-started"
	TransitionPassed         Transition = "passed"
	TransitionSucceeded      Transition = "succeeded"
	TransitionFailed         Transition = "failed"
	TransitionTimedOut       Transition = "timed-out"
)

// HistoryEntry is one recorded step of an execution.
type HistoryEntry struct {
	stategraph.Entity

	ID          id.HistoryID   `json:"id"`
	ExecutionID id.ExecutionID `json:"execution_id"`
	Seq         int            `json:"seq"`
	Node        string         `json:"node"`
	Transition  Transition     `json:"transition"`
	Detail      string         `json:"detail,omitempty"`
}
