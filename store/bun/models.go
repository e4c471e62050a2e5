package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/document"
	"github.com/xraph/stategraph/event"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
	"github.com/xraph/stategraph/policy"
)

// ── Execution model ───────────────────────────────────────────────

type executionModel struct {
	bun.BaseModel `bun:"table:stategraph_executions"`

	ID          string          `bun:"id,pk"`
	GraphName   string          `bun:"graph_name,notnull"`
	Status      string          `bun:"status,notnull,default:'RUNNING'"`
	CurrentNode string          `bun:"current_node,notnull"`
	Document    json.RawMessage `bun:"document,notnull,type:jsonb"`
	Input       json.RawMessage `bun:"input,notnull,type:jsonb"`
	Output      json.RawMessage `bun:"output,type:jsonb"`
	Failure     json.RawMessage `bun:"failure,type:jsonb"`
	Attempts    json.RawMessage `bun:"attempts,type:jsonb"`
	StartedAt   time.Time       `bun:"started_at,notnull"`
	Deadline    time.Time       `bun:"deadline,notnull"`
	WakeAt      time.Time       `bun:"wake_at,notnull"`
	DueAt       time.Time       `bun:"due_at,notnull"`
	CompletedAt *time.Time      `bun:"completed_at"`
	StepToken   string          `bun:"step_token,notnull,default:''"`
	ClaimedAt   *time.Time      `bun:"claimed_at"`
	CreatedAt   time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}

func toExecutionModel(e *execution.Execution) (*executionModel, error) {
	doc, err := json.Marshal(e.Document.Map())
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: marshal document: %w", err)
	}
	input, err := json.Marshal(e.Input)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: marshal input: %w", err)
	}

	m := &executionModel{
		ID:          e.ID.String(),
		GraphName:   e.GraphName,
		Status:      string(e.Status),
		CurrentNode: e.CurrentNode,
		Document:    doc,
		Input:       input,
		StartedAt:   e.StartedAt,
		Deadline:    e.Deadline,
		WakeAt:      e.WakeAt,
		DueAt:       e.DueAt(),
		StepToken:   e.StepToken,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}

	if e.Output != nil {
		m.Output, _ = json.Marshal(e.Output) //nolint:errcheck // map of JSON values
	}
	if e.Failure != nil {
		m.Failure, _ = json.Marshal(e.Failure) //nolint:errcheck // plain struct
	}
	if len(e.Attempts) > 0 {
		m.Attempts, _ = json.Marshal(e.Attempts) //nolint:errcheck // map of counters
	}
	if !e.CompletedAt.IsZero() {
		t := e.CompletedAt
		m.CompletedAt = &t
	}
	if !e.ClaimedAt.IsZero() {
		t := e.ClaimedAt
		m.ClaimedAt = &t
	}
	return m, nil
}

func fromExecutionModel(m *executionModel) (*execution.Execution, error) {
	parsedID, err := id.ParseExecutionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: parse execution id %q: %w", m.ID, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(m.Document, &doc); err != nil {
		return nil, fmt.Errorf("stategraph/bun: unmarshal document: %w", err)
	}
	var input map[string]any
	if err := json.Unmarshal(m.Input, &input); err != nil {
		return nil, fmt.Errorf("stategraph/bun: unmarshal input: %w", err)
	}

	e := &execution.Execution{
		Entity: stategraph.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          parsedID,
		GraphName:   m.GraphName,
		Status:      execution.Status(m.Status),
		CurrentNode: m.CurrentNode,
		Document:    document.FromMap(doc),
		Input:       input,
		StartedAt:   m.StartedAt,
		Deadline:    m.Deadline,
		WakeAt:      m.WakeAt,
		StepToken:   m.StepToken,
	}

	if len(m.Output) > 0 {
		_ = json.Unmarshal(m.Output, &e.Output) //nolint:errcheck // written by toExecutionModel
	}
	if len(m.Failure) > 0 {
		var f execution.FailureCause
		_ = json.Unmarshal(m.Failure, &f) //nolint:errcheck // written by toExecutionModel
		e.Failure = &f
	}
	if len(m.Attempts) > 0 {
		attempts := make(map[string]map[policy.Kind]int)
		_ = json.Unmarshal(m.Attempts, &attempts) //nolint:errcheck // written by toExecutionModel
		e.Attempts = attempts
	}
	if m.CompletedAt != nil {
		e.CompletedAt = *m.CompletedAt
	}
	if m.ClaimedAt != nil {
		e.ClaimedAt = *m.ClaimedAt
	}
	return e, nil
}

// ── History model ─────────────────────────────────────────────────

type historyModel struct {
	bun.BaseModel `bun:"table:stategraph_history"`

	ID          string    `bun:"id,pk"`
	ExecutionID string    `bun:"execution_id,notnull"`
	Seq         int       `bun:"seq,notnull"`
	Node        string    `bun:"node,notnull"`
	Transition  string    `bun:"transition,notnull"`
	Detail      string    `bun:"detail,notnull,default:''"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toHistoryModel(entry *execution.HistoryEntry) *historyModel {
	return &historyModel{
		ID:          entry.ID.String(),
		ExecutionID: entry.ExecutionID.String(),
		Seq:         entry.Seq,
		Node:        entry.Node,
		Transition:  string(entry.Transition),
		Detail:      entry.Detail,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
}

func fromHistoryModel(m *historyModel) (*execution.HistoryEntry, error) {
	parsedID, err := id.ParseHistoryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: parse history id %q: %w", m.ID, err)
	}
	parsedExecID, err := id.ParseExecutionID(m.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: parse execution id %q: %w", m.ExecutionID, err)
	}

	return &execution.HistoryEntry{
		Entity: stategraph.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          parsedID,
		ExecutionID: parsedExecID,
		Seq:         m.Seq,
		Node:        m.Node,
		Transition:  execution.Transition(m.Transition),
		Detail:      m.Detail,
	}, nil
}

// ── Event model ───────────────────────────────────────────────────

type eventModel struct {
	bun.BaseModel `bun:"table:stategraph_events"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	ExecutionID string    `bun:"execution_id,notnull"`
	GraphName   string    `bun:"graph_name,notnull"`
	Payload     []byte    `bun:"payload,type:bytea"`
	Acked       bool      `bun:"acked,notnull,default:false"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:          evt.ID.String(),
		Name:        evt.Name,
		ExecutionID: evt.ExecutionID.String(),
		GraphName:   evt.GraphName,
		Payload:     evt.Payload,
		Acked:       evt.Acked,
		CreatedAt:   evt.CreatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	parsedID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: parse event id %q: %w", m.ID, err)
	}

	evt := &event.Event{
		ID:        parsedID,
		Name:      m.Name,
		GraphName: m.GraphName,
		Payload:   m.Payload,
		Acked:     m.Acked,
		CreatedAt: m.CreatedAt,
	}
	if m.ExecutionID != "" {
		parsedExecID, eErr := id.ParseExecutionID(m.ExecutionID)
		if eErr == nil {
			evt.ExecutionID = parsedExecID
		}
	}
	return evt, nil
}

// ── Dead letter model ─────────────────────────────────────────────

type deadLetterModel struct {
	bun.BaseModel `bun:"table:stategraph_dead_letters"`

	ID            string          `bun:"id,pk"`
	ExecutionID   string          `bun:"execution_id,notnull"`
	GraphName     string          `bun:"graph_name,notnull"`
	Status        string          `bun:"status,notnull"`
	Node          string          `bun:"node,notnull"`
	Input         json.RawMessage `bun:"input,notnull,type:jsonb"`
	Document      json.RawMessage `bun:"document,type:jsonb"`
	Cause         json.RawMessage `bun:"cause,type:jsonb"`
	FailedAt      time.Time       `bun:"failed_at,notnull"`
	ResubmittedAt *time.Time      `bun:"resubmitted_at"`
	CreatedAt     time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}

func toDeadLetterModel(e *deadletter.Entry) (*deadLetterModel, error) {
	input, err := json.Marshal(e.Input)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: marshal dead letter input: %w", err)
	}

	m := &deadLetterModel{
		ID:            e.ID.String(),
		ExecutionID:   e.ExecutionID.String(),
		GraphName:     e.GraphName,
		Status:        string(e.Status),
		Node:          e.Node,
		Input:         input,
		FailedAt:      e.FailedAt,
		ResubmittedAt: e.ResubmittedAt,
		CreatedAt:     e.CreatedAt,
	}
	if e.Document != nil {
		m.Document, _ = json.Marshal(e.Document) //nolint:errcheck // map of JSON values
	}
	if e.Cause != nil {
		m.Cause, _ = json.Marshal(e.Cause) //nolint:errcheck // plain struct
	}
	return m, nil
}

func fromDeadLetterModel(m *deadLetterModel) (*deadletter.Entry, error) {
	parsedID, err := id.ParseDeadLetterID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: parse dead letter id %q: %w", m.ID, err)
	}
	parsedExecID, err := id.ParseExecutionID(m.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: parse execution id %q: %w", m.ExecutionID, err)
	}

	e := &deadletter.Entry{
		ID:            parsedID,
		ExecutionID:   parsedExecID,
		GraphName:     m.GraphName,
		Status:        execution.Status(m.Status),
		Node:          m.Node,
		FailedAt:      m.FailedAt,
		ResubmittedAt: m.ResubmittedAt,
		CreatedAt:     m.CreatedAt,
	}
	if len(m.Input) > 0 {
		_ = json.Unmarshal(m.Input, &e.Input) //nolint:errcheck // written by toDeadLetterModel
	}
	if len(m.Document) > 0 {
		_ = json.Unmarshal(m.Document, &e.Document) //nolint:errcheck // written by toDeadLetterModel
	}
	if len(m.Cause) > 0 {
		var c execution.FailureCause
		_ = json.Unmarshal(m.Cause, &c) //nolint:errcheck // written by toDeadLetterModel
		e.Cause = &c
	}
	return e, nil
}
