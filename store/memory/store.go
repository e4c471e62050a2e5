package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/event"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ execution.Store  = (*Store)(nil)
	_ event.Store      = (*Store)(nil)
	_ deadletter.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	executions  map[string]*execution.Execution
	history     map[string][]*execution.HistoryEntry // key: execution ID
	events      map[string]*event.Event
	deadletters map[string]*deadletter.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		executions:  make(map[string]*execution.Execution),
		history:     make(map[string][]*execution.HistoryEntry),
		events:      make(map[string]*event.Event),
		deadletters: make(map[string]*deadletter.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Execution Store
// ──────────────────────────────────────────────────

// CreateExecution persists a new execution.
func (m *Store) CreateExecution(_ context.Context, e *execution.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := e.ID.String()
	if _, exists := m.executions[key]; exists {
		return stategraph.ErrExecutionExists
	}
	m.executions[key] = e.Clone()
	return nil
}

// GetExecution retrieves an execution by ID.
func (m *Store) GetExecution(_ context.Context, execID id.ExecutionID) (*execution.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.executions[execID.String()]
	if !ok {
		return nil, stategraph.ErrUnknownExecution
	}
	return e.Clone(), nil
}

// ListExecutions returns executions matching opts, newest first.
func (m *Store) ListExecutions(_ context.Context, opts execution.ListOpts) ([]*execution.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*execution.Execution, 0, len(m.executions))
	for _, e := range m.executions {
		if opts.GraphName != "" && e.GraphName != opts.GraphName {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		result = append(result, e.Clone())
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].StartedAt.After(result[k].StartedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// ClaimDue atomically claims up to limit due RUNNING executions, stamping
// each with a fresh step token. Executions holding an unexpired claim are
// skipped.
func (m *Store) ClaimDue(_ context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*execution.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := make([]*execution.Execution, 0, len(m.executions))
	for _, e := range m.executions {
		if !e.Due(now) {
			continue
		}
		if e.StepToken != "" && e.ClaimedAt.Add(claimTTL).After(now) {
			continue
		}
		candidates = append(candidates, e)
	}

	// Oldest due first so starved executions are picked up eventually.
	sort.Slice(candidates, func(i, k int) bool {
		return candidates[i].DueAt().Before(candidates[k].DueAt())
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*execution.Execution, len(candidates))
	for i, e := range candidates {
		e.StepToken = id.NewStepperID().String()
		e.ClaimedAt = now
		result[i] = e.Clone()
	}

	return result, nil
}

// CompleteStep persists the outcome of one step if the caller still holds
// the claim, then releases it.
func (m *Store) CompleteStep(_ context.Context, e *execution.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := e.ID.String()
	stored, ok := m.executions[key]
	if !ok {
		return stategraph.ErrUnknownExecution
	}
	if stored.StepToken == "" || stored.StepToken != e.StepToken {
		return stategraph.ErrStaleStep
	}

	cp := e.Clone()
	cp.StepToken = ""
	cp.ClaimedAt = time.Time{}
	cp.UpdatedAt = time.Now().UTC()
	m.executions[key] = cp
	return nil
}

// AppendHistory records one step transition, assigning the next sequence
// number when entry.Seq is zero.
func (m *Store) AppendHistory(_ context.Context, entry *execution.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entry.ExecutionID.String()
	cp := *entry
	if cp.Seq == 0 {
		cp.Seq = len(m.history[key]) + 1
	}
	m.history[key] = append(m.history[key], &cp)
	return nil
}

// ListHistory returns an execution's history ordered by sequence.
func (m *Store) ListHistory(_ context.Context, execID id.ExecutionID) ([]*execution.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.history[execID.String()]
	result := make([]*execution.HistoryEntry, len(entries))
	for i, entry := range entries {
		cp := *entry
		result[i] = &cp
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].Seq < result[k].Seq
	})

	return result, nil
}

// ──────────────────────────────────────────────────
// Event Store
// ──────────────────────────────────────────────────

// PublishEvent persists a new event.
func (m *Store) PublishEvent(_ context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[evt.ID.String()] = evt
	return nil
}

// SubscribeEvent waits for an unacked event matching the given name.
// Poll-based: loops with 10ms sleep until an event is available or timeout.
func (m *Store) SubscribeEvent(ctx context.Context, name string, timeout time.Duration) (*event.Event, error) {
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			return nil, nil
		}

		m.mu.RLock()
		for _, evt := range m.events {
			if evt.Name == name && !evt.Acked {
				m.mu.RUnlock()
				return evt, nil
			}
		}
		m.mu.RUnlock()

		// Brief sleep to avoid busy-waiting.
		time.Sleep(10 * time.Millisecond)
	}
}

// AckEvent acknowledges an event, marking it as consumed.
func (m *Store) AckEvent(_ context.Context, eventID id.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	evt, ok := m.events[eventID.String()]
	if !ok {
		return stategraph.ErrEventNotFound
	}
	evt.Acked = true
	return nil
}

// ──────────────────────────────────────────────────
// Dead Letter Store
// ──────────────────────────────────────────────────

// PushDeadLetter archives a terminal failure.
func (m *Store) PushDeadLetter(_ context.Context, entry *deadletter.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deadletters[entry.ID.String()] = entry
	return nil
}

// ListDeadLetters returns dead letter entries matching the given options.
func (m *Store) ListDeadLetters(_ context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*deadletter.Entry, 0, len(m.deadletters))
	for _, e := range m.deadletters {
		if opts.GraphName != "" && e.GraphName != opts.GraphName {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].FailedAt.Before(result[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// GetDeadLetter retrieves a dead letter entry by ID.
func (m *Store) GetDeadLetter(_ context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.deadletters[entryID.String()]
	if !ok {
		return nil, stategraph.ErrDeadLetterNotFound
	}
	return e, nil
}

// MarkResubmitted stamps a dead letter entry's ResubmittedAt.
func (m *Store) MarkResubmitted(_ context.Context, entryID id.DeadLetterID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.deadletters[entryID.String()]
	if !ok {
		return stategraph.ErrDeadLetterNotFound
	}
	now := time.Now().UTC()
	e.ResubmittedAt = &now
	return nil
}

// PurgeDeadLetters removes entries with FailedAt before the given time.
func (m *Store) PurgeDeadLetters(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.deadletters {
		if e.FailedAt.Before(before) {
			delete(m.deadletters, key)
			count++
		}
	}
	return count, nil
}

// CountDeadLetters returns the total number of archived entries.
func (m *Store) CountDeadLetters(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.deadletters)), nil
}
