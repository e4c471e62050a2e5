//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/document"
	"github.com/xraph/stategraph/event"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
	bunstore "github.com/xraph/stategraph/store/bun"
)

// setupTestStore connects to the Postgres named by STATEGRAPH_TEST_DSN and
// returns a migrated Store. Skips when the variable is unset.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	dsn := os.Getenv("STATEGRAPH_TEST_DSN")
	if dsn == "" {
		t.Skip("STATEGRAPH_TEST_DSN not set")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("close db: %v", err)
		}
	})

	s := bunstore.New(db)
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Each test starts from a clean slate.
	for _, table := range []string{
		"stategraph_history",
		"stategraph_events",
		"stategraph_dead_letters",
		"stategraph_executions",
	} {
		if _, err := db.ExecContext(ctx, "TRUNCATE "+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return s
}

func newExecution(graphName string) *execution.Execution {
	now := time.Now().UTC()
	return &execution.Execution{
		Entity:      stategraph.NewEntity(),
		ID:          id.NewExecutionID(),
		GraphName:   graphName,
		Status:      execution.StatusRunning,
		CurrentNode: "CreateAccount",
		Document:    document.FromMap(map[string]any{"AccountName": "dev-sandbox"}),
		Input:       map[string]any{"AccountName": "dev-sandbox"},
		StartedAt:   now,
		Deadline:    now.Add(24 * time.Hour),
		WakeAt:      now,
	}
}

func TestExecutionLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := newExecution("provision-account")
	if err := s.CreateExecution(ctx, e); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	if err := s.CreateExecution(ctx, e); !errors.Is(err, stategraph.ErrExecutionExists) {
		t.Fatalf("duplicate create: got %v, want ErrExecutionExists", err)
	}

	got, err := s.GetExecution(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.GraphName != "provision-account" || got.CurrentNode != "CreateAccount" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if name, _ := got.Document.Get(document.MustPath("$.AccountName")); name != "dev-sandbox" {
		t.Fatalf("document round trip: got %v", name)
	}

	if _, err := s.GetExecution(ctx, id.NewExecutionID()); !errors.Is(err, stategraph.ErrUnknownExecution) {
		t.Fatalf("unknown get: got %v, want ErrUnknownExecution", err)
	}
}

func TestClaimAndCompleteStep(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := newExecution("provision-account")
	if err := s.CreateExecution(ctx, e); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	claimed, err := s.ClaimDue(ctx, time.Now().UTC(), 5*time.Minute, 10)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("claimed %d executions, want 1", len(claimed))
	}
	if claimed[0].StepToken == "" {
		t.Fatal("claimed execution has no step token")
	}

	// A second poll must not hand the execution out again.
	again, err := s.ClaimDue(ctx, time.Now().UTC(), 5*time.Minute, 10)
	if err != nil {
		t.Fatalf("second ClaimDue: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("reclaimed a held execution: %d", len(again))
	}

	done := claimed[0]
	done.CurrentNode = "Done"
	done.Status = execution.StatusSucceeded
	done.CompletedAt = time.Now().UTC()
	if err := s.CompleteStep(ctx, done); err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}

	got, err := s.GetExecution(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.StepToken != "" {
		t.Fatalf("claim not released: token %q", got.StepToken)
	}
	if got.Status != execution.StatusSucceeded {
		t.Fatalf("status = %q, want SUCCEEDED", got.Status)
	}

	// Terminal executions never come due again.
	final, err := s.ClaimDue(ctx, time.Now().UTC().Add(time.Hour), 5*time.Minute, 10)
	if err != nil {
		t.Fatalf("final ClaimDue: %v", err)
	}
	if len(final) != 0 {
		t.Fatalf("claimed a terminal execution: %d", len(final))
	}
}

func TestCompleteStep_StaleToken(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := newExecution("provision-account")
	if err := s.CreateExecution(ctx, e); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	now := time.Now().UTC()
	claimed, err := s.ClaimDue(ctx, now, time.Millisecond, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimDue: %v (%d)", err, len(claimed))
	}
	stale := claimed[0]

	// The claim expires and another stepper reissues it.
	reclaimed, err := s.ClaimDue(ctx, now.Add(time.Second), time.Millisecond, 1)
	if err != nil || len(reclaimed) != 1 {
		t.Fatalf("reclaim: %v (%d)", err, len(reclaimed))
	}
	if reclaimed[0].StepToken == stale.StepToken {
		t.Fatal("reclaim reused the stale token")
	}

	stale.CurrentNode = "Done"
	if err := s.CompleteStep(ctx, stale); !errors.Is(err, stategraph.ErrStaleStep) {
		t.Fatalf("stale CompleteStep: got %v, want ErrStaleStep", err)
	}
	if err := s.CompleteStep(ctx, reclaimed[0]); err != nil {
		t.Fatalf("current holder CompleteStep: %v", err)
	}
}

func TestHistorySequence(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := newExecution("provision-account")
	if err := s.CreateExecution(ctx, e); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	for _, tr := range []execution.Transition{
		execution.TransitionStarted,
		execution.TransitionTaskSucceeded,
		execution.TransitionSucceeded,
	} {
		entry := &execution.HistoryEntry{
			Entity:      stategraph.NewEntity(),
			ID:          id.NewHistoryID(),
			ExecutionID: e.ID,
			Node:        "CreateAccount",
			Transition:  tr,
		}
		if err := s.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	entries, err := s.ListHistory(ctx, e.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d history entries, want 3", len(entries))
	}
	for i, entry := range entries {
		if entry.Seq != i+1 {
			t.Fatalf("entry %d has seq %d", i, entry.Seq)
		}
	}
}

func TestEvents(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	evt := &event.Event{
		ID:          id.NewEventID(),
		Name:        event.ExecutionSucceeded,
		ExecutionID: id.NewExecutionID(),
		GraphName:   "provision-account",
		Payload:     []byte(`{"AccountId":"acct-123"}`),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.PublishEvent(ctx, evt); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	got, err := s.SubscribeEvent(ctx, event.ExecutionSucceeded, time.Second)
	if err != nil {
		t.Fatalf("SubscribeEvent: %v", err)
	}
	if got == nil || got.ID.String() != evt.ID.String() {
		t.Fatalf("subscribe returned %+v", got)
	}

	if err := s.AckEvent(ctx, evt.ID); err != nil {
		t.Fatalf("AckEvent: %v", err)
	}
	none, err := s.SubscribeEvent(ctx, event.ExecutionSucceeded, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("second SubscribeEvent: %v", err)
	}
	if none != nil {
		t.Fatalf("acked event delivered again: %+v", none)
	}

	if err := s.AckEvent(ctx, id.NewEventID()); !errors.Is(err, stategraph.ErrEventNotFound) {
		t.Fatalf("ack unknown: got %v, want ErrEventNotFound", err)
	}
}

func TestDeadLetters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	entry := &deadletter.Entry{
		ID:          id.NewDeadLetterID(),
		ExecutionID: id.NewExecutionID(),
		GraphName:   "provision-account",
		Status:      execution.StatusFailed,
		Node:        "CreateAccount",
		Input:       map[string]any{"AccountName": "dev-sandbox"},
		Document:    map[string]any{"AccountName": "dev-sandbox"},
		Cause:       &execution.FailureCause{Kind: "handler-transient", Message: "throttled by provider"},
		FailedAt:    time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.PushDeadLetter(ctx, entry); err != nil {
		t.Fatalf("PushDeadLetter: %v", err)
	}

	got, err := s.GetDeadLetter(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetDeadLetter: %v", err)
	}
	if got.Cause == nil || got.Cause.Message != "throttled by provider" {
		t.Fatalf("cause round trip: %+v", got.Cause)
	}

	listed, err := s.ListDeadLetters(ctx, deadletter.ListOpts{GraphName: "provision-account"})
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("got %d entries, want 1", len(listed))
	}

	if err := s.MarkResubmitted(ctx, entry.ID); err != nil {
		t.Fatalf("MarkResubmitted: %v", err)
	}
	got, err = s.GetDeadLetter(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetDeadLetter after mark: %v", err)
	}
	if got.ResubmittedAt == nil {
		t.Fatal("ResubmittedAt not stamped")
	}

	count, err := s.CountDeadLetters(ctx)
	if err != nil {
		t.Fatalf("CountDeadLetters: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	purged, err := s.PurgeDeadLetters(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("PurgeDeadLetters: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
}
