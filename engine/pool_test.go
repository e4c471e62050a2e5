package engine_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/engine"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/graph"
	"github.com/xraph/stategraph/store/memory"
)

func newRuntime(t *testing.T) (*stategraph.Runtime, *engine.Engine) {
	t.Helper()

	rt, err := stategraph.New(
		stategraph.WithStore(memory.New()),
		stategraph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		stategraph.WithConcurrency(2),
		stategraph.WithPollInterval(10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng, err := engine.Build(rt)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return rt, eng
}

func TestPool_RunsExecutionToCompletion(t *testing.T) {
	rt, eng := newRuntime(t)

	g := &graph.Graph{
		Name:      "provision-account",
		StartNode: "CreateAccount",
		Timeout:   time.Hour,
		Nodes: map[string]graph.Node{
			"CreateAccount": &graph.TaskNode{HandlerRef: "create-account", Next: "Done"},
			"Done":          &graph.TerminalNode{},
		},
	}
	if err := eng.RegisterGraph(g); err != nil {
		t.Fatalf("RegisterGraph: %v", err)
	}
	if err := eng.RegisterHandler("create-account", func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"AccountId": "acct-123"}, nil
	}); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rt.Stop(ctx)

	e, err := eng.Submit(ctx, "provision-account", map[string]any{"AccountName": "dev-sandbox"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		got, err := eng.Status(ctx, e.ID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if got.Status == execution.StatusSucceeded {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("execution did not finish: status %q node %q", got.Status, got.CurrentNode)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestPool_StopWithoutStart(t *testing.T) {
	_, eng := newRuntime(t)
	if err := eng.Pool().Stop(context.Background()); err != nil {
		t.Fatalf("Stop without Start: %v", err)
	}
}

func TestPool_StartIdempotent(t *testing.T) {
	_, eng := newRuntime(t)
	ctx := context.Background()

	if err := eng.Pool().Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := eng.Pool().Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := eng.Pool().Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
