package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/stategraph/id"
	"github.com/xraph/stategraph/middleware"
	"github.com/xraph/stategraph/task"
)

func newInvocation(name string) *task.Invocation {
	return &task.Invocation{
		ExecutionID: id.NewExecutionID(),
		GraphName:   "provision-account",
		NodeName:    "CreateAccount",
		HandlerRef:  name,
		Attempt:     1,
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *task.Invocation, next middleware.Handler) (map[string]any, error) {
		order = append(order, "mw1-before")
		result, err := next(ctx)
		order = append(order, "mw1-after")
		return result, err
	}

	mw2 := func(ctx context.Context, _ *task.Invocation, next middleware.Handler) (map[string]any, error) {
		order = append(order, "mw2-before")
		result, err := next(ctx)
		order = append(order, "mw2-after")
		return result, err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) (map[string]any, error) {
		order = append(order, "handler")
		return map[string]any{"ok": true}, nil
	}

	result, err := chain(context.Background(), newInvocation("test"), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["ok"] != true {
		t.Fatalf("result = %v, want handler result passed through", result)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) (map[string]any, error) {
		called = true
		return nil, nil
	}

	if _, err := chain(context.Background(), newInvocation("test"), handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *task.Invocation, next middleware.Handler) (map[string]any, error) {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	_, err := chain(context.Background(), newInvocation("test"), func(_ context.Context) (map[string]any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Recover(logger)

	_, err := mw(context.Background(), newInvocation("panicky"), func(_ context.Context) (map[string]any, error) {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic in handler panicky: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Recover(logger)

	called := false
	_, err := mw(context.Background(), newInvocation("normal"), func(_ context.Context) (map[string]any, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Success(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Logging(logger)

	called := false
	_, err := mw(context.Background(), newInvocation("log-test"), func(_ context.Context) (map[string]any, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Error(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Logging(logger)
	want := errors.New("fail")

	_, err := mw(context.Background(), newInvocation("log-test"), func(_ context.Context) (map[string]any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestTimeout_CancelsContext(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Timeout(logger)
	inv := newInvocation("slow")
	inv.Timeout = 10 * time.Millisecond

	_, err := mw(context.Background(), inv, func(ctx context.Context) (map[string]any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return nil, errors.New("context never cancelled")
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestTimeout_NoOpWithoutTimeout(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Timeout(logger)
	inv := newInvocation("fast")

	_, err := mw(context.Background(), inv, func(ctx context.Context) (map[string]any, error) {
		if _, set := ctx.Deadline(); set {
			t.Error("no deadline should be set for zero Timeout")
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
