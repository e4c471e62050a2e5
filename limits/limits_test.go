package limits

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewManager_Empty(t *testing.T) {
	m := NewManager()
	// No configs; Acquire/Release should always succeed.
	if !m.Acquire("any-graph") {
		t.Fatal("expected Acquire to succeed for unconfigured graph")
	}
	m.Release("any-graph")
}

func TestManager_MaxConcurrency(t *testing.T) {
	m := NewManager(Config{
		GraphName:      "provision-account",
		MaxConcurrency: 2,
	})

	if !m.Acquire("provision-account") {
		t.Fatal("first Acquire should succeed")
	}
	if !m.Acquire("provision-account") {
		t.Fatal("second Acquire should succeed")
	}
	// Third should be blocked.
	if m.Acquire("provision-account") {
		t.Fatal("third Acquire should fail (max concurrency 2)")
	}

	// Release one slot.
	m.Release("provision-account")
	if !m.Acquire("provision-account") {
		t.Fatal("Acquire should succeed after Release")
	}
}

func TestManager_AcquireRelease_ActiveCount(t *testing.T) {
	m := NewManager(Config{
		GraphName:      "g",
		MaxConcurrency: 5,
	})

	for i := range 3 {
		if !m.Acquire("g") {
			t.Fatalf("Acquire %d should succeed", i)
		}
	}
	if m.ActiveCount("g") != 3 {
		t.Fatalf("expected 3 active, got %d", m.ActiveCount("g"))
	}

	m.Release("g")
	m.Release("g")
	if m.ActiveCount("g") != 1 {
		t.Fatalf("expected 1 active, got %d", m.ActiveCount("g"))
	}
}

func TestManager_RateLimit_Throttles(t *testing.T) {
	m := NewManager(Config{
		GraphName: "limited",
		RateLimit: 1.0, // 1 per second
		RateBurst: 1,
	})

	// First should succeed (burst allows it).
	if !m.Acquire("limited") {
		t.Fatal("first Acquire should succeed (within burst)")
	}
	m.Release("limited")

	// Immediately after, token bucket is empty.
	if m.Acquire("limited") {
		t.Fatal("second Acquire should fail (rate limited)")
	}

	// Wait for token refill.
	time.Sleep(1100 * time.Millisecond)
	if !m.Acquire("limited") {
		t.Fatal("Acquire should succeed after token refill")
	}
	m.Release("limited")
}

func TestManager_RateLimit_BurstAllows(t *testing.T) {
	m := NewManager(Config{
		GraphName: "bursty",
		RateLimit: 10.0,
		RateBurst: 3,
	})

	// Three immediate acquires should succeed (burst = 3).
	for i := range 3 {
		if !m.Acquire("bursty") {
			t.Fatalf("Acquire %d should succeed (within burst)", i)
		}
		m.Release("bursty")
	}
}

func TestManager_ConcurrencyDenial_PreservesRateBudget(t *testing.T) {
	// Refill is far too slow to matter within the test; only the burst
	// tokens are in play.
	m := NewManager(Config{
		GraphName:      "g",
		MaxConcurrency: 1,
		RateLimit:      0.1,
		RateBurst:      2,
	})

	if !m.Acquire("g") {
		t.Fatal("first Acquire should succeed")
	}
	// Denied on concurrency; must not consume the second burst token.
	if m.Acquire("g") {
		t.Fatal("second Acquire should fail (max concurrency 1)")
	}
	m.Release("g")

	if !m.Acquire("g") {
		t.Fatal("Acquire should succeed on the remaining burst token")
	}
	m.Release("g")
}

func TestManager_SetConfig(t *testing.T) {
	m := NewManager(Config{
		GraphName:      "dyn",
		MaxConcurrency: 1,
	})

	m.Acquire("dyn")
	if m.Acquire("dyn") {
		t.Fatal("should be blocked at concurrency 1")
	}

	// Raise the limit dynamically.
	m.SetConfig(Config{
		GraphName:      "dyn",
		MaxConcurrency: 3,
	})

	// Now should succeed.
	if !m.Acquire("dyn") {
		t.Fatal("should succeed after raising concurrency")
	}
	m.Release("dyn")
	m.Release("dyn")
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(Config{
		GraphName:      "concurrent",
		MaxConcurrency: 50,
	})

	var acquired atomic.Int64
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire("concurrent") {
				acquired.Add(1)
				// Simulate work.
				time.Sleep(time.Millisecond)
				m.Release("concurrent")
			}
		}()
	}

	wg.Wait()

	// At least some should have succeeded.
	if acquired.Load() == 0 {
		t.Fatal("expected some Acquires to succeed")
	}

	// Active should be back to 0.
	if m.ActiveCount("concurrent") != 0 {
		t.Fatalf("expected 0 active after all goroutines, got %d", m.ActiveCount("concurrent"))
	}
}

func TestManager_UnconfiguredGraph_AlwaysSucceeds(t *testing.T) {
	m := NewManager(Config{
		GraphName:      "configured",
		MaxConcurrency: 1,
	})

	// "other" graph has no config, no limits.
	for range 10 {
		if !m.Acquire("other") {
			t.Fatal("unconfigured graph should always allow Acquire")
		}
	}
	for range 10 {
		m.Release("other")
	}
}

func TestManager_ReleaseUnderflow(t *testing.T) {
	m := NewManager(Config{
		GraphName:      "g",
		MaxConcurrency: 5,
	})

	// Release without Acquire should not go negative.
	m.Release("g")
	if m.ActiveCount("g") != 0 {
		t.Fatal("active count should not go below 0")
	}
}
