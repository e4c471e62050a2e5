package policy_test

import (
	"testing"
	"time"

	"github.com/xraph/stategraph/policy"
)

func TestRetryRuleDelaySequence(t *testing.T) {
	r := policy.RetryRule{
		ErrorKinds:  []policy.Kind{policy.KindHandlerTransient},
		Interval:    10 * time.Second,
		MaxAttempts: 5,
		BackoffRate: 2.0,
	}

	want := []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		160 * time.Second,
	}
	for i, w := range want {
		if got := r.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDecideFirstMatchWins(t *testing.T) {
	retry := []policy.RetryRule{
		{ErrorKinds: []policy.Kind{policy.KindHandlerTransient}, Interval: time.Second, MaxAttempts: 3, BackoffRate: 1},
		{ErrorKinds: []policy.Kind{policy.Wildcard}, Interval: time.Minute, MaxAttempts: 1, BackoffRate: 1},
	}

	out := policy.Decide(retry, nil, policy.KindHandlerTransient, 0)
	if out.Decision != policy.DecideRetry {
		t.Fatalf("decision = %v, want retry", out.Decision)
	}
	if out.Delay != time.Second {
		t.Errorf("delay = %v, want %v (first matching rule, not wildcard)", out.Delay, time.Second)
	}

	out = policy.Decide(retry, nil, policy.KindCatchAll, 0)
	if out.Delay != time.Minute {
		t.Errorf("delay = %v, want %v (wildcard rule)", out.Delay, time.Minute)
	}
}

func TestDecideExhaustedBudgetFallsToCatch(t *testing.T) {
	retry := []policy.RetryRule{
		{ErrorKinds: []policy.Kind{policy.KindHandlerTransient}, Interval: time.Second, MaxAttempts: 2, BackoffRate: 1},
	}
	catch := []policy.CatchRule{
		{ErrorKinds: []policy.Kind{policy.Wildcard}, Next: "ReturnResponse"},
	}

	// Attempts 1 and 2 retry; attempt 3 exceeds the budget.
	for prior := 0; prior < 2; prior++ {
		out := policy.Decide(retry, catch, policy.KindHandlerTransient, prior)
		if out.Decision != policy.DecideRetry {
			t.Fatalf("prior=%d: decision = %v, want retry", prior, out.Decision)
		}
	}

	out := policy.Decide(retry, catch, policy.KindHandlerTransient, 2)
	if out.Decision != policy.DecideCatch {
		t.Fatalf("decision = %v, want catch after budget exhausted", out.Decision)
	}
	if out.Next != "ReturnResponse" {
		t.Errorf("next = %q, want ReturnResponse", out.Next)
	}
}

func TestDecideNoMatchingRetryUsesCatch(t *testing.T) {
	retry := []policy.RetryRule{
		{ErrorKinds: []policy.Kind{policy.KindHandlerTransient}, Interval: time.Second, MaxAttempts: 3, BackoffRate: 1},
	}
	catch := []policy.CatchRule{
		{ErrorKinds: []policy.Kind{policy.KindHandlerInvalidInput}, Next: "ReturnResponse"},
	}

	out := policy.Decide(retry, catch, policy.KindHandlerInvalidInput, 0)
	if out.Decision != policy.DecideCatch {
		t.Fatalf("decision = %v, want catch", out.Decision)
	}
}

func TestDecideNothingMatchesFails(t *testing.T) {
	retry := []policy.RetryRule{
		{ErrorKinds: []policy.Kind{policy.KindHandlerTransient}, Interval: time.Second, MaxAttempts: 3, BackoffRate: 1},
	}
	catch := []policy.CatchRule{
		{ErrorKinds: []policy.Kind{policy.KindHandlerInvalidInput}, Next: "ReturnResponse"},
	}

	out := policy.Decide(retry, catch, policy.KindHandlerRejected, 0)
	if out.Decision != policy.DecideFail {
		t.Fatalf("decision = %v, want fail", out.Decision)
	}
}

func TestRetryRuleValidate(t *testing.T) {
	valid := policy.RetryRule{
		ErrorKinds:  []policy.Kind{policy.KindHandlerTransient, policy.KindInfraTransient},
		Interval:    time.Second,
		MaxAttempts: 1,
		BackoffRate: 1,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	bad := []policy.RetryRule{
		{Interval: time.Second, MaxAttempts: 1, BackoffRate: 1},
		{ErrorKinds: []policy.Kind{"bogus"}, Interval: time.Second, MaxAttempts: 1, BackoffRate: 1},
		{ErrorKinds: []policy.Kind{policy.Wildcard}, Interval: 0, MaxAttempts: 1, BackoffRate: 1},
		{ErrorKinds: []policy.Kind{policy.Wildcard}, Interval: time.Second, MaxAttempts: 0, BackoffRate: 1},
		{ErrorKinds: []policy.Kind{policy.Wildcard}, Interval: time.Second, MaxAttempts: 1, BackoffRate: 0.5},
	}
	for i, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("rule %d: expected validation error", i)
		}
	}
}

func TestCatchRuleValidate(t *testing.T) {
	valid := policy.CatchRule{ErrorKinds: []policy.Kind{policy.Wildcard}, Next: "Cleanup"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	if err := (policy.CatchRule{ErrorKinds: []policy.Kind{policy.Wildcard}}).Validate(); err == nil {
		t.Error("expected error for catch rule without target")
	}
	if err := (policy.CatchRule{Next: "X"}).Validate(); err == nil {
		t.Error("expected error for catch rule without kinds")
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []policy.Kind{
		policy.KindHandlerTransient,
		policy.KindHandlerRejected,
		policy.KindHandlerInvalidInput,
		policy.KindInfraTransient,
		policy.KindCatchAll,
	} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if policy.Wildcard.Valid() {
		t.Error("wildcard is not a classified kind")
	}
	if policy.Kind("nope").Valid() {
		t.Error("unknown kind should be invalid")
	}
}
