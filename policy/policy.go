// Package policy implements the retry and catch rules that govern how Task
// node failures are handled.
//
// Handler errors are classified into a small closed set of kinds. A failing
// Task consults its retry rules first (first match wins); once the matching
// rule's attempt budget is exhausted, or when no rule matches, the catch
// rules route the execution to a recovery node. With neither, the failure
// is fatal.
package policy

import (
	"fmt"
	"time"

	"github.com/xraph/stategraph/backoff"
)

// Kind classifies a Task failure.
type Kind string

// The closed set of error kinds. Wildcard matches any kind in a rule.
const (
	// KindHandlerTransient is a handler-reported failure worth retrying
	// (throttling, eventual consistency, a dependency still settling).
	KindHandlerTransient Kind = "handler-transient"

	// KindHandlerRejected is a permanent business refusal from the handler.
	KindHandlerRejected Kind = "handler-rejected"

	// KindHandlerInvalidInput is a handler rejection of the input payload.
	KindHandlerInvalidInput Kind = "handler-invalid-input"

	// KindInfraTransient is an infrastructure-level failure outside the
	// handler (timeouts, connection loss).
	KindInfraTransient Kind = "infrastructure-transient"

	// KindCatchAll covers failures that fit no other kind.
	KindCatchAll Kind = "catch-all"

	// Wildcard matches every kind when listed in a rule.
	Wildcard Kind = "*"
)

// Valid reports whether k is one of the classified kinds (Wildcard excluded;
// it is only legal inside rules).
func (k Kind) Valid() bool {
	switch k {
	case KindHandlerTransient, KindHandlerRejected, KindHandlerInvalidInput,
		KindInfraTransient, KindCatchAll:
		return true
	default:
		return false
	}
}

// RetryRule retries matching failures with multiplicative backoff:
// the delay before attempt n is Interval * BackoffRate^(n-1).
type RetryRule struct {
	ErrorKinds  []Kind        `json:"error_kinds"`
	Interval    time.Duration `json:"interval"`
	MaxAttempts int           `json:"max_attempts"`
	BackoffRate float64       `json:"backoff_rate"`
}

// Matches reports whether the rule applies to the given kind.
func (r RetryRule) Matches(kind Kind) bool {
	return matches(r.ErrorKinds, kind)
}

// Delay returns the wait before retry attempt n (1-indexed).
func (r RetryRule) Delay(attempt int) time.Duration {
	return backoff.NewRate(r.Interval, r.BackoffRate).Delay(attempt)
}

// Validate checks the rule's structural invariants.
func (r RetryRule) Validate() error {
	if len(r.ErrorKinds) == 0 {
		return fmt.Errorf("policy: retry rule has no error kinds")
	}
	for _, k := range r.ErrorKinds {
		if k != Wildcard && !k.Valid() {
			return fmt.Errorf("policy: retry rule has unknown error kind %q", k)
		}
	}
	if r.Interval <= 0 {
		return fmt.Errorf("policy: retry interval must be positive, got %v", r.Interval)
	}
	if r.MaxAttempts < 1 {
		return fmt.Errorf("policy: retry maxAttempts must be at least 1, got %d", r.MaxAttempts)
	}
	if r.BackoffRate < 1 {
		return fmt.Errorf("policy: retry backoffRate must be at least 1, got %v", r.BackoffRate)
	}
	return nil
}

// CatchRule routes matching failures to a recovery node once retries are
// exhausted (or when no retry rule matches).
type CatchRule struct {
	ErrorKinds []Kind `json:"error_kinds"`
	Next       string `json:"next"`
}

// Matches reports whether the rule applies to the given kind.
func (c CatchRule) Matches(kind Kind) bool {
	return matches(c.ErrorKinds, kind)
}

// Validate checks the rule's structural invariants.
func (c CatchRule) Validate() error {
	if len(c.ErrorKinds) == 0 {
		return fmt.Errorf("policy: catch rule has no error kinds")
	}
	for _, k := range c.ErrorKinds {
		if k != Wildcard && !k.Valid() {
			return fmt.Errorf("policy: catch rule has unknown error kind %q", k)
		}
	}
	if c.Next == "" {
		return fmt.Errorf("policy: catch rule has no target node")
	}
	return nil
}

func matches(kinds []Kind, kind Kind) bool {
	for _, k := range kinds {
		if k == Wildcard || k == kind {
			return true
		}
	}
	return false
}

// Decision says what to do with a Task failure.
type Decision int

const (
	// DecideFail ends the execution as failed.
	DecideFail Decision = iota
	// DecideRetry re-invokes the same Task after Outcome.Delay.
	DecideRetry
	// DecideCatch transitions to Outcome.Next.
	DecideCatch
)

// Outcome is the result of running a failure through retry and catch rules.
type Outcome struct {
	Decision Decision
	Delay    time.Duration
	Next     string
}

// Decide runs a classified failure through the node's rules.
// priorAttempts is how many retries of this kind this node has already
// consumed; the failure being decided is attempt priorAttempts+1 against
// the first matching retry rule's budget.
func Decide(retry []RetryRule, catch []CatchRule, kind Kind, priorAttempts int) Outcome {
	for _, r := range retry {
		if !r.Matches(kind) {
			continue
		}
		attempt := priorAttempts + 1
		if attempt <= r.MaxAttempts {
			return Outcome{Decision: DecideRetry, Delay: r.Delay(attempt)}
		}
		// Budget exhausted; fall through to catch rules.
		break
	}

	for _, c := range catch {
		if c.Matches(kind) {
			return Outcome{Decision: DecideCatch, Next: c.Next}
		}
	}

	return Outcome{Decision: DecideFail}
}
