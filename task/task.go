// Package task defines the contract between the engine and external task
// handlers: the Handler function type, the classified Error type handlers
// use to report failures, and the Registry mapping handler references in
// graph definitions to implementations.
//
// Handlers must be idempotent: retry policies and crash recovery may invoke
// the same handler more than once for the same logical step.
package task

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/id"
	"github.com/xraph/stategraph/policy"
)

// Handler performs one unit of external work. It receives a deep copy of
// the execution's Document and returns a result object that the engine
// merges back at the Task node's result path. Returning an error classified
// via *Error drives the node's retry and catch rules; any other error is
// classified as catch-all (or infrastructure-transient for timeouts).
type Handler func(ctx context.Context, input map[string]any) (map[string]any, error)

// Error is a classified handler failure.
type Error struct {
	Kind    policy.Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewError builds a classified handler error.
func NewError(kind policy.Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Transient reports a retryable handler failure.
func Transient(message string) *Error {
	return &Error{Kind: policy.KindHandlerTransient, Message: message}
}

// Rejected reports a permanent business refusal.
func Rejected(message string) *Error {
	return &Error{Kind: policy.KindHandlerRejected, Message: message}
}

// InvalidInput reports a handler rejection of the input payload.
func InvalidInput(message string) *Error {
	return &Error{Kind: policy.KindHandlerInvalidInput, Message: message}
}

// Classify maps an arbitrary handler error onto the closed kind set.
// Classification is total: every error lands on exactly one kind.
func Classify(err error) policy.Kind {
	var te *Error
	if errors.As(err, &te) {
		if te.Kind.Valid() {
			return te.Kind
		}
		return policy.KindCatchAll
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return policy.KindInfraTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return policy.KindInfraTransient
	}

	return policy.KindCatchAll
}

// Invocation describes one handler call for middleware and logging.
type Invocation struct {
	ExecutionID id.ExecutionID
	GraphName   string
	NodeName    string
	HandlerRef  string
	Attempt     int
	Timeout     time.Duration
}

// Registry maps handler references to Handler implementations.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under the given reference.
// Registering the same reference twice is an error.
func (r *Registry) Register(ref string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[ref]; exists {
		return stategraph.ErrDuplicateTask
	}
	r.handlers[ref] = h
	return nil
}

// Get returns the handler registered under ref.
func (r *Registry) Get(ref string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[ref]
	return h, ok
}

// Names returns all registered handler references, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for ref := range r.handlers {
		names = append(names, ref)
	}
	sort.Strings(names)
	return names
}
