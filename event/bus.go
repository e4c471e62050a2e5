// Package event provides the notification bus for execution outcomes.
// The engine publishes terminal events through it; downstream collaborators
// (completion email senders, audit feeds) subscribe and acknowledge.
package event

import (
	"context"
	"time"

	"github.com/xraph/stategraph/id"
)

// Bus provides publish/subscribe operations over an event Store.
type Bus struct {
	store Store
}

// NewBus creates an event bus backed by the given store.
func NewBus(store Store) *Bus {
	return &Bus{store: store}
}

// Publish creates and persists a new event, making it available for
// subscribers.
func (b *Bus) Publish(ctx context.Context, name string, execID id.ExecutionID, graphName string, payload []byte) (*Event, error) {
	evt := &Event{
		ID:          id.NewEventID(),
		Name:        name,
		ExecutionID: execID,
		GraphName:   graphName,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	if err := b.store.PublishEvent(ctx, evt); err != nil {
		return nil, err
	}
	return evt, nil
}

// Subscribe waits for an unacked event matching the given name.
// Blocks until available or timeout. Returns nil on timeout.
func (b *Bus) Subscribe(ctx context.Context, name string, timeout time.Duration) (*Event, error) {
	return b.store.SubscribeEvent(ctx, name, timeout)
}

// Ack acknowledges an event, marking it as consumed.
func (b *Bus) Ack(ctx context.Context, eventID id.EventID) error {
	return b.store.AckEvent(ctx, eventID)
}

// Store returns the underlying event store.
func (b *Bus) Store() Store { return b.store }
