// Package store defines the aggregate persistence interface. Each subsystem
// (execution, event, deadletter) defines its own store interface; the
// composite Store composes them all. Backends: Postgres (bun), Redis, and
// Memory.
package store

import (
	"context"

	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/event"
	"github.com/xraph/stategraph/execution"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (postgres, redis, memory) implements all of them.
type Store interface {
	execution.Store
	event.Store
	deadletter.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
