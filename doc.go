// Package stategraph provides a durable state-graph execution engine for Go.
// It drives long-running provisioning processes through declarative graphs of
// Task, Choice, Wait, Pass, and Terminal nodes, with retry policies, error
// catching, cooperative suspension, and a global execution timeout.
//
// Stategraph is designed as a library, not a service. Import it, configure a
// store, register graphs and task handlers, and start the stepper pool.
//
// # Quick Start
//
//	rt, err := stategraph.New(
//	    stategraph.WithStore(pgStore),
//	    stategraph.WithConcurrency(20),
//	)
//
// # Architecture
//
// Stategraph follows a composable store pattern where each subsystem
// (execution, event, deadletter) defines its own store interface.
// A single backend implements all of them.
//
// Executions never hold a goroutine while suspended: a Wait node or a retry
// delay records a wake-up time in the store, and the stepper pool claims due
// executions and advances each one exactly one node transition per claim.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package stategraph
