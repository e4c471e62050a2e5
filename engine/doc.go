// Package engine wires all subsystems into a working graph execution
// runtime and implements the stepping semantics: one durable transition per
// claimed execution, driven by the Coordinator, scheduled by the stepper
// Pool.
//
// Build() composes a stategraph.Runtime with its store, graph and handler
// registries, event bus, dead letter archive, extensions, and the task
// middleware stack. The Runtime owns lifecycle (Start/Stop); the Engine
// exposes the operational surface (Submit, Status, History, registries).
package engine
