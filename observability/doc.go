// Package observability provides an OpenTelemetry-based metrics extension
// for the engine. The MetricsExtension implements lifecycle hooks to record
// counters for execution submission, terminal outcomes, retries, caught
// errors, and dead letter volume.
//
// For per-invocation tracing and metrics around task handlers, see the
// middleware package: middleware.Tracing() and middleware.Metrics().
package observability
