// Package observe provides observability primitives for module execution.
//
// It carries a JSON structured logger with field redaction, an OpenTelemetry
// tracer and meter, and middleware that wraps a module run with a span,
// counters and a log line. Cache and gateway instrumentation share the same
// Metrics value so one meter provider sees the whole request path.
package observe
