// Package telemetry groups the observability packages for Aegis.
//
// # Components
//
//   - logging: Structured logging with PII redaction
//   - metrics: Prometheus metrics collection
//   - health: Liveness and readiness endpoints
//   - tracing: OpenTelemetry spans for analyses and batches
//
// Analyzed text is never logged: the logging package replaces content
// attributes with [REDACTED] before any handler sees them.
package telemetry
