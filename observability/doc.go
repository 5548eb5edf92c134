// Package observability provides an OpenTelemetry metrics extension for
// jobrow. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for lease, aggregation and expiration events.
//
// For per-process tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
