// Package middleware provides composable middleware for background-process
// passes.
//
// A [Middleware] wraps one invocation of a process (a counter aggregation
// pass, an expiration sweep). Middleware are composed into a chain using
// [Chain] and applied right-to-left: the first middleware in the slice is
// the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs process name, duration and outcome of each pass
//   - [Recover] converts panics into errors
//   - [Timeout] cancels the pass context after the pass deadline
//   - [Tracing] wraps the pass in an OpenTelemetry span
//   - [Metrics] records pass duration and outcome counters
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
