package middleware

import (
	"context"
	"time"
)

// Handler is the terminal function that runs one process pass.
type Handler func(ctx context.Context) error

// Pass describes a single invocation of a background process.
type Pass struct {
	// Process is the process name, e.g. "counter-aggregator".
	Process string
	// Server is the identity of the server running the pass, if any.
	Server string
	// Iteration counts passes of this process since the supervisor started,
	// starting at 1.
	Iteration int
	// Timeout bounds the pass. Zero means no deadline.
	Timeout time.Duration
}

// Middleware wraps a Handler with cross-cutting logic.
type Middleware func(ctx context.Context, p *Pass, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, p *Pass, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, p, prev)
			}
		}
		return h(ctx)
	}
}
