package middleware

import (
	"context"
)

// Timeout returns middleware that enforces the pass deadline. A pass with
// a zero Timeout runs unbounded.
func Timeout() Middleware {
	return func(ctx context.Context, p *Pass, next Handler) error {
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
