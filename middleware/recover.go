package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, p *Pass, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("process pass panicked",
					slog.String("process", p.Process),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in process %s: %v", p.Process, r)
			}
		}()
		return next(ctx)
	}
}
