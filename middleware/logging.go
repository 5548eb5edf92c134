package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs each pass at debug level and its
// failure at warn level.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, p *Pass, next Handler) error {
		logger.Debug("process pass started",
			slog.String("process", p.Process),
			slog.Int("iteration", p.Iteration),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("process pass failed",
				slog.String("process", p.Process),
				slog.Int("iteration", p.Iteration),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("process pass completed",
				slog.String("process", p.Process),
				slog.Int("iteration", p.Iteration),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
