package backoff

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out consecutive batches of work. The first Wait returns
// immediately.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a Pacer allowing one batch per interval. A non-positive
// interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next batch may start or ctx ends. When the next slot
// lies beyond the context deadline it waits for the deadline and returns the
// context error.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}
