package queue

import "context"

// Signal wakes idle fetch loops when a row is added. Notify is called after
// a write transaction that added rows has committed.
type Signal interface {
	Notify(ctx context.Context, queue string) error
	Wait() <-chan struct{}
}

// LocalSignal is an in-process Signal. One Notify wakes one waiter; notifies
// that arrive while nobody waits collapse into a single pending wake-up.
type LocalSignal struct {
	ch chan struct{}
}

var _ Signal = (*LocalSignal)(nil)

// NewLocalSignal creates a LocalSignal.
func NewLocalSignal() *LocalSignal {
	return &LocalSignal{ch: make(chan struct{}, 1)}
}

// Notify sets the pending wake-up. It never blocks.
func (s *LocalSignal) Notify(_ context.Context, _ string) error {
	s.Set()
	return nil
}

// Set is Notify without a queue name.
func (s *LocalSignal) Set() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait returns the channel that receives pending wake-ups.
func (s *LocalSignal) Wait() <-chan struct{} { return s.ch }
