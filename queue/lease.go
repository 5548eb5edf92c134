package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/id"
)

// LeaseState is the lifecycle position of a Lease.
type LeaseState int

const (
	// Leased means the row is claimed and kept alive.
	Leased LeaseState = iota
	// Released means the row was removed from its queue.
	Released
	// Requeued means the row was made visible again.
	Requeued
)

func (s LeaseState) String() string {
	switch s {
	case Leased:
		return "leased"
	case Released:
		return "released"
	case Requeued:
		return "requeued"
	}
	return fmt.Sprintf("LeaseState(%d)", int(s))
}

// Lease is a claim on one queue row. It is safe for concurrent use.
type Lease struct {
	m     *Manager
	entry Entry

	mu    sync.Mutex
	stamp time.Time
	state LeaseState
	lost  bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newLease(m *Manager, e *Entry) *Lease {
	l := &Lease{
		m:      m,
		entry:  *e,
		stamp:  *e.FetchedAt,
		state:  Leased,
		stopCh: make(chan struct{}),
	}
	l.entry.FetchedAt = nil
	go l.keepAliveLoop()
	return l
}

// JobID returns the leased job.
func (l *Lease) JobID() id.JobID { return l.entry.JobID }

// Queue returns the queue of the leased row.
func (l *Lease) Queue() string { return l.entry.Queue }

// EntryID returns the leased queue row.
func (l *Lease) EntryID() id.EntryID { return l.entry.ID }

// FetchedAt returns the current lease stamp.
func (l *Lease) FetchedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stamp
}

// State returns the lifecycle position of the lease.
func (l *Lease) State() LeaseState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Renew re-stamps the row. It reports false when the row no longer carries
// this lease's stamp; the lease then stops renewing.
func (l *Lease) Renew(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Leased {
		return false, jobrow.ErrLeaseClosed
	}
	if l.lost {
		return false, nil
	}

	next := Stamp(l.m.now())
	if !next.After(l.stamp) {
		next = l.stamp.Add(time.Millisecond)
	}
	ok, err := l.m.store.StampEntry(ctx, l.entry.ID, &l.stamp, next)
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	if !ok {
		l.lost = true
		l.stopKeepAlive()
		return false, nil
	}
	l.stamp = next
	return true, nil
}

// Release removes the row from its queue. If the row was taken over by
// another process, nothing is removed and no error is returned.
func (l *Lease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Leased {
		return jobrow.ErrLeaseClosed
	}
	l.stopKeepAlive()

	ok, err := l.m.store.DeleteEntry(ctx, l.entry.ID, l.entry.Queue, l.stamp)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	l.state = Released
	if !ok {
		l.m.logger.Debug("released lease no longer matched its row",
			slog.String("entry_id", l.entry.ID.String()),
		)
	}
	l.m.exts.EmitLeaseReleased(ctx, l.entry.Queue, l.entry.JobID)
	return nil
}

// Requeue makes the row visible again immediately.
func (l *Lease) Requeue(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Leased {
		return jobrow.ErrLeaseClosed
	}
	return l.requeueLocked(ctx)
}

// Close requeues the lease unless it was already released or requeued.
func (l *Lease) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Leased {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.m.invisibility)
	defer cancel()
	return l.requeueLocked(ctx)
}

func (l *Lease) requeueLocked(ctx context.Context) error {
	l.stopKeepAlive()

	ok, err := l.m.store.RequeueEntry(ctx, l.entry.ID, l.stamp)
	if err != nil {
		return fmt.Errorf("requeue lease: %w", err)
	}
	l.state = Requeued
	if !ok {
		l.m.logger.Debug("requeued lease no longer matched its row",
			slog.String("entry_id", l.entry.ID.String()),
		)
	}
	l.m.exts.EmitLeaseRequeued(ctx, l.entry.Queue, l.entry.JobID)
	if l.m.signal != nil {
		if err := l.m.signal.Notify(ctx, l.entry.Queue); err != nil {
			l.m.logger.Warn("queue signal failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (l *Lease) stopKeepAlive() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Lease) keepAliveLoop() {
	ticker := time.NewTicker(l.m.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.keepAlive()
		}
	}
}

func (l *Lease) keepAlive() {
	ctx, cancel := context.WithTimeout(context.Background(), l.m.keepAlive)
	defer cancel()

	ok, err := l.Renew(ctx)
	switch {
	case errors.Is(err, jobrow.ErrLeaseClosed):
		return
	case err != nil:
		l.m.logger.Warn("lease renewal failed",
			slog.String("job_id", l.entry.JobID.String()),
			slog.String("queue", l.entry.Queue),
			slog.String("error", err.Error()),
		)
		l.m.exts.EmitLeaseRenewFailed(ctx, l.entry.Queue, l.entry.JobID, err)
	case !ok:
		l.m.logger.Warn("lease lost, row was claimed by another fetcher",
			slog.String("job_id", l.entry.JobID.String()),
			slog.String("queue", l.entry.Queue),
		)
		l.m.exts.EmitLeaseRenewFailed(ctx, l.entry.Queue, l.entry.JobID, nil)
	}
}
