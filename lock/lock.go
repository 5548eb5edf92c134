package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/xraph/jobrow"
)

// Well-known resource names.
const (
	ResourceFetch          = "locks:JobQueue"
	ResourceExpiration     = "locks:expirationmanager"
	ResourceSetRangeInHash = "locks:SetRangeInHash"
)

// Table owns the named locks of one storage instance.
type Table struct {
	mu     sync.Mutex
	sems   map[string]*semaphore.Weighted
	closed bool
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{sems: make(map[string]*semaphore.Weighted)}
}

// Handle is the result of an acquire. Release it exactly once; extra calls
// are ignored.
type Handle struct {
	resource string
	sem      *semaphore.Weighted
	once     sync.Once
}

// Resource returns the lock name.
func (h *Handle) Resource() string { return h.resource }

// Held reports whether the handle owns the lock.
func (h *Handle) Held() bool { return h != nil && h.sem != nil }

// Release gives the lock back. Releasing a handle that does not hold the
// lock is a no-op.
func (h *Handle) Release() {
	if !h.Held() {
		return
	}
	h.once.Do(func() { h.sem.Release(1) })
}

// Acquire waits up to timeout for the named lock.
//
// On timeout the returned handle is not held and the error wraps
// ErrLockTimeout. If ctx ends first, the context error is returned with a
// handle that is not held.
func (t *Table) Acquire(ctx context.Context, resource string, timeout time.Duration) (*Handle, error) {
	sem, err := t.semaphore(resource)
	if err != nil {
		return &Handle{resource: resource}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &Handle{resource: resource}, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return &Handle{resource: resource}, fmt.Errorf("%w: %q after %s", jobrow.ErrLockTimeout, resource, timeout)
		}
		return &Handle{resource: resource}, err
	}

	return &Handle{resource: resource, sem: sem}, nil
}

// TryAcquire takes the lock only if it is free right now.
func (t *Table) TryAcquire(resource string) (*Handle, bool) {
	sem, err := t.semaphore(resource)
	if err != nil || !sem.TryAcquire(1) {
		return &Handle{resource: resource}, false
	}
	return &Handle{resource: resource, sem: sem}, true
}

// Resources returns the names of every lock created so far.
func (t *Table) Resources() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.sems))
	for name := range t.sems {
		names = append(names, name)
	}
	return names
}

// Close stops the table from handing out new locks. Handles already held
// can still be released.
func (t *Table) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *Table) semaphore(resource string) (*semaphore.Weighted, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, jobrow.ErrLockTableClosed
	}
	sem, ok := t.sems[resource]
	if !ok {
		sem = semaphore.NewWeighted(1)
		t.sems[resource] = sem
	}
	return sem, nil
}
