package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/jobrow/id"
)

// entry pairs a hook implementation with the extension name captured at
// registration time.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and dispatches lifecycle events to
// them. Extensions are type-cached at registration so emit calls iterate
// only over implementors of the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	leaseAcquired        []entry[LeaseAcquired]
	leaseReleased        []entry[LeaseReleased]
	leaseRequeued        []entry[LeaseRequeued]
	leaseRenewFailed     []entry[LeaseRenewFailed]
	countersFolded       []entry[CountersFolded]
	recordsExpired       []entry[RecordsExpired]
	transactionCommitted []entry[TransactionCommitted]
	shutdown             []entry[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable hook
// caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(LeaseAcquired); ok {
		r.leaseAcquired = append(r.leaseAcquired, entry[LeaseAcquired]{name, h})
	}
	if h, ok := e.(LeaseReleased); ok {
		r.leaseReleased = append(r.leaseReleased, entry[LeaseReleased]{name, h})
	}
	if h, ok := e.(LeaseRequeued); ok {
		r.leaseRequeued = append(r.leaseRequeued, entry[LeaseRequeued]{name, h})
	}
	if h, ok := e.(LeaseRenewFailed); ok {
		r.leaseRenewFailed = append(r.leaseRenewFailed, entry[LeaseRenewFailed]{name, h})
	}
	if h, ok := e.(CountersFolded); ok {
		r.countersFolded = append(r.countersFolded, entry[CountersFolded]{name, h})
	}
	if h, ok := e.(RecordsExpired); ok {
		r.recordsExpired = append(r.recordsExpired, entry[RecordsExpired]{name, h})
	}
	if h, ok := e.(TransactionCommitted); ok {
		r.transactionCommitted = append(r.transactionCommitted, entry[TransactionCommitted]{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension {
	if r == nil {
		return nil
	}
	return r.extensions
}

// ──────────────────────────────────────────────────
// Lease event emitters
// ──────────────────────────────────────────────────

// EmitLeaseAcquired notifies all extensions that implement LeaseAcquired.
func (r *Registry) EmitLeaseAcquired(ctx context.Context, queue string, jobID id.JobID) {
	if r == nil {
		return
	}
	for _, e := range r.leaseAcquired {
		if err := e.hook.OnLeaseAcquired(ctx, queue, jobID); err != nil {
			r.logHookError("OnLeaseAcquired", e.name, err)
		}
	}
}

// EmitLeaseReleased notifies all extensions that implement LeaseReleased.
func (r *Registry) EmitLeaseReleased(ctx context.Context, queue string, jobID id.JobID) {
	if r == nil {
		return
	}
	for _, e := range r.leaseReleased {
		if err := e.hook.OnLeaseReleased(ctx, queue, jobID); err != nil {
			r.logHookError("OnLeaseReleased", e.name, err)
		}
	}
}

// EmitLeaseRequeued notifies all extensions that implement LeaseRequeued.
func (r *Registry) EmitLeaseRequeued(ctx context.Context, queue string, jobID id.JobID) {
	if r == nil {
		return
	}
	for _, e := range r.leaseRequeued {
		if err := e.hook.OnLeaseRequeued(ctx, queue, jobID); err != nil {
			r.logHookError("OnLeaseRequeued", e.name, err)
		}
	}
}

// EmitLeaseRenewFailed notifies all extensions that implement LeaseRenewFailed.
func (r *Registry) EmitLeaseRenewFailed(ctx context.Context, queue string, jobID id.JobID, renewErr error) {
	if r == nil {
		return
	}
	for _, e := range r.leaseRenewFailed {
		if err := e.hook.OnLeaseRenewFailed(ctx, queue, jobID, renewErr); err != nil {
			r.logHookError("OnLeaseRenewFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Maintenance event emitters
// ──────────────────────────────────────────────────

// EmitCountersFolded notifies all extensions that implement CountersFolded.
func (r *Registry) EmitCountersFolded(ctx context.Context, rows, keys int) {
	if r == nil {
		return
	}
	for _, e := range r.countersFolded {
		if err := e.hook.OnCountersFolded(ctx, rows, keys); err != nil {
			r.logHookError("OnCountersFolded", e.name, err)
		}
	}
}

// EmitRecordsExpired notifies all extensions that implement RecordsExpired.
func (r *Registry) EmitRecordsExpired(ctx context.Context, kind string, removed int) {
	if r == nil {
		return
	}
	for _, e := range r.recordsExpired {
		if err := e.hook.OnRecordsExpired(ctx, kind, removed); err != nil {
			r.logHookError("OnRecordsExpired", e.name, err)
		}
	}
}

// EmitTransactionCommitted notifies all extensions that implement TransactionCommitted.
func (r *Registry) EmitTransactionCommitted(ctx context.Context, ops int) {
	if r == nil {
		return
	}
	for _, e := range r.transactionCommitted {
		if err := e.hook.OnTransactionCommitted(ctx, ops); err != nil {
			r.logHookError("OnTransactionCommitted", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	if r == nil {
		return
	}
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
