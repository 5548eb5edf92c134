// Package ext defines the extension system for jobrow.
//
// Extensions are notified of storage lifecycle events and can react to them,
// for example by recording metrics or writing audit logs. Each hook is a
// separate interface so extensions opt in only to the events they care about.
//
// # Implementing an Extension
//
//	type auditExt struct{ log *slog.Logger }
//
//	func (e *auditExt) Name() string { return "audit" }
//
//	func (e *auditExt) OnLeaseRequeued(ctx context.Context, queue string, jobID id.JobID) error {
//	    e.log.Info("job returned to queue", "queue", queue, "job_id", jobID.String())
//	    return nil
//	}
//
// # Hooks
//
//   - [LeaseAcquired], [LeaseReleased], [LeaseRequeued], [LeaseRenewFailed]
//   - [CountersFolded]
//   - [RecordsExpired]
//   - [TransactionCommitted]
//   - [Shutdown]
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. A nil *Registry accepts every
// emit call and does nothing.
package ext
