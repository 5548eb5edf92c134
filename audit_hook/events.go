package audithook

// Audit event actions. Each constant corresponds to one ext hook.
const (
	ActionLeaseAcquired        = "lease.acquired"
	ActionLeaseReleased        = "lease.released"
	ActionLeaseRequeued        = "lease.requeued"
	ActionLeaseRenewFailed     = "lease.renew_failed"
	ActionCountersFolded       = "counters.folded"
	ActionRecordsExpired       = "records.expired"
	ActionTransactionCommitted = "transaction.committed"
)

// Audit event categories group related actions.
const (
	CategoryQueue       = "jobrow.queue"
	CategoryMaintenance = "jobrow.maintenance"
	CategoryWrite       = "jobrow.write"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob         = "job"
	ResourceCounter     = "counter"
	ResourceRecord      = "record"
	ResourceTransaction = "transaction"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionLeaseAcquired,
		ActionLeaseReleased,
		ActionLeaseRequeued,
		ActionLeaseRenewFailed,
		ActionCountersFolded,
		ActionRecordsExpired,
		ActionTransactionCommitted,
	}
}
