package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/jobrow/ext"
	"github.com/xraph/jobrow/id"
)

// Compile-time interface checks.
var (
	_ ext.Extension            = (*Extension)(nil)
	_ ext.LeaseAcquired        = (*Extension)(nil)
	_ ext.LeaseReleased        = (*Extension)(nil)
	_ ext.LeaseRequeued        = (*Extension)(nil)
	_ ext.LeaseRenewFailed     = (*Extension)(nil)
	_ ext.CountersFolded       = (*Extension)(nil)
	_ ext.RecordsExpired       = (*Extension)(nil)
	_ ext.TransactionCommitted = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges jobrow lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Lease hooks ─────────────────────────────────────

// OnLeaseAcquired implements ext.LeaseAcquired.
func (e *Extension) OnLeaseAcquired(ctx context.Context, queue string, jobID id.JobID) error {
	return e.record(ctx, ActionLeaseAcquired, SeverityInfo, OutcomeSuccess,
		ResourceJob, jobID.String(), CategoryQueue, nil,
		"queue", queue,
	)
}

// OnLeaseReleased implements ext.LeaseReleased.
func (e *Extension) OnLeaseReleased(ctx context.Context, queue string, jobID id.JobID) error {
	return e.record(ctx, ActionLeaseReleased, SeverityInfo, OutcomeSuccess,
		ResourceJob, jobID.String(), CategoryQueue, nil,
		"queue", queue,
	)
}

// OnLeaseRequeued implements ext.LeaseRequeued.
func (e *Extension) OnLeaseRequeued(ctx context.Context, queue string, jobID id.JobID) error {
	return e.record(ctx, ActionLeaseRequeued, SeverityWarning, OutcomeSuccess,
		ResourceJob, jobID.String(), CategoryQueue, nil,
		"queue", queue,
	)
}

// OnLeaseRenewFailed implements ext.LeaseRenewFailed.
func (e *Extension) OnLeaseRenewFailed(ctx context.Context, queue string, jobID id.JobID, renewErr error) error {
	return e.record(ctx, ActionLeaseRenewFailed, SeverityCritical, OutcomeFailure,
		ResourceJob, jobID.String(), CategoryQueue, renewErr,
		"queue", queue,
	)
}

// ── Maintenance hooks ───────────────────────────────

// OnCountersFolded implements ext.CountersFolded.
func (e *Extension) OnCountersFolded(ctx context.Context, rows, keys int) error {
	return e.record(ctx, ActionCountersFolded, SeverityInfo, OutcomeSuccess,
		ResourceCounter, "", CategoryMaintenance, nil,
		"rows", rows,
		"keys", keys,
	)
}

// OnRecordsExpired implements ext.RecordsExpired.
func (e *Extension) OnRecordsExpired(ctx context.Context, kind string, removed int) error {
	return e.record(ctx, ActionRecordsExpired, SeverityInfo, OutcomeSuccess,
		ResourceRecord, kind, CategoryMaintenance, nil,
		"removed", removed,
	)
}

// ── Write hooks ─────────────────────────────────────

// OnTransactionCommitted implements ext.TransactionCommitted.
func (e *Extension) OnTransactionCommitted(ctx context.Context, ops int) error {
	return e.record(ctx, ActionTransactionCommitted, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, "", CategoryWrite, nil,
		"ops", ops,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = reason
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	// Audit failures never fail the storage operation.
	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
