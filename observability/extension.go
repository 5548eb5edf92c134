package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobrow/ext"
	"github.com/xraph/jobrow/id"
)

const meterName = "github.com/xraph/jobrow/observability"

// Compile-time interface checks.
var (
	_ ext.Extension            = (*MetricsExtension)(nil)
	_ ext.LeaseAcquired        = (*MetricsExtension)(nil)
	_ ext.LeaseReleased        = (*MetricsExtension)(nil)
	_ ext.LeaseRequeued        = (*MetricsExtension)(nil)
	_ ext.LeaseRenewFailed     = (*MetricsExtension)(nil)
	_ ext.CountersFolded       = (*MetricsExtension)(nil)
	_ ext.RecordsExpired       = (*MetricsExtension)(nil)
	_ ext.TransactionCommitted = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide storage metrics. Register it as a
// jobrow extension to track lease traffic, counter folding and expiration.
type MetricsExtension struct {
	LeaseAcquired    metric.Int64Counter
	LeaseReleased    metric.Int64Counter
	LeaseRequeued    metric.Int64Counter
	LeaseRenewFailed metric.Int64Counter
	CountersFolded   metric.Int64Counter
	RecordsExpired   metric.Int64Counter
	Transactions     metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Instrument creation errors fall back to noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit)) //nolint:errcheck
		return c
	}
	return &MetricsExtension{
		LeaseAcquired:    counter("jobrow.lease.acquired", "Queue rows claimed", "{lease}"),
		LeaseReleased:    counter("jobrow.lease.released", "Leased rows removed from their queue", "{lease}"),
		LeaseRequeued:    counter("jobrow.lease.requeued", "Leased rows returned to their queue", "{lease}"),
		LeaseRenewFailed: counter("jobrow.lease.renew_failed", "Keep-alive renewals that failed", "{lease}"),
		CountersFolded:   counter("jobrow.counter.folded", "Raw counter rows folded into aggregates", "{row}"),
		RecordsExpired:   counter("jobrow.records.expired", "Rows removed by the expiration sweeper", "{row}"),
		Transactions:     counter("jobrow.txn.committed", "Write transactions committed", "{transaction}"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Lease hooks ─────────────────────────────────────

// OnLeaseAcquired implements ext.LeaseAcquired.
func (m *MetricsExtension) OnLeaseAcquired(ctx context.Context, queue string, _ id.JobID) error {
	m.LeaseAcquired.Add(ctx, 1, queueAttr(queue))
	return nil
}

// OnLeaseReleased implements ext.LeaseReleased.
func (m *MetricsExtension) OnLeaseReleased(ctx context.Context, queue string, _ id.JobID) error {
	m.LeaseReleased.Add(ctx, 1, queueAttr(queue))
	return nil
}

// OnLeaseRequeued implements ext.LeaseRequeued.
func (m *MetricsExtension) OnLeaseRequeued(ctx context.Context, queue string, _ id.JobID) error {
	m.LeaseRequeued.Add(ctx, 1, queueAttr(queue))
	return nil
}

// OnLeaseRenewFailed implements ext.LeaseRenewFailed.
func (m *MetricsExtension) OnLeaseRenewFailed(ctx context.Context, queue string, _ id.JobID, _ error) error {
	m.LeaseRenewFailed.Add(ctx, 1, queueAttr(queue))
	return nil
}

// ── Maintenance hooks ───────────────────────────────

// OnCountersFolded implements ext.CountersFolded.
func (m *MetricsExtension) OnCountersFolded(ctx context.Context, rows, _ int) error {
	m.CountersFolded.Add(ctx, int64(rows))
	return nil
}

// OnRecordsExpired implements ext.RecordsExpired.
func (m *MetricsExtension) OnRecordsExpired(ctx context.Context, kind string, removed int) error {
	m.RecordsExpired.Add(ctx, int64(removed), metric.WithAttributes(attribute.String("kind", kind)))
	return nil
}

// OnTransactionCommitted implements ext.TransactionCommitted.
func (m *MetricsExtension) OnTransactionCommitted(ctx context.Context, _ int) error {
	m.Transactions.Add(ctx, 1)
	return nil
}

func queueAttr(queue string) metric.AddOption {
	return metric.WithAttributes(attribute.String("queue", queue))
}
