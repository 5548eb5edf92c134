package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for jobrow metrics.
const meterName = "github.com/xraph/jobrow"

// Metrics returns middleware that records per-pass metrics using the global
// OTel MeterProvider.
//
// Instruments:
//   - jobrow.process.duration (Float64Histogram): pass time in seconds,
//     with attributes: process, status ("ok" or "error")
//   - jobrow.process.executions (Int64Counter): total passes,
//     with attributes: process, status ("ok" or "error")
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram( //nolint:errcheck
		"jobrow.process.duration",
		metric.WithDescription("Duration of background process passes in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter( //nolint:errcheck
		"jobrow.process.executions",
		metric.WithDescription("Total number of background process passes"),
		metric.WithUnit("{pass}"),
	)

	return func(ctx context.Context, p *Pass, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("process", p.Process),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
