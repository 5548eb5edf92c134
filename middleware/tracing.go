package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for jobrow tracing.
const tracerName = "github.com/xraph/jobrow"

// Tracing returns middleware that wraps each pass in an OpenTelemetry span.
// Without a configured TracerProvider the global noop tracer is used.
//
// Span attributes: jobrow.process, jobrow.server, jobrow.iteration.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, p *Pass, next Handler) error {
		ctx, span := tracer.Start(ctx, "jobrow.process.pass",
			trace.WithAttributes(
				attribute.String("jobrow.process", p.Process),
				attribute.String("jobrow.server", p.Server),
				attribute.Int("jobrow.iteration", p.Iteration),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
