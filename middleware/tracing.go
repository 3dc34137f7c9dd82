package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/rostersync/syncer"
)

// tracerName is the instrumentation scope name for rostersync tracing.
const tracerName = "github.com/xraph/rostersync"

// Tracing returns middleware that wraps run execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through with zero
// overhead.
//
// Span attributes include: rostersync.run.id, rostersync.program,
// rostersync.force. On error, the span status is set to codes.Error with
// the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, run *syncer.Run, next Handler) error {
		ctx, span := tracer.Start(ctx, "rostersync.run.execute",
			trace.WithAttributes(
				attribute.String("rostersync.run.id", run.ID.String()),
				attribute.String("rostersync.program", string(run.Program)),
				attribute.Bool("rostersync.force", run.Force),
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
