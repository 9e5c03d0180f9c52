// Package tracing is a thin helper around go.opentelemetry.io/otel for the
// dispatcher's span-per-query pattern. It carries no exporter wiring of
// its own: the process entrypoint installs whatever TracerProvider it
// wants (stdout, OTLP, or the no-op default) via otel.SetTracerProvider,
// and this package only wraps the per-call start/end/error bookkeeping so
// call sites in the dispatcher don't repeat it.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope every codeindex span is recorded
// under.
const tracerName = "github.com/codeindex/codeindex"

// Tracer returns the process-wide Tracer for codeindex spans, backed by
// whatever TracerProvider has been installed with otel.SetTracerProvider
// (the no-op provider if none has).
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Start begins a span named name, scoped to component (e.g. "dispatcher",
// "indexer"), and returns the derived Context and a done func that records
// err (if non-nil) onto the span before ending it. Callers should defer
// done(&err) with a named return.
func Start(ctx context.Context, component, name string) (context.Context, func(*error)) {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(
		attribute.String("codeindex.component", component),
	))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

// HandleError records err onto span and marks it as errored if err is
// non-nil, returning err unchanged so call sites can use it inline:
//
//	return tracing.HandleError(err, span)
func HandleError(err error, span trace.Span) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
