package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// startTracing installs the process-wide TracerProvider that pkg/tracing's
// spans are recorded against. No exporter is attached: this daemon has
// nowhere of its own to ship spans, so the provider's only job today is to
// run the configured sampler and hold spans open for the duration of a
// call, the same "some real TracerProvider, no exporter wired yet" stage
// the teacher's own pkg/tracing went through before its collector existed.
func startTracing(ctx context.Context, sampleAll bool) (*sdktrace.TracerProvider, error) {
	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewSchemaless(attribute.String("service.name", "repoindexd")),
	)
	if err != nil {
		return nil, fmt.Errorf("repoindexd: build trace resource: %w", err)
	}

	sampler := sdktrace.NeverSample()
	if sampleAll {
		sampler = sdktrace.AlwaysSample()
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}
