// Package telemetry provides OpenTelemetry tracing initialization for the
// monitoring core's probe and orchestrator spans.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InitTracer sets up an in-process TracerProvider with a basic resource
// (service name/version). Unlike a collector-backed deployment, runs here
// are standalone, so there is no OTLP exporter to configure — the provider
// only gives probes and the orchestrator a real trace.Tracer to attach
// spans to, for any in-process span processor a caller adds later. Passing
// an empty serviceName returns a noop tracer instead.
func InitTracer(ctx context.Context, serviceName, serviceVersion string) (trace.Tracer, func(context.Context) error, error) {
	if serviceName == "" {
		t := noop.NewTracerProvider().Tracer("webwatch-monitor")
		return t, func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	tracer := tp.Tracer(serviceName)
	return tracer, tp.Shutdown, nil
}
