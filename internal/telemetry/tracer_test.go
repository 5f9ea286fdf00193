package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitTracerNoopWhenServiceNameEmpty(t *testing.T) {
	tracer, shutdown, err := InitTracer(context.Background(), "", "v0.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "test-span")
	if _, ok := span.(noop.Span); !ok {
		t.Error("expected noop span when service name is empty")
	}
	span.End()
}

func TestInitTracerBuildsRealProvider(t *testing.T) {
	tracer, shutdown, err := InitTracer(context.Background(), "webwatch-monitor", "v1.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "probe-domain")
	if span == nil {
		t.Fatal("expected a non-nil span")
	}
	span.End()
}
