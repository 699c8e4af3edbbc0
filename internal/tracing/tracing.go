// Package tracing wires the OpenTelemetry SDK to a Jaeger collector,
// following the teacher's internal/observability tracer bootstrap. Every
// external call (search, fetch, AI extraction) and every Product Writer
// transaction opens its own span through this package's Tracer.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultCollectorEndpoint = "http://localhost:14268/api/traces"

// Init builds a TracerProvider exporting to the Jaeger collector at
// collectorEndpoint (falling back to the default local agent URL when
// empty), registers it as the global provider, and returns it so the caller
// can Shutdown it on exit.
func Init(serviceName, collectorEndpoint string) (*sdktrace.TracerProvider, error) {
	if collectorEndpoint == "" {
		collectorEndpoint = defaultCollectorEndpoint
	}
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(collectorEndpoint)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the named tracer components should use to start spans
// (e.g. tracing.Tracer("discovery"), tracing.Tracer("productwriter")).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a span named operation under tracer and returns the
// derived context alongside it, so the caller can propagate ctx into the
// external call or store transaction the span covers.
func StartSpan(ctx context.Context, tracer trace.Tracer, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, operation)
}
