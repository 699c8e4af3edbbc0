package tracing

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_ChildNestsUnderParent(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(sr)

	tracer := tp.Tracer("test")
	ctx, root := StartSpan(context.Background(), tracer, "enrich_skeleton")
	_, child := StartSpan(ctx, tracer, "productwriter.write")
	child.End()
	root.End()

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	var rootSpan, childSpan sdktrace.ReadOnlySpan
	for _, sp := range spans {
		switch sp.Name() {
		case "enrich_skeleton":
			rootSpan = sp
		case "productwriter.write":
			childSpan = sp
		}
	}
	if rootSpan == nil || childSpan == nil {
		t.Fatalf("spans not recorded correctly")
	}
	if childSpan.Parent().SpanID() != rootSpan.SpanContext().SpanID() {
		t.Fatalf("child span does not have correct parent")
	}
}
