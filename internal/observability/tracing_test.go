package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/unklstewy/hilalscope/pkg/config"
)

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown returned %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "ignored")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Fatal("noop provider produced a valid span context")
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	prev := TraceWriter
	TraceWriter = &buf
	t.Cleanup(func() { TraceWriter = prev })

	shutdown, err := InitTracing(context.Background(), config.TracingConfig{
		Enabled:     true,
		ServiceName: "hilalscope-test",
		Exporter:    "stdout",
		SampleRatio: 1,
	})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), config.TracingConfig{})
	})

	_, span := otel.Tracer("test").Start(context.Background(), "scan.generation")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a sampled span")
	}
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown)

	out := buf.String()
	if !strings.Contains(out, "scan.generation") {
		t.Fatalf("expected span name in exporter output, got %q", out)
	}
	if !strings.Contains(out, "hilalscope-test") {
		t.Fatalf("expected service name in exporter output, got %q", out)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "carrier-pigeon"})
	if err == nil || !strings.Contains(err.Error(), "unsupported tracing exporter") {
		t.Fatalf("expected unsupported exporter error, got %v", err)
	}
}

func TestShutdownWithTimeoutNil(t *testing.T) {
	ShutdownWithTimeout(context.Background(), nil)
}
