package tracing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/safety"
)

func newTestTracer(t *testing.T, sampler string) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	cfg := config.TracingConfig{Sampler: sampler, SampleRatio: 1, ServiceName: "aegis-test"}

	tr, err := newTracer(cfg, "test", sdktrace.WithSyncer(exporter))
	if err != nil {
		t.Fatalf("newTracer() error = %v", err)
	}
	t.Cleanup(func() { tr.Shutdown(context.Background()) })
	return tr, exporter
}

func TestNew_Disabled(t *testing.T) {
	tr, err := New(config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Enabled() {
		t.Error("expected disabled tracer")
	}

	ctx, span := tr.Start(context.Background(), "noop")
	span.End()
	if TraceID(ctx) != "" {
		t.Errorf("expected no trace ID from noop span, got %q", TraceID(ctx))
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil shutdown error, got %v", err)
	}
}

func TestNew_Enabled(t *testing.T) {
	tr, err := New(config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		Endpoint:    "localhost:4317",
		ServiceName: "aegis-test",
		Insecure:    true,
		Timeout:     time.Second,
	}, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tr.Enabled() {
		t.Error("expected enabled tracer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = tr.Shutdown(ctx)
}

func TestNew_InvalidSampler(t *testing.T) {
	_, err := New(config.TracingConfig{
		Enabled:  true,
		Sampler:  "sometimes",
		Endpoint: "localhost:4317",
		Insecure: true,
	}, "test")
	if err == nil {
		t.Fatal("expected error for unknown sampler")
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	tr, exporter := newTestTracer(t, SamplerAlways)

	ctx, parent := tr.Start(context.Background(), "parent")
	if TraceID(ctx) == "" {
		t.Error("expected trace ID on sampled span")
	}
	_, child := tr.Start(ctx, "child")
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "child" || spans[1].Name != "parent" {
		t.Errorf("unexpected span order: %s, %s", spans[0].Name, spans[1].Name)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("expected child to be parented to parent span")
	}
}

func TestTracer_NeverSampler(t *testing.T) {
	tr, exporter := newTestTracer(t, SamplerNever)

	_, span := tr.Start(context.Background(), "dropped")
	span.End()

	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("expected no exported spans, got %d", n)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.5, false},
		{SamplerRatio, 1.5, true},
		{SamplerRatio, -0.1, true},
		{"sometimes", 0, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.strategy, tt.ratio), func(t *testing.T) {
			_, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Errorf("createSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetError(t *testing.T) {
	tr, exporter := newTestTracer(t, SamplerAlways)

	_, ok := tr.Start(context.Background(), "ok")
	SetError(ok, nil)
	ok.End()

	_, failed := tr.Start(context.Background(), "failed")
	SetError(failed, &safety.TimeoutError{Timeout: time.Second})
	failed.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("expected OK status, got %v", spans[0].Status.Code)
	}
	if spans[1].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[1].Status.Code)
	}
	if len(spans[1].Events) == 0 {
		t.Error("expected recorded error event")
	}
	if v, found := attrValue(spans[1].Attributes, AttrErrorType); !found || v.AsString() != "timeout" {
		t.Errorf("expected error type timeout, got %v", v.AsString())
	}
}

func TestSetScoreAttributes(t *testing.T) {
	tr, exporter := newTestTracer(t, SamplerAlways)

	score := &safety.Score{
		OverallScore: 0.4,
		Confidence:   0.9,
		Flags: []safety.SafetyFlag{
			{Severity: safety.SeverityMedium},
			{Severity: safety.SeverityCritical},
		},
		Metadata: safety.Metadata{
			AnalysisID:    "a-1",
			ModelVersions: map[string]string{"rules": "1.0.0"},
		},
	}

	_, span := tr.Start(context.Background(), "analyze")
	SetScoreAttributes(span, score)
	SetScoreAttributes(span, nil)
	span.End()

	attrs := exporter.GetSpans()[0].Attributes
	checks := map[string]attribute.Value{
		AttrAnalysisID:   attribute.StringValue("a-1"),
		AttrOverallScore: attribute.Float64Value(0.4),
		AttrFlagCount:    attribute.IntValue(2),
		AttrMaxSeverity:  attribute.StringValue("critical"),
		AttrModelCount:   attribute.IntValue(1),
	}
	for key, want := range checks {
		got, found := attrValue(attrs, key)
		if !found {
			t.Errorf("missing attribute %s", key)
			continue
		}
		if got != want {
			t.Errorf("%s: expected %v, got %v", key, want.Emit(), got.Emit())
		}
	}
}

func TestRequestAttributes(t *testing.T) {
	attrs := RequestAttributes(safety.Request{Text: "hello", Context: "medical"})

	if v, _ := attrValue(attrs, AttrTextLength); v.AsInt64() != 5 {
		t.Errorf("expected text length 5, got %d", v.AsInt64())
	}
	if v, _ := attrValue(attrs, AttrHasContext); !v.AsBool() {
		t.Error("expected has_context true")
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrap: %w", safety.ErrInvalidContent), "invalid_content"},
		{safety.ErrResourceExhausted, "resource_exhausted"},
		{safety.ErrSerialization, "serialization"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}
