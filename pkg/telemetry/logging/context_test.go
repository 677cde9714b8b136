package logging

import (
	"context"
	"testing"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()

	if GetAnalysisID(ctx) != "" || GetModel(ctx) != "" {
		t.Error("expected empty values on bare context")
	}

	ctx = WithAnalysisID(ctx, "id")
	ctx = WithFingerprint(ctx, "fp")
	ctx = WithModel(ctx, "rules")
	ctx = WithBatchID(ctx, "batch")
	ctx = WithSource(ctx, "file.txt")
	ctx = WithTraceID(ctx, "trace")

	checks := map[string]string{
		"analysis id": GetAnalysisID(ctx),
		"fingerprint": GetFingerprint(ctx),
		"model":       GetModel(ctx),
		"batch id":    GetBatchID(ctx),
		"source":      GetSource(ctx),
		"trace id":    GetTraceID(ctx),
	}
	want := map[string]string{
		"analysis id": "id",
		"fingerprint": "fp",
		"model":       "rules",
		"batch id":    "batch",
		"source":      "file.txt",
		"trace id":    "trace",
	}
	for name, got := range checks {
		if got != want[name] {
			t.Errorf("%s: expected %q, got %q", name, want[name], got)
		}
	}
}

func TestExtractContextFields_Order(t *testing.T) {
	ctx := WithSource(WithAnalysisID(context.Background(), "id"), "src")

	fields := extractContextFields(ctx)
	want := []any{"analysis_id", "id", "source", "src"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d: %v", len(want), len(fields), fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d: expected %v, got %v", i, want[i], fields[i])
		}
	}
}
