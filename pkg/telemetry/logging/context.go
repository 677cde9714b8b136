package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// AnalysisIDKey is the context key for analysis IDs.
	AnalysisIDKey contextKey = "analysis_id"

	// FingerprintKey is the context key for content fingerprints.
	FingerprintKey contextKey = "fingerprint"

	// ModelKey is the context key for model names.
	ModelKey contextKey = "model"

	// BatchIDKey is the context key for batch identifiers.
	BatchIDKey contextKey = "batch_id"

	// SourceKey is the context key for the origin of analyzed text, such as
	// a file path.
	SourceKey contextKey = "source"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// contextFields lists the keys extracted into log records, in output order.
var contextFields = []contextKey{TraceIDKey, AnalysisIDKey, BatchIDKey, FingerprintKey, ModelKey, SourceKey}

// WithAnalysisID adds an analysis ID to the context.
func WithAnalysisID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, AnalysisIDKey, id)
}

// GetAnalysisID retrieves the analysis ID from the context.
func GetAnalysisID(ctx context.Context) string {
	return getString(ctx, AnalysisIDKey)
}

// WithFingerprint adds a content fingerprint to the context.
func WithFingerprint(ctx context.Context, fp string) context.Context {
	return context.WithValue(ctx, FingerprintKey, fp)
}

// GetFingerprint retrieves the content fingerprint from the context.
func GetFingerprint(ctx context.Context) string {
	return getString(ctx, FingerprintKey)
}

// WithModel adds a model name to the context.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

// GetModel retrieves the model name from the context.
func GetModel(ctx context.Context) string {
	return getString(ctx, ModelKey)
}

// WithBatchID adds a batch identifier to the context.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, BatchIDKey, id)
}

// GetBatchID retrieves the batch identifier from the context.
func GetBatchID(ctx context.Context) string {
	return getString(ctx, BatchIDKey)
}

// WithSource adds the origin of the analyzed text to the context.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceKey, source)
}

// GetSource retrieves the origin of the analyzed text from the context.
func GetSource(ctx context.Context) string {
	return getString(ctx, SourceKey)
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

func getString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range contextFields {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
