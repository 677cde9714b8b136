package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/aegis/pkg/safety"
)

// Span attribute keys. Analyzed text is never attached to a span.
const (
	AttrTextLength  = "aegis.text.length"
	AttrHasContext  = "aegis.request.has_context"
	AttrFingerprint = "aegis.fingerprint"
	AttrAnalysisID  = "aegis.analysis_id"

	AttrCacheHit = "aegis.cache.hit"

	AttrOverallScore = "aegis.score.overall"
	AttrConfidence   = "aegis.score.confidence"
	AttrFlagCount    = "aegis.flags.count"
	AttrMaxSeverity  = "aegis.flags.max_severity"
	AttrModelCount   = "aegis.models.count"

	AttrBatchSize = "aegis.batch.size"
	AttrBatchMode = "aegis.batch.mode"

	AttrErrorType = "aegis.error.type"
)

// RequestAttributes describes req without including its text.
func RequestAttributes(req safety.Request) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrTextLength, len(req.Text)),
		attribute.Bool(AttrHasContext, req.Context != ""),
	}
}

// SetScoreAttributes records the outcome of an analysis on span.
func SetScoreAttributes(span trace.Span, score *safety.Score) {
	if score == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrAnalysisID, score.Metadata.AnalysisID),
		attribute.Float64(AttrOverallScore, score.OverallScore),
		attribute.Float64(AttrConfidence, score.Confidence),
		attribute.Int(AttrFlagCount, len(score.Flags)),
		attribute.Int(AttrModelCount, len(score.Metadata.ModelVersions)),
	}
	if sev, ok := score.MaxSeverity(); ok {
		attrs = append(attrs, attribute.String(AttrMaxSeverity, sev.String()))
	}
	span.SetAttributes(attrs...)
}

// ErrorType classifies err for the aegis.error.type attribute.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, safety.ErrInvalidContent):
		return "invalid_content"
	case errors.Is(err, safety.ErrProcessingTimeout):
		return "timeout"
	case errors.Is(err, safety.ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, safety.ErrModelLoad):
		return "model_load"
	case errors.Is(err, safety.ErrConcurrency):
		return "concurrency"
	case errors.Is(err, safety.ErrSerialization):
		return "serialization"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "internal"
	}
}
