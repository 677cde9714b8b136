// Package safety defines the data model shared by every analysis component:
// severities, flags, category scores, the aggregate Score, and the typed
// errors returned by the analysis engine.
//
// # Scores
//
// A Score is produced once per analysis and is immutable afterwards. The
// overall score is always the arithmetic mean of the category scores and is
// 0 when no category was produced:
//
//	score := &safety.Score{Categories: categories}
//	score.OverallScore = safety.MeanScore(categories)
//	score.Confidence = safety.MeanConfidence(categories)
//
// Callers that share a Score (for example through a cache) must hand out
// Clone() copies.
//
// # Errors
//
// Every failure surfaced by the engine can be matched with errors.Is against
// one of the sentinels (ErrInvalidContent, ErrProcessingTimeout,
// ErrResourceExhausted, ErrModelLoad, ErrConcurrency, ErrSerialization).
// The typed errors carry the details:
//
//	var te *safety.TimeoutError
//	if errors.As(err, &te) {
//		log.Warn("analysis timed out", "timeout", te.Timeout)
//	}
package safety
