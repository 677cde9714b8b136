package safety

import (
	"encoding/json"
	"math"
	"time"
)

// FlagType classifies a SafetyFlag.
type FlagType string

const (
	FlagContentViolation FlagType = "content_violation"
	FlagBiasDetected     FlagType = "bias_detected"
	FlagToxicityFound    FlagType = "toxicity_found"
	FlagPrivacyIssue     FlagType = "privacy_issue"
	FlagSecurityConcern  FlagType = "security_concern"
	FlagEthicalIssue     FlagType = "ethical_issue"
)

// Request is a single unit of text submitted for analysis.
type Request struct {
	// Text is the content to screen.
	Text string `json:"text"`

	// Context is an optional free-text hint about where the text comes from
	// (e.g., "medical consultation"). Some capabilities relax severities
	// for recognised contexts.
	Context string `json:"context,omitempty"`
}

// TextLocation identifies a span of the analyzed text.
// Start and End are byte offsets; Line and Column are 1-based and zero
// when unknown.
type TextLocation struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// SafetyFlag is a single finding surfaced to callers.
type SafetyFlag struct {
	Type        FlagType      `json:"type"`
	Severity    Severity      `json:"severity"`
	Message     string        `json:"message"`
	Confidence  float64       `json:"confidence"`
	Evidence    []string      `json:"evidence,omitempty"`
	Location    *TextLocation `json:"location,omitempty"`
	Remediation string        `json:"remediation,omitempty"`
	AutoFixable bool          `json:"auto_fixable"`
}

// CategoryScore is the per-category component of a Score.
// It is owned exclusively by its parent Score.
type CategoryScore struct {
	Score         float64            `json:"score"`
	Confidence    float64            `json:"confidence"`
	Subcategories map[string]float64 `json:"subcategory_scores,omitempty"`
	Evidence      []string           `json:"evidence,omitempty"`
	Mitigations   []string           `json:"mitigation_suggestions,omitempty"`
}

// SystemInfo describes the host that produced a Score.
type SystemInfo struct {
	CPUCores  int    `json:"cpu_cores"`
	MemoryMB  uint64 `json:"memory_mb"`
	Platform  string `json:"platform"`
	GoVersion string `json:"go_version"`
}

// Metadata records how a Score was produced.
type Metadata struct {
	AnalysisID      string            `json:"analysis_id"`
	AnalyzerVersion string            `json:"analyzer_version"`
	ModelVersions   map[string]string `json:"model_versions,omitempty"`
	Pipeline        []string          `json:"processing_pipeline"`
	System          SystemInfo        `json:"system_info"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Score is the result of one completed analysis.
//
// A Score is created once and never mutated afterwards. Caches hand out
// clones so no two callers share its maps or slices.
type Score struct {
	// OverallScore is the arithmetic mean of the category scores, in [0,1].
	// 1.0 means no concern was found; an empty category set scores 0.
	OverallScore float64 `json:"overall_score"`

	// Confidence is the mean of the category confidences, in [0,1].
	Confidence float64 `json:"confidence"`

	Categories map[string]CategoryScore `json:"categories"`
	Flags      []SafetyFlag             `json:"flags"`

	// ProcessingTime is the time spent inside the models.
	// It is encoded as fractional milliseconds (processing_time_ms).
	ProcessingTime time.Duration `json:"-"`

	Metadata Metadata `json:"metadata"`
}

type scoreJSON Score

type scoreWire struct {
	*scoreJSON
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// MarshalJSON encodes the score with its processing time in milliseconds.
func (s Score) MarshalJSON() ([]byte, error) {
	sj := scoreJSON(s)
	return json.Marshal(scoreWire{
		scoreJSON:        &sj,
		ProcessingTimeMs: float64(s.ProcessingTime) / float64(time.Millisecond),
	})
}

// UnmarshalJSON decodes a score produced by MarshalJSON.
func (s *Score) UnmarshalJSON(data []byte) error {
	w := scoreWire{scoreJSON: (*scoreJSON)(s)}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.ProcessingTime = time.Duration(math.Round(w.ProcessingTimeMs * float64(time.Millisecond)))
	return nil
}

// ModelInfo describes a registered analysis capability.
type ModelInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Type         string   `json:"model_type"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// PerformanceMetrics reports running analyzer performance.
// Only AvgProcessingTimeMs and ThroughputPerSecond are populated today;
// the remaining fields are reserved for evaluation tooling.
type PerformanceMetrics struct {
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
	ThroughputPerSecond float64 `json:"throughput_per_second"`
	MemoryUsageMB       float64 `json:"memory_usage_mb"`
	AccuracyPercentage  float64 `json:"accuracy_percentage"`
	FalsePositiveRate   float64 `json:"false_positive_rate"`
	FalseNegativeRate   float64 `json:"false_negative_rate"`
}

// AnalyzerInfo describes an analyzer and its current performance.
type AnalyzerInfo struct {
	Name               string             `json:"name"`
	Version            string             `json:"version"`
	Capabilities       []string           `json:"capabilities"`
	SupportedLanguages []string           `json:"supported_languages"`
	Models             []ModelInfo        `json:"models,omitempty"`
	Performance        PerformanceMetrics `json:"performance_metrics"`
}

// MeanScore returns the arithmetic mean of the category scores.
// It returns 0 for an empty set.
func MeanScore(categories map[string]CategoryScore) float64 {
	if len(categories) == 0 {
		return 0
	}
	var total float64
	for _, c := range categories {
		total += c.Score
	}
	return total / float64(len(categories))
}

// MeanConfidence returns the arithmetic mean of the category confidences.
// It returns 0 for an empty set.
func MeanConfidence(categories map[string]CategoryScore) float64 {
	if len(categories) == 0 {
		return 0
	}
	var total float64
	for _, c := range categories {
		total += c.Confidence
	}
	return total / float64(len(categories))
}

// MaxSeverity returns the highest severity among the flags and whether any
// flag exists.
func (s *Score) MaxSeverity() (Severity, bool) {
	if len(s.Flags) == 0 {
		return SeverityLow, false
	}
	max := s.Flags[0].Severity
	for _, f := range s.Flags[1:] {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max, true
}

// RequiresHumanReview reports whether the score should be escalated:
// any critical flag, or an overall score below threshold.
func (s *Score) RequiresHumanReview(threshold float64) bool {
	if sev, ok := s.MaxSeverity(); ok && sev == SeverityCritical {
		return true
	}
	return s.OverallScore < threshold
}

// Clone returns a deep copy of the score.
func (s *Score) Clone() *Score {
	if s == nil {
		return nil
	}
	out := *s

	if s.Categories != nil {
		out.Categories = make(map[string]CategoryScore, len(s.Categories))
		for name, c := range s.Categories {
			out.Categories[name] = c.clone()
		}
	}

	if s.Flags != nil {
		out.Flags = make([]SafetyFlag, len(s.Flags))
		for i, f := range s.Flags {
			out.Flags[i] = f.clone()
		}
	}

	out.Metadata.ModelVersions = cloneStringMap(s.Metadata.ModelVersions)
	out.Metadata.Pipeline = cloneStrings(s.Metadata.Pipeline)

	return &out
}

func (c CategoryScore) clone() CategoryScore {
	out := c
	if c.Subcategories != nil {
		out.Subcategories = make(map[string]float64, len(c.Subcategories))
		for k, v := range c.Subcategories {
			out.Subcategories[k] = v
		}
	}
	out.Evidence = cloneStrings(c.Evidence)
	out.Mitigations = cloneStrings(c.Mitigations)
	return out
}

func (f SafetyFlag) clone() SafetyFlag {
	out := f
	out.Evidence = cloneStrings(f.Evidence)
	if f.Location != nil {
		loc := *f.Location
		out.Location = &loc
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
