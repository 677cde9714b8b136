package detector

import (
	"context"
	"fmt"

	"mercator-hq/aegis/pkg/safety"
)

// DefaultModelName is the registry name used for the rule-based model.
const DefaultModelName = "rules"

// OverallCategory is the category key carrying the detector's aggregate
// score.
const OverallCategory = "overall"

// cleanConfidence is the confidence reported for a category with no match.
const cleanConfidence = 0.90

// Model exposes a Detector as an analysis capability for the model
// registry.
type Model struct {
	detector *Detector
}

// NewModel wraps d. A nil detector uses the default rule set.
func NewModel(d *Detector) *Model {
	if d == nil {
		d = New(nil)
	}
	return &Model{detector: d}
}

// Ready reports whether the model can serve requests. Rule sets are
// compiled at construction so the model is always ready.
func (m *Model) Ready() bool {
	return true
}

// Info describes the model.
func (m *Model) Info() safety.ModelInfo {
	caps := make([]string, 0, len(m.detector.rules.categories))
	for _, c := range m.detector.rules.categories {
		caps = append(caps, string(c.Type))
	}
	return safety.ModelInfo{
		Name:         DefaultModelName,
		Version:      ModelVersion,
		Type:         "pattern_rules",
		Capabilities: caps,
	}
}

// Analyze runs the detector and converts its result into a Score with one
// category per violation type plus an overall category.
func (m *Model) Analyze(ctx context.Context, req safety.Request) (*safety.Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := m.detector.Detect(req.Text, req.Context)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return m.toScore(result), nil
}

func (m *Model) toScore(result *Result) *safety.Score {
	byType := make(map[ViolationType][]Violation, len(ViolationTypes))
	for _, v := range result.Violations {
		byType[v.Type] = append(byType[v.Type], v)
	}

	categories := make(map[string]safety.CategoryScore, len(m.detector.rules.categories)+1)
	for _, cat := range m.detector.rules.categories {
		categories[string(cat.Type)] = categoryScore(cat, byType[cat.Type])
	}
	categories[OverallCategory] = safety.CategoryScore{
		Score:      result.Score,
		Confidence: overallConfidence(result.Violations),
	}

	flags := make([]safety.SafetyFlag, 0, len(result.Violations))
	for _, v := range result.Violations {
		flags = append(flags, toFlag(v))
	}

	return &safety.Score{
		OverallScore:   safety.MeanScore(categories),
		Confidence:     safety.MeanConfidence(categories),
		Categories:     categories,
		Flags:          flags,
		ProcessingTime: result.Metadata.AnalysisTime,
		Metadata: safety.Metadata{
			AnalyzerVersion: ModelVersion,
			ModelVersions:   map[string]string{DefaultModelName: result.Metadata.ModelVersion},
			Timestamp:       result.Metadata.Timestamp,
		},
	}
}

func categoryScore(cat Category, violations []Violation) safety.CategoryScore {
	if len(violations) == 0 {
		return safety.CategoryScore{Score: 1, Confidence: cleanConfidence}
	}

	cs := safety.CategoryScore{
		Score:         Score(violations),
		Subcategories: make(map[string]float64),
		Mitigations:   []string{cat.SuggestedFix},
	}
	for _, v := range violations {
		if v.Confidence > cs.Confidence {
			cs.Confidence = v.Confidence
		}
		if v.Confidence > cs.Subcategories[v.Pattern] {
			cs.Subcategories[v.Pattern] = v.Confidence
		}
		cs.Evidence = append(cs.Evidence, v.Evidence...)
	}
	return cs
}

func overallConfidence(violations []Violation) float64 {
	if len(violations) == 0 {
		return cleanConfidence
	}
	var total float64
	for _, v := range violations {
		total += v.Confidence
	}
	return total / float64(len(violations))
}

func toFlag(v Violation) safety.SafetyFlag {
	f := safety.SafetyFlag{
		Type:        flagType(v.Type),
		Severity:    v.Severity,
		Message:     v.Description,
		Confidence:  v.Confidence,
		Evidence:    append([]string(nil), v.Evidence...),
		Remediation: v.SuggestedFix,
		AutoFixable: v.Type == ViolationPrivacy,
	}
	if v.Location != nil {
		loc := *v.Location
		f.Location = &loc
	}
	return f
}

func flagType(vt ViolationType) safety.FlagType {
	switch vt {
	case ViolationBias:
		return safety.FlagBiasDetected
	case ViolationPrivacy:
		return safety.FlagPrivacyIssue
	default:
		return safety.FlagContentViolation
	}
}

// String implements fmt.Stringer for log output.
func (m *Model) String() string {
	return fmt.Sprintf("%s@%s (%d patterns)", DefaultModelName, ModelVersion, m.detector.rules.PatternCount())
}
