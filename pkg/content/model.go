package content

import (
	"context"
	"time"

	"mercator-hq/aegis/pkg/safety"
)

// ModelName is the registry name used for the content model.
const ModelName = "content"

// ModelVersion is reported in model metadata.
const ModelVersion = "1.0.0"

// Category keys in the scores produced by Model.
const (
	CategoryInjection = "prompt_injection"
	CategoryToxicity  = "toxicity"
)

// Keyword matching is cruder than the rule detector, so clean results and
// toxicity matches carry lower confidence.
const (
	cleanConfidence    = 0.8
	toxicityConfidence = 0.7
)

// Model exposes an Analyzer to the model registry.
type Model struct {
	analyzer *Analyzer
}

// NewModel wraps a.
func NewModel(a *Analyzer) *Model {
	return &Model{analyzer: a}
}

// Ready reports whether the model can serve requests. Patterns are
// compiled at construction so the model is always ready.
func (m *Model) Ready() bool {
	return true
}

// Info describes the model.
func (m *Model) Info() safety.ModelInfo {
	return safety.ModelInfo{
		Name:         ModelName,
		Version:      ModelVersion,
		Type:         "keyword",
		Capabilities: []string{CategoryInjection, CategoryToxicity},
	}
}

// Analyze screens the request text. The request context is not used.
func (m *Model) Analyze(ctx context.Context, req safety.Request) (*safety.Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	analysis := m.analyzer.AnalyzeText(req.Text)

	categories := map[string]safety.CategoryScore{
		CategoryInjection: injectionScore(analysis.Injection),
		CategoryToxicity:  toxicityScore(analysis.Toxicity, analysis.Sentiment),
	}

	var flags []safety.SafetyFlag
	if f, ok := injectionFlag(analysis.Injection, req.Text); ok {
		flags = append(flags, f)
	}
	if f, ok := toxicityFlag(analysis.Toxicity); ok {
		flags = append(flags, f)
	}

	return &safety.Score{
		OverallScore:   safety.MeanScore(categories),
		Confidence:     safety.MeanConfidence(categories),
		Categories:     categories,
		Flags:          flags,
		ProcessingTime: time.Since(start),
		Metadata: safety.Metadata{
			AnalyzerVersion: ModelVersion,
			ModelVersions:   map[string]string{ModelName: ModelVersion},
			Timestamp:       time.Now().UTC(),
		},
	}, nil
}

func injectionScore(d *PromptInjection) safety.CategoryScore {
	if !d.Detected {
		return safety.CategoryScore{Score: 1, Confidence: cleanConfidence}
	}

	cs := safety.CategoryScore{
		Score:         1 - d.Confidence,
		Confidence:    d.Confidence,
		Subcategories: map[string]float64{d.Type: d.Confidence},
		Mitigations:   []string{"Reject or sandbox instructions that try to override the system prompt"},
	}
	cs.Evidence = append(cs.Evidence, d.MatchedPatterns...)
	return cs
}

func toxicityScore(d *Toxicity, s *Sentiment) safety.CategoryScore {
	cs := safety.CategoryScore{Score: 1, Confidence: cleanConfidence}
	if s.Score < 0 {
		cs.Subcategories = map[string]float64{"negative_sentiment": -s.Score}
	}
	if !d.Detected {
		return cs
	}

	cs.Score = 1 - d.Severity.Weight()
	cs.Confidence = toxicityConfidence
	if cs.Subcategories == nil {
		cs.Subcategories = make(map[string]float64, len(d.Categories))
	}
	counts := make(map[string]int, len(d.Categories))
	for _, m := range d.Matches {
		counts[m.Category]++
		cs.Evidence = append(cs.Evidence, m.Keyword)
	}
	for c, n := range counts {
		cs.Subcategories[c] = float64(n) / float64(d.MatchCount)
	}
	cs.Mitigations = []string{"Rephrase without offensive or violent language"}
	return cs
}

func injectionFlag(d *PromptInjection, text string) (safety.SafetyFlag, bool) {
	if !d.Detected {
		return safety.SafetyFlag{}, false
	}

	severity := safety.SeverityMedium
	if d.Type != "indirect" {
		severity = safety.SeverityHigh
	}

	f := safety.SafetyFlag{
		Type:        safety.FlagSecurityConcern,
		Severity:    severity,
		Message:     "Possible " + d.Type + " prompt injection",
		Confidence:  d.Confidence,
		Remediation: "Reject or sandbox instructions that try to override the system prompt",
	}
	for _, loc := range d.Locations {
		f.Evidence = append(f.Evidence, text[loc.Start:loc.End])
	}
	loc := d.Locations[0]
	f.Location = &loc
	return f, true
}

func toxicityFlag(d *Toxicity) (safety.SafetyFlag, bool) {
	if !d.Detected {
		return safety.SafetyFlag{}, false
	}

	f := safety.SafetyFlag{
		Type:        safety.FlagToxicityFound,
		Severity:    d.Severity,
		Message:     "Toxic language detected",
		Confidence:  toxicityConfidence,
		Remediation: "Rephrase without offensive or violent language",
		AutoFixable: true,
	}
	for _, m := range d.Matches {
		f.Evidence = append(f.Evidence, m.Keyword)
	}
	loc := d.Matches[0].Location
	f.Location = &loc
	return f, true
}
