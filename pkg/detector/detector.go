package detector

import (
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"mercator-hq/aegis/pkg/safety"
)

// ModelVersion is reported in every Result.
const ModelVersion = "1.0.0"

// Context relaxation factors applied once after all checks.
const (
	criticalContextFactor = 0.7
	highContextFactor     = 0.8
)

// scorePrecision bounds the float noise carried into reported scores.
const scorePrecision = 1e12

// Violation is a single rule match.
type Violation struct {
	Type         ViolationType        `json:"violation_type"`
	Severity     safety.Severity      `json:"severity"`
	Description  string               `json:"description"`
	Confidence   float64              `json:"confidence"`
	Evidence     []string             `json:"evidence"`
	Pattern      string               `json:"pattern,omitempty"`
	Location     *safety.TextLocation `json:"location,omitempty"`
	SuggestedFix string               `json:"suggested_fix,omitempty"`
}

// ResultMetadata describes a detection run.
type ResultMetadata struct {
	AnalysisTime   time.Duration `json:"analysis_time"`
	ModelVersion   string        `json:"model_version"`
	Timestamp      time.Time     `json:"timestamp"`
	TextLength     int           `json:"text_length"`
	PatternMatches int           `json:"pattern_matches"`
}

// Result is the output of Detect.
type Result struct {
	// Safe is true when no violation was found.
	Safe bool `json:"is_safe"`

	// Score is 1 - min(1, sum of severity weight * confidence), floored at 0.
	Score float64 `json:"safety_score"`

	Violations []Violation    `json:"violations"`
	Metadata   ResultMetadata `json:"metadata"`
}

// MaxSeverity returns the highest violation severity and whether any
// violation exists.
func (r *Result) MaxSeverity() (safety.Severity, bool) {
	if len(r.Violations) == 0 {
		return safety.SeverityLow, false
	}
	max := r.Violations[0].Severity
	for _, v := range r.Violations[1:] {
		if v.Severity > max {
			max = v.Severity
		}
	}
	return max, true
}

// Detector runs a RuleSet against text.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	rules *RuleSet
}

// New creates a detector for the given rules. A nil rule set selects
// DefaultRuleSet.
func New(rules *RuleSet) *Detector {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	return &Detector{rules: rules}
}

// Rules returns the detector's rule set.
func (d *Detector) Rules() *RuleSet {
	return d.rules
}

// Detect screens text against every category and returns the violations
// found. Categories are checked concurrently; violations are reported in
// category order. A non-empty context containing one of the rule set's
// context keywords relaxes critical and high severities once.
func (d *Detector) Detect(text, context string) *Result {
	start := time.Now()

	categories := d.rules.categories
	found := make([][]Violation, len(categories))

	var wg sync.WaitGroup
	for i := range categories {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			found[i] = checkCategory(&categories[i], text)
		}(i)
	}
	wg.Wait()

	var violations []Violation
	for _, vs := range found {
		violations = append(violations, vs...)
	}

	if context != "" && d.matchesContext(context) {
		relaxForContext(violations)
	}

	return &Result{
		Safe:       len(violations) == 0,
		Score:      Score(violations),
		Violations: violations,
		Metadata: ResultMetadata{
			AnalysisTime:   time.Since(start),
			ModelVersion:   ModelVersion,
			Timestamp:      time.Now().UTC(),
			TextLength:     len(text),
			PatternMatches: len(violations),
		},
	}
}

// Score aggregates violations into a safety score in [0,1]. The result is
// rounded to scorePrecision so that a single critical match at 0.95
// confidence scores exactly 0.05.
func Score(violations []Violation) float64 {
	var penalty float64
	for _, v := range violations {
		penalty += v.Severity.Weight() * v.Confidence
	}
	if penalty > 1 {
		penalty = 1
	}
	score := math.Round((1-penalty)*scorePrecision) / scorePrecision
	if score < 0 {
		return 0
	}
	return score
}

func (d *Detector) matchesContext(context string) bool {
	lower := strings.ToLower(context)
	for _, kw := range d.rules.contextKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// relaxForContext lowers critical and high violations by one severity step
// and scales their confidence. Medium and low are untouched.
func relaxForContext(violations []Violation) {
	for i := range violations {
		v := &violations[i]
		switch v.Severity {
		case safety.SeverityCritical:
			v.Confidence *= criticalContextFactor
		case safety.SeverityHigh:
			v.Confidence *= highContextFactor
		default:
			continue
		}
		v.Severity = v.Severity.Downgrade()
	}
}

func checkCategory(cat *Category, text string) []Violation {
	var out []Violation
	for _, p := range cat.Patterns {
		if cat.AllMatches {
			for _, m := range p.re.FindAllStringIndex(text, -1) {
				out = append(out, newViolation(cat, p, text, m))
			}
			continue
		}
		if m := p.re.FindStringIndex(text); m != nil {
			out = append(out, newViolation(cat, p, text, m))
		}
	}
	return out
}

func newViolation(cat *Category, p Pattern, text string, match []int) Violation {
	evidence := text[match[0]:match[1]]
	if cat.Redact {
		evidence = RedactedEvidence
	}
	return Violation{
		Type:         cat.Type,
		Severity:     cat.Severity,
		Description:  cat.Description,
		Confidence:   cat.Confidence,
		Evidence:     []string{evidence},
		Pattern:      p.Name,
		Location:     locate(text, match[0], match[1]),
		SuggestedFix: cat.SuggestedFix,
	}
}

// locate converts byte offsets into a TextLocation with a 1-based line and
// a 1-based rune column.
func locate(text string, start, end int) *safety.TextLocation {
	prefix := text[:start]
	line := strings.Count(prefix, "\n") + 1
	lineStart := strings.LastIndexByte(prefix, '\n') + 1
	return &safety.TextLocation{
		Start:  start,
		End:    end,
		Line:   line,
		Column: utf8.RuneCountInString(prefix[lineStart:]) + 1,
	}
}
