package detector

import (
	"fmt"
	"regexp"
	"strings"

	"mercator-hq/aegis/pkg/safety"
)

// ViolationType is the category a violation belongs to.
type ViolationType string

const (
	ViolationHarmfulContent ViolationType = "harmful_content"
	ViolationBias           ViolationType = "bias"
	ViolationPrivacy        ViolationType = "privacy"
	ViolationIllegalContent ViolationType = "illegal_content"
	ViolationMisinformation ViolationType = "misinformation"
)

// ViolationTypes lists every category in check order.
var ViolationTypes = []ViolationType{
	ViolationHarmfulContent,
	ViolationBias,
	ViolationPrivacy,
	ViolationIllegalContent,
	ViolationMisinformation,
}

// ParseViolationType parses a category name.
func ParseViolationType(s string) (ViolationType, error) {
	vt := ViolationType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ViolationTypes {
		if vt == known {
			return vt, nil
		}
	}
	return "", fmt.Errorf("unknown violation type %q", s)
}

// RedactedEvidence replaces matched text for categories that must not echo
// their input.
const RedactedEvidence = "[REDACTED]"

// DefaultContextKeywords are the context markers that relax severities.
var DefaultContextKeywords = []string{"medical", "educational", "academic", "research"}

// Pattern is a single compiled detection rule.
type Pattern struct {
	// Name identifies the pattern in rule listings and subcategory scores.
	Name string

	re *regexp.Regexp
}

// Source returns the regular expression source of the pattern.
func (p Pattern) Source() string {
	return p.re.String()
}

// Category groups the patterns of one violation type with the severity and
// confidence its matches carry.
type Category struct {
	Type        ViolationType
	Severity    safety.Severity
	Confidence  float64
	Description string

	// SuggestedFix is attached to every violation of this category.
	SuggestedFix string

	// CaseSensitive disables the implicit (?i) flag on pack patterns.
	CaseSensitive bool

	// AllMatches reports every match of a pattern instead of the first.
	AllMatches bool

	// Redact replaces evidence with RedactedEvidence.
	Redact bool

	Patterns []Pattern
}

// RuleSet is an immutable collection of categories plus the context
// keywords that trigger severity relaxation.
//
// A RuleSet is safe for concurrent use; Extend and WithContextKeywords
// return new sets.
type RuleSet struct {
	categories      []Category
	contextKeywords []string
}

type builtinPattern struct {
	name   string
	source string
}

// builtinCategories are compiled with RE2 semantics: \b, \w and \d only
// know ASCII, so a boundary next to a non-ASCII letter is not a boundary.
// Patterns that must span such letters use \p{L} and \p{N} instead.
var builtinCategories = []struct {
	category Category
	patterns []builtinPattern
}{
	{
		category: Category{
			Type:         ViolationHarmfulContent,
			Severity:     safety.SeverityCritical,
			Confidence:   0.95,
			Description:  "Text contains potentially harmful content",
			SuggestedFix: "Remove instructions or encouragement of violence and self-harm",
		},
		patterns: []builtinPattern{
			{"violence_against_people", `(?i)\b(kill|murder|assassinate|eliminate)\s+(someone|people|person)\b`},
			{"weapon_construction", `(?i)\b(how\s+to\s+)?(make|create|build)\s+(?:(?:a|an|the)\s+)?(bomb|weapon|explosive)\b`},
			{"self_harm", `(?i)\b(suicide|self\s*harm|cut\s+myself)\b`},
			{"harm_others", `(?i)\b(harm|hurt|damage|destroy)\s+(yourself|others|someone)\b`},
			{"violent_language", `(?i)\b(violence|violent|attack|assault)\b`},
		},
	},
	{
		category: Category{
			Type:         ViolationBias,
			Severity:     safety.SeverityHigh,
			Confidence:   0.80,
			Description:  "Text contains potentially biased content",
			SuggestedFix: "Rephrase generalisations about groups of people",
		},
		patterns: []builtinPattern{
			{"gender_generalisation", `(?i)\b(women|men)\s+are\s+(naturally|always|never)\b`},
			{"racial_generalisation", `(?i)\b(black|white|asian|hispanic)\s+people\s+are\b`},
			{"religious_generalisation", `(?i)\b(muslims|christians|jews)\s+are\s+(all|always)\b`},
			{"age_generalisation", `(?i)\b(old|young)\s+people\s+(can't|cannot|shouldn't)\b`},
			{"bias_terms", `(?i)\b(stereotype|prejudice|discriminate)\b`},
		},
	},
	{
		category: Category{
			Type:          ViolationPrivacy,
			Severity:      safety.SeverityHigh,
			Confidence:    0.90,
			Description:   "Text contains personally identifiable information",
			SuggestedFix:  "Remove or mask personal identifiers",
			CaseSensitive: true,
			AllMatches:    true,
			Redact:        true,
		},
		patterns: []builtinPattern{
			{"ssn", `\b\d{3}-\d{2}-\d{4}\b`},
			{"credit_card", `\b\d{4}\s?\d{4}\s?\d{4}\s?\d{4}\b`},
			{"email", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`},
			{"phone", `\b\d{3}-\d{3}-\d{4}\b`},
			{"street_address", `\b\d{1,5}\s[\p{L}\p{N}_]+\s(street|st|avenue|ave|road|rd|drive|dr)\b`},
		},
	},
	{
		category: Category{
			Type:         ViolationIllegalContent,
			Severity:     safety.SeverityCritical,
			Confidence:   0.85,
			Description:  "Text contains references to illegal activities",
			SuggestedFix: "Remove references to facilitating illegal activity",
		},
		patterns: []builtinPattern{
			{"illegal_activity", `(?i)\b(illegal|criminal|unlawful)\s+activity\b`},
			{"drug_trade", `(?i)\b(drug\s+dealing|sell\s+drugs|buy\s+cocaine)\b`},
			{"financial_crime", `(?i)\b(money\s+laundering|tax\s+evasion)\b`},
			{"theft_fraud", `(?i)\b(hack|steal|rob|fraud)\s+(someone|system|bank)\b`},
		},
	},
	{
		category: Category{
			Type:         ViolationMisinformation,
			Severity:     safety.SeverityMedium,
			Confidence:   0.75,
			Description:  "Text contains potential misinformation",
			SuggestedFix: "Verify the claim against authoritative sources",
		},
		patterns: []builtinPattern{
			{"vaccine_autism", `(?i)vaccines?\s+(cause|causes)\s+autism`},
			{"covid_hoax", `(?i)covid\s+is\s+a\s+hoax`},
			{"climate_denial", `(?i)climate\s+change\s+is\s+(fake|hoax)`},
			{"flat_earth", `(?i)earth\s+is\s+flat`},
			{"5g_covid", `(?i)5g\s+(causes|spreads)\s+covid`},
		},
	},
}

// DefaultRuleSet returns the built-in rule set.
func DefaultRuleSet() *RuleSet {
	rs := &RuleSet{
		categories:      make([]Category, 0, len(builtinCategories)),
		contextKeywords: append([]string(nil), DefaultContextKeywords...),
	}

	for _, b := range builtinCategories {
		cat := b.category
		cat.Patterns = make([]Pattern, 0, len(b.patterns))
		for _, p := range b.patterns {
			cat.Patterns = append(cat.Patterns, Pattern{Name: p.name, re: regexp.MustCompile(p.source)})
		}
		rs.categories = append(rs.categories, cat)
	}

	return rs
}

// Categories returns the categories in check order.
// The returned slice is a copy; patterns are shared and immutable.
func (r *RuleSet) Categories() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	for i := range out {
		out[i].Patterns = append([]Pattern(nil), r.categories[i].Patterns...)
	}
	return out
}

// Category returns the category of the given type.
func (r *RuleSet) Category(vt ViolationType) (Category, bool) {
	for _, c := range r.categories {
		if c.Type == vt {
			return c, true
		}
	}
	return Category{}, false
}

// ContextKeywords returns the keywords that trigger severity relaxation.
func (r *RuleSet) ContextKeywords() []string {
	return append([]string(nil), r.contextKeywords...)
}

// PatternCount returns the total number of patterns in the set.
func (r *RuleSet) PatternCount() int {
	n := 0
	for _, c := range r.categories {
		n += len(c.Patterns)
	}
	return n
}

// WithContextKeywords returns a copy of the set using the given keywords.
// An empty list disables context relaxation.
func (r *RuleSet) WithContextKeywords(keywords []string) *RuleSet {
	out := r.clone()
	out.contextKeywords = make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out.contextKeywords = append(out.contextKeywords, kw)
		}
	}
	return out
}

// Extend returns a new set with the patterns of pack appended to their
// categories. Pack patterns are compiled here so a bad pattern fails at
// load time rather than during detection.
func (r *RuleSet) Extend(pack *RulePack) (*RuleSet, error) {
	if pack == nil {
		return r, nil
	}

	out := r.clone()
	for i := range out.categories {
		cat := &out.categories[i]
		for _, spec := range pack.Categories[cat.Type] {
			p, err := compilePattern(spec, cat.CaseSensitive)
			if err != nil {
				return nil, fmt.Errorf("rule pack %q: %s: %w", pack.Name, cat.Type, err)
			}
			cat.Patterns = append(cat.Patterns, p)
		}
	}

	for _, kw := range pack.ContextKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && !containsString(out.contextKeywords, kw) {
			out.contextKeywords = append(out.contextKeywords, kw)
		}
	}

	return out, nil
}

func (r *RuleSet) clone() *RuleSet {
	return &RuleSet{
		categories:      r.Categories(),
		contextKeywords: append([]string(nil), r.contextKeywords...),
	}
}

func compilePattern(spec PatternSpec, caseSensitive bool) (Pattern, error) {
	source := spec.Pattern
	if !caseSensitive && !strings.HasPrefix(source, "(?i)") {
		source = "(?i)" + source
	}
	re, err := regexp.Compile(source)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: %w", spec.Name, err)
	}
	return Pattern{Name: spec.Name, re: re}, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
