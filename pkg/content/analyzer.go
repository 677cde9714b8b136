package content

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/safety"
)

// sentimentConfidence is reported for every sentiment estimate.
const sentimentConfidence = 0.7

// inflections lets a toxicity keyword match its common word forms.
const inflections = `(?:s|es|ed|ing|er|ers)?`

var toxicityKeywords = map[string][]string{
	"profanity":     {"fuck", "shit", "damn", "ass", "bitch"},
	"violence":      {"kill", "murder", "attack", "weapon", "blood", "death"},
	"hate_speech":   {"hate", "racist", "discrimination"},
	"adult_content": {"sex", "porn", "nude", "explicit"},
}

var (
	positiveWords = []string{"good", "great", "excellent", "amazing", "wonderful", "happy", "love", "best", "thank", "perfect"}
	negativeWords = []string{"bad", "terrible", "awful", "horrible", "worst", "hate", "angry", "sad", "wrong", "fail"}
)

// Analyzer finds prompt injection phrases and toxic keywords.
// It is immutable after construction and safe for concurrent use.
type Analyzer struct {
	patterns  []string
	injection []*regexp.Regexp

	categories []string
	toxicity   map[string]*regexp.Regexp

	positive *regexp.Regexp
	negative *regexp.Regexp
}

// NewAnalyzer compiles the configured injection phrases and toxicity
// categories. Empty lists fall back to the defaults.
func NewAnalyzer(cfg config.ContentConfig) (*Analyzer, error) {
	patterns := cfg.InjectionPatterns
	if len(patterns) == 0 {
		patterns = config.DefaultInjectionPatterns
	}
	categories := cfg.ToxicityCategories
	if len(categories) == 0 {
		categories = config.ToxicityCategories
	}

	a := &Analyzer{
		patterns:   append([]string(nil), patterns...),
		injection:  make([]*regexp.Regexp, 0, len(patterns)),
		categories: append([]string(nil), categories...),
		toxicity:   make(map[string]*regexp.Regexp, len(categories)),
		positive:   wordList(positiveWords, inflections),
		negative:   wordList(negativeWords, inflections),
	}

	for _, p := range patterns {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			return nil, fmt.Errorf("injection pattern cannot be empty")
		}
		for i, f := range fields {
			fields[i] = regexp.QuoteMeta(f)
		}
		a.injection = append(a.injection, regexp.MustCompile(`(?i)\b`+strings.Join(fields, `\s+`)+`\b`))
	}

	for _, c := range categories {
		words, ok := toxicityKeywords[c]
		if !ok {
			return nil, fmt.Errorf("unknown toxicity category %q", c)
		}
		a.toxicity[c] = wordList(words, inflections)
	}

	return a, nil
}

// wordList matches any of words on a word boundary, followed by an
// optional suffix pattern.
func wordList(words []string, suffix string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)` + suffix + `\b`)
}

// InjectionPatterns returns the configured injection phrases.
func (a *Analyzer) InjectionPatterns() []string {
	return append([]string(nil), a.patterns...)
}

// Categories returns the enabled toxicity categories.
func (a *Analyzer) Categories() []string {
	return append([]string(nil), a.categories...)
}

// AnalyzeText runs every check on text.
func (a *Analyzer) AnalyzeText(text string) *Analysis {
	return &Analysis{
		Injection:     a.detectInjection(text),
		Toxicity:      a.detectToxicity(text),
		Sentiment:     a.analyzeSentiment(text),
		WordCount:     len(strings.Fields(text)),
		SentenceCount: countSentences(text),
	}
}

func (a *Analyzer) detectInjection(text string) *PromptInjection {
	d := &PromptInjection{}

	for i, re := range a.injection {
		m := re.FindStringIndex(text)
		if m == nil {
			continue
		}
		d.Detected = true
		d.MatchedPatterns = append(d.MatchedPatterns, a.patterns[i])
		d.Locations = append(d.Locations, safety.TextLocation{Start: m[0], End: m[1]})
	}

	if !d.Detected {
		return d
	}

	switch {
	case containsAny(d.MatchedPatterns, "ignore", "disregard", "forget"):
		d.Type = "direct"
	case containsAny(d.MatchedPatterns, "you are now"):
		d.Type = "jailbreak"
	default:
		d.Type = "indirect"
	}

	switch n := len(d.MatchedPatterns); {
	case n >= 3:
		d.Confidence = 0.95
	case n == 2:
		d.Confidence = 0.85
	default:
		d.Confidence = 0.75
	}

	return d
}

func (a *Analyzer) detectToxicity(text string) *Toxicity {
	d := &Toxicity{Severity: safety.SeverityLow}

	for _, c := range a.categories {
		matches := a.toxicity[c].FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		d.Detected = true
		d.Categories = append(d.Categories, c)
		for _, m := range matches {
			d.Matches = append(d.Matches, KeywordMatch{
				Category: c,
				Keyword:  strings.ToLower(text[m[0]:m[1]]),
				Location: safety.TextLocation{Start: m[0], End: m[1]},
			})
		}
	}

	sort.SliceStable(d.Matches, func(i, j int) bool {
		return d.Matches[i].Location.Start < d.Matches[j].Location.Start
	})
	d.MatchCount = len(d.Matches)

	switch {
	case d.MatchCount >= 5:
		d.Severity = safety.SeverityCritical
	case d.MatchCount >= 3:
		d.Severity = safety.SeverityHigh
	case d.MatchCount >= 1:
		d.Severity = safety.SeverityMedium
	}

	return d
}

func (a *Analyzer) analyzeSentiment(text string) *Sentiment {
	s := &Sentiment{Label: "neutral", Confidence: sentimentConfidence}

	pos := len(a.positive.FindAllStringIndex(text, -1))
	neg := len(a.negative.FindAllStringIndex(text, -1))
	if total := pos + neg; total > 0 {
		s.Score = float64(pos-neg) / float64(total)
	}

	switch {
	case s.Score > 0.2:
		s.Label = "positive"
	case s.Score < -0.2:
		s.Label = "negative"
	}

	return s
}

func countSentences(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	count := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if count == 0 {
		return 1
	}
	return count
}

func containsAny(haystack []string, needles ...string) bool {
	for _, h := range haystack {
		h = strings.ToLower(h)
		for _, n := range needles {
			if strings.Contains(h, n) {
				return true
			}
		}
	}
	return false
}
