package content

import "mercator-hq/aegis/pkg/safety"

// Analysis is the result of AnalyzeText.
type Analysis struct {
	Injection *PromptInjection
	Toxicity  *Toxicity
	Sentiment *Sentiment

	WordCount     int
	SentenceCount int
}

// PromptInjection describes instruction override attempts found in text.
type PromptInjection struct {
	Detected bool

	// Type is "direct", "jailbreak" or "indirect".
	Type string

	// Confidence grows with the number of distinct patterns matched.
	Confidence float64

	MatchedPatterns []string
	Locations       []safety.TextLocation
}

// Toxicity describes toxic keywords found in text.
type Toxicity struct {
	Detected   bool
	Categories []string
	MatchCount int
	Severity   safety.Severity
	Matches    []KeywordMatch
}

// KeywordMatch is one keyword occurrence.
type KeywordMatch struct {
	Category string
	Keyword  string
	Location safety.TextLocation
}

// Sentiment is a rule-based polarity estimate.
type Sentiment struct {
	// Score ranges from -1.0 (negative) to 1.0 (positive).
	Score float64

	// Label is "negative", "neutral" or "positive".
	Label string

	Confidence float64
}
