package safety

import (
	"fmt"
	"strings"
)

// Severity is the ordered intensity of a violation or flag.
// The ordering is total: Low < Medium < High < Critical.
type Severity int

const (
	// SeverityLow is informational; it never blocks on its own.
	SeverityLow Severity = iota
	// SeverityMedium indicates content that deserves attention.
	SeverityMedium
	// SeverityHigh indicates content that should normally be blocked.
	SeverityHigh
	// SeverityCritical indicates content that always requires human review.
	SeverityCritical
)

// severityWeights maps each severity to its contribution to the aggregate
// safety score.
var severityWeights = [...]float64{
	SeverityLow:      0.1,
	SeverityMedium:   0.3,
	SeverityHigh:     0.6,
	SeverityCritical: 1.0,
}

// unknownSeverityWeight is used for out-of-range severities.
const unknownSeverityWeight = 0.5

// Weight returns the severity weight used in score aggregation.
func (s Severity) Weight() float64 {
	if s < SeverityLow || s > SeverityCritical {
		return unknownSeverityWeight
	}
	return severityWeights[s]
}

// Downgrade returns the severity one step below s.
// Low stays Low.
func (s Severity) Downgrade() Severity {
	if s <= SeverityLow {
		return SeverityLow
	}
	return s - 1
}

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity parses a severity name (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityLow, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityLow || s > SeverityCritical {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
