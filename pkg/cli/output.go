package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"mercator-hq/aegis/pkg/safety"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is a human-readable summary (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
)

// ParseFormat parses a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", NewConfigError("format", fmt.Sprintf("unsupported output format %q (use text or json)", s))
	}
}

// Formatter formats command output.
type Formatter interface {
	Format(data any) ([]byte, error)
	FormatTo(w io.Writer, data any) error
}

// TextFormatter prints scores as a short report and anything else with %v.
type TextFormatter struct {
	// Threshold marks scores below it as requiring review. Zero disables
	// the marker.
	Threshold float64
}

// Format converts data to text format.
func (f *TextFormatter) Format(data any) ([]byte, error) {
	var b strings.Builder
	if err := f.FormatTo(&b, data); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	switch v := data.(type) {
	case *safety.Score:
		return f.writeScore(w, "", v)
	case []*safety.Score:
		for i, s := range v {
			if err := f.writeScore(w, fmt.Sprintf("[%d] ", i), s); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
}

func (f *TextFormatter) writeScore(w io.Writer, prefix string, s *safety.Score) error {
	if s == nil {
		_, err := fmt.Fprintf(w, "%s<no result>\n", prefix)
		return err
	}

	verdict := "ok"
	if f.Threshold > 0 && s.RequiresHumanReview(f.Threshold) {
		verdict = "REVIEW"
	}

	if _, err := fmt.Fprintf(w, "%sscore=%.3f confidence=%.3f flags=%d %s (%.2fms)\n",
		prefix, s.OverallScore, s.Confidence, len(s.Flags), verdict,
		float64(s.ProcessingTime.Microseconds())/1000); err != nil {
		return err
	}

	names := make([]string, 0, len(s.Categories))
	for name, c := range s.Categories {
		if c.Score < 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		c := s.Categories[name]
		if _, err := fmt.Fprintf(w, "  %-32s %.3f (confidence %.2f)\n", name, c.Score, c.Confidence); err != nil {
			return err
		}
	}

	for _, flag := range s.Flags {
		line := fmt.Sprintf("  ! %s [%s] %s", flag.Type, flag.Severity, flag.Message)
		if flag.Location != nil && flag.Location.Line > 0 {
			line += fmt.Sprintf(" at %d:%d", flag.Location.Line, flag.Location.Column)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format converts data to JSON format.
func (f *JSONFormatter) Format(data any) ([]byte, error) {
	if f.Indent {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	case FormatText, "":
		return &TextFormatter{}, nil
	default:
		return nil, NewConfigError("format", fmt.Sprintf("unsupported output format %q", format))
	}
}
