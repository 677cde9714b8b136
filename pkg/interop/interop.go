// Package interop encodes analysis results for callers across a foreign
// function boundary: JSON written into a caller-provided buffer, with a
// small fixed set of negative status codes in place of Go errors.
package interop

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"unicode/utf8"

	"mercator-hq/aegis/pkg/safety"
)

// Status codes returned by Encode and AnalyzeInto. Non-negative values are
// the number of JSON bytes written, excluding the NUL terminator.
const (
	StatusNullInput      = -1
	StatusInvalidUTF8    = -2
	StatusSerialization  = -3
	StatusBufferTooSmall = -4
	StatusInternal       = -5
)

// Analyzer is the part of analyzer.Analyzer used by AnalyzeInto.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*safety.Score, error)
}

// Encode writes v as NUL-terminated JSON into buf and returns the number
// of JSON bytes written, or a negative status code. The JSON must fit with
// its terminator; on failure buf is left untouched.
func Encode(v any, buf []byte) (n int) {
	if isNil(v) || buf == nil {
		return StatusNullInput
	}
	if s, ok := v.(string); ok && !utf8.ValidString(s) {
		return StatusInvalidUTF8
	}

	defer func() {
		if r := recover(); r != nil {
			n = StatusInternal
		}
	}()

	data, err := json.Marshal(v)
	if err != nil {
		return StatusSerialization
	}

	if len(data) >= len(buf) {
		return StatusBufferTooSmall
	}

	n = copy(buf, data)
	buf[n] = 0
	return n
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// AnalyzeInto screens text with a and encodes the resulting score into buf.
// text is read up to its first NUL byte, matching a C string.
func AnalyzeInto(ctx context.Context, a Analyzer, text []byte, buf []byte) int {
	if a == nil || text == nil || buf == nil {
		return StatusNullInput
	}

	if i := indexNUL(text); i >= 0 {
		text = text[:i]
	}
	if !utf8.Valid(text) {
		return StatusInvalidUTF8
	}

	score, err := a.Analyze(ctx, string(text))
	if err != nil {
		return Status(err)
	}
	return Encode(score, buf)
}

// Status maps an analysis error to its boundary status code.
func Status(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, safety.ErrSerialization):
		return StatusSerialization
	default:
		return StatusInternal
	}
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
