package interop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mercator-hq/aegis/pkg/safety"
)

type unmarshalable struct {
	Ch chan int `json:"ch"`
}

type panicky struct{}

func (panicky) MarshalJSON() ([]byte, error) {
	panic("boom")
}

func TestEncode(t *testing.T) {
	var nilScore *safety.Score

	tests := []struct {
		name    string
		value   any
		bufSize int
		nilBuf  bool
		want    int
	}{
		{name: "nil value", value: nil, bufSize: 64, want: StatusNullInput},
		{name: "typed nil pointer", value: nilScore, bufSize: 64, want: StatusNullInput},
		{name: "nil buffer", value: "x", nilBuf: true, want: StatusNullInput},
		{name: "invalid utf8 string", value: "bad \xff", bufSize: 64, want: StatusInvalidUTF8},
		{name: "unsupported type", value: unmarshalable{Ch: make(chan int)}, bufSize: 64, want: StatusSerialization},
		{name: "marshaler panics", value: panicky{}, bufSize: 64, want: StatusInternal},
		{name: "exact fit without terminator", value: "abc", bufSize: 5, want: StatusBufferTooSmall},
		{name: "fits with terminator", value: "abc", bufSize: 6, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf []byte
			if !tt.nilBuf {
				buf = make([]byte, tt.bufSize)
			}
			got := Encode(tt.value, buf)
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestEncode_WritesTerminatedJSON(t *testing.T) {
	score := &safety.Score{
		OverallScore: 0.75,
		Confidence:   0.9,
		Categories: map[string]safety.CategoryScore{
			"rules_overall": {Score: 0.75, Confidence: 0.9},
		},
	}

	buf := make([]byte, 4096)
	n := Encode(score, buf)
	if n <= 0 {
		t.Fatalf("expected positive byte count, got %d", n)
	}
	if buf[n] != 0 {
		t.Errorf("expected NUL terminator at %d, got %q", n, buf[n])
	}

	var decoded safety.Score
	if err := json.Unmarshal(buf[:n], &decoded); err != nil {
		t.Fatalf("failed to decode written JSON: %v", err)
	}
	if decoded.OverallScore != 0.75 {
		t.Errorf("expected overall score 0.75, got %v", decoded.OverallScore)
	}
}

func TestEncode_BufferUntouchedOnFailure(t *testing.T) {
	buf := []byte("xxxx")
	if got := Encode(strings.Repeat("a", 10), buf); got != StatusBufferTooSmall {
		t.Fatalf("expected %d, got %d", StatusBufferTooSmall, got)
	}
	if string(buf) != "xxxx" {
		t.Errorf("expected buffer unchanged, got %q", buf)
	}
}

type stubAnalyzer struct {
	score *safety.Score
	err   error
	got   string
}

func (s *stubAnalyzer) Analyze(_ context.Context, text string) (*safety.Score, error) {
	s.got = text
	return s.score, s.err
}

func TestAnalyzeInto(t *testing.T) {
	ctx := context.Background()
	score := &safety.Score{OverallScore: 1, Confidence: 0.9}

	t.Run("nil analyzer", func(t *testing.T) {
		if got := AnalyzeInto(ctx, nil, []byte("hi"), make([]byte, 64)); got != StatusNullInput {
			t.Errorf("expected %d, got %d", StatusNullInput, got)
		}
	})

	t.Run("nil text", func(t *testing.T) {
		a := &stubAnalyzer{score: score}
		if got := AnalyzeInto(ctx, a, nil, make([]byte, 64)); got != StatusNullInput {
			t.Errorf("expected %d, got %d", StatusNullInput, got)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		a := &stubAnalyzer{score: score}
		if got := AnalyzeInto(ctx, a, []byte{'h', 0xff}, make([]byte, 64)); got != StatusInvalidUTF8 {
			t.Errorf("expected %d, got %d", StatusInvalidUTF8, got)
		}
		if a.got != "" {
			t.Errorf("expected analyzer not called, got text %q", a.got)
		}
	})

	t.Run("stops at NUL", func(t *testing.T) {
		a := &stubAnalyzer{score: score}
		got := AnalyzeInto(ctx, a, []byte("hello\x00garbage"), make([]byte, 4096))
		if got <= 0 {
			t.Fatalf("expected positive byte count, got %d", got)
		}
		if a.got != "hello" {
			t.Errorf("expected text %q, got %q", "hello", a.got)
		}
	})

	t.Run("serialization error", func(t *testing.T) {
		a := &stubAnalyzer{err: fmt.Errorf("cache: %w", &safety.SerializationError{Cause: errors.New("bad")})}
		if got := AnalyzeInto(ctx, a, []byte("hi"), make([]byte, 64)); got != StatusSerialization {
			t.Errorf("expected %d, got %d", StatusSerialization, got)
		}
	})

	t.Run("other error", func(t *testing.T) {
		a := &stubAnalyzer{err: safety.ErrModelLoad}
		if got := AnalyzeInto(ctx, a, []byte("hi"), make([]byte, 64)); got != StatusInternal {
			t.Errorf("expected %d, got %d", StatusInternal, got)
		}
	})

	t.Run("buffer too small", func(t *testing.T) {
		a := &stubAnalyzer{score: score}
		if got := AnalyzeInto(ctx, a, []byte("hi"), make([]byte, 4)); got != StatusBufferTooSmall {
			t.Errorf("expected %d, got %d", StatusBufferTooSmall, got)
		}
	})
}
