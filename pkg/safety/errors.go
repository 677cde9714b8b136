package safety

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Common analysis errors that can be checked with errors.Is().
var (
	// ErrInvalidContent is returned when the submitted text or a registration
	// is unusable (empty text, invalid UTF-8, unnamed model).
	ErrInvalidContent = errors.New("invalid content")

	// ErrProcessingTimeout is returned when an analysis does not complete
	// within its deadline.
	ErrProcessingTimeout = errors.New("processing timeout exceeded")

	// ErrResourceExhausted is returned when the worker pool cannot accept
	// more work.
	ErrResourceExhausted = errors.New("system resources exhausted")

	// ErrModelLoad is returned when no usable model is registered.
	ErrModelLoad = errors.New("model loading error")

	// ErrConcurrency is returned when a worker or model fails abnormally
	// or a batch result goes missing.
	ErrConcurrency = errors.New("concurrency error")

	// ErrSerialization is returned when a result cannot be encoded or decoded.
	ErrSerialization = errors.New("serialization error")
)

// InvalidContentError describes why content was rejected.
type InvalidContentError struct {
	// Reason is a short human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *InvalidContentError) Error() string {
	return fmt.Sprintf("invalid content: %s", e.Reason)
}

// Is implements error matching for errors.Is().
func (e *InvalidContentError) Is(target error) bool {
	return target == ErrInvalidContent
}

// TimeoutError is returned when an analysis exceeds its deadline.
type TimeoutError struct {
	// Timeout is the deadline that was exceeded.
	Timeout time.Duration

	// Fingerprint identifies the request that timed out.
	Fingerprint string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("processing timeout exceeded: %s", e.Timeout)
}

// Is implements error matching for errors.Is().
func (e *TimeoutError) Is(target error) bool {
	return target == ErrProcessingTimeout
}

// ModelLoadError is returned when the registry has no usable model.
type ModelLoadError struct {
	// Reason explains what was missing.
	Reason string

	// Registered lists the registered models, ready or not.
	Registered []string
}

// Error implements the error interface.
func (e *ModelLoadError) Error() string {
	if len(e.Registered) == 0 {
		return fmt.Sprintf("model loading error: %s", e.Reason)
	}
	return fmt.Sprintf("model loading error: %s (registered: %s)",
		e.Reason, strings.Join(e.Registered, ", "))
}

// Is implements error matching for errors.Is().
func (e *ModelLoadError) Is(target error) bool {
	return target == ErrModelLoad
}

// ConcurrencyError reports an abnormal failure inside concurrent work,
// such as a recovered panic or a lost batch result.
type ConcurrencyError struct {
	// Op names the operation that failed.
	Op string

	// Cause is the underlying failure, if any.
	Cause error
}

// Error implements the error interface.
func (e *ConcurrencyError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("concurrency error: %s", e.Op)
	}
	return fmt.Sprintf("concurrency error: %s: %v", e.Op, e.Cause)
}

// Is implements error matching for errors.Is().
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrency
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *ConcurrencyError) Unwrap() error {
	return e.Cause
}

// SerializationError wraps an encoding or decoding failure.
type SerializationError struct {
	Cause error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error: %v", e.Cause)
}

// Is implements error matching for errors.Is().
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// ValidateText checks that text is usable as analysis input.
func ValidateText(text string) error {
	if text == "" {
		return &InvalidContentError{Reason: "text is empty"}
	}
	if !utf8.ValidString(text) {
		return &InvalidContentError{Reason: "text is not valid UTF-8"}
	}
	return nil
}
