package cli

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/aegis/pkg/safety"
)

// Process exit codes returned by the aegis command.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitTimeout      = 3
	ExitUnsafe       = 4
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UnsafeContentError is returned by commands that found content scoring
// below the review threshold.
type UnsafeContentError struct {
	Count     int
	Threshold float64
}

func (e *UnsafeContentError) Error() string {
	if e.Count == 1 {
		return fmt.Sprintf("content requires review (score below %.2f)", e.Threshold)
	}
	return fmt.Sprintf("%d items require review (score below %.2f)", e.Count, e.Threshold)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	var unsafe *UnsafeContentError
	var cfgErr *ConfigError

	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &unsafe):
		return ExitUnsafe
	case errors.Is(err, safety.ErrProcessingTimeout), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, safety.ErrInvalidContent), errors.As(err, &cfgErr):
		return ExitInvalidInput
	default:
		return ExitError
	}
}
