package sched

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure detected while stepping an executor.
//
// Runtime errors include:
//   - Stack depth exceeded: nested block evaluation passed the configured limit
//   - Step failure: any other fault (error return or recovered panic) during a step
//
// Per-executor failures are contained within Tick() and surfaced to the
// host only through the executor-ended notification carrying the error.
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ExecutorID identifies the affected executor.
	ExecutorID string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStackDepthExceeded indicates nested block evaluation passed the
	// configured call-stack limit.
	ErrCodeStackDepthExceeded RuntimeErrorCode = "STACK_DEPTH_EXCEEDED"

	// ErrCodeStepFailure indicates a fault during a step execution.
	ErrCodeStepFailure RuntimeErrorCode = "STEP_FAILURE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.ExecutorID != "" {
		return fmt.Sprintf("%s: %s (executor=%s)", e.Code, e.Message, e.ExecutorID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsStackDepthError returns true if the error is a stack depth trip.
// Uses errors.As to handle wrapped errors.
func IsStackDepthError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStackDepthExceeded
	}
	return false
}

// IsStepFailureError returns true if the error is a step execution failure.
// Uses errors.As to handle wrapped errors.
func IsStepFailureError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStepFailure
	}
	return false
}

// NewStackDepthError creates a RuntimeError for a call-stack guard trip.
func NewStackDepthError(depth, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStackDepthExceeded,
		Message: fmt.Sprintf("call depth %d exceeds limit %d", depth, limit),
	}
}

// NewStepFailureError wraps a fault raised during a step execution.
func NewStepFailureError(executorID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeStepFailure,
		Message:    cause.Error(),
		ExecutorID: executorID,
		Err:        cause,
	}
}

// ConfigurationError is returned when Configure is called with an invalid
// frame budget. The scheduler state is unchanged when this is returned.
type ConfigurationError struct {
	Field   string // The offending config field
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// IsConfigurationError returns true if the error is a ConfigurationError.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
