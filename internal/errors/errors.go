// Package errors defines the structured error type shared by the triage
// pipeline components.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTimeout      = errors.New("timeout")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeJudgment   ErrorType = "judgment"
	ErrorTypeDelivery   ErrorType = "delivery"
	ErrorTypeScheduler  ErrorType = "scheduler"
	ErrorTypeInternal   ErrorType = "internal"
)

// PipelineError is a structured error for pipeline operations.
type PipelineError struct {
	Type         ErrorType
	Op           string // operation that failed (e.g. "append_entry", "deliver")
	Subscription string // subscription ID if applicable
	Err          error
	Timestamp    time.Time
	Retryable    bool
}

func (e *PipelineError) Error() string {
	if e.Subscription != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Subscription, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for the base error types.
func (e *PipelineError) Is(target error) bool {
	if target == nil {
		return false
	}
	switch target {
	case ErrInvalidInput:
		return e.Type == ErrorTypeValidation
	case ErrTimeout:
		return errors.Is(e.Err, ErrTimeout)
	}
	return errors.Is(e.Err, target)
}

// New creates a PipelineError.
func New(errorType ErrorType, op string, err error) *PipelineError {
	return &PipelineError{
		Type:      errorType,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: errorType == ErrorTypeStorage || errorType == ErrorTypeScheduler,
	}
}

// WithSubscription attaches the subscription ID the error relates to.
func (e *PipelineError) WithSubscription(sub string) *PipelineError {
	e.Subscription = sub
	return e
}

// WrapValidation wraps a validation error. Validation errors are the only
// ones surfaced to the intake caller; everything else stays in the logs.
func WrapValidation(op string, err error) error {
	return New(ErrorTypeValidation, op, err)
}

// WrapStorage wraps a file I/O error with context.
func WrapStorage(op string, err error) error {
	return New(ErrorTypeStorage, op, err)
}

// WrapDelivery wraps an outbound delivery error with context.
func WrapDelivery(op string, err error) error {
	return New(ErrorTypeDelivery, op, err)
}

// IsValidation checks if an error originated from intake validation.
func IsValidation(err error) bool {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Type == ErrorTypeValidation
	}
	return errors.Is(err, ErrInvalidInput)
}
