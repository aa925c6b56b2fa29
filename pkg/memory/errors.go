package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key, procedure name or concept is absent.
	ErrNotFound = errors.New("memory not found")

	// ErrOutOfRangeSentiment is returned when a sentiment falls outside [-1.0, 1.0].
	ErrOutOfRangeSentiment = errors.New("sentiment out of range [-1.0, 1.0]")

	// ErrMissingSentiment is returned when an emotional write carries no sentiment.
	ErrMissingSentiment = errors.New("sentiment is required")

	// ErrUnknownRegion is returned for a region outside the closed region set.
	ErrUnknownRegion = errors.New("unknown memory region")

	// ErrUnsupportedOperation is returned when a region does not offer an operation.
	ErrUnsupportedOperation = errors.New("operation not supported by region")

	// ErrInvalidKey is returned for an empty key, name or concept label.
	ErrInvalidKey = errors.New("memory key must be a non-empty string")

	// ErrRetryLimitExceeded is matched by *RetryError.
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")

	// ErrIterationLimitExceeded is matched by *IterationError.
	ErrIterationLimitExceeded = errors.New("iteration limit exceeded")

	// ErrInvalidConfiguration is returned when region configuration is malformed.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrTransient marks failures that may succeed when attempted again.
	ErrTransient = errors.New("transient memory failure")
)

// transientError tags a cause as retryable without hiding it.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.err}
}

// Transient marks err as retryable. A nil error stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable by a store.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// RetryError reports that every allowed attempt failed transiently.
type RetryError struct {
	Region   Region
	Op       Operation
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s %s: %s after %d attempts: %v", e.Region, e.Op, ErrRetryLimitExceeded, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error {
	return []error{ErrRetryLimitExceeded, e.Err}
}

// IterationError reports that a composite operation would exceed its budget.
type IterationError struct {
	Region Region
	Limit  int
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("%s: %s (max %d)", e.Region, ErrIterationLimitExceeded, e.Limit)
}

func (e *IterationError) Is(target error) bool {
	return target == ErrIterationLimitExceeded
}

// InvalidConfigf builds an ErrInvalidConfiguration with context.
func InvalidConfigf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
