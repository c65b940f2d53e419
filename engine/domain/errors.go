package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrMissingOwner    = errors.New("missing owner id")
	ErrEmptyQuery      = errors.New("empty query")
	ErrQueryTooLong    = errors.New("query too long")
	ErrQueryInjection  = errors.New("query contains suspicious content")
	ErrTopKOutOfRange  = errors.New("top_k out of range")
	ErrInvalidSegment  = errors.New("invalid segment")
	ErrMissingVideoID  = errors.New("missing video id")
	ErrEmptyCaption    = errors.New("empty caption")
	ErrBadSegmentSpan  = errors.New("segment end before start")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
