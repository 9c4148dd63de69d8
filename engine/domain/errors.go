package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for document validation failures. These are per-document:
// the orchestrator drops the document and carries on.
var (
	ErrInvalidText       = errors.New("invalid text field")
	ErrMissingField      = errors.New("missing required metadata")
	ErrInvalidTimestamp  = errors.New("must be ISO 8601 UTC (YYYY-MM-DDTHH:MM:SS[.fff]Z)")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Run-level sentinels. Anything wrapping these aborts the run before output
// is written.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrEmbeddingProvider = errors.New("embedding provider error")
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

// ConfigurationErrorf returns an error wrapping ErrConfiguration.
func ConfigurationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ProviderErrorf returns an error wrapping ErrEmbeddingProvider.
func ProviderErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEmbeddingProvider, fmt.Sprintf(format, args...))
}

// AsProviderError marks err as an embedding provider failure unless it is
// already classified as a run-level error.
func AsProviderError(err error) error {
	if err == nil || errors.Is(err, ErrEmbeddingProvider) || errors.Is(err, ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingProvider, err)
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrEmbeddingProvider)
}

// Drop reasons, used as metric labels and in drop events.
const (
	ReasonInvalidText       = "invalid_text"
	ReasonMissingField      = "missing_field"
	ReasonInvalidTimestamp  = "invalid_timestamp"
	ReasonDimensionMismatch = "dimension_mismatch"
	ReasonOther             = "other"
)

// Reason classifies a per-document error into a short, stable label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidText):
		return ReasonInvalidText
	case errors.Is(err, ErrMissingField):
		return ReasonMissingField
	case errors.Is(err, ErrInvalidTimestamp):
		return ReasonInvalidTimestamp
	case errors.Is(err, ErrDimensionMismatch):
		return ReasonDimensionMismatch
	default:
		return ReasonOther
	}
}
