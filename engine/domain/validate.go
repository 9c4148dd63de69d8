package domain

import (
	"fmt"
	"strings"
	"time"
)

// Accepted ISO 8601 layouts. The value must also end in a literal Z.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07:00",
}

// ValidateDocument checks a document against the output schema. When dim is
// positive the document must also carry an embedding of exactly dim values.
func ValidateDocument(doc Document, dim int) error {
	if strings.TrimSpace(doc.Text) == "" {
		return NewValidationError("text", doc.Text, ErrInvalidText)
	}
	if doc.Metadata.ExternalID == "" {
		return NewValidationError("metadata.external_id", "", ErrMissingField)
	}
	if doc.Metadata.URL == "" {
		return NewValidationError("metadata.url", "", ErrMissingField)
	}
	for _, ts := range doc.Metadata.Timestamps() {
		if ts[1] == "" {
			continue
		}
		if err := ValidateTimestamp(ts[1]); err != nil {
			return NewValidationError("metadata."+ts[0], ts[1], err)
		}
	}
	if dim > 0 && len(doc.Embedding) != dim {
		return NewValidationError("embedding", fmt.Sprintf("len=%d want=%d", len(doc.Embedding), dim), ErrDimensionMismatch)
	}
	return nil
}

// ValidateTimestamp accepts an ISO 8601 timestamp in UTC with a Z suffix.
func ValidateTimestamp(s string) error {
	if !strings.HasSuffix(s, "Z") {
		return ErrInvalidTimestamp
	}
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return nil
		}
	}
	return ErrInvalidTimestamp
}
