package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDoc() Document {
	return Document{
		Text: "City council approves the new budget.",
		Metadata: Metadata{
			Title:       "Budget approved",
			URL:         "https://www.example.com/news/budget",
			ExternalID:  "ABC123",
			PublishDate: "2024-01-01T10:00:00.123Z",
			Datetime:    "2024-01-01T10:00:00Z",
			Sections:    []string{"news"},
			Categories:  []string{},
			Tags:        []string{},
		},
	}
}

func TestValidateDocument_Valid(t *testing.T) {
	require.NoError(t, ValidateDocument(validDoc(), 0))
}

func TestValidateDocument_BlankText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		doc := validDoc()
		doc.Text = text
		err := ValidateDocument(doc, 0)
		assert.ErrorIs(t, err, ErrInvalidText, "text %q", text)
	}
}

func TestValidateDocument_MissingExternalID(t *testing.T) {
	doc := validDoc()
	doc.Metadata.ExternalID = ""
	err := ValidateDocument(doc, 0)
	require.ErrorIs(t, err, ErrMissingField)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "metadata.external_id", ve.Field)
}

func TestValidateDocument_MissingURL(t *testing.T) {
	doc := validDoc()
	doc.Metadata.URL = ""
	err := ValidateDocument(doc, 0)
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "metadata.url")
}

func TestValidateDocument_Timestamps(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"millis", "2024-01-01T10:00:00.123Z", true},
		{"seconds", "2024-01-01T10:00:00Z", true},
		{"minutes", "2024-01-01T10:00Z", true},
		{"space separator", "2024-01-01 10:00:00Z", true},
		{"no zone", "2024-01-01 10:00:00", false},
		{"offset instead of Z", "2024-01-01T10:00:00+02:00", false},
		{"bad month", "2024-13-01T10:00:00Z", false},
		{"garbage", "yesterdayZ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			doc.Metadata.FirstPublishDate = tt.value
			err := ValidateDocument(doc, 0)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidTimestamp)
			assert.Contains(t, err.Error(), "first_publish_date")
		})
	}
}

func TestValidateDocument_EmbeddingDimension(t *testing.T) {
	doc := validDoc()
	doc.Embedding = []float32{0.1, 0.2, 0.3}
	assert.NoError(t, ValidateDocument(doc, 3))
	assert.ErrorIs(t, ValidateDocument(doc, 4), ErrDimensionMismatch)

	doc.Embedding = nil
	assert.ErrorIs(t, ValidateDocument(doc, 3), ErrDimensionMismatch)
	assert.NoError(t, ValidateDocument(doc, 0), "no dimension check without dim")
}

func TestValidationError_Error(t *testing.T) {
	ve := NewValidationError("metadata.url", "x", ErrMissingField)
	s := ve.Error()
	if !strings.Contains(s, "metadata.url") || !strings.Contains(s, "missing required metadata") {
		t.Fatalf("unexpected error string: %s", s)
	}
}

func TestRunLevelErrors(t *testing.T) {
	cfgErr := ConfigurationErrorf("OPENAI_API_KEY not set")
	assert.ErrorIs(t, cfgErr, ErrConfiguration)
	assert.True(t, IsFatal(cfgErr))

	wrapped := AsProviderError(errors.New("connection refused"))
	assert.ErrorIs(t, wrapped, ErrEmbeddingProvider)
	assert.True(t, IsFatal(wrapped))

	assert.Equal(t, cfgErr, AsProviderError(cfgErr), "configuration errors keep their class")
	assert.NoError(t, AsProviderError(nil))
	assert.False(t, IsFatal(NewValidationError("text", "", ErrInvalidText)))
}

func TestDocumentPayload(t *testing.T) {
	doc := validDoc()
	p := doc.Payload()

	assert.Equal(t, doc.Text, p["text"])
	assert.Equal(t, "ABC123", p["external_id"])
	assert.Equal(t, []string{"news"}, p["sections"])
	assert.Equal(t, []string{}, p["tags"])
	_, hasThumb := p["thumb"]
	assert.False(t, hasThumb, "absent optional fields are omitted")
}

func TestReason(t *testing.T) {
	doc := validDoc()
	doc.Metadata.URL = ""
	assert.Equal(t, ReasonMissingField, Reason(ValidateDocument(doc, 0)))

	doc = validDoc()
	doc.Metadata.PublishDate = "2024-01-01 10:00:00"
	assert.Equal(t, ReasonInvalidTimestamp, Reason(ValidateDocument(doc, 0)))

	doc = validDoc()
	doc.Text = "  "
	assert.Equal(t, ReasonInvalidText, Reason(ValidateDocument(doc, 0)))

	assert.Equal(t, ReasonDimensionMismatch, Reason(ValidateDocument(validDoc(), 3)))
	assert.Equal(t, ReasonOther, Reason(errors.New("boom")))
}

func TestMetadataJSON(t *testing.T) {
	md := Metadata{ExternalID: "x", URL: "https://www.example.com/a?b=1&c=2"}
	data, err := json.Marshal(Document{Text: "t", Metadata: md})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"text": "t",
		"metadata": {
			"external_id": "x",
			"url": "https://www.example.com/a?b=1&c=2",
			"sections": [], "categories": [], "tags": []
		}
	}`, string(data))
}
