// Package cms decodes raw CMS article exports. Decoding is lenient: a field
// holding an unexpected JSON type is treated as absent instead of failing the
// whole export, so downstream code only ever sees typed, possibly-empty values.
package cms

import (
	"bytes"
	"encoding/json"
)

// RawDocument is one article as exported by the CMS.
type RawDocument struct {
	ID               ID                   `json:"_id"`
	ContentElements  List[ContentElement] `json:"content_elements"`
	Taxonomy         Taxonomy             `json:"taxonomy"`
	PromoItems       PromoItems           `json:"promo_items"`
	Headlines        Headlines            `json:"headlines"`
	CanonicalURL     Text                 `json:"canonical_url"`
	WebsiteURL       Text                 `json:"website_url"`
	CanonicalWebsite Text                 `json:"canonical_website"`
	Website          Text                 `json:"website"`
	PublishDate      Text                 `json:"publish_date"`
	DisplayDate      Text                 `json:"display_date"`
	FirstPublishDate Text                 `json:"first_publish_date"`
}

// ContentElement is one fragment of an article body. Only elements of type
// "text" carry article text; every other type is ignored.
type ContentElement struct {
	Type    Text `json:"type"`
	Content Text `json:"content"`
}

// ElementText is the content element type that contributes article text.
const ElementText = "text"

// IsText reports whether the element contributes article text.
func (e ContentElement) IsText() bool { return string(e.Type) == ElementText }

// Taxonomy groups the article's classification lists.
type Taxonomy struct {
	Sections   List[TaxonomyItem] `json:"sections"`
	Categories List[TaxonomyItem] `json:"categories"`
	Tags       List[TaxonomyItem] `json:"tags"`
}

// TaxonomyItem is a section, category or tag.
type TaxonomyItem struct {
	Name        Text `json:"name"`
	Text        Text `json:"text"`
	Description Text `json:"description"`
	Slug        Text `json:"slug"`
}

// Label returns the first non-empty of name, text, description and slug.
func (t TaxonomyItem) Label() string {
	return First(t.Name, t.Text, t.Description, t.Slug)
}

// Headlines holds the article headlines.
type Headlines struct {
	Basic Text `json:"basic"`
}

// PromoItem is a promotional asset attached to the article.
type PromoItem struct {
	URL Text `json:"url"`
}

// PromoItems maps promo slots (basic, lead_art, ...) to their assets.
type PromoItems map[string]PromoItem

// Text is a string field. Non-string JSON values decode to the empty string.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = ""
		return nil
	}
	*t = Text(s)
	return nil
}

// ID is a document identifier. Strings are kept verbatim and numbers are kept
// as their literal text; anything else is absent.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ""
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID(n.String())
	}
	return nil
}

// List is a JSON array field. A non-array value decodes to an empty list and
// elements that do not decode are skipped.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(data []byte) error {
	*l = nil
	if !startsWith(data, '[') {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		if !startsWith(r, '{') {
			continue
		}
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

func (d *RawDocument) UnmarshalJSON(data []byte) error {
	type plain RawDocument
	*d = RawDocument{}
	return decodeObject(data, (*plain)(d))
}

func (t *Taxonomy) UnmarshalJSON(data []byte) error {
	type plain Taxonomy
	*t = Taxonomy{}
	return decodeObject(data, (*plain)(t))
}

func (t *TaxonomyItem) UnmarshalJSON(data []byte) error {
	type plain TaxonomyItem
	*t = TaxonomyItem{}
	return decodeObject(data, (*plain)(t))
}

func (e *ContentElement) UnmarshalJSON(data []byte) error {
	type plain ContentElement
	*e = ContentElement{}
	return decodeObject(data, (*plain)(e))
}

func (h *Headlines) UnmarshalJSON(data []byte) error {
	type plain Headlines
	*h = Headlines{}
	return decodeObject(data, (*plain)(h))
}

func (p *PromoItem) UnmarshalJSON(data []byte) error {
	type plain PromoItem
	*p = PromoItem{}
	return decodeObject(data, (*plain)(p))
}

func (p *PromoItems) UnmarshalJSON(data []byte) error {
	*p = nil
	if !startsWith(data, '{') {
		return nil
	}
	m := make(map[string]PromoItem)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	*p = m
	return nil
}

// First returns the first non-empty value.
func First(vals ...Text) string {
	for _, v := range vals {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

// decodeObject decodes data into v when data is a JSON object and leaves v
// untouched otherwise.
func decodeObject(data []byte, v any) error {
	if !startsWith(data, '{') {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil
	}
	return nil
}

func startsWith(data []byte, c byte) bool {
	data = bytes.TrimLeft(data, " \t\r\n")
	return len(data) > 0 && data[0] == c
}
