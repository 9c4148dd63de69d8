// Package domain defines the document record the indexer emits, its error
// taxonomy, and the validation gate every document passes before it is
// embedded or stored.
package domain

import (
	"bytes"
	"encoding/json"
)

// Metadata is the canonical metadata derived from a CMS article. Optional
// fields are empty when the source did not provide them; the taxonomy lists
// are always present, possibly empty.
type Metadata struct {
	Title            string   `json:"title,omitempty"`
	URL              string   `json:"url,omitempty"`
	ExternalID       string   `json:"external_id,omitempty"`
	PublishDate      string   `json:"publish_date,omitempty"`
	Datetime         string   `json:"datetime,omitempty"`
	FirstPublishDate string   `json:"first_publish_date,omitempty"`
	Website          string   `json:"website,omitempty"`
	Sections         []string `json:"sections"`
	Categories       []string `json:"categories"`
	Tags             []string `json:"tags"`
	Thumb            string   `json:"thumb,omitempty"`
}

// Document is a transformed article: normalized text plus metadata, and the
// embedding once one has been attached.
type Document struct {
	Text      string    `json:"text"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// MarshalJSON always emits the taxonomy lists, as [] when empty. HTML
// characters are not escaped.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type plain Metadata
	p := plain(m)
	p.Sections, p.Categories, p.Tags = nonNil(m.Sections), nonNil(m.Categories), nonNil(m.Tags)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Timestamps returns the timestamp fields by their output key, in output order.
func (m Metadata) Timestamps() [][2]string {
	return [][2]string{
		{"publish_date", m.PublishDate},
		{"datetime", m.Datetime},
		{"first_publish_date", m.FirstPublishDate},
	}
}

// Payload flattens the metadata into a key/value map, omitting absent
// optional fields. Taxonomy lists are always included.
func (m Metadata) Payload() map[string]any {
	p := map[string]any{
		"sections":   nonNil(m.Sections),
		"categories": nonNil(m.Categories),
		"tags":       nonNil(m.Tags),
	}
	for k, v := range map[string]string{
		"title":              m.Title,
		"url":                m.URL,
		"external_id":        m.ExternalID,
		"publish_date":       m.PublishDate,
		"datetime":           m.Datetime,
		"first_publish_date": m.FirstPublishDate,
		"website":            m.Website,
		"thumb":              m.Thumb,
	} {
		if v != "" {
			p[k] = v
		}
	}
	return p
}

// Payload is the vector store payload for the document: its metadata plus text.
func (d Document) Payload() map[string]any {
	p := d.Metadata.Payload()
	p["text"] = d.Text
	return p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
