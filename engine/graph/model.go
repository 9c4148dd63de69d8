package graph

import (
	"strconv"

	"github.com/WessleyAI/article-indexer/engine/domain"
)

// Rows converts documents to the parameter rows of the merge statement.
// Articles are keyed by external id, or by position when the source had none.
func Rows(docs []domain.Document) []map[string]any {
	rows := make([]map[string]any, len(docs))
	for i, d := range docs {
		m := d.Metadata
		id := m.ExternalID
		if id == "" {
			id = "position:" + strconv.Itoa(i)
		}
		rows[i] = map[string]any{
			"id":           id,
			"title":        m.Title,
			"url":          m.URL,
			"website":      m.Website,
			"publish_date": m.PublishDate,
			"sections":     asAny(m.Sections),
			"categories":   asAny(m.Categories),
			"tags":         asAny(m.Tags),
		}
	}
	return rows
}

// asAny widens a string list to the []any the driver accepts for lists.
func asAny(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
