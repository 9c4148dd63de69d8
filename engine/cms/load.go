package cms

import (
	"encoding/json"
	"fmt"
	"io"
)

// Load reads a JSON array of raw documents. When limit is positive only the
// first limit entries are decoded.
func Load(r io.Reader, limit int) ([]RawDocument, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("cms: decode input: %w", err)
	}
	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
	}
	docs := make([]RawDocument, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &docs[i]); err != nil {
			return nil, fmt.Errorf("cms: decode document %d: %w", i, err)
		}
	}
	return docs, nil
}
