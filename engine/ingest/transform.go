package ingest

import (
	"context"

	"github.com/WessleyAI/article-indexer/engine/cms"
	"github.com/WessleyAI/article-indexer/engine/domain"
	"github.com/WessleyAI/article-indexer/pkg/fn"
)

// Transform converts a raw CMS document into a text and metadata record.
func Transform(raw cms.RawDocument) domain.Document {
	return domain.Document{
		Text:     ExtractText(raw.ContentElements),
		Metadata: ExtractMetadata(raw),
	}
}

// --- Pipeline Stages ---

// TransformStage wraps Transform as a pipeline stage.
var TransformStage = fn.MapStage(Transform)

// Validate checks a transformed document against the output schema, without
// an embedding.
var Validate fn.Stage[domain.Document, domain.Document] = fn.CheckStage(func(doc domain.Document) error {
	return domain.ValidateDocument(doc, 0)
})

// Prepare is the per-document stage: transform, then validate.
var Prepare = fn.TracedStage("ingest.prepare", fn.Then(TransformStage, Validate))

// PrepareAll runs Prepare over raws in order, one result per input.
func PrepareAll(ctx context.Context, raws []cms.RawDocument) []fn.Result[domain.Document] {
	results := make([]fn.Result[domain.Document], len(raws))
	for i, raw := range raws {
		results[i] = Prepare(ctx, raw)
	}
	return results
}
