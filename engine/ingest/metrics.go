package ingest

import "github.com/WessleyAI/article-indexer/pkg/metrics"

type pipelineMetrics struct {
	reg       *metrics.Registry
	read      *metrics.Counter
	kept      *metrics.Counter
	embedded  *metrics.Counter
	upserted  *metrics.Counter
	dimension *metrics.Gauge
}

func newPipelineMetrics(reg *metrics.Registry) *pipelineMetrics {
	return &pipelineMetrics{
		reg:       reg,
		read:      reg.Counter("indexer_documents_read_total", "Raw documents read from the input."),
		kept:      reg.Counter("indexer_documents_kept_total", "Documents that passed transform and validation."),
		embedded:  reg.Counter("indexer_documents_embedded_total", "Documents with an embedding attached."),
		upserted:  reg.Counter("indexer_documents_upserted_total", "Points written to the vector store."),
		dimension: reg.Gauge("indexer_embedding_dimension", "Embedding dimension of the last run."),
	}
}

func (m *pipelineMetrics) dropped(reason string) *metrics.Counter {
	return m.reg.Counter(metrics.WithLabels("indexer_documents_dropped_total", "reason", reason),
		"Documents dropped before embedding, by reason.")
}

func (m *pipelineMetrics) stage(name string) *metrics.Histogram {
	return m.reg.Histogram(metrics.WithLabels("indexer_stage_duration_seconds", "stage", name),
		"Wall time spent per pipeline stage.", nil)
}
