// Package ingest turns raw CMS documents into validated, optionally embedded
// records and hands them to the output and storage collaborators.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/article-indexer/engine/cms"
	"github.com/WessleyAI/article-indexer/engine/domain"
	"github.com/WessleyAI/article-indexer/engine/embed"
	"github.com/WessleyAI/article-indexer/engine/events"
	"github.com/WessleyAI/article-indexer/pkg/fn"
	"github.com/WessleyAI/article-indexer/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// OutputWriter persists the final document list.
type OutputWriter interface {
	Write(ctx context.Context, docs []domain.Document) error
}

// VectorSink stores embedded documents in a collection of the given vector
// size and reports how many points it wrote.
type VectorSink interface {
	Upsert(ctx context.Context, docs []domain.Document, vectorSize int) (int, error)
}

// TaxonomySink records the documents' taxonomy.
type TaxonomySink interface {
	Save(ctx context.Context, docs []domain.Document) error
}

// Deps holds the collaborators of a pipeline run. Only Output is required in
// practice; a nil Encoder skips embedding and with it the vector sink.
type Deps struct {
	Encoder  embed.Encoder
	Output   OutputWriter
	Vectors  VectorSink
	Taxonomy TaxonomySink
	Reporter events.Reporter
	Metrics  *metrics.Registry
	Logger   *slog.Logger
	// RunID identifies the run in logs and events. Generated when empty.
	RunID string
}

// Drop records a document excluded from the run.
type Drop struct {
	Position   int
	ExternalID string
	Err        error
}

// RunReport summarizes a run.
type RunReport struct {
	RunID     string
	Read      int
	Kept      int
	Dropped   []Drop
	Provider  string
	Model     string
	Dimension int
	Upserted  int
	Duration  time.Duration
}

// Event converts the report to its published form.
func (r RunReport) Event() events.RunCompleted {
	return events.RunCompleted{
		RunID:     r.RunID,
		Read:      r.Read,
		Kept:      r.Kept,
		Dropped:   len(r.Dropped),
		Provider:  r.Provider,
		Model:     r.Model,
		Dimension: r.Dimension,
		Upserted:  r.Upserted,
		Duration:  r.Duration,
	}
}

// Pipeline sequences transform, validation, embedding, output and storage
// over one corpus. Runs are sequential; a Pipeline is not safe for
// concurrent use.
type Pipeline struct {
	deps Deps
	log  *slog.Logger
	m    *pipelineMetrics
}

// NewPipeline creates a pipeline from deps, filling in defaults.
func NewPipeline(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Reporter == nil {
		deps.Reporter = events.LogReporter{Logger: deps.Logger}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.RunID == "" {
		deps.RunID = uuid.NewString()
	}
	return &Pipeline{
		deps: deps,
		log:  deps.Logger.With("run_id", deps.RunID),
		m:    newPipelineMetrics(deps.Metrics),
	}
}

// RunID returns the identifier of the pipeline's run.
func (p *Pipeline) RunID() string { return p.deps.RunID }

// Run processes raws. Per-document transform and validation failures drop
// the document and are reported; the run continues. Embedding, output and
// storage failures abort the run. Output is written only once every kept
// document has passed its final validation.
func (p *Pipeline) Run(ctx context.Context, raws []cms.RawDocument) (RunReport, []domain.Document, error) {
	ctx, span := otel.Tracer("engine/ingest").Start(ctx, "ingest.run")
	defer span.End()

	start := time.Now()
	report := RunReport{RunID: p.deps.RunID, Read: len(raws)}
	p.m.read.Add(int64(len(raws)))

	kept := p.prepare(ctx, raws, &report)
	report.Kept = len(kept)

	if enc := p.deps.Encoder; enc != nil {
		report.Provider, report.Model = enc.Name(), enc.Model()
		t := time.Now()
		dim, err := embed.EmbedAll(ctx, enc, kept)
		p.m.stage("embed").Since(t)
		if err != nil {
			span.RecordError(err)
			return report, nil, err
		}
		report.Dimension = dim
		p.m.embedded.Add(int64(len(kept)))
		p.m.dimension.Set(int64(dim))
		p.log.Info("ingest: embeddings generated", "provider", enc.Name(), "model", enc.Model(), "dim", dim, "count", len(kept))
	}

	if p.deps.Output != nil {
		t := time.Now()
		if err := p.deps.Output.Write(ctx, kept); err != nil {
			span.RecordError(err)
			return report, nil, fmt.Errorf("ingest: write output: %w", err)
		}
		p.m.stage("output").Since(t)
	}

	if report.Dimension > 0 && p.deps.Vectors != nil {
		t := time.Now()
		n, err := p.deps.Vectors.Upsert(ctx, kept, report.Dimension)
		if err != nil {
			span.RecordError(err)
			return report, kept, fmt.Errorf("ingest: upsert vectors: %w", err)
		}
		p.m.stage("upsert").Since(t)
		report.Upserted = n
		p.m.upserted.Add(int64(n))
	}

	if p.deps.Taxonomy != nil {
		t := time.Now()
		if err := p.deps.Taxonomy.Save(ctx, kept); err != nil {
			span.RecordError(err)
			return report, kept, fmt.Errorf("ingest: save taxonomy: %w", err)
		}
		p.m.stage("taxonomy").Since(t)
	}

	report.Duration = time.Since(start)
	p.deps.Reporter.RunCompleted(ctx, report.Event())
	return report, kept, nil
}

// prepare transforms and validates each document, returning the survivors
// in input order.
func (p *Pipeline) prepare(ctx context.Context, raws []cms.RawDocument, report *RunReport) []domain.Document {
	t := time.Now()
	defer p.m.stage("prepare").Since(t)

	results := PrepareAll(ctx, raws)
	kept, failed := fn.Partition(results)
	for i := range results {
		err, ok := failed[i]
		if !ok {
			continue
		}
		drop := Drop{Position: i, ExternalID: string(raws[i].ID), Err: err}
		report.Dropped = append(report.Dropped, drop)
		reason := domain.Reason(err)
		p.m.dropped(reason).Inc()
		p.deps.Reporter.DocumentDropped(ctx, events.DocumentDropped{
			RunID:      p.deps.RunID,
			Position:   i,
			ExternalID: drop.ExternalID,
			Reason:     reason,
			Error:      err.Error(),
		})
	}
	if kept == nil {
		kept = []domain.Document{}
	}
	p.m.kept.Add(int64(len(kept)))
	return kept
}
