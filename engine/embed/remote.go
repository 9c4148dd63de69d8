package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/article-indexer/engine/domain"
	"github.com/WessleyAI/article-indexer/pkg/fn"
	"github.com/WessleyAI/article-indexer/pkg/metrics"
	"github.com/WessleyAI/article-indexer/pkg/openai"
	"github.com/WessleyAI/article-indexer/pkg/resilience"
)

// embeddingsAPI is the subset of *openai.Client used by the remote strategy.
type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, model string, input []string) ([]openai.Embedding, error)
}

// remoteEncoder sends fixed-size batches to an embeddings API one after the
// other and reassembles the vectors by each item's response index.
type remoteEncoder struct {
	api       embeddingsAPI
	model     string
	batchSize int
	retry     resilience.RetryOpts
	log       *slog.Logger

	sizes   *metrics.Histogram
	latency *metrics.Histogram
}

func newRemote(cfg Config) (Encoder, error) {
	client, err := openai.NewClient(openai.Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		return nil, domain.ConfigurationErrorf("remote embedding: OPENAI_API_KEY not set")
	}
	model := cfg.Model
	if model == "" {
		model = openai.DefaultModel
	}
	size := cfg.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	enc := &remoteEncoder{
		api:       client,
		model:     model,
		batchSize: size,
		retry:     resilience.RetryOpts{MaxAttempts: cfg.MaxAttempts},
		log:       cfg.Logger,
	}
	enc.instrument(cfg.Metrics)
	return enc, nil
}

func (e *remoteEncoder) instrument(reg *metrics.Registry) {
	if reg == nil {
		return
	}
	e.sizes = reg.Histogram("indexer_embedding_batch_size", "Texts per remote embedding request.", metrics.SizeBuckets)
	e.latency = reg.Histogram("indexer_embedding_request_seconds", "Remote embedding request latency.", metrics.DefaultBuckets)
}

func (e *remoteEncoder) Name() string  { return Remote }
func (e *remoteEncoder) Model() string { return e.model }

func (e *remoteEncoder) Encode(ctx context.Context, texts []string) ([][]float32, int, error) {
	out := make([][]float32, 0, len(texts))
	for n, batch := range fn.Chunk(texts, e.batchSize) {
		items, err := e.request(ctx, n, batch)
		if err != nil {
			return nil, 0, domain.AsProviderError(fmt.Errorf("batch %d: %w", n, err))
		}
		placed, err := placeByIndex(items, len(batch))
		if err != nil {
			return nil, 0, fmt.Errorf("batch %d: %w", n, err)
		}
		e.log.Debug("embed: batch done", "batch", n, "size", len(batch))
		out = append(out, placed...)
	}
	if len(out) == 0 {
		return nil, 0, domain.ProviderErrorf("no embeddings returned from %s", e.model)
	}
	return out, len(out[0]), nil
}

// request sends one batch, retrying rate-limited and server-side failures.
func (e *remoteEncoder) request(ctx context.Context, n int, batch []string) ([]openai.Embedding, error) {
	opts := e.retry
	opts.Retryable = temporary
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.log.Warn("embed: retrying batch", "batch", n, "attempt", attempt, "delay", delay, "error", err)
	}

	var items []openai.Embedding
	err := resilience.Retry(ctx, opts, func(ctx context.Context) error {
		start := time.Now()
		var err error
		items, err = e.api.CreateEmbeddings(ctx, e.model, batch)
		if e.sizes != nil {
			e.sizes.Observe(float64(len(batch)))
			e.latency.Since(start)
		}
		return err
	})
	return items, err
}

func temporary(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

// placeByIndex puts each item at the slot named by its index. Every slot of
// the batch must be filled exactly once.
func placeByIndex(items []openai.Embedding, size int) ([][]float32, error) {
	slots := make([][]float32, size)
	for _, it := range items {
		if it.Index < 0 || it.Index >= size {
			return nil, domain.ProviderErrorf("response index %d out of range for batch of %d", it.Index, size)
		}
		if slots[it.Index] != nil {
			return nil, domain.ProviderErrorf("duplicate response index %d", it.Index)
		}
		slots[it.Index] = it.Vector
	}
	for i, s := range slots {
		if s == nil {
			return nil, domain.ProviderErrorf("no embedding for batch slot %d", i)
		}
	}
	return slots, nil
}
