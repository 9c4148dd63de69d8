package semantic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/article-indexer/engine/domain"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "documents"

// Config locates the destination collection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Logger     *slog.Logger
}

// store is what the sink needs from a connected VectorStore.
type store interface {
	Recreate(ctx context.Context, dims int) error
	Upsert(ctx context.Context, points []Point) error
	Count(ctx context.Context) (uint64, error)
	Close() error
}

// Sink loads a run's documents into Qdrant, replacing the collection's
// previous contents. Without both a URL and an API key it does nothing.
type Sink struct {
	cfg  Config
	log  *slog.Logger
	open func(Config) (store, error)
}

// NewSink creates a sink. Connections are opened per Upsert.
func NewSink(cfg Config) *Sink {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Sink{cfg: cfg, log: log, open: dial}
}

func dial(cfg Config) (store, error) {
	return New(cfg.URL, cfg.APIKey, cfg.Collection)
}

// Enabled reports whether the sink is configured to write.
func (s *Sink) Enabled() bool { return s.cfg.URL != "" && s.cfg.APIKey != "" }

// Upsert recreates the collection at vectorSize and writes one point per
// document, with ids equal to the documents' positions. It returns the
// number of points written.
func (s *Sink) Upsert(ctx context.Context, docs []domain.Document, vectorSize int) (int, error) {
	if !s.Enabled() {
		s.log.Info("QDRANT_URL or QDRANT_API_KEY not set; skipping upload")
		return 0, nil
	}
	vs, err := s.open(s.cfg)
	if err != nil {
		return 0, err
	}
	defer vs.Close()

	if err := vs.Recreate(ctx, vectorSize); err != nil {
		return 0, err
	}
	if err := vs.Upsert(ctx, PointsFromDocuments(docs)); err != nil {
		return 0, err
	}
	n, err := vs.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n != uint64(len(docs)) {
		return 0, fmt.Errorf("semantic: collection %s holds %d points, want %d", s.cfg.Collection, n, len(docs))
	}
	s.log.Info("semantic: upserted vectors", "count", len(docs), "collection", s.cfg.Collection, "dim", vectorSize)
	return len(docs), nil
}
