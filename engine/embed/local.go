package embed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/WessleyAI/article-indexer/engine/domain"
	"github.com/WessleyAI/article-indexer/pkg/ollama"
)

// modelServer is the subset of *ollama.Client used by the local strategy.
type modelServer interface {
	Show(ctx context.Context) (ollama.ModelInfo, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// localEncoder encodes the whole corpus in a single call to a local model
// server. The model is loaded once; its declared embedding length is the
// corpus dimension.
type localEncoder struct {
	server modelServer
	log    *slog.Logger

	once sync.Once
	dim  int
	err  error
}

func newLocal(cfg Config) (Encoder, error) {
	if cfg.Model == "" {
		return nil, domain.ConfigurationErrorf("local embedding requires a model name")
	}
	return &localEncoder{
		server: ollama.NewClient(cfg.OllamaHost, cfg.Model, cfg.Timeout),
		log:    cfg.Logger,
	}, nil
}

func (e *localEncoder) Name() string  { return Local }
func (e *localEncoder) Model() string { return e.server.Model() }

func (e *localEncoder) load(ctx context.Context) (int, error) {
	e.once.Do(func() {
		info, err := e.server.Show(ctx)
		if err != nil {
			e.err = err
			return
		}
		e.dim = info.EmbeddingLength
		e.log.Info("embed: model loaded", "model", e.server.Model(), "arch", info.Architecture, "dim", e.dim)
	})
	return e.dim, e.err
}

func (e *localEncoder) Encode(ctx context.Context, texts []string) ([][]float32, int, error) {
	dim, err := e.load(ctx)
	if err != nil {
		return nil, 0, err
	}
	if len(texts) == 0 {
		return [][]float32{}, dim, nil
	}
	vecs, err := e.server.Embed(ctx, texts)
	if err != nil {
		return nil, 0, err
	}
	return vecs, dim, nil
}
