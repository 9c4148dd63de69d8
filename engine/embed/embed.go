// Package embed attaches embedding vectors to documents. Two strategies are
// available: a local model server encoding the corpus in one call, and a
// remote API called in fixed-size batches.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/WessleyAI/article-indexer/engine/domain"
	"github.com/WessleyAI/article-indexer/pkg/metrics"
)

// Encoder turns texts into vectors. Encode returns exactly one vector per
// text, in input order, plus the corpus dimension.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, int, error)
	// Name is the canonical strategy name: "local" or "remote".
	Name() string
	Model() string
}

// Strategy names.
const (
	Local  = "local"
	Remote = "remote"
)

// DefaultBatchSize is the number of texts per remote request.
const DefaultBatchSize = 100

// Config selects and configures a strategy.
type Config struct {
	Provider string
	Model    string

	// Local strategy.
	OllamaHost string

	// Remote strategy.
	APIKey            string
	BaseURL           string
	BatchSize         int
	RequestsPerSecond float64
	// MaxAttempts bounds calls per batch when the API answers with a
	// rate-limit or server error. Zero uses the resilience default.
	MaxAttempts int

	Timeout time.Duration
	Logger  *slog.Logger
	// Metrics receives per-request histograms when set.
	Metrics *metrics.Registry
}

type constructor func(Config) (Encoder, error)

var strategies = map[string]constructor{
	Local:  newLocal,
	Remote: newRemote,
}

var aliases = map[string]string{
	"openai":                Remote,
	"ollama":                Local,
	"sentence-transformers": Local,
}

// Canonical resolves a provider name or alias to its strategy name.
func Canonical(provider string) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(provider))
	if alias, ok := aliases[p]; ok {
		p = alias
	}
	_, ok := strategies[p]
	return p, ok
}

// Providers lists the accepted provider names, aliases included.
func Providers() []string {
	names := make([]string, 0, len(strategies)+len(aliases))
	for n := range strategies {
		names = append(names, n)
	}
	for n := range aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the encoder for cfg.Provider. Configuration problems, such as a
// missing remote credential, are reported here so callers can abort before
// doing any work.
func New(cfg Config) (Encoder, error) {
	name, ok := Canonical(cfg.Provider)
	if !ok {
		return nil, domain.ConfigurationErrorf("unknown embedding provider %q (want one of %s)",
			cfg.Provider, strings.Join(Providers(), ", "))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return strategies[name](cfg)
}

// EmbedAll encodes every document's text, attaches the vectors in place and
// re-validates each document against the resolved dimension. Any failure is
// run-level: on error the documents must not be written anywhere.
func EmbedAll(ctx context.Context, enc Encoder, docs []domain.Document) (int, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vecs, dim, err := enc.Encode(ctx, texts)
	if err != nil {
		return 0, domain.AsProviderError(fmt.Errorf("embed: %s: %w", enc.Name(), err))
	}
	if len(docs) > 0 && dim <= 0 {
		return 0, domain.ProviderErrorf("embed: %s reported dimension %d", enc.Name(), dim)
	}
	if len(vecs) != len(docs) {
		return 0, domain.ProviderErrorf("embed: %s returned %d vectors for %d documents", enc.Name(), len(vecs), len(docs))
	}

	for i := range docs {
		docs[i].Embedding = vecs[i]
		if err := domain.ValidateDocument(docs[i], dim); err != nil {
			return 0, domain.AsProviderError(fmt.Errorf("embed: document %d (%s): %w", i, docs[i].Metadata.ExternalID, err))
		}
	}
	return dim, nil
}
