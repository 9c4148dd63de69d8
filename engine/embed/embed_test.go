package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/WessleyAI/article-indexer/engine/domain"
	"github.com/WessleyAI/article-indexer/pkg/metrics"
	"github.com/WessleyAI/article-indexer/pkg/ollama"
	"github.com/WessleyAI/article-indexer/pkg/openai"
	"github.com/WessleyAI/article-indexer/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func docs(texts ...string) []domain.Document {
	out := make([]domain.Document, len(texts))
	for i, t := range texts {
		out[i] = domain.Document{
			Text: t,
			Metadata: domain.Metadata{
				ExternalID: fmt.Sprintf("id-%d", i),
				URL:        fmt.Sprintf("https://www.example.com/%d", i),
			},
		}
	}
	return out
}

func TestCanonical(t *testing.T) {
	for in, want := range map[string]string{
		"remote":                Remote,
		"openai":                Remote,
		"Local":                 Local,
		"ollama":                Local,
		"sentence-transformers": Local,
	} {
		got, ok := Canonical(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := Canonical("cohere")
	assert.False(t, ok)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "cohere"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "sentence-transformers")
}

func TestNewRemoteRequiresCredential(t *testing.T) {
	_, err := New(Config{Provider: "openai"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.True(t, domain.IsFatal(err))
}

func TestRemoteUsesResponseIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Items deliberately arrive as [1, 0].
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0, 1, 1}},
				{"index": 0, "embedding": []float64{1, 0, 0}},
			},
		})
	}))
	defer srv.Close()

	enc, err := New(Config{Provider: Remote, APIKey: "sk-test", BaseURL: srv.URL, Logger: quiet})
	require.NoError(t, err)

	batch := docs("first", "second")
	dim, err := EmbedAll(t.Context(), enc, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)
	assert.Equal(t, []float32{1, 0, 0}, batch[0].Embedding)
	assert.Equal(t, []float32{0, 1, 1}, batch[1].Embedding)
}

type scriptedAPI struct {
	calls   [][]string
	respond func(call int, input []string) ([]openai.Embedding, error)
}

func (s *scriptedAPI) CreateEmbeddings(_ context.Context, _ string, input []string) ([]openai.Embedding, error) {
	s.calls = append(s.calls, input)
	return s.respond(len(s.calls)-1, input)
}

// reversed answers every batch in reverse order with vector [call, index].
func reversed(call int, input []string) ([]openai.Embedding, error) {
	out := make([]openai.Embedding, 0, len(input))
	for i := len(input) - 1; i >= 0; i-- {
		out = append(out, openai.Embedding{Index: i, Vector: []float32{float32(call), float32(i)}})
	}
	return out, nil
}

func TestRemoteBatchesInSubmissionOrder(t *testing.T) {
	api := &scriptedAPI{respond: reversed}
	enc := &remoteEncoder{api: api, model: "m", batchSize: 2, log: quiet}

	vecs, dim, err := enc.Encode(t.Context(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
	require.Len(t, api.calls, 3)
	assert.Equal(t, []string{"e"}, api.calls[2])
	assert.Equal(t, [][]float32{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}}, vecs)
}

func TestRemoteObservesBatchSizes(t *testing.T) {
	reg := metrics.New()
	enc := &remoteEncoder{api: &scriptedAPI{respond: reversed}, model: "m", batchSize: 2, log: quiet}
	enc.instrument(reg)

	_, _, err := enc.Encode(t.Context(), []string{"a", "b", "c"})
	require.NoError(t, err)
	out := reg.Render()
	assert.Contains(t, out, "indexer_embedding_batch_size_count 2\n")
	assert.Contains(t, out, "indexer_embedding_batch_size_sum 3\n")
	assert.Contains(t, out, "indexer_embedding_request_seconds_count 2\n")
}

func TestRemoteRetriesTemporaryErrors(t *testing.T) {
	api := &scriptedAPI{respond: func(call int, input []string) ([]openai.Embedding, error) {
		if call == 0 {
			return nil, &openai.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}
		}
		return reversed(call, input)
	}}
	enc := &remoteEncoder{api: api, model: "m", batchSize: 10, log: quiet,
		retry: resilience.RetryOpts{MaxAttempts: 2, BaseDelay: time.Millisecond}}

	vecs, _, err := enc.Encode(t.Context(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, api.calls, 2)
	assert.Equal(t, [][]float32{{1, 0}}, vecs)
}

func TestRemoteDoesNotRetryClientErrors(t *testing.T) {
	api := &scriptedAPI{respond: func(int, []string) ([]openai.Embedding, error) {
		return nil, &openai.APIError{StatusCode: http.StatusUnauthorized, Message: "bad key"}
	}}
	enc := &remoteEncoder{api: api, model: "m", batchSize: 10, log: quiet,
		retry: resilience.RetryOpts{MaxAttempts: 3, BaseDelay: time.Millisecond}}

	_, _, err := enc.Encode(t.Context(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Len(t, api.calls, 1)
}

func TestRemoteRejectsBadIndices(t *testing.T) {
	tests := map[string][]openai.Embedding{
		"out of range": {{Index: 0, Vector: []float32{1}}, {Index: 2, Vector: []float32{1}}},
		"duplicate":    {{Index: 0, Vector: []float32{1}}, {Index: 0, Vector: []float32{1}}},
		"missing":      {{Index: 1, Vector: []float32{1}}},
	}
	for name, items := range tests {
		t.Run(name, func(t *testing.T) {
			api := &scriptedAPI{respond: func(int, []string) ([]openai.Embedding, error) { return items, nil }}
			enc := &remoteEncoder{api: api, model: "m", batchSize: 10, log: quiet}
			_, _, err := enc.Encode(t.Context(), []string{"a", "b"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
		})
	}
}

func TestRemoteEmptyAggregate(t *testing.T) {
	api := &scriptedAPI{respond: reversed}
	enc := &remoteEncoder{api: api, model: "m", batchSize: 10, log: quiet}
	_, _, err := enc.Encode(t.Context(), nil)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Empty(t, api.calls)
}

func TestRemoteAPIErrorIsFatal(t *testing.T) {
	api := &scriptedAPI{respond: func(int, []string) ([]openai.Embedding, error) {
		return nil, errors.New("openai: status 500: boom")
	}}
	enc := &remoteEncoder{api: api, model: "m", batchSize: 10, log: quiet}
	_, err := EmbedAll(t.Context(), enc, docs("a"))
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	assert.Contains(t, err.Error(), "boom")
}

type fakeServer struct {
	shows  int
	embeds int
	dim    int
	vecs   func(texts []string) [][]float32
}

func (f *fakeServer) Show(context.Context) (ollama.ModelInfo, error) {
	f.shows++
	return ollama.ModelInfo{Architecture: "bert", EmbeddingLength: f.dim}, nil
}

func (f *fakeServer) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embeds++
	return f.vecs(texts), nil
}

func (f *fakeServer) Model() string { return "all-minilm" }

func constant(dim int) func([]string) [][]float32 {
	return func(texts []string) [][]float32 {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = make([]float32, dim)
		}
		return out
	}
}

func TestLocalLoadsModelOnce(t *testing.T) {
	server := &fakeServer{dim: 4, vecs: constant(4)}
	enc := &localEncoder{server: server, log: quiet}

	batch := docs("a", "b", "c")
	dim, err := EmbedAll(t.Context(), enc, batch)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)
	_, err = EmbedAll(t.Context(), enc, docs("d"))
	require.NoError(t, err)

	assert.Equal(t, 1, server.shows)
	assert.Equal(t, 2, server.embeds)
	for _, d := range batch {
		assert.Len(t, d.Embedding, 4)
	}
}

func TestLocalEmptyCorpusSkipsEncode(t *testing.T) {
	server := &fakeServer{dim: 4, vecs: constant(4)}
	enc := &localEncoder{server: server, log: quiet}
	dim, err := EmbedAll(t.Context(), enc, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)
	assert.Equal(t, 0, server.embeds)
}

func TestDimensionMismatchIsFatal(t *testing.T) {
	server := &fakeServer{dim: 4, vecs: constant(3)}
	enc := &localEncoder{server: server, log: quiet}
	_, err := EmbedAll(t.Context(), enc, docs("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
}

func TestVectorCountMismatchIsFatal(t *testing.T) {
	server := &fakeServer{dim: 2, vecs: func([]string) [][]float32 { return [][]float32{{1, 2}} }}
	enc := &localEncoder{server: server, log: quiet}
	_, err := EmbedAll(t.Context(), enc, docs("a", "b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Contains(t, err.Error(), "1 vectors for 2 documents")
}
