package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
input: in.json
limit: 10
embedding:
  provider: local
  batch_size: 25
  timeout: 30s
qdrant:
  collection: articles
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "in.json", cfg.Input)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, 10, cfg.Limit)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, DefaultLocalModel, cfg.Embedding.LocalModel)
	assert.Equal(t, 25, cfg.Embedding.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "articles", cfg.Qdrant.Collection)
	assert.Equal(t, DefaultNATSSubject, cfg.NATS.Subject)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config: read")

	_, err = Load(writeFile(t, "limit: [1, 2"))
	assert.ErrorContains(t, err, "config: parse")
}

func TestApplyEnvOverridesFile(t *testing.T) {
	cfg, err := Load(writeFile(t, "qdrant:\n  collection: from-file\n"))
	require.NoError(t, err)

	require.NoError(t, cfg.ApplyEnv(env(map[string]string{
		"QDRANT_COLLECTION":    "from-env",
		"QDRANT_URL":           "http://localhost:6333",
		"OPENAI_API_KEY":       "sk-test",
		"EMBEDDING_BATCH_SIZE": "7",
		"EMBEDDING_RPS":        "2.5",
		"SKIP_EMBEDDINGS":      "true",
		"INDEXER_LIMIT":        "3",
		"NATS_SUBJECT":         "",
	})))
	assert.Equal(t, "from-env", cfg.Qdrant.Collection)
	assert.Equal(t, "http://localhost:6333", cfg.Qdrant.URL)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, 7, cfg.Embedding.BatchSize)
	assert.Equal(t, 2.5, cfg.Embedding.RequestsPerSecond)
	assert.True(t, cfg.Embedding.Skip)
	assert.Equal(t, 3, cfg.Limit)
	assert.Equal(t, DefaultNATSSubject, cfg.NATS.Subject)
}

func TestApplyEnvRejectsMalformedNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"INDEXER_LIMIT":     "ten",
		"EMBEDDING_TIMEOUT": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INDEXER_LIMIT")
	assert.Contains(t, err.Error(), "EMBEDDING_TIMEOUT")
}

func TestModel(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultLocalModel, cfg.Model("local"))
	assert.Equal(t, DefaultRemoteModel, cfg.Model("remote"))
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"empty input":     func(c *Config) { c.Input = " " },
		"negative limit":  func(c *Config) { c.Limit = -1 },
		"zero batch size": func(c *Config) { c.Embedding.BatchSize = 0 },
		"negative rps":    func(c *Config) { c.Embedding.RequestsPerSecond = -1 },
		"no collection":   func(c *Config) { c.Qdrant.Collection = "" },
		"no subject":      func(c *Config) { c.NATS.URL = "nats://localhost:4222"; c.NATS.Subject = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), "config: ")
		})
	}
}
