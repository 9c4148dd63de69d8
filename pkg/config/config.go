// Package config holds the indexer's settings. Values come from a YAML file,
// are overridden by environment variables, and finally by command-line flags
// (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultInput       = "data/raw_customer_api.json"
	DefaultOutput      = "output/qdrant_documents.json"
	DefaultProvider    = "remote"
	DefaultLocalModel  = "all-minilm"
	DefaultRemoteModel = "text-embedding-3-small"
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultBatchSize   = 100
	DefaultCollection  = "documents"
	DefaultNATSSubject = "indexer.events"
	DefaultTimeout     = 5 * time.Minute
	DefaultNeo4jUser   = "neo4j"
)

// Embedding configures the embedding strategies.
type Embedding struct {
	Provider          string        `yaml:"provider"`
	LocalModel        string        `yaml:"local_model"`
	RemoteModel       string        `yaml:"remote_model"`
	OllamaHost        string        `yaml:"ollama_host"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	BatchSize         int           `yaml:"batch_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxAttempts       int           `yaml:"max_attempts"`
	Timeout           time.Duration `yaml:"timeout"`
	Skip              bool          `yaml:"skip"`
}

// Qdrant locates the vector store.
type Qdrant struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

// Neo4j locates the taxonomy graph.
type Neo4j struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// NATS locates the event bus.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Config is the full indexer configuration.
type Config struct {
	Input       string    `yaml:"input"`
	Output      string    `yaml:"output"`
	Limit       int       `yaml:"limit"`
	MetricsFile string    `yaml:"metrics_file"`
	Embedding   Embedding `yaml:"embedding"`
	Qdrant      Qdrant    `yaml:"qdrant"`
	Neo4j       Neo4j     `yaml:"neo4j"`
	NATS        NATS      `yaml:"nats"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Input:  DefaultInput,
		Output: DefaultOutput,
		Embedding: Embedding{
			Provider:    DefaultProvider,
			LocalModel:  DefaultLocalModel,
			RemoteModel: DefaultRemoteModel,
			OllamaHost:  DefaultOllamaHost,
			BaseURL:     DefaultOpenAIURL,
			BatchSize:   DefaultBatchSize,
			Timeout:     DefaultTimeout,
		},
		Qdrant: Qdrant{Collection: DefaultCollection},
		Neo4j:  Neo4j{User: DefaultNeo4jUser},
		NATS:   NATS{Subject: DefaultNATSSubject},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults; keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables looked up with
// lookup (os.LookupEnv in production). Malformed numeric values are errors.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok && v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q: %w", key, v, err))
			}
		}
	}

	str("INDEXER_INPUT", &c.Input)
	str("INDEXER_OUTPUT", &c.Output)
	str("INDEXER_METRICS_FILE", &c.MetricsFile)
	num("INDEXER_LIMIT", func(v string) (err error) { c.Limit, err = strconv.Atoi(v); return })

	str("EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("LOCAL_EMBEDDING_MODEL", &c.Embedding.LocalModel)
	str("OPENAI_EMBEDDING_MODEL", &c.Embedding.RemoteModel)
	str("OLLAMA_HOST", &c.Embedding.OllamaHost)
	str("OPENAI_API_KEY", &c.Embedding.APIKey)
	str("OPENAI_BASE_URL", &c.Embedding.BaseURL)
	num("EMBEDDING_BATCH_SIZE", func(v string) (err error) { c.Embedding.BatchSize, err = strconv.Atoi(v); return })
	num("EMBEDDING_RPS", func(v string) (err error) {
		c.Embedding.RequestsPerSecond, err = strconv.ParseFloat(v, 64)
		return
	})
	num("EMBEDDING_MAX_ATTEMPTS", func(v string) (err error) { c.Embedding.MaxAttempts, err = strconv.Atoi(v); return })
	num("EMBEDDING_TIMEOUT", func(v string) (err error) { c.Embedding.Timeout, err = time.ParseDuration(v); return })
	num("SKIP_EMBEDDINGS", func(v string) (err error) { c.Embedding.Skip, err = strconv.ParseBool(v); return })

	str("QDRANT_URL", &c.Qdrant.URL)
	str("QDRANT_API_KEY", &c.Qdrant.APIKey)
	str("QDRANT_COLLECTION", &c.Qdrant.Collection)

	str("NEO4J_URL", &c.Neo4j.URL)
	str("NEO4J_USER", &c.Neo4j.User)
	str("NEO4J_PASSWORD", &c.Neo4j.Password)

	str("NATS_URL", &c.NATS.URL)
	str("NATS_SUBJECT", &c.NATS.Subject)

	return errors.Join(errs...)
}

// Model returns the model name for the configured provider.
func (c Config) Model(canonicalProvider string) string {
	if canonicalProvider == "local" {
		return c.Embedding.LocalModel
	}
	return c.Embedding.RemoteModel
}

// Validate reports settings that cannot work. Provider names and credentials
// are checked by the embedding package.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Input) == "" {
		errs = append(errs, errors.New("input path is empty"))
	}
	if strings.TrimSpace(c.Output) == "" {
		errs = append(errs, errors.New("output path is empty"))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit %d is negative", c.Limit))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding batch size %d must be positive", c.Embedding.BatchSize))
	}
	if c.Embedding.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests per second %g is negative", c.Embedding.RequestsPerSecond))
	}
	if c.Embedding.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative", c.Embedding.Timeout))
	}
	if strings.TrimSpace(c.Qdrant.Collection) == "" {
		errs = append(errs, errors.New("qdrant collection is empty"))
	}
	if c.NATS.URL != "" && strings.TrimSpace(c.NATS.Subject) == "" {
		errs = append(errs, errors.New("nats subject is empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
