// Command indexer reads a CMS export, transforms each article into a
// document, optionally embeds it, writes the document list as JSON and loads
// it into Qdrant.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"

	"github.com/WessleyAI/article-indexer/engine/cms"
	"github.com/WessleyAI/article-indexer/engine/embed"
	"github.com/WessleyAI/article-indexer/engine/events"
	"github.com/WessleyAI/article-indexer/engine/graph"
	"github.com/WessleyAI/article-indexer/engine/ingest"
	"github.com/WessleyAI/article-indexer/engine/semantic"
	"github.com/WessleyAI/article-indexer/pkg/config"
	"github.com/WessleyAI/article-indexer/pkg/metrics"
	"github.com/WessleyAI/article-indexer/pkg/natsutil"
)

// lookupEnv reads environment overrides.
var lookupEnv = os.LookupEnv

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "indexer",
		Usage: "Transform CMS articles into embedded documents and load them into Qdrant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
				Value: "text",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "CMS export (JSON array)",
				Value:   config.DefaultInput,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Where to write the document list",
				Value:   config.DefaultOutput,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Process at most N documents (0 = all)",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Embedding provider (" + strings.Join(embed.Providers(), ", ") + ")",
				Value: config.DefaultProvider,
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Embedding model for the selected provider",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Texts per remote embedding request",
				Value: config.DefaultBatchSize,
			},
			&cli.Float64Flag{
				Name:  "requests-per-second",
				Usage: "Pace remote embedding requests (0 = unlimited)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Embedding request timeout",
				Value: config.DefaultTimeout,
			},
			&cli.BoolFlag{
				Name:  "skip-embeddings",
				Usage: "Write documents without embeddings and skip the vector store",
			},
			&cli.StringFlag{
				Name:  "collection",
				Usage: "Qdrant collection name",
				Value: config.DefaultCollection,
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus text metrics to this file at exit",
			},
		},
		Before: setupLogger,
		Action: indexCommand,
		Commands: []*cli.Command{
			{
				Name:   "events",
				Usage:  "Print run events published on NATS as JSON lines",
				Action: eventsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "nats-url",
						Usage: "NATS server URL",
						Value: nats.DefaultURL,
					},
					&cli.StringFlag{
						Name:  "subject",
						Usage: "Base subject of the indexer's events",
						Value: config.DefaultNATSSubject,
					},
				},
			},
		},
	}
}

// resolveConfig layers the config file, the environment and explicitly set
// flags, in increasing precedence.
func resolveConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return cfg, err
	}

	if c.IsSet("input") {
		cfg.Input = c.String("input")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("limit") {
		cfg.Limit = c.Int("limit")
	}
	if c.IsSet("provider") {
		cfg.Embedding.Provider = c.String("provider")
	}
	if c.IsSet("model") {
		if p, _ := embed.Canonical(cfg.Embedding.Provider); p == embed.Local {
			cfg.Embedding.LocalModel = c.String("model")
		} else {
			cfg.Embedding.RemoteModel = c.String("model")
		}
	}
	if c.IsSet("batch-size") {
		cfg.Embedding.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("requests-per-second") {
		cfg.Embedding.RequestsPerSecond = c.Float64("requests-per-second")
	}
	if c.IsSet("timeout") {
		cfg.Embedding.Timeout = c.Duration("timeout")
	}
	if c.IsSet("skip-embeddings") {
		cfg.Embedding.Skip = c.Bool("skip-embeddings")
	}
	if c.IsSet("collection") {
		cfg.Qdrant.Collection = c.String("collection")
	}
	if c.IsSet("metrics-file") {
		cfg.MetricsFile = c.String("metrics-file")
	}
	return cfg, cfg.Validate()
}

func indexCommand(c *cli.Context) error {
	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}
	log := slog.Default()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	// The encoder is built first so a missing credential fails before any work.
	var enc embed.Encoder
	if !cfg.Embedding.Skip {
		provider, _ := embed.Canonical(cfg.Embedding.Provider)
		enc, err = embed.New(embed.Config{
			Provider:          cfg.Embedding.Provider,
			Model:             cfg.Model(provider),
			OllamaHost:        cfg.Embedding.OllamaHost,
			APIKey:            cfg.Embedding.APIKey,
			BaseURL:           cfg.Embedding.BaseURL,
			BatchSize:         cfg.Embedding.BatchSize,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			MaxAttempts:       cfg.Embedding.MaxAttempts,
			Timeout:           cfg.Embedding.Timeout,
			Logger:            log,
			Metrics:           reg,
		})
		if err != nil {
			return err
		}
	}

	raws, err := readInput(cfg.Input, cfg.Limit)
	if err != nil {
		return err
	}

	reporter, closeEvents := newReporter(cfg.NATS, log)
	defer closeEvents()

	pipeline := ingest.NewPipeline(ingest.Deps{
		Encoder: enc,
		Output:  ingest.FileWriter{Path: cfg.Output, Logger: log},
		Vectors: semantic.NewSink(semantic.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Logger:     log,
		}),
		Taxonomy: graph.NewSink(graph.Config{
			URL:      cfg.Neo4j.URL,
			User:     cfg.Neo4j.User,
			Password: cfg.Neo4j.Password,
			Logger:   log,
		}),
		Reporter: reporter,
		Metrics:  reg,
		Logger:   log,
	})

	report, _, runErr := pipeline.Run(ctx, raws)
	if cfg.MetricsFile != "" {
		if err := reg.WriteFile(cfg.MetricsFile); err != nil {
			log.Warn("indexer: write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(c.App.Writer, "Wrote %d documents to %s\n", report.Kept, cfg.Output)
	if len(report.Dropped) > 0 {
		fmt.Fprintf(c.App.Writer, "Skipped %d documents\n", len(report.Dropped))
	}
	return nil
}

func readInput(path string, limit int) ([]cms.RawDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return cms.Load(f, limit)
}

// newReporter logs every event and, when a NATS URL is configured, also
// publishes it. A NATS connection failure only disables publishing.
func newReporter(cfg config.NATS, log *slog.Logger) (events.Reporter, func()) {
	logging := events.LogReporter{Logger: log}
	if cfg.URL == "" {
		return logging, func() {}
	}
	nc, err := nats.Connect(cfg.URL, nats.Name("indexer"))
	if err != nil {
		log.Warn("indexer: nats unavailable; events will only be logged", "url", cfg.URL, "error", err)
		return logging, func() {}
	}
	return events.Multi{logging, events.NATSReporter{Conn: nc, Subject: cfg.Subject, Logger: log}},
		func() {
			if err := nc.Drain(); err != nil {
				log.Warn("indexer: drain nats", "error", err)
			}
		}
}

func eventsCommand(c *cli.Context) error {
	nc, err := nats.Connect(c.String("nats-url"), nats.Name("indexer-events"))
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	var mu sync.Mutex
	out := json.NewEncoder(c.App.Writer)
	emit := func(kind string, v any) {
		mu.Lock()
		defer mu.Unlock()
		if err := out.Encode(map[string]any{"event": kind, "data": v}); err != nil {
			slog.Warn("events: write", "error", err)
		}
	}

	base := c.String("subject")
	if _, err := natsutil.Subscribe(nc, events.DroppedSubject(base), func(_ context.Context, e events.DocumentDropped) {
		emit("document_dropped", e)
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if _, err := natsutil.Subscribe(nc, events.CompletedSubject(base), func(_ context.Context, e events.RunCompleted) {
		emit("run_completed", e)
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	slog.Info("events: listening", "subject", base+".>")
	<-ctx.Done()
	return nil
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(c.String("log-format")) {
	case "text":
		handler = slog.NewTextHandler(c.App.ErrWriter, opts)
	case "json":
		handler = slog.NewJSONHandler(c.App.ErrWriter, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.String("log-format"))
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
