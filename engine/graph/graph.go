// Package graph mirrors the run's taxonomy into Neo4j: one Article node per
// document, linked to the Section, Category and Tag nodes it carries.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/article-indexer/engine/domain"
	"github.com/WessleyAI/article-indexer/pkg/fn"
)

// BatchSize is the number of articles merged per statement.
const BatchSize = 500

const mergeArticles = `UNWIND $rows AS row
MERGE (a:Article {id: row.id})
SET a.title = row.title, a.url = row.url, a.website = row.website, a.publish_date = row.publish_date
FOREACH (name IN row.sections | MERGE (s:Section {name: name}) MERGE (a)-[:IN_SECTION]->(s))
FOREACH (name IN row.categories | MERGE (c:Category {name: name}) MERGE (a)-[:IN_CATEGORY]->(c))
FOREACH (name IN row.tags | MERGE (t:Tag {name: name}) MERGE (a)-[:TAGGED]->(t))`

// Config locates the Neo4j database.
type Config struct {
	URL      string
	User     string
	Password string
	Logger   *slog.Logger
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
	Close(ctx context.Context) error
}

// sessionAdapter adapts neo4j.SessionWithContext to the runner interface,
// consuming each result so write errors surface.
type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) error {
	res, err := a.sess.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func (a *sessionAdapter) Close(ctx context.Context) error { return a.sess.Close(ctx) }

// Sink writes taxonomy edges for each run. Without a URL it does nothing.
type Sink struct {
	cfg  Config
	log  *slog.Logger
	open func(ctx context.Context, cfg Config) (runner, func(context.Context) error, error)
}

// NewSink creates a sink. The driver is opened per Save.
func NewSink(cfg Config) *Sink {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Sink{cfg: cfg, log: log, open: dial}
}

func dial(ctx context.Context, cfg Config) (runner, func(context.Context) error, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URL, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, nil, fmt.Errorf("graph: connect %s: %w", cfg.URL, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, nil, fmt.Errorf("graph: verify %s: %w", cfg.URL, err)
	}
	sess := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	return &sessionAdapter{sess: sess}, driver.Close, nil
}

// Enabled reports whether the sink is configured to write.
func (s *Sink) Enabled() bool { return s.cfg.URL != "" }

// Save merges every document's article node and taxonomy edges.
func (s *Sink) Save(ctx context.Context, docs []domain.Document) error {
	if !s.Enabled() {
		s.log.Debug("NEO4J_URL not set; skipping taxonomy graph")
		return nil
	}
	if len(docs) == 0 {
		return nil
	}
	sess, closeDriver, err := s.open(ctx, s.cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = sess.Close(ctx)
		_ = closeDriver(ctx)
	}()

	rows := fn.Map(Rows(docs), func(r map[string]any) any { return r })
	for i, batch := range fn.Chunk(rows, BatchSize) {
		if err := sess.Run(ctx, mergeArticles, map[string]any{"rows": batch}); err != nil {
			return fmt.Errorf("graph: merge batch %d: %w", i, err)
		}
	}
	s.log.Info("graph: merged taxonomy", "articles", len(docs))
	return nil
}
