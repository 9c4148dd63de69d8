package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/WessleyAI/article-indexer/engine/domain"
)

// FileWriter writes the documents as a pretty-printed JSON array. Non-ASCII
// text and HTML-significant characters are written as is. The file is
// replaced atomically; its directory is created when missing.
type FileWriter struct {
	Path   string
	Logger *slog.Logger
}

func (w FileWriter) Write(_ context.Context, docs []domain.Document) error {
	if docs == nil {
		docs = []domain.Document{}
	}
	dir := filepath.Dir(w.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(docs); err != nil {
		tmp.Close()
		return fmt.Errorf("encode documents: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.Path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}

	log := w.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("ingest: wrote documents", "count", len(docs), "path", w.Path)
	return nil
}
