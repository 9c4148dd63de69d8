// Package events reports pipeline progress to interested collaborators:
// the structured log, a NATS subject, or both.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/WessleyAI/article-indexer/pkg/natsutil"
)

// DocumentDropped is emitted when a document fails transformation or
// validation and is excluded from the run.
type DocumentDropped struct {
	RunID      string `json:"run_id"`
	Position   int    `json:"position"`
	ExternalID string `json:"external_id,omitempty"`
	Reason     string `json:"reason"`
	Error      string `json:"error"`
}

// RunCompleted summarizes a finished run.
type RunCompleted struct {
	RunID     string        `json:"run_id"`
	Read      int           `json:"read"`
	Kept      int           `json:"kept"`
	Dropped   int           `json:"dropped"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	Dimension int           `json:"dimension,omitempty"`
	Upserted  int           `json:"upserted"`
	Duration  time.Duration `json:"duration_ns"`
}

// Reporter receives run events. Implementations must not fail the run:
// delivery problems are their own to log.
type Reporter interface {
	DocumentDropped(ctx context.Context, e DocumentDropped)
	RunCompleted(ctx context.Context, e RunCompleted)
}

// LogReporter writes events to a slog.Logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) log() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r LogReporter) DocumentDropped(ctx context.Context, e DocumentDropped) {
	r.log().WarnContext(ctx, "ingest: skipping document",
		"run_id", e.RunID,
		"position", e.Position,
		"external_id", e.ExternalID,
		"reason", e.Reason,
		"error", e.Error,
	)
}

func (r LogReporter) RunCompleted(ctx context.Context, e RunCompleted) {
	r.log().InfoContext(ctx, "ingest: run complete",
		"run_id", e.RunID,
		"read", e.Read,
		"kept", e.Kept,
		"dropped", e.Dropped,
		"provider", e.Provider,
		"model", e.Model,
		"dim", e.Dimension,
		"upserted", e.Upserted,
		"duration", e.Duration,
	)
}

// NATSReporter publishes events as JSON on Subject. Dropped documents go to
// Subject + ".dropped" and run summaries to Subject + ".completed".
type NATSReporter struct {
	Conn    natsutil.Publisher
	Subject string
	Logger  *slog.Logger
}

// DroppedSubject is the subject dropped documents are published on.
func DroppedSubject(base string) string { return base + ".dropped" }

// CompletedSubject is the subject run summaries are published on.
func CompletedSubject(base string) string { return base + ".completed" }

func (r NATSReporter) publish(ctx context.Context, subject string, v any) {
	if err := natsutil.Publish(ctx, r.Conn, subject, v); err != nil {
		log := r.Logger
		if log == nil {
			log = slog.Default()
		}
		log.WarnContext(ctx, "events: publish failed", "subject", subject, "error", err)
	}
}

func (r NATSReporter) DocumentDropped(ctx context.Context, e DocumentDropped) {
	r.publish(ctx, DroppedSubject(r.Subject), e)
}

func (r NATSReporter) RunCompleted(ctx context.Context, e RunCompleted) {
	r.publish(ctx, CompletedSubject(r.Subject), e)
}

// Multi fans each event out to every reporter in order.
type Multi []Reporter

func (m Multi) DocumentDropped(ctx context.Context, e DocumentDropped) {
	for _, r := range m {
		r.DocumentDropped(ctx, e)
	}
}

func (m Multi) RunCompleted(ctx context.Context, e RunCompleted) {
	for _, r := range m {
		r.RunCompleted(ctx, e)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) DocumentDropped(context.Context, DocumentDropped) {}
func (Nop) RunCompleted(context.Context, RunCompleted)       {}
