package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/kalambet/mentor/internal/metrics"
	"github.com/kalambet/mentor/internal/roadmap"
	"github.com/kalambet/mentor/internal/storage"
)

// Completer sends a system and user prompt to a language model and returns
// the raw reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// RoadmapStore persists generated roadmaps.
type RoadmapStore interface {
	CreateRoadmap(r storage.NewRoadmap) (storage.Roadmap, error)
}

// ValidationError reports a query outside the accepted length range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateQuery checks that query has between MinQueryLength and
// MaxQueryLength characters.
func ValidateQuery(query string) error {
	n := utf8.RuneCountInString(query)
	switch {
	case n < roadmap.MinQueryLength:
		return &ValidationError{Field: "query", Message: fmt.Sprintf("must be at least %d characters", roadmap.MinQueryLength)}
	case n > roadmap.MaxQueryLength:
		return &ValidationError{Field: "query", Message: fmt.Sprintf("must be at most %d characters", roadmap.MaxQueryLength)}
	}
	return nil
}

// Generator turns a learning goal into a stored roadmap: it prompts the
// model, normalizes the reply and persists the result.
type Generator struct {
	model   Completer
	store   RoadmapStore
	metrics *metrics.Recorder
}

// NewGenerator wires a Generator. rec may be nil.
func NewGenerator(model Completer, store RoadmapStore, rec *metrics.Recorder) *Generator {
	return &Generator{model: model, store: store, metrics: rec}
}

// Generate runs one submission. Model failures are returned unchanged and
// nothing is persisted; unparsable replies are stored as fallback records.
func (g *Generator) Generate(ctx context.Context, query string) (storage.Roadmap, error) {
	if err := ValidateQuery(query); err != nil {
		return storage.Roadmap{}, err
	}

	prompt := roadmap.BuildPrompt(query)

	start := time.Now()
	raw, err := g.model.Complete(ctx, prompt.System, prompt.User)
	g.metrics.ObserveModelCall(time.Since(start), err)
	if err != nil {
		g.metrics.RecordGenerated(metrics.OutcomeError)
		return storage.Roadmap{}, err
	}

	res := roadmap.Normalize(raw, query).Bounded()
	if res.Outcome == roadmap.Fallback {
		slog.Warn("model reply was not valid roadmap JSON, storing fallback",
			"error", res.DecodeErr,
			"reply_len", len(raw),
		)
	}

	created, err := g.store.CreateRoadmap(storage.NewRoadmap{
		UserQuery:  query,
		Title:      res.Title,
		Content:    res.Content,
		VisualData: res.VisualData,
	})
	if err != nil {
		g.metrics.RecordGenerated(metrics.OutcomeError)
		return storage.Roadmap{}, fmt.Errorf("saving roadmap: %w", err)
	}

	g.metrics.RecordGenerated(res.Outcome.String())
	slog.Debug("roadmap generated",
		"id", created.ID,
		"outcome", res.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return created, nil
}
