// Package store persists grouped feed items as signals, merging new
// material into existing signals without losing anything already stored.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/kaylam/govsignals/internal/identity"
	"github.com/kaylam/govsignals/internal/merge"
	"github.com/kaylam/govsignals/internal/model"
	"github.com/kaylam/govsignals/internal/repository"
	"github.com/kaylam/govsignals/internal/score"
)

// Outcome describes what an upsert did.
type Outcome int

const (
	// OutcomeCreated means a new signal row was inserted.
	OutcomeCreated Outcome = iota
	// OutcomeUpdated means an existing signal absorbed new material.
	OutcomeUpdated
	// OutcomeUnchanged means the merge produced no new material.
	OutcomeUnchanged
)

// SignalUpsertService writes identity groups into the signals table.
// Concurrent writers are resolved by the version column: a lost write is
// re-read, re-merged and retried once, which converges because merging
// is commutative.
type SignalUpsertService struct {
	signals repository.SignalRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewSignalUpsertService builds a SignalUpsertService.
func NewSignalUpsertService(signals repository.SignalRepository, logger *slog.Logger) *SignalUpsertService {
	return &SignalUpsertService{
		signals: signals,
		logger:  logger,
		now:     time.Now,
	}
}

// Upsert stores one identity group. New groups become pending signals;
// known groups are merged in place and re-scored.
func (s *SignalUpsertService) Upsert(ctx context.Context, group identity.GroupedItems) (Outcome, error) {
	if len(group.Items) == 0 {
		return OutcomeUnchanged, nil
	}

	existing, err := s.signals.FindByID(ctx, group.SignalID)
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("failed to load signal %s: %w", group.SignalID, err)
	}

	if existing == nil {
		created, err := s.create(ctx, group)
		if err != nil {
			return OutcomeUnchanged, err
		}
		if created {
			return OutcomeCreated, nil
		}
		// Insert lost a race with a concurrent creator. Re-read and fall
		// through to the merge path.
		existing, err = s.signals.FindByID(ctx, group.SignalID)
		if err != nil {
			return OutcomeUnchanged, fmt.Errorf("failed to reload signal %s: %w", group.SignalID, err)
		}
		if existing == nil {
			return OutcomeUnchanged, fmt.Errorf("failed to create signal %s", group.SignalID)
		}
	}

	return s.mergeInto(ctx, existing, group)
}

func (s *SignalUpsertService) create(ctx context.Context, group identity.GroupedItems) (bool, error) {
	content, publishedAt := merge.Content(nil, time.Time{}, group.Items)

	now := s.now()
	category := group.Items[0].Category
	severity, relevance := score.Score(content, category, publishedAt, now)

	signal := &model.Signal{
		ID:               group.SignalID,
		SourceID:         group.Key.SourceID,
		Category:         category,
		PublishedAt:      publishedAt,
		Content:          content,
		Severity:         severity,
		RelevanceScore:   relevance,
		EnrichmentStatus: model.EnrichmentPending,
		ImageStatus:      model.ImagePending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.signals.Create(ctx, signal); err != nil {
		// Only a unique-key violation means a concurrent creator won the
		// race. Anything else is a real failure and must surface.
		if !isUniqueViolation(err) {
			return false, fmt.Errorf("failed to insert signal %s: %w", group.SignalID, err)
		}
		s.logger.Warn("signal insert lost a race, retrying as merge",
			"signal_id", group.SignalID, "error", err)
		return false, nil
	}

	s.logger.Info("signal created",
		"signal_id", signal.ID,
		"source_id", signal.SourceID,
		"severity", signal.Severity,
		"languages", len(signal.Content),
	)
	return true, nil
}

func (s *SignalUpsertService) mergeInto(ctx context.Context, existing *model.Signal, group identity.GroupedItems) (Outcome, error) {
	for attempt := 0; attempt < 2; attempt++ {
		content, publishedAt := merge.Content(existing.Content, existing.PublishedAt, group.Items)
		if contentEqual(existing.Content, content) && publishedAt.Equal(existing.PublishedAt) {
			return OutcomeUnchanged, nil
		}

		now := s.now()
		severity, relevance := score.Score(content, existing.Category, publishedAt, now)

		updated := *existing
		updated.Content = content
		updated.PublishedAt = publishedAt
		updated.Severity = severity
		updated.RelevanceScore = relevance
		updated.UpdatedAt = now

		ok, err := s.signals.UpdateContent(ctx, &updated)
		if err != nil {
			return OutcomeUnchanged, fmt.Errorf("failed to update signal %s: %w", existing.ID, err)
		}
		if ok {
			s.logger.Info("signal merged",
				"signal_id", existing.ID,
				"severity", severity,
				"languages", len(content),
			)
			return OutcomeUpdated, nil
		}

		// A concurrent writer bumped the version. Re-read and merge again
		// on top of what they wrote.
		existing, err = s.signals.FindByID(ctx, existing.ID)
		if err != nil {
			return OutcomeUnchanged, fmt.Errorf("failed to reload signal %s: %w", group.SignalID, err)
		}
		if existing == nil {
			return OutcomeUnchanged, fmt.Errorf("signal %s disappeared during merge", group.SignalID)
		}
	}

	return OutcomeUnchanged, fmt.Errorf("failed to merge signal %s after retry", group.SignalID)
}

// RefreshPublicView rebuilds the public read view. Callers invoke it once
// per batch after all upserts land.
func (s *SignalUpsertService) RefreshPublicView(ctx context.Context) error {
	return s.signals.RefreshPublicView(ctx)
}

// isUniqueViolation reports whether err is Postgres error 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func contentEqual(a, b map[model.Language]model.LocalizedContent) bool {
	if len(a) != len(b) {
		return false
	}
	for lang, ac := range a {
		if bc, ok := b[lang]; !ok || ac != bc {
			return false
		}
	}
	return true
}
