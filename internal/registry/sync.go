package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kaylam/govsignals/internal/model"
)

// SourceStore is the slice of the source repository the sync needs.
type SourceStore interface {
	FindBySlug(ctx context.Context, slug string) (*model.FeedSource, error)
	Create(ctx context.Context, source *model.FeedSource) error
	UpdateMetadata(ctx context.Context, source *model.FeedSource) error
	DeactivateMissing(ctx context.Context, keepSlugs []string) (int, error)
}

// SyncResult summarizes one catalog sync.
type SyncResult struct {
	Created     int
	Updated     int
	Deactivated int
}

// Sync upserts catalog entries into the store by slug and deactivates
// rows missing from the catalog. Cursor values already in the store are
// preserved; the catalog only owns identity and metadata.
func Sync(ctx context.Context, store SourceStore, catalog *Catalog, logger *slog.Logger) (SyncResult, error) {
	var result SyncResult
	now := time.Now()

	slugs := make([]string, 0, len(catalog.Sources))
	for _, entry := range catalog.Sources {
		slugs = append(slugs, entry.Slug)

		existing, err := store.FindBySlug(ctx, entry.Slug)
		if err != nil {
			return result, fmt.Errorf("failed to look up source %s: %w", entry.Slug, err)
		}

		if existing == nil {
			source := &model.FeedSource{
				ID:           uuid.New().String(),
				Slug:         entry.Slug,
				Department:   entry.Department,
				Category:     entry.Category,
				LanguageURLs: entry.LanguageURLs(),
				Active:       entry.IsActive(),
				Cursors:      map[model.Language]time.Time{},
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := store.Create(ctx, source); err != nil {
				return result, fmt.Errorf("failed to create source %s: %w", entry.Slug, err)
			}
			result.Created++
			continue
		}

		existing.Department = entry.Department
		existing.Category = entry.Category
		existing.LanguageURLs = entry.LanguageURLs()
		existing.Active = entry.IsActive()
		existing.UpdatedAt = now
		if err := store.UpdateMetadata(ctx, existing); err != nil {
			return result, fmt.Errorf("failed to update source %s: %w", entry.Slug, err)
		}
		result.Updated++
	}

	deactivated, err := store.DeactivateMissing(ctx, slugs)
	if err != nil {
		return result, fmt.Errorf("failed to deactivate removed sources: %w", err)
	}
	result.Deactivated = deactivated

	logger.Info("feed catalog synced",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("deactivated", result.Deactivated),
	)

	return result, nil
}
