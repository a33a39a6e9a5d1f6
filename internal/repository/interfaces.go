// Package repository defines the persistence interfaces and their
// PostgreSQL implementations.
package repository

import (
	"context"
	"time"

	"github.com/kaylam/govsignals/internal/model"
)

// SourceRepository persists feed sources and their fetch cursors.
type SourceRepository interface {
	// FindBySlug returns the source with the given slug, or nil.
	FindBySlug(ctx context.Context, slug string) (*model.FeedSource, error)

	// ListActive returns all active sources.
	ListActive(ctx context.Context) ([]*model.FeedSource, error)

	// ListAll returns every source, active or not, for operator views.
	ListAll(ctx context.Context) ([]*model.FeedSource, error)

	// Create inserts a new source.
	Create(ctx context.Context, source *model.FeedSource) error

	// UpdateMetadata updates catalog-owned fields (department, category,
	// URLs, active). Cursors are owned by the pipeline and untouched.
	UpdateMetadata(ctx context.Context, source *model.FeedSource) error

	// UpdateCursor records a successful fetch time for one language.
	UpdateCursor(ctx context.Context, sourceID string, lang model.Language, fetchedAt time.Time) error

	// DeactivateMissing deactivates sources whose slug is not listed.
	// Returns the number of sources deactivated.
	DeactivateMissing(ctx context.Context, keepSlugs []string) (int, error)
}

// SignalRepository persists signals and the public read view.
type SignalRepository interface {
	// FindByID returns the signal with the given ID, or nil.
	FindByID(ctx context.Context, id string) (*model.Signal, error)

	// Create inserts a new signal.
	Create(ctx context.Context, signal *model.Signal) error

	// UpdateContent conditionally writes content, scores and publish
	// time, guarded by the signal's version. Returns false when another
	// writer won the race; the caller re-reads, re-merges and retries.
	UpdateContent(ctx context.Context, signal *model.Signal) (bool, error)

	// ListPendingEnrichment returns up to limit signals awaiting
	// enrichment, oldest first.
	ListPendingEnrichment(ctx context.Context, limit int) ([]*model.Signal, error)

	// TransitionEnrichment moves a signal's enrichment status forward,
	// writing the enriched fields alongside. The transition is enforced
	// in SQL; a regressive write affects no rows and returns false.
	TransitionEnrichment(ctx context.Context, id string, to model.EnrichmentStatus, fields *model.EnrichedFields) (bool, error)

	// UpdateImageStatus settles the independent image state machine and
	// records image fields when the lookup succeeded.
	UpdateImageStatus(ctx context.Context, id string, status model.ImageStatus, fields *model.EnrichedFields) error

	// RefreshPublicView rebuilds the materialized public read view.
	// Called once per batch, not once per signal.
	RefreshPublicView(ctx context.Context) error

	// ListPublic reads the public view with optional filters.
	ListPublic(ctx context.Context, filter PublicFilter) ([]model.PublicSignal, error)

	// FindPublicByID reads one row of the public view, or nil.
	FindPublicByID(ctx context.Context, id string) (*model.PublicSignal, error)
}

// PublicFilter narrows the public view listing.
type PublicFilter struct {
	Category    string
	MinSeverity int
	Limit       int
}
