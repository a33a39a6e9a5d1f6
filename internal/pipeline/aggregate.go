// Package pipeline sequences full aggregation and enrichment passes over
// the active feed sources.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kaylam/govsignals/internal/identity"
	"github.com/kaylam/govsignals/internal/metrics"
	"github.com/kaylam/govsignals/internal/model"
	"github.com/kaylam/govsignals/internal/repository"
	"github.com/kaylam/govsignals/internal/store"
)

// FeedFetcher retrieves one feed in one language. Satisfied by
// *fetch.Fetcher.
type FeedFetcher interface {
	Fetch(ctx context.Context, source *model.FeedSource, lang model.Language) ([]model.RawItem, error)
}

// Upserter persists identity groups. Satisfied by
// *store.SignalUpsertService.
type Upserter interface {
	Upsert(ctx context.Context, group identity.GroupedItems) (store.Outcome, error)
	RefreshPublicView(ctx context.Context) error
}

// Lease guards against overlapping runs. Satisfied by *cache.RunLease.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// CacheInvalidator drops cached listings after a view refresh.
// Satisfied by *cache.ViewCache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// fetchResult carries one (source, language) fetch outcome back from the
// worker pool.
type fetchResult struct {
	source *model.FeedSource
	lang   model.Language
	items  []model.RawItem
	err    error
}

// Aggregator runs one full aggregation pass: fetch every active feed in
// every configured language, group items into signals, merge, score,
// store, then refresh the public view once.
type Aggregator struct {
	sources       repository.SourceRepository
	fetcher       FeedFetcher
	upserter      Upserter
	lease         Lease
	viewCache     CacheInvalidator
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	maxConcurrent int
}

// NewAggregator builds an Aggregator. maxConcurrent bounds the fetch
// fan-out; it stays in low single digits out of feed etiquette.
func NewAggregator(
	sources repository.SourceRepository,
	fetcher FeedFetcher,
	upserter Upserter,
	lease Lease,
	viewCache CacheInvalidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrent int,
) *Aggregator {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Aggregator{
		sources:       sources,
		fetcher:       fetcher,
		upserter:      upserter,
		lease:         lease,
		viewCache:     viewCache,
		metrics:       collector,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// Run executes one aggregation pass. A second Run while one is in flight
// returns a run-in-progress error instead of overlapping.
func (a *Aggregator) Run(ctx context.Context) (model.RunSummary, error) {
	start := time.Now()
	summary := model.RunSummary{Errors: []model.RunError{}}

	acquired, err := a.lease.Acquire(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to acquire aggregation lease: %w", err)
	}
	if !acquired {
		return summary, model.NewRunInProgressError("aggregation")
	}
	defer func() {
		if err := a.lease.Release(ctx); err != nil {
			a.logger.Error("failed to release aggregation lease", "error", err)
		}
	}()

	sources, err := a.sources.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list active sources: %w", err)
	}
	if len(sources) == 0 {
		return summary, model.NewNoActiveSourcesError()
	}

	a.logger.Info("aggregation run started",
		"sources", len(sources),
		"max_concurrent", a.maxConcurrent,
	)

	pool := a.fetchAll(ctx, sources)

	for _, result := range pool {
		if result.err != nil {
			stage := "fetch"
			if errors.Is(result.err, model.ErrUnparseableFeed) {
				stage = "parse"
				a.metrics.RecordParseFailure(result.source.Slug)
			} else {
				a.metrics.RecordFetchFailure(result.source.Slug)
			}
			summary.Errors = append(summary.Errors, model.RunError{
				SourceSlug: result.source.Slug,
				Language:   result.lang,
				Stage:      stage,
				Message:    result.err.Error(),
			})
			continue
		}
		a.metrics.RecordFetchSuccess(result.source.Slug)
		summary.Processed += len(result.items)
	}
	a.metrics.RecordItemsProcessed(summary.Processed)

	// Group per source: items from different sources never merge, and a
	// per-source pool keeps one defective source's data isolated.
	for _, source := range sources {
		var items []model.RawItem
		for _, result := range pool {
			if result.source.ID == source.ID && result.err == nil {
				items = append(items, result.items...)
			}
		}
		if len(items) == 0 {
			continue
		}

		groups := identity.Group(items)
		summary.Grouped += len(groups)

		for _, group := range groups {
			outcome, err := a.upserter.Upsert(ctx, group)
			if err != nil {
				summary.Errors = append(summary.Errors, model.RunError{
					SourceSlug: source.Slug,
					SignalID:   group.SignalID,
					Stage:      "store",
					Message:    err.Error(),
				})
				continue
			}
			if outcome != store.OutcomeUnchanged {
				summary.Stored++
			}
		}
	}
	a.metrics.RecordSignalsUpserted(summary.Stored)

	// Cursor updates happen only for fetches that succeeded; a failed
	// language keeps its old cursor and reads as stale.
	now := time.Now()
	for _, result := range pool {
		if result.err != nil {
			continue
		}
		if err := a.sources.UpdateCursor(ctx, result.source.ID, result.lang, now); err != nil {
			a.logger.Error("failed to update cursor",
				"source", result.source.Slug,
				"language", result.lang,
				"error", err,
			)
		}
	}

	if summary.Stored > 0 {
		if err := a.upserter.RefreshPublicView(ctx); err != nil {
			summary.Errors = append(summary.Errors, model.RunError{
				Stage:   "view_refresh",
				Message: err.Error(),
			})
		} else if a.viewCache != nil {
			a.viewCache.Invalidate(ctx)
		}
	}

	duration := time.Since(start)
	summary.DurationMs = float64(duration.Milliseconds())
	a.metrics.RecordRunDuration("aggregate", duration)

	a.logger.Info("aggregation run complete",
		"processed", summary.Processed,
		"grouped", summary.Grouped,
		"stored", summary.Stored,
		"errors", len(summary.Errors),
		"duration_ms", summary.DurationMs,
	)
	return summary, nil
}

// fetchAll fans out one fetch per (source, language) pair through a
// bounded worker pool and collects every outcome.
func (a *Aggregator) fetchAll(ctx context.Context, sources []*model.FeedSource) []fetchResult {
	type task struct {
		source *model.FeedSource
		lang   model.Language
	}

	var tasks []task
	for _, source := range sources {
		for _, lang := range model.Languages {
			if source.URLFor(lang) == "" {
				continue
			}
			tasks = append(tasks, task{source: source, lang: lang})
		}
	}

	results := make([]fetchResult, len(tasks))
	sem := make(chan struct{}, a.maxConcurrent)
	var wg sync.WaitGroup

	for i, tk := range tasks {
		wg.Add(1)
		go func(i int, tk task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			items, err := a.fetcher.Fetch(ctx, tk.source, tk.lang)
			results[i] = fetchResult{source: tk.source, lang: tk.lang, items: items, err: err}
		}(i, tk)
	}
	wg.Wait()

	return results
}
