package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/kaylam/govsignals/internal/htmltext"
	"github.com/kaylam/govsignals/internal/model"
	"github.com/kaylam/govsignals/internal/repository"
)

// Enricher produces reader-facing text for one signal. Satisfied by
// *Client; swapped for a stub in tests.
type Enricher interface {
	Enrich(ctx context.Context, request Request) (*Response, error)
}

// ImageLooker finds an illustrative image. Satisfied by *ImageClient.
type ImageLooker interface {
	Lookup(ctx context.Context, query, category string) (*ImageResult, error)
}

// WorkerConfig bounds one enrichment pass. The collaborator is a
// rate-limited, metered external service, so both the batch size and the
// inter-item pacing are mandatory.
type WorkerConfig struct {
	BatchSize    int
	ItemInterval time.Duration
}

// Worker drains the pending enrichment queue in small paced batches.
// A single signal's failure never aborts the batch.
type Worker struct {
	signals repository.SignalRepository
	client  Enricher
	images  ImageLooker
	logger  *slog.Logger
	limiter *rate.Limiter
	config  WorkerConfig
}

// NewWorker builds a Worker.
func NewWorker(
	signals repository.SignalRepository,
	client Enricher,
	images ImageLooker,
	logger *slog.Logger,
	config WorkerConfig,
) *Worker {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.ItemInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(config.ItemInterval), 1)
	}
	return &Worker{
		signals: signals,
		client:  client,
		images:  images,
		logger:  logger,
		limiter: limiter,
		config:  config,
	}
}

// RunOnce processes one batch of pending signals and returns a summary
// suitable for logging and the trigger endpoint.
func (w *Worker) RunOnce(ctx context.Context) (model.RunSummary, error) {
	start := time.Now()
	summary := model.RunSummary{Errors: []model.RunError{}}

	pending, err := w.signals.ListPendingEnrichment(ctx, w.config.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("failed to list pending signals: %w", err)
	}

	for _, signal := range pending {
		if err := w.limiter.Wait(ctx); err != nil {
			summary.DurationMs = float64(time.Since(start).Milliseconds())
			return summary, err
		}

		summary.Processed++
		cost, err := w.enrichOne(ctx, signal)
		summary.CostUSD += cost
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, model.RunError{
				SignalID: signal.ID,
				Stage:    "enrich",
				Message:  err.Error(),
			})
			continue
		}
		summary.Enriched++
	}

	summary.DurationMs = float64(time.Since(start).Milliseconds())
	w.logger.Info("enrichment pass complete",
		"processed", summary.Processed,
		"enriched", summary.Enriched,
		"failed", summary.Failed,
		"cost_usd", summary.CostUSD,
		"duration_ms", summary.DurationMs,
	)
	return summary, nil
}

// enrichOne drives one signal from pending to ready or failed. Returns
// the cost of any successful enrichment call.
func (w *Worker) enrichOne(ctx context.Context, signal *model.Signal) (float64, error) {
	title, body := primaryText(signal)

	response, err := w.client.Enrich(ctx, Request{
		Title:    title,
		Body:     body,
		Category: signal.Category,
	})
	if err != nil {
		w.failWithPlaceholder(ctx, signal, title, body)
		return 0, classifyError(err)
	}

	fields := &model.EnrichedFields{
		Title:       response.Title,
		Summary:     response.Summary,
		Body:        response.Body,
		ImagePrompt: response.ImagePrompt,
		Citations:   response.Citations,
		CostUSD:     response.CostUSD,
	}
	ok, err := w.signals.TransitionEnrichment(ctx, signal.ID, model.EnrichmentEnriched, fields)
	if err != nil {
		return response.CostUSD, fmt.Errorf("failed to record enrichment: %w", err)
	}
	if !ok {
		// Another worker settled this signal first.
		w.logger.Warn("enrichment transition rejected", "signal_id", signal.ID)
		return response.CostUSD, nil
	}

	w.lookupImage(ctx, signal, response)

	if _, err := w.signals.TransitionEnrichment(ctx, signal.ID, model.EnrichmentReady, nil); err != nil {
		return response.CostUSD, fmt.Errorf("failed to mark signal ready: %w", err)
	}

	w.logger.Info("signal enriched",
		"signal_id", signal.ID,
		"cost_usd", response.CostUSD,
	)
	return response.CostUSD, nil
}

// lookupImage runs the independent image state machine. Image failure
// never blocks the text pipeline; a signal without an image is fine.
func (w *Worker) lookupImage(ctx context.Context, signal *model.Signal, response *Response) {
	if w.images == nil {
		// no image service configured for this deployment
		if err := w.signals.UpdateImageStatus(ctx, signal.ID, model.ImageFailed, nil); err != nil {
			w.logger.Error("failed to record image status", "signal_id", signal.ID, "error", err)
		}
		return
	}

	query := response.ImagePrompt
	if query == "" {
		query = response.Title
	}
	if query == "" {
		if err := w.signals.UpdateImageStatus(ctx, signal.ID, model.ImageFailed, nil); err != nil {
			w.logger.Error("failed to record image status", "signal_id", signal.ID, "error", err)
		}
		return
	}

	result, err := w.images.Lookup(ctx, query, signal.Category)
	if err != nil {
		w.logger.Warn("image lookup failed", "signal_id", signal.ID, "error", err)
		if err := w.signals.UpdateImageStatus(ctx, signal.ID, model.ImageFailed, nil); err != nil {
			w.logger.Error("failed to record image status", "signal_id", signal.ID, "error", err)
		}
		return
	}

	fields := &model.EnrichedFields{
		Title:        response.Title,
		Summary:      response.Summary,
		Body:         response.Body,
		ImagePrompt:  response.ImagePrompt,
		Citations:    response.Citations,
		CostUSD:      response.CostUSD,
		ImageURL:     result.URL,
		ImageLicense: result.License,
		ImageCredit:  result.Attribution,
	}
	if err := w.signals.UpdateImageStatus(ctx, signal.ID, model.ImageReady, fields); err != nil {
		w.logger.Error("failed to record image result", "signal_id", signal.ID, "error", err)
	}
}

// failWithPlaceholder marks the signal failed with minimal degraded
// content so it stays consumable instead of sitting pending forever.
func (w *Worker) failWithPlaceholder(ctx context.Context, signal *model.Signal, title, body string) {
	summary := snippet(body, 280)
	if summary == "" {
		summary = title
	}
	placeholder := &model.EnrichedFields{
		Title:    title,
		Summary:  summary,
		Degraded: true,
	}
	ok, err := w.signals.TransitionEnrichment(ctx, signal.ID, model.EnrichmentFailed, placeholder)
	if err != nil {
		w.logger.Error("failed to mark signal failed", "signal_id", signal.ID, "error", err)
		return
	}
	if !ok {
		w.logger.Warn("failure transition rejected", "signal_id", signal.ID)
	}
}

// classifyError keeps the sentinel in the chain while naming the
// category for the run's error list.
func classifyError(err error) error {
	switch {
	case errors.Is(err, ErrAuth):
		return fmt.Errorf("auth: %w", err)
	case errors.Is(err, ErrRateLimited):
		return fmt.Errorf("rate limit: %w", err)
	case errors.Is(err, ErrQuota):
		return fmt.Errorf("quota: %w", err)
	default:
		return err
	}
}

// primaryText picks the title and plain-text body sent for enrichment,
// preferring languages in their stable order.
func primaryText(signal *model.Signal) (string, string) {
	for _, lang := range model.Languages {
		content, ok := signal.ContentFor(lang)
		if !ok {
			continue
		}
		if content.Title == "" && content.Body == "" {
			continue
		}
		return content.Title, htmltext.Extract(content.Body)
	}
	return "", ""
}

func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
