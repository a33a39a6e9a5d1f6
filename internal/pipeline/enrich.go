package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaylam/govsignals/internal/metrics"
	"github.com/kaylam/govsignals/internal/model"
)

// BatchWorker drains the pending enrichment queue once. Satisfied by
// *enrich.Worker.
type BatchWorker interface {
	RunOnce(ctx context.Context) (model.RunSummary, error)
}

// EnrichRunner wraps the enrichment worker with the overlap lease and
// metrics recording. It is the unit behind both the cron cadence and the
// manual trigger endpoint.
type EnrichRunner struct {
	worker  BatchWorker
	lease   Lease
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewEnrichRunner builds an EnrichRunner.
func NewEnrichRunner(worker BatchWorker, lease Lease, collector metrics.MetricsCollector, logger *slog.Logger) *EnrichRunner {
	return &EnrichRunner{
		worker:  worker,
		lease:   lease,
		metrics: collector,
		logger:  logger,
	}
}

// Run executes one enrichment pass under the lease.
func (r *EnrichRunner) Run(ctx context.Context) (model.RunSummary, error) {
	start := time.Now()

	acquired, err := r.lease.Acquire(ctx)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("failed to acquire enrichment lease: %w", err)
	}
	if !acquired {
		return model.RunSummary{}, model.NewRunInProgressError("enrichment")
	}
	defer func() {
		if err := r.lease.Release(ctx); err != nil {
			r.logger.Error("failed to release enrichment lease", "error", err)
		}
	}()

	summary, err := r.worker.RunOnce(ctx)

	for i := 0; i < summary.Enriched; i++ {
		r.metrics.RecordEnrichmentSuccess()
	}
	for i := 0; i < summary.Failed; i++ {
		r.metrics.RecordEnrichmentFailure()
	}
	r.metrics.RecordEnrichmentCost(summary.CostUSD)
	r.metrics.RecordRunDuration("enrich", time.Since(start))

	return summary, err
}
