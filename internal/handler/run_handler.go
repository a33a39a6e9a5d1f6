package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kaylam/govsignals/internal/model"
)

// Runner executes one orchestrated pipeline pass. Satisfied by
// *pipeline.Aggregator and *pipeline.EnrichRunner.
type Runner interface {
	Run(ctx context.Context) (model.RunSummary, error)
}

// RunHandler serves the scheduler trigger endpoints. The routes sit
// behind the scheduler token middleware.
type RunHandler struct {
	aggregate Runner
	enrich    Runner
	logger    *slog.Logger
}

// NewRunHandler builds a RunHandler.
func NewRunHandler(aggregate, enrich Runner, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		aggregate: aggregate,
		enrich:    enrich,
		logger:    logger,
	}
}

// TriggerAggregate runs one aggregation pass and returns its summary.
// POST /internal/runs/aggregate
func (h *RunHandler) TriggerAggregate(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, "aggregate", h.aggregate)
}

// TriggerEnrich runs one enrichment pass and returns its summary.
// POST /internal/runs/enrich
func (h *RunHandler) TriggerEnrich(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, "enrich", h.enrich)
}

func (h *RunHandler) trigger(w http.ResponseWriter, r *http.Request, kind string, runner Runner) {
	summary, err := runner.Run(r.Context())
	if err != nil {
		h.logger.Warn("triggered run failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	h.logger.Info("triggered run finished",
		slog.String("kind", kind),
		slog.Int("processed", summary.Processed),
		slog.Int("stored", summary.Stored),
		slog.Int("failed", summary.Failed),
		slog.Int("errors", len(summary.Errors)),
	)
	writeJSON(w, http.StatusOK, summary)
}
