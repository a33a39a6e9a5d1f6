package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kaylam/govsignals/internal/middleware"
)

// RouterDeps bundles the dependencies NewRouter needs.
type RouterDeps struct {
	Signals   SignalReader
	ViewCache ListingCache
	Sources   SourceLister
	Aggregate Runner
	Enrich    Runner
	DB        Pinger

	SchedulerToken string
	RateLimiter    *middleware.RateLimiter
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// NewRouter builds the full route tree with its middleware chain.
//
// Middleware order, outermost first:
//
//	Recovery -> SecurityHeaders -> Logging
//
// The public /api routes add the per-client rate limit; the /internal
// routes add the scheduler token check instead. /health and /metrics
// stay outside both.
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	signalHandler := NewSignalHandler(deps.Signals, deps.ViewCache)
	sourceHandler := NewSourceHandler(deps.Sources)
	runHandler := NewRunHandler(deps.Aggregate, deps.Enrich, deps.Logger)
	healthHandler := NewHealthHandler(deps.DB)

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/signals", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Get("/", signalHandler.ListSignals)
		r.Get("/{id}", signalHandler.GetSignal)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.NewSchedulerAuthMiddleware(deps.SchedulerToken))
		r.Get("/sources", sourceHandler.ListSources)
		r.Post("/runs/aggregate", runHandler.TriggerAggregate)
		r.Post("/runs/enrich", runHandler.TriggerEnrich)
	})

	return r
}
