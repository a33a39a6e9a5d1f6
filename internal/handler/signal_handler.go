package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kaylam/govsignals/internal/model"
	"github.com/kaylam/govsignals/internal/repository"
)

// SignalReader reads the public signal view.
type SignalReader interface {
	// ListPublic reads the public view with optional filters.
	ListPublic(ctx context.Context, filter repository.PublicFilter) ([]model.PublicSignal, error)
	// FindPublicByID reads one public signal, or nil.
	FindPublicByID(ctx context.Context, id string) (*model.PublicSignal, error)
}

// ListingCache caches filtered listings between view refreshes.
// A nil Get result means miss; both methods degrade silently on cache
// trouble, so the handler never fails because of the cache.
type ListingCache interface {
	Get(ctx context.Context, filter repository.PublicFilter) []model.PublicSignal
	Set(ctx context.Context, filter repository.PublicFilter, signals []model.PublicSignal)
}

// SignalHandler serves the public signal API.
type SignalHandler struct {
	signals SignalReader
	cache   ListingCache
}

// NewSignalHandler builds a SignalHandler. cache may be nil.
func NewSignalHandler(signals SignalReader, cache ListingCache) *SignalHandler {
	return &SignalHandler{
		signals: signals,
		cache:   cache,
	}
}

// signalListResponse wraps the public listing.
type signalListResponse struct {
	Signals []model.PublicSignal `json:"signals"`
	Count   int                  `json:"count"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// parsePublicFilter validates the listing query parameters.
func parsePublicFilter(r *http.Request) (repository.PublicFilter, *model.APIError) {
	filter := repository.PublicFilter{Limit: defaultListLimit}
	q := r.URL.Query()

	filter.Category = q.Get("category")

	if raw := q.Get("min_severity"); raw != "" {
		sev, err := strconv.Atoi(raw)
		if err != nil || sev < 1 || sev > 5 {
			return filter, model.NewInvalidFilterError(
				fmt.Sprintf("min_severity must be an integer between 1 and 5, got %q", raw))
		}
		filter.MinSeverity = sev
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, model.NewInvalidFilterError(
				fmt.Sprintf("limit must be a positive integer, got %q", raw))
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	return filter, nil
}

// ListSignals serves the filtered public listing.
// GET /api/signals
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := parsePublicFilter(r)
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	if h.cache != nil {
		if cached := h.cache.Get(r.Context(), filter); cached != nil {
			writeJSON(w, http.StatusOK, signalListResponse{Signals: cached, Count: len(cached)})
			return
		}
	}

	signals, err := h.signals.ListPublic(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if signals == nil {
		signals = []model.PublicSignal{}
	}

	if h.cache != nil {
		h.cache.Set(r.Context(), filter, signals)
	}

	writeJSON(w, http.StatusOK, signalListResponse{Signals: signals, Count: len(signals)})
}

// GetSignal serves one public signal.
// GET /api/signals/{id}
func (h *SignalHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	signal, err := h.signals.FindPublicByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if signal == nil {
		handleServiceError(w, model.NewSignalNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, signal)
}
