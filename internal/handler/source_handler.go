package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kaylam/govsignals/internal/model"
)

// SourceLister reads the feed source catalog for the operator view.
type SourceLister interface {
	ListAll(ctx context.Context) ([]*model.FeedSource, error)
}

// SourceHandler serves the operator view of the feed catalog. The route
// sits behind the scheduler token middleware.
type SourceHandler struct {
	sources SourceLister
	now     func() time.Time
}

// NewSourceHandler builds a SourceHandler.
func NewSourceHandler(sources SourceLister) *SourceHandler {
	return &SourceHandler{
		sources: sources,
		now:     time.Now,
	}
}

// sourceCursor reports one language's fetch freshness.
type sourceCursor struct {
	Language      model.Language `json:"language"`
	LastFetchedAt *time.Time     `json:"last_fetched_at"`
	AgeSeconds    *float64       `json:"age_seconds"`
}

// sourceResponse is the operator view of one feed source.
type sourceResponse struct {
	Slug       string         `json:"slug"`
	Department string         `json:"department"`
	Category   string         `json:"category"`
	Active     bool           `json:"active"`
	Cursors    []sourceCursor `json:"cursors"`
}

// ListSources serves the catalog with per-language cursor ages, so an
// operator can spot a feed that has silently stopped updating.
// GET /internal/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := h.now()
	resp := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		sr := sourceResponse{
			Slug:       src.Slug,
			Department: src.Department,
			Category:   src.Category,
			Active:     src.Active,
			Cursors:    []sourceCursor{},
		}
		for _, lang := range model.Languages {
			if src.URLFor(lang) == "" {
				continue
			}
			cursor := sourceCursor{Language: lang}
			if fetchedAt, ok := src.CursorFor(lang); ok {
				t := fetchedAt
				age := now.Sub(fetchedAt).Seconds()
				cursor.LastFetchedAt = &t
				cursor.AgeSeconds = &age
			}
			sr.Cursors = append(sr.Cursors, cursor)
		}
		resp = append(resp, sr)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sources": resp,
		"count":   len(resp),
	})
}
