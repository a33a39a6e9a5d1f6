// Package model defines the domain model.
package model

import "time"

// EnrichmentStatus tracks a signal through the enrichment state machine.
// Transitions only move forward: pending → enriched → ready, with failed
// reachable from pending or enriched. Ready and failed are terminal.
type EnrichmentStatus string

const (
	// EnrichmentPending means the signal has not been enriched yet.
	EnrichmentPending EnrichmentStatus = "pending"
	// EnrichmentEnriched means reader-facing text has been generated.
	EnrichmentEnriched EnrichmentStatus = "enriched"
	// EnrichmentReady means text and image processing are both settled.
	EnrichmentReady EnrichmentStatus = "ready"
	// EnrichmentFailed means the last enrichment attempt failed and a
	// degraded placeholder was recorded.
	EnrichmentFailed EnrichmentStatus = "failed"
)

// enrichmentTransitions lists the permitted forward moves. Ready and
// failed are terminal.
var enrichmentTransitions = map[EnrichmentStatus][]EnrichmentStatus{
	EnrichmentPending:  {EnrichmentEnriched, EnrichmentFailed},
	EnrichmentEnriched: {EnrichmentReady, EnrichmentFailed},
}

// CanTransition reports whether moving from one enrichment status to
// another is a permitted forward transition.
func CanTransition(from, to EnrichmentStatus) bool {
	for _, next := range enrichmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ImageStatus tracks the image lookup independently of text enrichment.
type ImageStatus string

const (
	// ImagePending means no image lookup has completed yet.
	ImagePending ImageStatus = "pending"
	// ImageReady means an image URL with attribution was recorded.
	ImageReady ImageStatus = "ready"
	// ImageFailed means the lookup failed; the signal stays usable.
	ImageFailed ImageStatus = "failed"
)

// LocalizedContent is the per-language slice of a signal's content map.
type LocalizedContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Link  string `json:"link"`
}

// EnrichedFields holds the output of the content-enrichment and
// image-lookup collaborators.
type EnrichedFields struct {
	Title        string   `json:"title,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Body         string   `json:"body,omitempty"`
	ImagePrompt  string   `json:"image_prompt,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	ImageLicense string   `json:"image_license,omitempty"`
	ImageCredit  string   `json:"image_credit,omitempty"`
	Citations    []string `json:"citations,omitempty"`
	CostUSD      float64  `json:"cost_usd,omitempty"`
	// Degraded marks placeholder content written after a failed
	// enrichment attempt so the signal stays consumable.
	Degraded bool `json:"degraded,omitempty"`
}

// Signal is the canonical, deduplicated, multi-language record of one
// real-world event. Its ID is derived from the identity key, so repeated
// runs over the same upstream data converge on the same row.
type Signal struct {
	ID       string
	SourceID string
	Category string
	// PublishedAt is the earliest known publish time across languages.
	PublishedAt      time.Time
	Content          map[Language]LocalizedContent
	Severity         int
	RelevanceScore   float64
	EnrichmentStatus EnrichmentStatus
	ImageStatus      ImageStatus
	Enriched         *EnrichedFields
	// Version supports optimistic concurrency in the store. Writers that
	// lose a conditional update re-read, re-merge and retry once.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentFor returns the content for a language and whether it exists.
func (s *Signal) ContentFor(lang Language) (LocalizedContent, bool) {
	if s.Content == nil {
		return LocalizedContent{}, false
	}
	c, ok := s.Content[lang]
	return c, ok
}

// PublicSignal is one row of the flattened public read view.
type PublicSignal struct {
	ID          string     `json:"id"`
	SourceSlug  string     `json:"source_slug"`
	Department  string     `json:"department"`
	Category    string     `json:"category"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Severity    int        `json:"severity"`
	Relevance   float64    `json:"relevance"`
	ImageURL    string     `json:"image_url,omitempty"`
	Languages   []Language `json:"languages"`
	PublishedAt time.Time  `json:"published_at"`
}

// RunSummary is the structured result of one orchestrated pass, returned
// by the trigger endpoints and logged for alerting.
type RunSummary struct {
	Processed  int        `json:"processed"`
	Grouped    int        `json:"grouped"`
	Stored     int        `json:"stored"`
	Enriched   int        `json:"enriched"`
	Failed     int        `json:"failed"`
	CostUSD    float64    `json:"cost_usd"`
	Errors     []RunError `json:"errors"`
	DurationMs float64    `json:"duration_ms"`
}

// RunError is one captured per-feed or per-signal failure inside a run.
type RunError struct {
	SourceSlug string   `json:"source_slug,omitempty"`
	Language   Language `json:"language,omitempty"`
	SignalID   string   `json:"signal_id,omitempty"`
	Stage      string   `json:"stage"`
	Message    string   `json:"message"`
}
