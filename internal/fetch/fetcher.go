package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kaylam/govsignals/internal/model"
	"github.com/kaylam/govsignals/internal/security"
)

// userAgent identifies the aggregator to upstream feed servers.
const userAgent = "govsignals/1.0 feed aggregator"

// Fetcher retrieves one feed URL and parses it into raw items. It holds
// no state between calls and performs no persistence; the orchestrator
// owns cursor updates so a failed parse never advances a cursor.
type Fetcher struct {
	guard       security.SSRFGuardService
	sanitizer   security.ContentSanitizerService
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher builds a Fetcher. timeout bounds each fetch so one hung
// source cannot stall a whole run.
func NewFetcher(
	guard security.SSRFGuardService,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		guard:       guard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch retrieves and parses the source's feed for one language.
// Failures (unreachable, non-200, unparseable) return an empty item list
// and an error; the caller records the error and moves on. There are no
// in-run retries; the next scheduled run retries naturally.
func (f *Fetcher) Fetch(ctx context.Context, source *model.FeedSource, lang model.Language) ([]model.RawItem, error) {
	feedURL := source.URLFor(lang)
	if feedURL == "" {
		return nil, fmt.Errorf("source %s has no %s URL", source.Slug, lang)
	}

	if err := f.guard.ValidateURL(feedURL); err != nil {
		return nil, fmt.Errorf("URL rejected for source %s (%s): %w", source.Slug, lang, err)
	}

	start := time.Now()

	client := f.guard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s (%s): %w", source.Slug, lang, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s (%s): %w", source.Slug, lang, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch for %s (%s) returned HTTP %d", source.Slug, lang, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response for %s (%s): %w", source.Slug, lang, err)
	}

	entries, err := parseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed for %s (%s): %w", source.Slug, lang, err)
	}

	items := stamp(entries, source, lang, f.sanitizer.Sanitize)

	f.logger.Info("feed fetched",
		slog.String("source_slug", source.Slug),
		slog.String("language", string(lang)),
		slog.Int("items", len(items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return items, nil
}
