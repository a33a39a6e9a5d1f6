package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// ImageResult is one image lookup answer with attribution metadata.
// Images without a license record are not served.
type ImageResult struct {
	URL         string `json:"url"`
	License     string `json:"license"`
	Attribution string `json:"attribution"`
	Source      string `json:"source"`
}

// ImageClient calls the external image-lookup service.
type ImageClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
}

// NewImageClient builds an ImageClient.
func NewImageClient(httpClient *http.Client, endpoint, apiKey string, logger *slog.Logger) *ImageClient {
	return &ImageClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// Lookup searches for an illustrative image for the query.
func (c *ImageClient) Lookup(ctx context.Context, query, category string) (*ImageResult, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse image endpoint: %w", err)
	}
	q := reqURL.Query()
	q.Set("query", query)
	q.Set("category", category)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("image lookup failed", "error", err)
		return nil, fmt.Errorf("image lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("image service returned error status",
			"http_status", resp.StatusCode)
		return nil, fmt.Errorf("image service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image response: %w", err)
	}

	var result ImageResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse image response: %w", err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("image response carried no URL")
	}
	if result.License == "" {
		return nil, fmt.Errorf("image response carried no license")
	}

	return &result, nil
}
