// Package enrich drives signals through the enrichment state machine by
// calling the external content-enrichment and image-lookup services.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Sentinel errors for the collaborator failure taxonomy. Operators need
// to tell a misconfigured key from a temporarily overloaded service.
var (
	// ErrAuth means the API key was rejected.
	ErrAuth = errors.New("enrichment service rejected credentials")
	// ErrRateLimited means the service is throttling calls.
	ErrRateLimited = errors.New("enrichment service rate limit exceeded")
	// ErrQuota means the metered quota is exhausted.
	ErrQuota = errors.New("enrichment service quota exhausted")
)

// Request is the per-signal payload sent to the enrichment service.
type Request struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
}

// Response is the enrichment service's answer.
type Response struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Body        string   `json:"body"`
	ImagePrompt string   `json:"imagePrompt"`
	Citations   []string `json:"citations"`
	CostUSD     float64  `json:"cost"`
}

// Client calls the content-enrichment service over JSON HTTP.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
}

// NewClient builds a Client. The http.Client carries the call timeout.
func NewClient(httpClient *http.Client, endpoint, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// Enrich sends one signal's merged content for enrichment.
func (c *Client) Enrich(ctx context.Context, request Request) (*Response, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode enrichment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build enrichment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("enrichment call failed", "error", err)
		return nil, fmt.Errorf("enrichment call failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		c.logger.Error("enrichment service returned error status",
			"http_status", resp.StatusCode)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read enrichment response: %w", err)
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse enrichment response: %w", err)
	}
	if result.Summary == "" && result.Body == "" {
		return nil, fmt.Errorf("enrichment response carried no content")
	}

	return &result, nil
}

// statusError maps an HTTP status to the failure taxonomy.
func statusError(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("status %d: %w", status, ErrAuth)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("status %d: %w", status, ErrRateLimited)
	case status == http.StatusPaymentRequired:
		return fmt.Errorf("status %d: %w", status, ErrQuota)
	default:
		return fmt.Errorf("enrichment service returned status %d", status)
	}
}
