package enrich

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kaylam/govsignals/internal/model"
	"github.com/kaylam/govsignals/internal/repository"
)

// fakeQueueRepo records status transitions for a fixed pending queue.
type fakeQueueRepo struct {
	pending     []*model.Signal
	transitions []string
	fields      map[string]*model.EnrichedFields
	imageStatus map[string]model.ImageStatus
	listErr     error
}

func newFakeQueueRepo(pending ...*model.Signal) *fakeQueueRepo {
	return &fakeQueueRepo{
		pending:     pending,
		fields:      map[string]*model.EnrichedFields{},
		imageStatus: map[string]model.ImageStatus{},
	}
}

func (r *fakeQueueRepo) FindByID(context.Context, string) (*model.Signal, error) { return nil, nil }
func (r *fakeQueueRepo) Create(context.Context, *model.Signal) error             { return nil }
func (r *fakeQueueRepo) UpdateContent(context.Context, *model.Signal) (bool, error) {
	return false, nil
}

func (r *fakeQueueRepo) ListPendingEnrichment(_ context.Context, limit int) ([]*model.Signal, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	if limit < len(r.pending) {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeQueueRepo) TransitionEnrichment(_ context.Context, id string, to model.EnrichmentStatus, fields *model.EnrichedFields) (bool, error) {
	r.transitions = append(r.transitions, fmt.Sprintf("%s:%s", id, to))
	if fields != nil {
		r.fields[id] = fields
	}
	return true, nil
}

func (r *fakeQueueRepo) UpdateImageStatus(_ context.Context, id string, status model.ImageStatus, fields *model.EnrichedFields) error {
	r.imageStatus[id] = status
	if fields != nil {
		r.fields[id] = fields
	}
	return nil
}

func (r *fakeQueueRepo) RefreshPublicView(context.Context) error { return nil }
func (r *fakeQueueRepo) ListPublic(context.Context, repository.PublicFilter) ([]model.PublicSignal, error) {
	return nil, nil
}
func (r *fakeQueueRepo) FindPublicByID(context.Context, string) (*model.PublicSignal, error) {
	return nil, nil
}

type stubEnricher struct {
	response *Response
	err      error
	errFor   map[string]error
	requests []Request
}

func (s *stubEnricher) Enrich(_ context.Context, request Request) (*Response, error) {
	s.requests = append(s.requests, request)
	if err, ok := s.errFor[request.Title]; ok {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

type stubImageLooker struct {
	result *ImageResult
	err    error
}

func (s *stubImageLooker) Lookup(context.Context, string, string) (*ImageResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func pendingSignal(id, title string) *model.Signal {
	return &model.Signal{
		ID:       id,
		Category: "weather",
		Content: map[model.Language]model.LocalizedContent{
			model.LangEN: {Title: title, Body: "<p>Stay indoors.</p>", Link: "https://example.gov.hk/x"},
		},
		EnrichmentStatus: model.EnrichmentPending,
		ImageStatus:      model.ImagePending,
		PublishedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestWorker_RunOnce_Success(t *testing.T) {
	repo := newFakeQueueRepo(pendingSignal("sig-1", "Typhoon Signal No. 8 Issued"))
	enricher := &stubEnricher{response: &Response{
		Title:       "Typhoon Signal No. 8 in Force",
		Summary:     "The Observatory issued T8.",
		Body:        "Details.",
		ImagePrompt: "typhoon harbour",
		CostUSD:     0.003,
	}}
	images := &stubImageLooker{result: &ImageResult{
		URL: "https://images.example.com/t8.jpg", License: "CC BY 4.0", Attribution: "Someone",
	}}

	worker := NewWorker(repo, enricher, images, discardLogger(), WorkerConfig{BatchSize: 10})
	summary, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if summary.Processed != 1 || summary.Enriched != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.CostUSD != 0.003 {
		t.Errorf("CostUSD = %v, want 0.003", summary.CostUSD)
	}

	wantTransitions := []string{"sig-1:enriched", "sig-1:ready"}
	if len(repo.transitions) != 2 || repo.transitions[0] != wantTransitions[0] || repo.transitions[1] != wantTransitions[1] {
		t.Errorf("transitions = %v, want %v", repo.transitions, wantTransitions)
	}
	if repo.imageStatus["sig-1"] != model.ImageReady {
		t.Errorf("image status = %q, want ready", repo.imageStatus["sig-1"])
	}
	if repo.fields["sig-1"].ImageLicense != "CC BY 4.0" {
		t.Errorf("ImageLicense = %q", repo.fields["sig-1"].ImageLicense)
	}

	// The body sent for enrichment is plain text, not HTML.
	if strings.Contains(enricher.requests[0].Body, "<p>") {
		t.Errorf("request body carries HTML: %q", enricher.requests[0].Body)
	}
}

func TestWorker_RunOnce_FailureIsolated(t *testing.T) {
	repo := newFakeQueueRepo(
		pendingSignal("sig-1", "Broken One"),
		pendingSignal("sig-2", "Fine One"),
	)
	enricher := &stubEnricher{
		response: &Response{Title: "ok", Summary: "s", Body: "b"},
		errFor:   map[string]error{"Broken One": fmt.Errorf("status 401: %w", ErrAuth)},
	}
	images := &stubImageLooker{err: fmt.Errorf("no image")}

	worker := NewWorker(repo, enricher, images, discardLogger(), WorkerConfig{BatchSize: 10})
	summary, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if summary.Processed != 2 || summary.Enriched != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("Errors = %v", summary.Errors)
	}
	if summary.Errors[0].SignalID != "sig-1" || summary.Errors[0].Stage != "enrich" {
		t.Errorf("error entry = %+v", summary.Errors[0])
	}
	if !strings.Contains(summary.Errors[0].Message, "auth") {
		t.Errorf("auth failure not named in %q", summary.Errors[0].Message)
	}

	// The failed signal carries a degraded placeholder.
	placeholder := repo.fields["sig-1"]
	if placeholder == nil || !placeholder.Degraded {
		t.Fatalf("placeholder = %+v, want degraded fields", placeholder)
	}
	if placeholder.Summary == "" {
		t.Error("placeholder summary is empty")
	}

	// The second signal still completed, with a failed image.
	if repo.imageStatus["sig-2"] != model.ImageFailed {
		t.Errorf("sig-2 image status = %q, want failed", repo.imageStatus["sig-2"])
	}
	foundReady := false
	for _, tr := range repo.transitions {
		if tr == "sig-2:ready" {
			foundReady = true
		}
	}
	if !foundReady {
		t.Errorf("sig-2 never reached ready; transitions = %v", repo.transitions)
	}
}

func TestWorker_RunOnce_RespectsBatchSize(t *testing.T) {
	repo := newFakeQueueRepo(
		pendingSignal("sig-1", "One"),
		pendingSignal("sig-2", "Two"),
		pendingSignal("sig-3", "Three"),
	)
	enricher := &stubEnricher{response: &Response{Title: "ok", Summary: "s", Body: "b"}}
	images := &stubImageLooker{result: &ImageResult{URL: "u", License: "l"}}

	worker := NewWorker(repo, enricher, images, discardLogger(), WorkerConfig{BatchSize: 2})
	summary, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("Processed = %d, want 2", summary.Processed)
	}
}

func TestWorker_RunOnce_EmptyQueue(t *testing.T) {
	repo := newFakeQueueRepo()
	worker := NewWorker(repo, &stubEnricher{}, &stubImageLooker{}, discardLogger(), WorkerConfig{BatchSize: 10})

	summary, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if summary.Processed != 0 || len(summary.Errors) != 0 {
		t.Errorf("summary = %+v", summary)
	}
}
