package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kaylam/govsignals/internal/metrics"
	"github.com/kaylam/govsignals/internal/middleware"
	"github.com/kaylam/govsignals/internal/model"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) PingContext(_ context.Context) error {
	return f.err
}

func newTestRouter(t *testing.T, db Pinger) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)

	sig := sampleSignal("sig-1")

	return NewRouter(&RouterDeps{
		Signals: &fakeSignalReader{
			listed: []model.PublicSignal{sig},
			byID:   map[string]*model.PublicSignal{"sig-1": &sig},
		},
		Sources:        &fakeSourceLister{},
		Aggregate:      &fakeRunner{summary: model.RunSummary{Errors: []model.RunError{}}},
		Enrich:         &fakeRunner{summary: model.RunSummary{Errors: []model.RunError{}}},
		DB:             db,
		SchedulerToken: "s3cret",
		MetricsHandler: metrics.Handler(reg),
		Logger:         discardLogger(),
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter(t, &fakePinger{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/signals", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GET /api/signals status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("security headers missing on public route, X-Content-Type-Options = %q", got)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/signals/sig-1", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GET /api/signals/{id} status = %d, want 200", rr.Code)
	}
}

func TestRouter_InternalRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, &fakePinger{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/internal/sources"},
		{http.MethodPost, "/internal/runs/aggregate"},
		{http.MethodPost, "/internal/runs/enrich"},
	}

	for _, p := range paths {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(p.method, p.path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", p.method, p.path, rr.Code)
		}

		req := httptest.NewRequest(p.method, p.path, nil)
		req.Header.Set(middleware.SchedulerTokenHeader, "s3cret")
		rr = httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s %s with token: status = %d, want 200: %s", p.method, p.path, rr.Code, rr.Body.String())
		}
	}
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, &fakePinger{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("healthy DB: status = %d, want 200", rr.Code)
	}

	r = newTestRouter(t, &fakePinger{err: errors.New("connection refused")})
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unreachable DB: status = %d, want 503", rr.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t, &fakePinger{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "govsignals_") {
		t.Error("metrics output does not contain govsignals_ series")
	}
}
