package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kaylam/govsignals/internal/model"
	"github.com/kaylam/govsignals/internal/repository"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRunLease_Exclusive(t *testing.T) {
	client := testRedis(t)
	defer client.Close()
	ctx := context.Background()

	first := NewRunLease(client, "aggregate")
	second := NewRunLease(client, "aggregate")

	ok, err := first.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Fatal("first Acquire() = false, want true")
	}

	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if ok {
		t.Error("second Acquire() = true while lease held, want false")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	if !ok {
		t.Error("Acquire() after release = false, want true")
	}
}

func TestRunLease_DifferentKindsIndependent(t *testing.T) {
	client := testRedis(t)
	defer client.Close()
	ctx := context.Background()

	aggregate := NewRunLease(client, "aggregate")
	enrich := NewRunLease(client, "enrich")

	if ok, _ := aggregate.Acquire(ctx); !ok {
		t.Fatal("aggregate Acquire() = false")
	}
	ok, err := enrich.Acquire(ctx)
	if err != nil {
		t.Fatalf("enrich Acquire() error = %v", err)
	}
	if !ok {
		t.Error("enrich Acquire() = false while only aggregate held")
	}
}

func TestRunLease_ReleaseWithoutAcquire(t *testing.T) {
	client := testRedis(t)
	defer client.Close()

	lease := NewRunLease(client, "aggregate")
	if err := lease.Release(context.Background()); err != nil {
		t.Errorf("Release() without acquire error = %v", err)
	}
}

func TestRunLease_ReleaseDoesNotStealTakenOverLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	first := NewRunLease(client, "aggregate")
	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("Acquire() = false")
	}

	// The lease expires and another run takes it over.
	mr.FastForward(leaseTTL + time.Minute)
	second := NewRunLease(client, "aggregate")
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("takeover Acquire() = false")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale Release() error = %v", err)
	}

	// The second holder's lease must survive the stale release.
	third := NewRunLease(client, "aggregate")
	if ok, _ := third.Acquire(ctx); ok {
		t.Error("Acquire() = true, stale release deleted the takeover lease")
	}
}

func TestViewCache_RoundTrip(t *testing.T) {
	client := testRedis(t)
	defer client.Close()
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	viewCache := NewViewCache(client, 2*time.Minute, logger)

	filter := repository.PublicFilter{Category: "weather", MinSeverity: 3, Limit: 20}

	if got := viewCache.Get(ctx, filter); got != nil {
		t.Errorf("Get() on empty cache = %v, want nil", got)
	}

	signals := []model.PublicSignal{{
		ID:          "33333333-3333-3333-3333-333333333333",
		SourceSlug:  "hko-warnings",
		Category:    "weather",
		Title:       "Typhoon Signal No. 8 in Force",
		Severity:    5,
		Languages:   []model.Language{model.LangEN},
		PublishedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}}
	viewCache.Set(ctx, filter, signals)

	got := viewCache.Get(ctx, filter)
	if len(got) != 1 {
		t.Fatalf("Get() returned %d signals, want 1", len(got))
	}
	if got[0].Title != "Typhoon Signal No. 8 in Force" {
		t.Errorf("Title = %q", got[0].Title)
	}

	// A different filter is a different key.
	other := repository.PublicFilter{Category: "traffic", MinSeverity: 0, Limit: 20}
	if got := viewCache.Get(ctx, other); got != nil {
		t.Errorf("Get() with different filter = %v, want nil", got)
	}
}

func TestViewCache_Invalidate(t *testing.T) {
	client := testRedis(t)
	defer client.Close()
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	viewCache := NewViewCache(client, 2*time.Minute, logger)

	filterA := repository.PublicFilter{Category: "weather", Limit: 20}
	filterB := repository.PublicFilter{Category: "traffic", Limit: 20}
	viewCache.Set(ctx, filterA, []model.PublicSignal{{ID: "a"}})
	viewCache.Set(ctx, filterB, []model.PublicSignal{{ID: "b"}})

	viewCache.Invalidate(ctx)

	if got := viewCache.Get(ctx, filterA); got != nil {
		t.Errorf("Get() after invalidate = %v, want nil", got)
	}
	if got := viewCache.Get(ctx, filterB); got != nil {
		t.Errorf("Get() after invalidate = %v, want nil", got)
	}
}

func TestViewCache_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	viewCache := NewViewCache(client, 2*time.Minute, logger)

	filter := repository.PublicFilter{Limit: 50}
	viewCache.Set(ctx, filter, []model.PublicSignal{{ID: "a"}})

	mr.FastForward(3 * time.Minute)

	if got := viewCache.Get(ctx, filter); got != nil {
		t.Errorf("Get() after TTL = %v, want nil", got)
	}
}
