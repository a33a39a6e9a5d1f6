package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/kaylam/govsignals/internal/model"
)

type fakeBatchWorker struct {
	summary model.RunSummary
	err     error
	calls   int
}

func (f *fakeBatchWorker) RunOnce(_ context.Context) (model.RunSummary, error) {
	f.calls++
	return f.summary, f.err
}

func TestEnrichRunner_Run(t *testing.T) {
	worker := &fakeBatchWorker{summary: model.RunSummary{
		Enriched: 3,
		Failed:   1,
		CostUSD:  0.12,
		Errors:   []model.RunError{},
	}}
	lease := &memLease{}
	runner := NewEnrichRunner(worker, lease, nopCollector{}, testLogger())

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if worker.calls != 1 {
		t.Fatalf("worker runs = %d, want 1", worker.calls)
	}
	if summary.Enriched != 3 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want enriched 3 failed 1", summary)
	}
	if lease.held {
		t.Error("lease still held after run")
	}
}

func TestEnrichRunner_OverlapRejected(t *testing.T) {
	lease := &memLease{held: true}
	runner := NewEnrichRunner(&fakeBatchWorker{}, lease, nopCollector{}, testLogger())

	_, err := runner.Run(context.Background())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRunInProgress {
		t.Fatalf("error = %v, want RUN_IN_PROGRESS", err)
	}
}

func TestEnrichRunner_ReleasesLeaseOnWorkerError(t *testing.T) {
	worker := &fakeBatchWorker{err: errors.New("queue read failed")}
	lease := &memLease{}
	runner := NewEnrichRunner(worker, lease, nopCollector{}, testLogger())

	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected worker error to propagate")
	}
	if lease.held {
		t.Error("lease still held after failed run")
	}
}
