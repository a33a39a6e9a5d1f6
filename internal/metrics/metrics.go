// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is the recording interface used by the pipeline and
// the enrichment worker.
type MetricsCollector interface {
	RecordFetchSuccess(sourceSlug string)
	RecordFetchFailure(sourceSlug string)
	RecordParseFailure(sourceSlug string)
	RecordItemsProcessed(count int)
	RecordSignalsUpserted(count int)
	RecordEnrichmentSuccess()
	RecordEnrichmentFailure()
	RecordEnrichmentCost(costUSD float64)
	RecordRunDuration(kind string, duration time.Duration)
}

// Collector is the Prometheus-backed implementation.
type Collector struct {
	fetchSuccess    prometheus.Counter
	fetchFail       prometheus.Counter
	parseFail       prometheus.Counter
	itemsProcessed  prometheus.Counter
	signalsUpserted prometheus.Counter
	enrichSuccess   prometheus.Counter
	enrichFail      prometheus.Counter
	enrichCost      prometheus.Counter
	runDuration     *prometheus.HistogramVec
}

// NewCollector builds a Collector and registers its metrics on the given
// registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "govsignals_fetch_success_total",
			Help: "Total successful feed fetches.",
		}),
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "govsignals_fetch_fail_total",
			Help: "Total failed feed fetches.",
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "govsignals_parse_fail_total",
			Help: "Total feed parse failures.",
		}),
		itemsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "govsignals_items_processed_total",
			Help: "Total raw feed items taken into aggregation runs.",
		}),
		signalsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "govsignals_signals_upserted_total",
			Help: "Total signals created or updated.",
		}),
		enrichSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "govsignals_enrich_success_total",
			Help: "Total successfully enriched signals.",
		}),
		enrichFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "govsignals_enrich_fail_total",
			Help: "Total failed enrichment attempts.",
		}),
		enrichCost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "govsignals_enrich_cost_usd_total",
			Help: "Accumulated enrichment spend in USD.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govsignals_run_duration_seconds",
			Help:    "Duration of aggregation and enrichment runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.parseFail,
		c.itemsProcessed,
		c.signalsUpserted,
		c.enrichSuccess,
		c.enrichFail,
		c.enrichCost,
		c.runDuration,
	)

	return c
}

// RecordFetchSuccess records one successful feed fetch.
func (c *Collector) RecordFetchSuccess(sourceSlug string) {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure records one failed feed fetch.
func (c *Collector) RecordFetchFailure(sourceSlug string) {
	c.fetchFail.Inc()
}

// RecordParseFailure records one feed parse failure.
func (c *Collector) RecordParseFailure(sourceSlug string) {
	c.parseFail.Inc()
}

// RecordItemsProcessed records raw items taken into a run.
func (c *Collector) RecordItemsProcessed(count int) {
	c.itemsProcessed.Add(float64(count))
}

// RecordSignalsUpserted records created or updated signals.
func (c *Collector) RecordSignalsUpserted(count int) {
	c.signalsUpserted.Add(float64(count))
}

// RecordEnrichmentSuccess records one enriched signal.
func (c *Collector) RecordEnrichmentSuccess() {
	c.enrichSuccess.Inc()
}

// RecordEnrichmentFailure records one failed enrichment attempt.
func (c *Collector) RecordEnrichmentFailure() {
	c.enrichFail.Inc()
}

// RecordEnrichmentCost accumulates enrichment spend.
func (c *Collector) RecordEnrichmentCost(costUSD float64) {
	if costUSD > 0 {
		c.enrichCost.Add(costUSD)
	}
}

// RecordRunDuration records how long one run took.
func (c *Collector) RecordRunDuration(kind string, duration time.Duration) {
	c.runDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
