// Package metrics exposes pipeline, search and facet counters in the
// Prometheus exposition format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"archivist/internal/catalog"
)

const namespace = "archivist"

// Recorder implements pipeline.Observer, search.Observer and
// facets.Observer on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	items         *prometheus.CounterVec
	itemDuration  *prometheus.HistogramVec
	batches       *prometheus.CounterVec
	searches      *prometheus.CounterVec
	searchLatency *prometheus.HistogramVec
	facetLookups  *prometheus.CounterVec
	stageItems    *prometheus.GaugeVec
	catalogItems  prometheus.Gauge
	indexedItems  prometheus.Gauge
}

// NewRecorder registers all collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_items_total",
			Help:      "Items processed per stage and outcome.",
		}, []string{"stage", "outcome"}),
		itemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_item_duration_seconds",
			Help:      "Time spent processing one item.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_batches_total",
			Help:      "Completed stage batches.",
		}, []string{"stage"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests per mode and result.",
		}, []string{"mode", "result"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency per mode.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"mode"}),
		facetLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facet_lookups_total",
			Help:      "Facet lookups by cache result.",
		}, []string{"cache"}),
		stageItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_stage_items",
			Help:      "Catalog items per stage and status.",
		}, []string{"stage", "status"}),
		catalogItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_items",
			Help:      "Items in the catalog.",
		}),
		indexedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_indexed_items",
			Help:      "Items with extracted text in the search index.",
		}),
	}
	r.registry.MustRegister(
		r.items, r.itemDuration, r.batches,
		r.searches, r.searchLatency, r.facetLookups,
		r.stageItems, r.catalogItems, r.indexedItems,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ItemProcessed implements pipeline.Observer.
func (r *Recorder) ItemProcessed(stage, outcome string, elapsed time.Duration) {
	r.items.WithLabelValues(stage, outcome).Inc()
	r.itemDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// BatchFinished implements pipeline.Observer.
func (r *Recorder) BatchFinished(stage string, _, _, _, _ int) {
	r.batches.WithLabelValues(stage).Inc()
}

// SearchServed implements search.Observer.
func (r *Recorder) SearchServed(mode string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.searches.WithLabelValues(mode, result).Inc()
	r.searchLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// FacetLookup implements facets.Observer.
func (r *Recorder) FacetLookup(hit bool) {
	cache := "miss"
	if hit {
		cache = "hit"
	}
	r.facetLookups.WithLabelValues(cache).Inc()
}

// ObserveStats publishes a catalog snapshot as gauges.
func (r *Recorder) ObserveStats(stats catalog.Stats) {
	r.catalogItems.Set(float64(stats.Total))
	r.indexedItems.Set(float64(stats.Indexed))
	for _, sc := range stats.Stages {
		stage := string(sc.Stage)
		r.stageItems.WithLabelValues(stage, string(catalog.StatusNotStarted)).Set(float64(sc.NotStarted))
		r.stageItems.WithLabelValues(stage, string(catalog.StatusInProgress)).Set(float64(sc.InProgress))
		r.stageItems.WithLabelValues(stage, string(catalog.StatusDone)).Set(float64(sc.Done))
		r.stageItems.WithLabelValues(stage, string(catalog.StatusFailed)).Set(float64(sc.Failed))
	}
}
