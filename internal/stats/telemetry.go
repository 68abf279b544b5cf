package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry is the process-level Prometheus surface: cumulative counters
// across all runs, as opposed to the per-run RunStats.
type Telemetry struct {
	registry *prometheus.Registry

	RunsTotal     *prometheus.CounterVec
	PagesTotal    *prometheus.CounterVec
	ListingsTotal *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
	ItemDuration  prometheus.Histogram
}

// NewTelemetry creates the process metrics on a private registry so tests
// can build as many instances as they like.
func NewTelemetry() *Telemetry {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Telemetry{
		registry: registry,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carcrawl_runs_total",
			Help: "Crawl runs by final status",
		}, []string{"status"}),
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carcrawl_pages_fetched_total",
			Help: "Pages fetched by source",
		}, []string{"source"}),
		ListingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carcrawl_listings_total",
			Help: "Listing outcomes (created, updated, duplicate, skipped)",
		}, []string{"outcome"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carcrawl_errors_total",
			Help: "Failures by kind (fetch, stage, validation, storage)",
		}, []string{"kind"}),
		ItemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "carcrawl_item_duration_seconds",
			Help:    "Wall time per processed item, fetch through persist",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
	}
}

// Handler serves the metrics endpoint for this registry.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
