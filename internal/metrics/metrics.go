// Package metrics exposes Prometheus instrumentation of the sync engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// Executor Metrics
	TransactionsTotal   *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec

	// Sync State Metrics
	ConflictsDetectedTotal *prometheus.CounterVec
	ResolutionsTotal       *prometheus.CounterVec

	// Queue Metrics
	QueueItems          *prometheus.GaugeVec
	QueueProcessedTotal *prometheus.CounterVec
	QueueSweptTotal     *prometheus.CounterVec

	// Orchestrator Metrics
	FullSyncRunsTotal   *prometheus.CounterVec
	FullSyncDuration    prometheus.Histogram
	EntitiesSyncedTotal *prometheus.CounterVec

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
	}

	r.initExecutorMetrics()
	r.initStateMetrics()
	r.initQueueMetrics()
	r.initOrchestratorMetrics()
	r.initHTTPMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler returns the /metrics HTTP handler
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) initExecutorMetrics() {
	r.TransactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmssync_transactions_total",
			Help: "Total number of sync transactions",
		},
		[]string{"entity_type", "source", "outcome"}, // committed, rolled_back, begin_failed
	)

	r.TransactionDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lmssync_transaction_duration_seconds",
			Help:    "Duration of sync transaction bodies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity_type"},
	)
}

func (r *Registry) initStateMetrics() {
	r.ConflictsDetectedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmssync_conflicts_detected_total",
			Help: "Total number of causal conflicts detected",
		},
		[]string{"entity_type"},
	)

	r.ResolutionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmssync_conflict_resolutions_total",
			Help: "Total number of conflict resolutions by strategy",
		},
		[]string{"strategy"},
	)
}

func (r *Registry) initQueueMetrics() {
	r.QueueItems = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lmssync_queue_items",
			Help: "Number of retry queue items by status",
		},
		[]string{"status"},
	)

	r.QueueProcessedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmssync_queue_processed_total",
			Help: "Total number of processed retry queue items by result",
		},
		[]string{"result"}, // completed, retried, failed
	)

	r.QueueSweptTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmssync_queue_swept_total",
			Help: "Total number of stale or expired queue items handled by maintenance",
		},
		[]string{"action"}, // requeued, failed, deleted
	)
}

func (r *Registry) initOrchestratorMetrics() {
	r.FullSyncRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmssync_full_sync_runs_total",
			Help: "Total number of full sync runs by result",
		},
		[]string{"result"}, // success, partial, skipped_offline, rejected
	)

	r.FullSyncDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lmssync_full_sync_duration_seconds",
			Help:    "Duration of full sync runs in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	r.EntitiesSyncedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmssync_entities_synced_total",
			Help: "Total number of entities processed by full sync",
		},
		[]string{"entity_type", "result"}, // succeeded, failed, skipped
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmssync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lmssync_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}
