package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion outcomes used as the outcome label.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmatched = "unmatched"
)

// Manager manages all Prometheus metrics for the arena service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	ingestedRecords *prometheus.CounterVec
	ingestFailures  *prometheus.CounterVec
	ingestDuration  *prometheus.HistogramVec
	webhookBatches  *prometheus.CounterVec

	// Leaderboard
	leaderboardRequests *prometheus.CounterVec
	leaderboardDuration prometheus.Histogram
	leaderboardEntries  prometheus.Histogram
	csvExports          prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec
	seededUsers  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "arena",
		subsystem:        "performance",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.ingestedRecords = auto.NewCounterVec(
		m.counterOpts("ingested_records_total", "Normalized records by source system and outcome"),
		[]string{"source", "outcome"},
	)
	m.ingestFailures = auto.NewCounterVec(
		m.counterOpts("ingest_failures_total", "Webhook batches rejected by source system and failure kind"),
		[]string{"source", "kind"},
	)
	m.ingestDuration = auto.NewHistogramVec(
		m.histogramOpts("ingest_duration_milliseconds", "Time to ingest one webhook batch in milliseconds", m.histogramBuckets),
		[]string{"source"},
	)
	m.webhookBatches = auto.NewCounterVec(
		m.counterOpts("webhook_batches_total", "Webhook batches received by source system"),
		[]string{"source"},
	)

	m.leaderboardRequests = auto.NewCounterVec(
		m.counterOpts("leaderboard_requests_total", "Leaderboard builds by effective metric"),
		[]string{"metric"},
	)
	m.leaderboardDuration = auto.NewHistogram(
		m.histogramOpts("leaderboard_duration_milliseconds", "Time to build a leaderboard in milliseconds", m.histogramBuckets),
	)
	m.leaderboardEntries = auto.NewHistogram(
		m.histogramOpts("leaderboard_entries", "Ranked entries per leaderboard build",
			[]float64{0, 1, 3, 5, 10, 25, 50, 100, 250}),
	)
	m.csvExports = auto.NewCounter(
		m.counterOpts("csv_exports_total", "Leaderboard CSV exports served"),
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)
	m.seededUsers = auto.NewGauge(
		m.gaugeOpts("seeded_users", "Users loaded from configuration at startup"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"),
	)
}

// RecordIngestedRecord counts one record with the given outcome.
func RecordIngestedRecord(source, outcome string) {
	globalManager.ingestedRecords.WithLabelValues(source, outcome).Inc()
}

// RecordIngestFailure counts a rejected batch. kind is validation or storage.
func RecordIngestFailure(source, kind string) {
	globalManager.ingestFailures.WithLabelValues(source, kind).Inc()
}

// RecordIngestDuration records batch ingestion latency in milliseconds.
func RecordIngestDuration(source string, latencyMs float64) {
	globalManager.ingestDuration.WithLabelValues(source).Observe(latencyMs)
}

// RecordWebhookBatch counts one received webhook batch.
func RecordWebhookBatch(source string) {
	globalManager.webhookBatches.WithLabelValues(source).Inc()
}

// RecordLeaderboardRequest counts one leaderboard build for metric.
func RecordLeaderboardRequest(metric string) {
	globalManager.leaderboardRequests.WithLabelValues(metric).Inc()
}

// RecordLeaderboardDuration records leaderboard build latency in milliseconds.
func RecordLeaderboardDuration(latencyMs float64) {
	globalManager.leaderboardDuration.Observe(latencyMs)
}

// RecordLeaderboardEntries records how many users a leaderboard ranked.
func RecordLeaderboardEntries(n int) {
	globalManager.leaderboardEntries.Observe(float64(n))
}

// RecordCSVExport counts one CSV export.
func RecordCSVExport() {
	globalManager.csvExports.Inc()
}

// RecordStoreLatency records a store operation latency in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateSeededUsers sets the number of users seeded at startup.
func UpdateSeededUsers(n int) {
	globalManager.seededUsers.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
