// Package metrics provides Prometheus metrics for the trends service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Dataset
	reloads           *prometheus.CounterVec
	reloadDuration    prometheus.Histogram
	recordsLoaded     prometheus.Gauge
	droppedRecords    *prometheus.CounterVec
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// Selections
	selections         *prometheus.CounterVec
	aggregationLatency *prometheus.HistogramVec

	// Sessions
	activeSessions   prometheus.Gauge
	sessionEvictions *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "secondvote",
		subsystem:        "trends",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
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
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.reloads = auto.NewCounterVec(
		m.counterOpts("reloads_total", "Dataset reloads by outcome"),
		[]string{"outcome"},
	)
	m.reloadDuration = auto.NewHistogram(
		m.histogramOpts("reload_duration_milliseconds", "Time to fetch and normalize the dataset in milliseconds"),
	)
	m.recordsLoaded = auto.NewGauge(
		m.gaugeOpts("records_loaded", "Score records kept by the most recent load"),
	)
	m.droppedRecords = auto.NewCounterVec(
		m.counterOpts("records_dropped_total", "Score events dropped during normalization by reason"),
		[]string{"reason"},
	)
	m.storeQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("store_query_latency_milliseconds", "Store query latency in milliseconds by table"),
		[]string{"table"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Store failures by table and kind"),
		[]string{"table", "kind"},
	)

	m.selections = auto.NewCounterVec(
		m.counterOpts("selections_total", "Selection events by view and outcome"),
		[]string{"view", "outcome"},
	)
	m.aggregationLatency = auto.NewHistogramVec(
		m.histogramOpts("aggregation_latency_milliseconds", "Aggregation latency in milliseconds by view"),
		[]string{"view"},
	)

	m.activeSessions = auto.NewGauge(
		m.gaugeOpts("active_sessions", "Sessions currently held in memory"),
	)
	m.sessionEvictions = auto.NewCounterVec(
		m.counterOpts("session_evictions_total", "Sessions evicted by reason"),
		[]string{"reason"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status code"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"),
	)
}

// RecordReload counts a reload outcome (ok, unavailable, schema_mismatch,
// superseded, error) and observes its duration.
func (m *Manager) RecordReload(outcome string, durationMs float64) {
	m.reloads.WithLabelValues(outcome).Inc()
	m.reloadDuration.Observe(durationMs)
}

// UpdateRecordsLoaded sets the kept record count of the latest load.
func (m *Manager) UpdateRecordsLoaded(n int) { m.recordsLoaded.Set(float64(n)) }

// RecordDroppedRecords adds n dropped events under reason. Zero is a no-op.
func (m *Manager) RecordDroppedRecords(reason string, n int) {
	if n <= 0 {
		return
	}
	m.droppedRecords.WithLabelValues(reason).Add(float64(n))
}

// RecordStoreQueryLatency observes one store query.
func (m *Manager) RecordStoreQueryLatency(table string, latencyMs float64) {
	m.storeQueryLatency.WithLabelValues(table).Observe(latencyMs)
}

// RecordStoreError counts one store failure.
func (m *Manager) RecordStoreError(table, kind string) {
	m.storeErrors.WithLabelValues(table, kind).Inc()
}

// RecordSelection counts a selection event.
func (m *Manager) RecordSelection(view, outcome string) {
	m.selections.WithLabelValues(view, outcome).Inc()
}

// RecordAggregationLatency observes one aggregation.
func (m *Manager) RecordAggregationLatency(view string, latencyMs float64) {
	m.aggregationLatency.WithLabelValues(view).Observe(latencyMs)
}

// UpdateActiveSessions sets the live session count.
func (m *Manager) UpdateActiveSessions(n int) { m.activeSessions.Set(float64(n)) }

// RecordSessionEviction counts an evicted session (idle or capacity).
func (m *Manager) RecordSessionEviction(reason string) {
	m.sessionEvictions.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method string, status int) {
	m.httpRequests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method string, status int, durationMs float64) {
	m.httpRequestDuration.WithLabelValues(endpoint, method, strconv.Itoa(status)).Observe(durationMs)
}

// RecordErrorByType records an error with type and severity labels.
func (m *Manager) RecordErrorByType(errorType, severity string) {
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap in use in bytes.
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) {
	m.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func (m *Manager) UpdateSystemGoroutineCount(count int) {
	m.systemGoroutineCount.Set(float64(count))
}

// Package-level helpers record on the global manager.

func UpdateRecordsLoaded(n int)                        { globalManager.UpdateRecordsLoaded(n) }
func RecordDroppedRecords(reason string, n int)        { globalManager.RecordDroppedRecords(reason, n) }
func RecordStoreQueryLatency(table string, ms float64) { globalManager.RecordStoreQueryLatency(table, ms) }
func RecordStoreError(table, kind string)              { globalManager.RecordStoreError(table, kind) }
func RecordSelection(view, outcome string)             { globalManager.RecordSelection(view, outcome) }
func RecordAggregationLatency(view string, ms float64) { globalManager.RecordAggregationLatency(view, ms) }
func UpdateActiveSessions(n int)                       { globalManager.UpdateActiveSessions(n) }
func RecordSessionEviction(reason string)              { globalManager.RecordSessionEviction(reason) }
func RecordErrorByType(errorType, severity string)     { globalManager.RecordErrorByType(errorType, severity) }
func UpdateSystemMemoryUsage(bytes uint64)             { globalManager.UpdateSystemMemoryUsage(bytes) }
func UpdateSystemGoroutineCount(count int)             { globalManager.UpdateSystemGoroutineCount(count) }

func RecordReload(outcome string, durationMs float64) {
	globalManager.RecordReload(outcome, durationMs)
}

func RecordHTTPRequest(endpoint, method string, status int) {
	globalManager.RecordHTTPRequest(endpoint, method, status)
}

func RecordHTTPRequestDuration(endpoint, method string, status int, durationMs float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, status, durationMs)
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
