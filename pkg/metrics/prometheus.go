// Package metrics provides Prometheus metrics for the drivermatch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage labels used with RecordStageLatency.
const (
	StageNormalize = "normalize"
	StageBuild     = "build_matrix"
	StageSolve     = "solve"
	StageAssemble  = "assemble"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Matching runs
	runsSubmitted prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runErrors     *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec

	// Last successful run
	lastAssigned    prometheus.Gauge
	lastUnassigned  prometheus.Gauge
	lastTotalWeight prometheus.Gauge
	lastMeanGap     prometheus.Gauge
	lastMatrixCells prometheus.Gauge

	// Queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueRejected prometheus.Counter
	workerCount   prometheus.Gauge
	workerBusy    prometheus.Gauge

	// Adapters
	storeLatency   *prometheus.HistogramVec
	publishResults *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level recorders

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry, no Go runtime collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "drivermatch",
		subsystem:        "matcher",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      map[string]string{},
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

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.runsSubmitted = auto.NewCounter(m.counterOpts("runs_submitted_total", "Matching runs accepted for processing"))
	m.runsCompleted = auto.NewCounterVec(m.counterOpts("runs_completed_total", "Matching runs finished, by final status"), []string{"status"})
	m.runErrors = auto.NewCounterVec(m.counterOpts("run_errors_total", "Failed matching runs by error kind"), []string{"reason"})
	m.stageLatency = auto.NewHistogramVec(m.histogramOpts("stage_latency_milliseconds", "Pipeline stage latency in milliseconds"), []string{"stage"})

	m.lastAssigned = auto.NewGauge(m.gaugeOpts("last_run_assigned", "Routes assigned in the last successful run"))
	m.lastUnassigned = auto.NewGauge(m.gaugeOpts("last_run_unassigned_drivers", "Drivers left without a route in the last successful run"))
	m.lastTotalWeight = auto.NewGauge(m.gaugeOpts("last_run_total_weight", "Objective value of the last successful run"))
	m.lastMeanGap = auto.NewGauge(m.gaugeOpts("last_run_mean_score_difference", "Mean driver-minus-route score of the last successful run"))
	m.lastMatrixCells = auto.NewGauge(m.gaugeOpts("last_run_matrix_cells", "Compatibility matrix size (drivers x routes) of the last run"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Matching jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum number of queued matching jobs"))
	m.queueRejected = auto.NewCounter(m.counterOpts("queue_rejected_total", "Jobs rejected because the queue was full or closed"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Solver workers in the pool"))
	m.workerBusy = auto.NewGauge(m.gaugeOpts("worker_busy", "Solver workers currently running a job"))

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds", "Run store operation latency in milliseconds"), []string{"op"})
	m.publishResults = auto.NewCounterVec(m.counterOpts("publish_total", "Result publications by outcome"), []string{"status"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status code"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total", "Errors by component and kind"), []string{"component", "kind"})
}

// RecordRunSubmitted increments the submitted runs counter.
func RecordRunSubmitted() {
	globalManager.runsSubmitted.Inc()
}

// RecordRunCompleted counts a finished run by status (succeeded, failed).
func RecordRunCompleted(status string) {
	globalManager.runsCompleted.WithLabelValues(status).Inc()
}

// RecordRunError counts a failed run by error kind.
func RecordRunError(reason string) {
	globalManager.runErrors.WithLabelValues(reason).Inc()
}

// RecordStageLatency observes the duration of one pipeline stage.
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// UpdateLastRun publishes the headline numbers of a successful run.
func UpdateLastRun(assigned, unassigned, matrixCells int, totalWeight, meanGap float64) {
	globalManager.lastAssigned.Set(float64(assigned))
	globalManager.lastUnassigned.Set(float64(unassigned))
	globalManager.lastMatrixCells.Set(float64(matrixCells))
	globalManager.lastTotalWeight.Set(totalWeight)
	globalManager.lastMeanGap.Set(meanGap)
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a job that could not be enqueued.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerCount sets the pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordStoreLatency observes a run store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordPublish counts a result publication by status (ok, error, skipped).
func RecordPublish(status string) {
	globalManager.publishResults.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and kind labels.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// GetRegistry returns the private registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
