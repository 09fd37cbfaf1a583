package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds all ADScan application metrics.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Scan layer
	ScansTotal               CounterVec
	ScanDuration             HistogramVec
	ScanStepDuration         HistogramVec
	ScanOutlierFraction      HistogramVec
	ScanTrainingSetSize      HistogramVec
	ScanDegenerateStepsTotal CounterVec

	// Dataset layer
	DatasetsTotal      GaugeVec
	DatasetIngestTotal CounterVec
	DatasetMatrixBytes HistogramVec

	// Job queue layer
	JobsSubmittedTotal CounterVec
	JobsFinishedTotal  CounterVec
	JobProcessDuration HistogramVec

	// Infrastructure layer
	DBQueryDuration   HistogramVec
	CacheHitsTotal    CounterVec
	CacheMissesTotal  CounterVec
	StorageOpDuration HistogramVec

	// System health
	ErrorsTotal       CounterVec
	HealthCheckStatus GaugeVec
}

// Default buckets
var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultScanDurationBuckets = []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600}
	DefaultSizeBuckets         = []float64{1000, 10000, 100000, 1e6, 1e7, 1e8}
	DefaultCountBuckets        = []float64{10, 50, 100, 500, 1000, 5000, 10000}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all ADScan metrics and returns the populated struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	// Scan
	m.ScansTotal = collector.RegisterCounter("scans_total", "Domain scans executed", "mode", "status")
	m.ScanDuration = collector.RegisterHistogram("scan_duration_seconds", "Full domain scan duration", DefaultScanDurationBuckets, "mode")
	m.ScanStepDuration = collector.RegisterHistogram("scan_step_duration_seconds", "Single scan step duration", DefaultHTTPDurationBuckets, "phase")
	m.ScanOutlierFraction = collector.RegisterHistogram("scan_outlier_fraction", "Final-step fraction of query instances outside the domain", []float64{0, .05, .1, .2, .3, .5, .7, .9, 1}, "mode")
	m.ScanTrainingSetSize = collector.RegisterHistogram("scan_training_set_size", "Training instances per scan", DefaultCountBuckets, "mode")
	m.ScanDegenerateStepsTotal = collector.RegisterCounter("scan_degenerate_steps_total", "Scans aborted by a degenerate step", "reason")

	// Dataset
	m.DatasetsTotal = collector.RegisterGauge("datasets_total", "Registered datasets", "status")
	m.DatasetIngestTotal = collector.RegisterCounter("dataset_ingest_total", "Dataset registrations", "status")
	m.DatasetMatrixBytes = collector.RegisterHistogram("dataset_matrix_bytes", "Stored feature-matrix size", DefaultSizeBuckets, "kind")

	// Jobs
	m.JobsSubmittedTotal = collector.RegisterCounter("scan_jobs_submitted_total", "Scan jobs submitted to the queue")
	m.JobsFinishedTotal = collector.RegisterCounter("scan_jobs_finished_total", "Scan jobs finished by workers", "status")
	m.JobProcessDuration = collector.RegisterHistogram("scan_job_process_duration_seconds", "Worker job processing duration", DefaultScanDurationBuckets)

	// Infrastructure
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.StorageOpDuration = collector.RegisterHistogram("storage_op_duration_seconds", "Object storage operation duration", DefaultDBDurationBuckets, "operation")

	// System health
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")

	return m
}

// RecordHTTPRequest records the standard per-request metrics.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordScan records a completed (or failed) scan execution.
func RecordScan(m *AppMetrics, mode string, trainingSize int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ScansTotal.WithLabelValues(mode, status).Inc()
	m.ScanDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.ScanTrainingSetSize.WithLabelValues(mode).Observe(float64(trainingSize))
}

// RecordCacheAccess records a cache hit or miss.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordDBQuery records a database query duration and failure.
func RecordDBQuery(m *AppMetrics, operation string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues("postgres", "query_error").Inc()
	}
}
