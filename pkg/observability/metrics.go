package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageErrorsTotal       *prometheus.CounterVec

	// Comparison metrics
	ComparisonsTotal      *prometheus.CounterVec
	ComparisonDuration    *prometheus.HistogramVec
	ComparisonConfidence  prometheus.Histogram
	RuleEvaluationsTotal  *prometheus.CounterVec
	RuleFailuresTotal     *prometheus.CounterVec
	MatrixComputedTotal   prometheus.Counter
	MatrixPairsPerRequest prometheus.Histogram

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec
	CacheSizeBytes      *prometheus.GaugeVec

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Redis metrics
	RedisConnectionsActive prometheus.Gauge
	RedisCommandsTotal     *prometheus.CounterVec
	RedisCommandDuration   *prometheus.HistogramVec

	// Catalog metrics
	CategoriesTotal    prometheus.Gauge
	DevicesTotal       prometheus.Gauge
	SchemaVersionsTotal prometheus.Gauge
	RulesTotal         prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubcap_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubcap_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubcap_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Storage metrics
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubcap_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation", "backend", "error_type"},
		),

		// Comparison metrics
		ComparisonsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_comparisons_total",
				Help: "Total number of compatibility comparisons",
			},
			[]string{"verdict", "status"},
		),
		ComparisonDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubcap_comparison_duration_seconds",
				Help:    "Compatibility comparison duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"verdict"},
		),
		ComparisonConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hubcap_comparison_confidence",
				Help:    "Confidence scores of completed comparisons",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		RuleEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_rule_evaluations_total",
				Help: "Total number of rule processor evaluations",
			},
			[]string{"rule", "status"},
		),
		RuleFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_rule_failures_total",
				Help: "Total number of rule processor failures",
			},
			[]string{"rule", "error_type"},
		),
		MatrixComputedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hubcap_matrix_computed_total",
				Help: "Total number of compatibility matrix computations",
			},
		),
		MatrixPairsPerRequest: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hubcap_matrix_pairs_per_request",
				Help:    "Device pairs computed per matrix request",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_cache_evictions_total",
				Help: "Total number of cache evictions",
			},
			[]string{"cache_type", "reason"},
		),
		CacheSizeBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hubcap_cache_size_bytes",
				Help: "Current cache size in bytes",
			},
			[]string{"cache_type"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcap_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcap_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcap_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcap_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		// Redis metrics
		RedisConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcap_redis_connections_active",
				Help: "Number of active Redis connections",
			},
		),
		RedisCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcap_redis_commands_total",
				Help: "Total number of Redis commands",
			},
			[]string{"command", "status"},
		),
		RedisCommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubcap_redis_command_duration_seconds",
				Help:    "Redis command duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"command"},
		),

		// Catalog metrics
		CategoriesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcap_categories_total",
				Help: "Total number of device categories",
			},
		),
		DevicesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcap_devices_total",
				Help: "Total number of devices",
			},
		),
		SchemaVersionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcap_schema_versions_total",
				Help: "Total number of schema versions",
			},
		),
		RulesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcap_rules_total",
				Help: "Total number of stored compatibility rules",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageErrorsTotal,
		m.ComparisonsTotal,
		m.ComparisonDuration,
		m.ComparisonConfidence,
		m.RuleEvaluationsTotal,
		m.RuleFailuresTotal,
		m.MatrixComputedTotal,
		m.MatrixPairsPerRequest,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheSizeBytes,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.RedisConnectionsActive,
		m.RedisCommandsTotal,
		m.RedisCommandDuration,
		m.CategoriesTotal,
		m.DevicesTotal,
		m.SchemaVersionsTotal,
		m.RulesTotal,
	)

	return m
}

// RecordComparison updates the comparison counters and histograms for one
// completed (or failed) compatibility check.
func (m *Metrics) RecordComparison(verdict string, confidence float64, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ComparisonsTotal.WithLabelValues(verdict, status).Inc()
	if success {
		m.ComparisonDuration.WithLabelValues(verdict).Observe(duration.Seconds())
		m.ComparisonConfidence.Observe(confidence)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
