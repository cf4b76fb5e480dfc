package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the application metrics
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Storage operation metrics
	StorageOperationTotal    *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Signed URL metrics
	URLSignTotal    *prometheus.CounterVec
	URLSignDuration *prometheus.HistogramVec

	// Ingestion publish metrics
	IngestionPublishTotal    *prometheus.CounterVec
	IngestionPublishDuration *prometheus.HistogramVec
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics creates a new Metrics instance with all required metrics
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	// Return existing instance if already created
	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		// HTTP request metrics
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "media_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "media_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		// Storage operation metrics
		StorageOperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "media_storage_operations_total",
			Help: "Total number of media record store operations",
		}, []string{"operation", "status"}),

		StorageOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "media_storage_operation_duration_seconds",
			Help:    "Media record store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),

		// Signed URL metrics
		URLSignTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "media_url_sign_total",
			Help: "Total number of signed URL operations",
		}, []string{"method", "status"}),

		URLSignDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "media_url_sign_duration_seconds",
			Help:    "Signed URL operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),

		// Ingestion publish metrics
		IngestionPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "media_ingestion_publish_total",
			Help: "Total number of ingestion publish operations",
		}, []string{"category", "status"}),

		IngestionPublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "media_ingestion_publish_duration_seconds",
			Help:    "Ingestion publish duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"category", "status"}),
	}

	// Register metrics with the default registry
	registerMetrics(m)

	// Store as global instance
	globalMetrics = m

	return m
}

// registerMetrics registers all metrics with the default registry
func registerMetrics(m *Metrics) {
	// Try to register each metric, ignore if already registered
	registerOrGet(m.HTTPRequestTotal)
	registerOrGet(m.HTTPRequestDuration)
	registerOrGet(m.StorageOperationTotal)
	registerOrGet(m.StorageOperationDuration)
	registerOrGet(m.URLSignTotal)
	registerOrGet(m.URLSignDuration)
	registerOrGet(m.IngestionPublishTotal)
	registerOrGet(m.IngestionPublishDuration)
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		// If already registered, return the existing collector
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}
