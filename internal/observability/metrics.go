package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// prometheusMetrics implements Metrics with pre-configured collectors
// following Prometheus naming conventions. The component name prefixes
// every metric name.
type prometheusMetrics struct {
	processedTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	payloadBytes    *prometheus.HistogramVec
	inProgress      *prometheus.GaugeVec
}

func newPrometheusMetrics(component string, registry *prometheus.Registry) *prometheusMetrics {
	m := &prometheusMetrics{}

	m.processedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_processed_total", component),
			Help: fmt.Sprintf("Total processed items by %s", component),
		},
		[]string{"status", "operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_errors_total", component),
			Help: fmt.Sprintf("Total errors in %s", component),
		},
		[]string{"error_type", "operation"},
	)

	m.durationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_duration_seconds", component),
			Help:    fmt.Sprintf("Operation duration in %s", component),
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Exponential buckets from 1KB to 1GB, suitable for report payloads.
	m.payloadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_payload_size_bytes", component),
			Help:    fmt.Sprintf("Report payload sizes processed by %s", component),
			Buckets: prometheus.ExponentialBuckets(1024, 10, 7),
		},
		[]string{"report_type"},
	)

	m.inProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_in_progress", component),
			Help: fmt.Sprintf("Operations in progress in %s", component),
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		m.processedTotal,
		m.errorsTotal,
		m.durationSeconds,
		m.payloadBytes,
		m.inProgress,
	)

	return m
}

// RecordSuccess increments the processed counter with status="success".
func (m *prometheusMetrics) RecordSuccess(operation string) {
	m.processedTotal.WithLabelValues("success", operation).Inc()
}

// RecordError increments both the processed counter (status="error") and
// the detailed error counter, giving failure rates plus error breakdowns.
func (m *prometheusMetrics) RecordError(operation, errorType string) {
	m.processedTotal.WithLabelValues("error", operation).Inc()
	m.errorsTotal.WithLabelValues(errorType, operation).Inc()
}

// RecordDuration records an operation duration in seconds.
// Use time.Since(start).Seconds().
func (m *prometheusMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordPayloadSize records the size of a fetched report payload.
func (m *prometheusMetrics) RecordPayloadSize(reportType string, bytes int64) {
	m.payloadBytes.WithLabelValues(reportType).Observe(float64(bytes))
}

// StartOperation increments the in-progress gauge for an operation.
func (m *prometheusMetrics) StartOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Inc()
}

// EndOperation decrements the in-progress gauge for an operation.
func (m *prometheusMetrics) EndOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Dec()
}
