package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics records BaseX client traffic. It implements basex.Observer.
type ClientMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestsInFlight  prometheus.Gauge
	rollbacksTotal    *prometheus.CounterVec
	rolledBackDocs    prometheus.Counter
	rollbackFailedDoc prometheus.Counter
}

// NewClientMetrics creates the client collectors and registers them on reg.
// It panics if they are already registered there.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	factory := promauto.With(reg)
	return &ClientMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basex_client_requests_total",
				Help: "Total number of requests sent to the BaseX REST interface",
			},
			[]string{"operation", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "basex_client_request_duration_seconds",
				Help:    "Duration of requests to the BaseX REST interface in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		requestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "basex_client_requests_in_flight",
				Help: "Number of requests to the BaseX REST interface awaiting a response",
			},
		),
		rollbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basex_client_rollbacks_total",
				Help: "Total number of batch insert rollbacks",
			},
			[]string{"result"}, // "complete", "partial"
		),
		rolledBackDocs: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "basex_client_rolled_back_documents_total",
				Help: "Total number of documents deleted by batch rollbacks",
			},
		),
		rollbackFailedDoc: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "basex_client_rollback_failed_documents_total",
				Help: "Total number of documents a batch rollback failed to delete",
			},
		),
	}
}

// ObserveRequest records one HTTP exchange. A zero status is recorded as
// "error".
func (m *ClientMetrics) ObserveRequest(operation, method string, status int, took time.Duration) {
	code := "error"
	if status != 0 {
		code = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(operation, method, code).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(took.Seconds())
}

// ObserveRollback records one batch rollback.
func (m *ClientMetrics) ObserveRollback(reverted, failed int) {
	result := "complete"
	if failed > 0 {
		result = "partial"
	}
	m.rollbacksTotal.WithLabelValues(result).Inc()
	m.rolledBackDocs.Add(float64(reverted))
	m.rollbackFailedDoc.Add(float64(failed))
}
