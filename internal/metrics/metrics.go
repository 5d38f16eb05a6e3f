package metrics

import "github.com/prometheus/client_golang/prometheus"

// GatewayMetrics counts backend calls made by the booking client.
type GatewayMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheTotal      *prometheus.CounterVec
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Backend calls by operation and outcome",
		}, []string{"operation", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of backend calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "gateway",
			Name:      "directory_cache_total",
			Help:      "Staff directory cache lookups by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.cacheTotal)
	return m
}

// ObserveRequest records one call. status is the HTTP status code as text, or
// "error" when no response arrived.
func (m *GatewayMetrics) ObserveRequest(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *GatewayMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}
