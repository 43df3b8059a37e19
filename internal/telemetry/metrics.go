// Package telemetry exports load test progress as Prometheus metrics.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

const (
	prometheusNamespace = "acs"
	prometheusSubsystem = "loadtest"
)

// noResponseCode labels requests that never got a status code.
const noResponseCode = "0"

// Metrics holds the collectors for request outcomes and the user count.
// It satisfies performance.Observer.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestFailures *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeUsers     prometheus.Gauge
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Subsystem: prometheusSubsystem,
			Name:      "requests_total",
			Help:      "The number of requests issued by simulated users, by request name and status code.",
		}, []string{"name", "code"}),
		requestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Subsystem: prometheusSubsystem,
			Name:      "request_failures_total",
			Help:      "The number of failed requests, by request name.",
		}, []string{"name"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prometheusNamespace,
			Subsystem: prometheusSubsystem,
			Name:      "request_duration_seconds",
			Help:      "The request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"name"}),
		activeUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Subsystem: prometheusSubsystem,
			Name:      "active_users",
			Help:      "The number of running simulated users.",
		}),
	}
}

// Register registers the metrics with the given prometheus.Registerer.
func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(m.requests)
	r.MustRegister(m.requestFailures)
	r.MustRegister(m.requestDuration)
	r.MustRegister(m.activeUsers)
}

// ObserveRequest records one request sample.
func (m *Metrics) ObserveRequest(s metrics.Sample) {
	code := noResponseCode
	if s.StatusCode > 0 {
		code = strconv.Itoa(s.StatusCode)
	}

	m.requests.WithLabelValues(s.Name, code).Inc()
	if !s.Success() {
		m.requestFailures.WithLabelValues(s.Name).Inc()
	}
	m.requestDuration.WithLabelValues(s.Name).Observe(s.Duration.Seconds())
}

// SetActiveUsers sets the active users gauge.
func (m *Metrics) SetActiveUsers(n int) {
	m.activeUsers.Set(float64(n))
}
