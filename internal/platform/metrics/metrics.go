package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-wide Prometheus metrics. Module-specific
// metrics live next to their module.
type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec
	NotificationsFailed prometheus.Counter
}

// New creates and registers all platform metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pledgeit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "path", "status"}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledgeit_notifications_failed_total",
			Help: "Total notification sends that failed and were swallowed",
		}),
	}
}

// ObserveHTTPRequest records one request's duration.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}

// IncrementNotificationsFailed records a swallowed notification failure.
func (m *Metrics) IncrementNotificationsFailed() {
	m.NotificationsFailed.Inc()
}
