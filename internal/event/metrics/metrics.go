package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the event module.
// Tracks lifecycle counts and the durations of the hot read paths.
type Metrics struct {
	EventsCreated      prometheus.Counter
	EventsDeleted      prometheus.Counter
	GeocodeFailures    prometheus.Counter
	ListEventsDuration prometheus.Histogram
	FilterDuration     prometheus.Histogram
}

// New creates a Metrics instance with all event module metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledgeit_events_created_total",
			Help: "Total number of events created",
		}),
		EventsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledgeit_events_deleted_total",
			Help: "Total number of events deleted by their organization",
		}),
		GeocodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledgeit_geocode_failures_total",
			Help: "Total number of event creations aborted by geocoding failures",
		}),
		ListEventsDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pledgeit_list_events_duration_seconds",
			Help:    "Duration of event listing (discovery landing page path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		FilterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pledgeit_filter_events_duration_seconds",
			Help:    "Duration of filtered event searches",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementEventsCreated records a successful event creation.
func (m *Metrics) IncrementEventsCreated() {
	m.EventsCreated.Inc()
}

// IncrementEventsDeleted records a successful event deletion.
func (m *Metrics) IncrementEventsDeleted() {
	m.EventsDeleted.Inc()
}

// IncrementGeocodeFailures records a creation aborted by the geocoder.
func (m *Metrics) IncrementGeocodeFailures() {
	m.GeocodeFailures.Inc()
}

// ObserveListEvents records the duration of a listing call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveListEvents(start time.Time) {
	m.ListEventsDuration.Observe(time.Since(start).Seconds())
}

// ObserveFilter records the duration of a filtered search.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveFilter(start time.Time) {
	m.FilterDuration.Observe(time.Since(start).Seconds())
}
