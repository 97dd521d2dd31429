package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration engine.
type Metrics struct {
	JoinsAccepted       prometheus.Counter
	JoinsRejected       *prometheus.CounterVec
	LeavesProcessed     prometheus.Counter
	AttendanceConfirmed prometheus.Counter
}

// New creates a Metrics instance with all registration metrics registered.
func New() *Metrics {
	return &Metrics{
		JoinsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledgeit_joins_accepted_total",
			Help: "Total number of volunteer registrations accepted",
		}),
		JoinsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledgeit_joins_rejected_total",
			Help: "Total number of volunteer registrations rejected, by reason",
		}, []string{"reason"}),
		LeavesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledgeit_leaves_total",
			Help: "Total number of volunteer withdrawals",
		}),
		AttendanceConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledgeit_attendance_confirmed_total",
			Help: "Total number of attendance confirmations via QR scan",
		}),
	}
}

// IncrementJoinsAccepted records an accepted registration.
func (m *Metrics) IncrementJoinsAccepted() {
	m.JoinsAccepted.Inc()
}

// IncrementJoinsRejected records a rejected registration with its reason.
func (m *Metrics) IncrementJoinsRejected(reason string) {
	m.JoinsRejected.WithLabelValues(reason).Inc()
}

// IncrementLeaves records a processed withdrawal.
func (m *Metrics) IncrementLeaves() {
	m.LeavesProcessed.Inc()
}

// IncrementAttendanceConfirmed records a successful check-in.
func (m *Metrics) IncrementAttendanceConfirmed() {
	m.AttendanceConfirmed.Inc()
}
