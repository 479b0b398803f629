package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// callbacks counts delivery callbacks by normalized status and outcome.
// Both label sets are closed, so cardinality is bounded.
var callbacks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "twilio_callbacks_total",
		Help: "Delivery status callbacks received, by normalized status and outcome.",
	},
	[]string{"status", "outcome"},
)

func init() {
	prometheus.MustRegister(callbacks)
}

// RecordCallback increments twilio_callbacks_total.
func RecordCallback(status, outcome string) {
	callbacks.WithLabelValues(status, outcome).Inc()
}
