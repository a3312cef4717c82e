package netlink

import "github.com/prometheus/client_golang/prometheus"

var (
	linkAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "someip",
		Subsystem: "netlink",
		Name:      "available",
		Help:      "Current availability (1) or unavailability (0) of a supervised signal.",
	}, []string{"signal"})

	transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "netlink",
		Name:      "transitions_total",
		Help:      "Total number of availability transitions reported to the handler, by signal and resulting state.",
	}, []string{"signal", "available"})
)

func init() {
	prometheus.MustRegister(linkAvailable, transitions)
}

func recordTransition(signal Signal, available bool) {
	label := signal.String()
	state := "0"
	gauge := 0.0
	if available {
		state = "1"
		gauge = 1.0
	}
	linkAvailable.WithLabelValues(label).Set(gauge)
	transitions.WithLabelValues(label, state).Inc()
}
