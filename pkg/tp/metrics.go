package tp

import "github.com/prometheus/client_golang/prometheus"

var (
	segmentsReassembled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "tp",
		Name:      "segments_reassembled_total",
		Help:      "Total number of messages fully reassembled from TP segments.",
	})
	segmentsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "tp",
		Name:      "segments_dropped_total",
		Help:      "Total number of TP segments rejected during admission, by reason.",
	}, []string{"reason"})
	reaperEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "tp",
		Name:      "reaper_evictions_total",
		Help:      "Total number of in-flight reassembly states dropped by the stale-entry reaper.",
	})
)

func init() {
	prometheus.MustRegister(segmentsReassembled, segmentsDropped, reaperEvictions)
}
