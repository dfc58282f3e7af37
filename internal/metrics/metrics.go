package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intentgw_calls_total",
			Help: "Tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"}, // ok | auth.invalid | ratelimit.exceeded | ...
	)

	CallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intentgw_call_duration_seconds",
			Help:    "End-to-end tool call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	QuotaReservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intentgw_quota_reservations_total",
			Help: "Quota reservation attempts by result",
		},
		[]string{"result"}, // reserved | exceeded | unlimited | error
	)

	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intentgw_sink_failures_total",
			Help: "Audit/usage writes that failed after retries",
		},
		[]string{"sink"}, // audit | usage
	)

	AuditSinkFlushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intentgw_audit_sink_entries_total",
			Help: "Audit entries handled by the sink worker",
		},
		[]string{"stage"}, // flushed | dropped
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors once; serve and worker share it.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			CallsTotal,
			CallDuration,
			QuotaReservations,
			SinkFailures,
			AuditSinkFlushed,
		)
	})
}
