package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	// BreakerState is 0 closed, 1 open, 2 half-open per collaborator.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collaborator_breaker_state",
		Help: "Collaborator breaker position: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collaborator_breaker_transition_total",
		Help: "Collaborator breaker state changes.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collaborator_breaker_open_total",
		Help: "Times a collaborator breaker tripped open.",
	}, []string{"target"})
	// RetryTotal counts extra attempts on idempotent collaborator calls.
	RetryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collaborator_retry_total",
		Help: "Retried idempotent collaborator requests.",
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, RetryTotal)
}

func setStateGauge(target string, s State) {
	BreakerState.WithLabelValues(target).Set(float64(s))
}
