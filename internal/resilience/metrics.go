package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	// BreakerState is 0 closed, 1 open, 2 half-open, per target.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kec_breaker_state",
		Help: "Current breaker state (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})
	// BreakerTransitions counts state changes per target.
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kec_breaker_transition_total",
		Help: "Breaker state transitions.",
	}, []string{"target", "from", "to"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions)
}

func setStateGauge(target string, s State) {
	v := -1.0
	switch s {
	case Closed:
		v = 0
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	BreakerState.WithLabelValues(target).Set(v)
}

func countTransition(target string, from, to State) {
	BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
}
