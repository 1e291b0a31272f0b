package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics records routing decision outcomes and latency.
type RouterMetrics struct {
	decisions *prometheus.CounterVec
	latency   prometheus.Histogram
}

// NewRouterMetrics registers the router metrics on the provided registerer.
func NewRouterMetrics(reg prometheus.Registerer) *RouterMetrics {
	if reg == nil {
		return &RouterMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "router_decisions_total",
		Help: "Routing decisions by outcome and selected provider.",
	}, []string{"outcome", "provider"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "router_decision_latency_seconds",
		Help:    "End-to-end routing decision latency in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(decisions, latency)
	return &RouterMetrics{
		decisions: decisions,
		latency:   latency,
	}
}

// IncDecision counts one finished decision. Failed decisions pass an empty
// provider.
func (r *RouterMetrics) IncDecision(outcome, provider string) {
	if r == nil || r.decisions == nil {
		return
	}
	if provider == "" {
		provider = "none"
	}
	r.decisions.WithLabelValues(normalizeLabel(outcome), provider).Inc()
}

// ObserveDecisionLatency records how long the decision took.
func (r *RouterMetrics) ObserveDecisionLatency(duration time.Duration) {
	if r == nil || r.latency == nil {
		return
	}
	r.latency.Observe(duration.Seconds())
}
