package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderCallMetrics records per-provider quote call results and latency.
type ProviderCallMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewProviderCallMetrics registers the provider call metrics on the provided
// registerer.
func NewProviderCallMetrics(reg prometheus.Registerer) *ProviderCallMetrics {
	if reg == nil {
		return &ProviderCallMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_calls_total",
		Help: "Provider quote calls by provider and result.",
	}, []string{"provider", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Provider quote call duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	reg.MustRegister(calls, duration)
	return &ProviderCallMetrics{
		calls:    calls,
		duration: duration,
	}
}

// IncCall counts one provider call with its result (success, error, timeout,
// fallback).
func (p *ProviderCallMetrics) IncCall(provider, result string) {
	if p == nil || p.calls == nil {
		return
	}
	p.calls.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// ObserveCall records the duration of one provider call.
func (p *ProviderCallMetrics) ObserveCall(provider string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}
