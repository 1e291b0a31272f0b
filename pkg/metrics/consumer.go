package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsumerMetrics records Pub/Sub message processing results.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewConsumerMetrics registers the consumer metrics on the provided
// registerer.
func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_total",
		Help: "Consumed messages by consumer and result.",
	}, []string{"consumer", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consumer_message_duration_seconds",
		Help:    "Message handling duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"consumer"})
	reg.MustRegister(messages, duration)
	return &ConsumerMetrics{
		messages: messages,
		duration: duration,
	}
}

// IncMessage counts one handled message with its result (processed,
// duplicate, invalid, failed).
func (c *ConsumerMetrics) IncMessage(consumer, result string) {
	if c == nil || c.messages == nil {
		return
	}
	c.messages.WithLabelValues(normalizeLabel(consumer), normalizeLabel(result)).Inc()
}

// ObserveHandling records the duration of one message handling pass.
func (c *ConsumerMetrics) ObserveHandling(consumer string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(consumer)).Observe(duration.Seconds())
}
