// Package observability exposes Prometheus metrics for the channel pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks message processing outcomes. All methods are safe
// on a nil receiver so callers can run without metrics wired.
type PipelineMetrics struct {
	messagesProcessed  *prometheus.CounterVec
	processingDuration *prometheus.HistogramVec
	repliesSuppressed  *prometheus.CounterVec
	bookingRequests    *prometheus.CounterVec
	nluFallbacks       *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers the pipeline metric set.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		messagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_messages_processed_total",
				Help: "Inbound messages processed, by channel, intent and outcome.",
			},
			[]string{"channel", "intent", "outcome"},
		),
		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_processing_duration_seconds",
				Help:    "End-to-end pipeline latency per message.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		repliesSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_replies_suppressed_total",
				Help: "Auto-replies suppressed by gating, by reason.",
			},
			[]string{"channel", "reason"},
		),
		bookingRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_booking_requests_total",
				Help: "Booking bridge calls, by outcome.",
			},
			[]string{"channel", "outcome"},
		),
		nluFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_nlu_fallbacks_total",
				Help: "Classifier or extractor failures absorbed with safe defaults.",
			},
			[]string{"channel", "stage"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.messagesProcessed,
			m.processingDuration,
			m.repliesSuppressed,
			m.bookingRequests,
			m.nluFallbacks,
		)
	}
	return m
}

// ObserveMessage records one processed message and its latency.
func (m *PipelineMetrics) ObserveMessage(channelType, intent, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.messagesProcessed.WithLabelValues(channelType, intent, outcome).Inc()
	m.processingDuration.WithLabelValues(channelType).Observe(elapsed.Seconds())
}

// ObserveSuppressed records a gated auto-reply.
func (m *PipelineMetrics) ObserveSuppressed(channelType, reason string) {
	if m == nil {
		return
	}
	m.repliesSuppressed.WithLabelValues(channelType, reason).Inc()
}

// ObserveBooking records a booking bridge call.
func (m *PipelineMetrics) ObserveBooking(channelType, outcome string) {
	if m == nil {
		return
	}
	m.bookingRequests.WithLabelValues(channelType, outcome).Inc()
}

// ObserveNLUFallback records an absorbed classifier or extractor failure.
func (m *PipelineMetrics) ObserveNLUFallback(channelType, stage string) {
	if m == nil {
		return
	}
	m.nluFallbacks.WithLabelValues(channelType, stage).Inc()
}
