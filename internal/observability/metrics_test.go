package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveMessage("whatsapp", "appointment_booking", "success", 120*time.Millisecond)
	m.ObserveMessage("whatsapp", "appointment_booking", "success", 80*time.Millisecond)
	m.ObserveSuppressed("whatsapp", "outside_business_hours")
	m.ObserveBooking("whatsapp", "failure")
	m.ObserveNLUFallback("whatsapp", "classify")

	count := testutil.ToFloat64(m.messagesProcessed.WithLabelValues("whatsapp", "appointment_booking", "success"))
	assert.Equal(t, float64(2), count)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.repliesSuppressed.WithLabelValues("whatsapp", "outside_business_hours")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bookingRequests.WithLabelValues("whatsapp", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.nluFallbacks.WithLabelValues("whatsapp", "classify")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestPipelineMetricsNilReceiver(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.ObserveMessage("whatsapp", "unknown", "success", time.Millisecond)
		m.ObserveSuppressed("whatsapp", "auto_reply_disabled")
		m.ObserveBooking("whatsapp", "success")
		m.ObserveNLUFallback("whatsapp", "extract")
	})
}
