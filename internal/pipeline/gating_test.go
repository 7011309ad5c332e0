package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/nlu"
	"github.com/medicita/medicita-platform/internal/schedule"
)

func weekdayHours(t *testing.T) *schedule.BusinessHours {
	t.Helper()
	hours, err := schedule.ParseDaily("09:00", "18:00", "UTC")
	require.NoError(t, err)
	return hours
}

func TestShouldAutoReply(t *testing.T) {
	insideHours := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	outsideHours := time.Date(2024, 2, 1, 22, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		cfg        channel.InstanceConfig
		intent     nlu.Intent
		entities   nlu.Entities
		now        time.Time
		want       bool
		wantReason string
	}{
		{
			name:   "known intent inside hours",
			cfg:    channel.InstanceConfig{AutoReplyEnabled: true, ReplyToUnknown: true},
			intent: nlu.IntentGreeting,
			now:    insideHours,
			want:   true,
		},
		{
			name:       "auto reply disabled",
			cfg:        channel.InstanceConfig{AutoReplyEnabled: false},
			intent:     nlu.IntentGreeting,
			now:        insideHours,
			want:       false,
			wantReason: SuppressAutoReplyDisabled,
		},
		{
			name:   "unknown intent with reply policy on",
			cfg:    channel.InstanceConfig{AutoReplyEnabled: true, ReplyToUnknown: true},
			intent: nlu.IntentUnknown,
			now:    insideHours,
			want:   true,
		},
		{
			name:       "unknown intent with reply policy off",
			cfg:        channel.InstanceConfig{AutoReplyEnabled: true, ReplyToUnknown: false},
			intent:     nlu.IntentUnknown,
			now:        insideHours,
			want:       false,
			wantReason: SuppressUnknownIntent,
		},
		{
			name:     "unknown intent with entities replies even with policy off",
			cfg:      channel.InstanceConfig{AutoReplyEnabled: true, ReplyToUnknown: false},
			intent:   nlu.IntentUnknown,
			entities: nlu.Entities{Specialty: "cardiología"},
			now:      insideHours,
			want:     true,
		},
		{
			name:   "emergency overrides disabled auto reply",
			cfg:    channel.InstanceConfig{AutoReplyEnabled: false},
			intent: nlu.IntentEmergency,
			now:    insideHours,
			want:   true,
		},
		{
			name:   "no business hours configured always open",
			cfg:    channel.InstanceConfig{AutoReplyEnabled: true, ReplyToUnknown: true},
			intent: nlu.IntentAppointmentBooking,
			now:    outsideHours,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := ShouldAutoReply(tt.cfg, tt.intent, tt.entities, tt.now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestShouldAutoReplyBusinessHours(t *testing.T) {
	cfg := channel.InstanceConfig{
		AutoReplyEnabled: true,
		ReplyToUnknown:   true,
		BusinessHours:    weekdayHours(t),
	}

	inside := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	outside := time.Date(2024, 2, 1, 22, 0, 0, 0, time.UTC)

	got, reason := ShouldAutoReply(cfg, nlu.IntentAppointmentBooking, nlu.Entities{}, inside)
	assert.True(t, got)
	assert.Equal(t, SuppressNone, reason)

	got, reason = ShouldAutoReply(cfg, nlu.IntentAppointmentBooking, nlu.Entities{}, outside)
	assert.False(t, got)
	assert.Equal(t, SuppressOutsideBusinessHours, reason)

	// Emergencies ignore business hours entirely.
	got, reason = ShouldAutoReply(cfg, nlu.IntentEmergency, nlu.Entities{}, outside)
	assert.True(t, got)
	assert.Equal(t, SuppressNone, reason)
}
