package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicita/medicita-platform/internal/booking"
	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/conversation"
	"github.com/medicita/medicita-platform/internal/nlu"
	"github.com/medicita/medicita-platform/pkg/logging"
)

type recordingBridge struct {
	result      booking.Result
	lastRequest booking.Request
	queryText   string
	queryErr    error
}

func (r *recordingBridge) ProcessBookingRequest(_ context.Context, req booking.Request) booking.Result {
	r.lastRequest = req
	return r.result
}

func (r *recordingBridge) QueryAppointments(context.Context, booking.AppointmentsQuery) (string, error) {
	return r.queryText, r.queryErr
}

func testConversation() *conversation.Conversation {
	return &conversation.Conversation{
		ID:      uuid.New(),
		Contact: conversation.Contact{ExternalID: "contact-1"},
	}
}

func newTestComposer(bridge BookingBridge) *Composer {
	return NewComposer(bridge, logging.NewWithWriter(&strings.Builder{}, "error"))
}

func TestComposeStaticStages(t *testing.T) {
	c := newTestComposer(&recordingBridge{})
	conv := testConversation()
	msg := channel.IncomingMessage{ChannelType: channel.TypeWhatsApp}

	tests := []struct {
		stage    Stage
		intent   nlu.Intent
		contains string
	}{
		{StageEmergencyEscalated, nlu.IntentEmergency, "911"},
		{StageGreetingResponded, nlu.IntentGreeting, "asistente virtual"},
		{StageBookingSpecialtyNeeded, nlu.IntentAppointmentBooking, "especialidad"},
		{StageBookingDateNeeded, nlu.IntentAppointmentBooking, "Qué día"},
		{StageProcessing, nlu.IntentRescheduling, "cambiar tu cita"},
		{StageProcessing, nlu.IntentCancellation, "cancelar tu cita"},
		{StageProcessing, nlu.IntentUnknown, "no estoy seguro"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage)+"/"+string(tt.intent), func(t *testing.T) {
			text, result := c.Compose(context.Background(), conv, msg, tt.intent, nlu.Entities{}, tt.stage)
			assert.Contains(t, text, tt.contains)
			assert.Nil(t, result)
		})
	}
}

func TestComposeBookingReadyDelegatesToBridge(t *testing.T) {
	bridge := &recordingBridge{result: booking.Result{Success: true, Message: "horarios", NextStep: booking.StepSelectSlot}}
	c := newTestComposer(bridge)
	conv := testConversation()
	msg := channel.IncomingMessage{ChannelType: channel.TypeWhatsApp}
	entities := nlu.Entities{
		Specialty:     "cardiología",
		PreferredDate: "2024-02-01",
		PreferredTime: "10:00",
		Urgency:       nlu.UrgencyHigh,
		Symptoms:      []string{"dolor de pecho"},
	}

	text, result := c.Compose(context.Background(), conv, msg, nlu.IntentAppointmentBooking, entities, StageBookingReady)

	assert.Equal(t, "horarios", text)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "cardiología", bridge.lastRequest.Specialty)
	assert.Equal(t, "2024-02-01", bridge.lastRequest.PreferredDate)
	assert.Equal(t, conv.ID.String(), bridge.lastRequest.ConversationID)
	assert.Equal(t, "contact-1", bridge.lastRequest.PatientID)
	assert.Equal(t, channel.TypeWhatsApp, bridge.lastRequest.ChannelType)
}

func TestComposeInquiry(t *testing.T) {
	bridge := &recordingBridge{queryText: "Estas son tus citas:"}
	c := newTestComposer(bridge)

	text, result := c.Compose(context.Background(), testConversation(), channel.IncomingMessage{}, nlu.IntentAppointmentInquiry, nlu.Entities{}, StageInquiryProcessing)

	assert.Contains(t, text, "tus citas")
	assert.Nil(t, result)
}

func TestComposeInquiryFailure(t *testing.T) {
	bridge := &recordingBridge{queryText: "Lo siento, no pude consultar la agenda.", queryErr: errors.New("timeout")}
	c := newTestComposer(bridge)

	text, result := c.Compose(context.Background(), testConversation(), channel.IncomingMessage{}, nlu.IntentAppointmentInquiry, nlu.Entities{}, StageInquiryProcessing)

	assert.Contains(t, text, "Lo siento")
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}

func TestNewComposerNilBridgePanics(t *testing.T) {
	assert.Panics(t, func() { NewComposer(nil, nil) })
}
