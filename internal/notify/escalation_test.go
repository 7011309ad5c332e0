package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicita/medicita-platform/pkg/logging"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func testEscalation() Escalation {
	return Escalation{
		OrgID:          "org-1",
		ChannelType:    "whatsapp",
		InstanceID:     "inst-1",
		ConversationID: "conv-1",
		PatientName:    "Ana",
		PatientPhone:   "+5215512345678",
		Intent:         "emergency",
		Urgency:        "emergency",
		MessageText:    "me duele mucho el pecho",
		OccurredAt:     time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotifyEscalation(t *testing.T) {
	sender := &captureSender{}
	svc := NewEscalationService(sender, "staff@clinica.mx", logging.NewWithWriter(&strings.Builder{}, "error"))

	require.NoError(t, svc.NotifyEscalation(context.Background(), testEscalation()))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "staff@clinica.mx", msg.To)
	assert.Contains(t, msg.Subject, "URGENTE")
	assert.Contains(t, msg.Body, "Ana")
	assert.Contains(t, msg.Body, "+5215512345678")
	assert.Contains(t, msg.Body, "me duele mucho el pecho")
	assert.Contains(t, msg.Body, "conv-1")
}

func TestNotifyEscalationNonEmergencySubject(t *testing.T) {
	sender := &captureSender{}
	svc := NewEscalationService(sender, "staff@clinica.mx", nil)

	esc := testEscalation()
	esc.Intent = "rescheduling"
	esc.Urgency = ""
	require.NoError(t, svc.NotifyEscalation(context.Background(), esc))

	require.Len(t, sender.sent, 1)
	assert.NotContains(t, sender.sent[0].Subject, "URGENTE")
	assert.Contains(t, sender.sent[0].Subject, "escalada")
}

func TestNotifyEscalationDisabled(t *testing.T) {
	svc := NewEscalationService(nil, "", nil)
	assert.NoError(t, svc.NotifyEscalation(context.Background(), testEscalation()))
}

func TestNotifyEscalationSendFailure(t *testing.T) {
	sender := &captureSender{err: errors.New("ses throttled")}
	svc := NewEscalationService(sender, "staff@clinica.mx", logging.NewWithWriter(&strings.Builder{}, "error"))

	assert.Error(t, svc.NotifyEscalation(context.Background(), testEscalation()))
}
