package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/pkg/logging"
)

func testAdapter() *Adapter {
	return NewAdapter(NewClient("http://gateway.local", "test-key"), logging.NewWithWriter(&strings.Builder{}, "error"))
}

const textEnvelope = `{
	"event": "messages.upsert",
	"instance": "inst-1",
	"data": {
		"key": {"id": "3EB0A9C7", "remoteJid": "5215512345678@s.whatsapp.net", "fromMe": false},
		"pushName": "Ana",
		"message": {"conversation": "quiero una cita"},
		"messageTimestamp": 1706789000
	}
}`

func TestParseIncomingText(t *testing.T) {
	a := testAdapter()

	msg, err := a.ParseIncoming([]byte(textEnvelope))
	require.NoError(t, err)

	assert.Equal(t, "3EB0A9C7", msg.ID)
	assert.Equal(t, channel.TypeWhatsApp, msg.ChannelType)
	assert.Equal(t, "inst-1", msg.InstanceID)
	assert.Equal(t, "5215512345678@s.whatsapp.net", msg.ConversationID)
	assert.Equal(t, "5215512345678@s.whatsapp.net", msg.Sender.ID)
	assert.Equal(t, "Ana", msg.Sender.Name)
	assert.Equal(t, "+5215512345678", msg.Sender.Phone)
	assert.Equal(t, channel.ContentText, msg.Content.Type)
	assert.Equal(t, "quiero una cita", msg.Content.Text)
	assert.Equal(t, int64(1706789000), msg.Timestamp.Unix())
}

func TestParseIncomingIsDeterministic(t *testing.T) {
	a := testAdapter()

	first, err := a.ParseIncoming([]byte(textEnvelope))
	require.NoError(t, err)
	second, err := a.ParseIncoming([]byte(textEnvelope))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseIncomingExtendedText(t *testing.T) {
	a := testAdapter()

	msg, err := a.ParseIncoming([]byte(`{
		"event": "messages.upsert",
		"instance": "inst-1",
		"data": {
			"key": {"id": "A1", "remoteJid": "5215512345678@s.whatsapp.net"},
			"message": {"extendedTextMessage": {"text": "hola, ¿tienen cardiología?"}}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, channel.ContentText, msg.Content.Type)
	assert.Contains(t, msg.Content.Text, "cardiología")
}

func TestParseIncomingImage(t *testing.T) {
	a := testAdapter()

	msg, err := a.ParseIncoming([]byte(`{
		"event": "messages.upsert",
		"instance": "inst-1",
		"data": {
			"key": {"id": "A2", "remoteJid": "5215512345678@s.whatsapp.net"},
			"message": {"imageMessage": {"url": "https://cdn/img.jpg", "mimetype": "image/jpeg", "caption": "mi receta"}}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, channel.ContentImage, msg.Content.Type)
	require.NotNil(t, msg.Content.Media)
	assert.Equal(t, "https://cdn/img.jpg", msg.Content.Media.URL)
	assert.Equal(t, "mi receta", msg.Content.Media.Caption)
}

func TestParseIncomingRejectsSelfMessages(t *testing.T) {
	a := testAdapter()

	_, err := a.ParseIncoming([]byte(`{
		"event": "messages.upsert",
		"instance": "inst-1",
		"data": {
			"key": {"id": "A3", "remoteJid": "5215512345678@s.whatsapp.net", "fromMe": true},
			"message": {"conversation": "eco"}
		}
	}`))
	assert.ErrorIs(t, err, ErrSelfMessage)
}

func TestParseIncomingRejectsOtherEvents(t *testing.T) {
	a := testAdapter()

	_, err := a.ParseIncoming([]byte(`{"event": "connection.update", "instance": "inst-1", "data": {}}`))
	assert.ErrorContains(t, err, "unsupported event")
}

func TestParseIncomingRejectsEmptyBody(t *testing.T) {
	a := testAdapter()

	_, err := a.ParseIncoming([]byte(`{
		"event": "messages.upsert",
		"instance": "inst-1",
		"data": {"key": {"id": "A4", "remoteJid": "x@s.whatsapp.net"}}
	}`))
	assert.ErrorContains(t, err, "empty message body")
}

func TestFormatResponse(t *testing.T) {
	a := testAdapter()

	out := a.FormatResponse("conv-1", "Hola Ana", map[string]string{"recipient": "jid"})
	assert.Equal(t, "conv-1", out.ConversationID)
	assert.Equal(t, channel.ContentText, out.Content.Type)
	assert.Equal(t, "Hola Ana", out.Content.Text)
	assert.Equal(t, "jid", out.Metadata["recipient"])
}

func TestSend(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody sendTextRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key": {"id": "OUT1"}, "status": "PENDING"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	a := NewAdapter(client, logging.NewWithWriter(&strings.Builder{}, "error"))

	err := a.Send(context.Background(), channel.OutgoingMessage{
		ConversationID: "conv-1",
		Content:        channel.Content{Type: channel.ContentText, Text: "Hola"},
		Metadata: map[string]string{
			"recipient":   "5215512345678@s.whatsapp.net",
			"instance_id": "inst-1",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/message/sendText/inst-1", gotPath)
	assert.Equal(t, "secret", gotAPIKey)
	assert.Equal(t, "5215512345678@s.whatsapp.net", gotBody.Number)
	assert.Equal(t, "Hola", gotBody.Text)
}

func TestSendGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "instance not connected"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	a := NewAdapter(client, logging.NewWithWriter(&strings.Builder{}, "error"))

	err := a.Send(context.Background(), channel.OutgoingMessage{
		Content: channel.Content{Type: channel.ContentText, Text: "Hola"},
		Metadata: map[string]string{
			"recipient":   "x@s.whatsapp.net",
			"instance_id": "inst-1",
		},
	})
	assert.ErrorContains(t, err, "instance not connected")
}

func TestSendMissingMetadata(t *testing.T) {
	a := testAdapter()

	err := a.Send(context.Background(), channel.OutgoingMessage{
		Content: channel.Content{Type: channel.ContentText, Text: "Hola"},
	})
	assert.ErrorContains(t, err, "missing recipient or instance")
}
