package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/pkg/logging"
)

// ErrSelfMessage marks webhook events for messages we sent ourselves; they
// are dropped, not processed.
var ErrSelfMessage = errors.New("whatsapp: message sent by this instance")

// Adapter translates between the gateway wire format and the canonical
// message shapes.
type Adapter struct {
	client *Client
	logger *logging.Logger
}

// NewAdapter creates the WhatsApp adapter.
func NewAdapter(client *Client, logger *logging.Logger) *Adapter {
	if client == nil {
		panic("whatsapp: client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{client: client, logger: logger}
}

// Type returns the channel this adapter serves.
func (a *Adapter) Type() channel.Type {
	return channel.TypeWhatsApp
}

// ParseIncoming converts a gateway webhook payload into a canonical
// incoming message. It is pure: same payload, same result.
func (a *Adapter) ParseIncoming(raw []byte) (channel.IncomingMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return channel.IncomingMessage{}, fmt.Errorf("whatsapp: decode envelope: %w", err)
	}

	if env.Event != "messages.upsert" {
		return channel.IncomingMessage{}, fmt.Errorf("whatsapp: unsupported event %q", env.Event)
	}
	if env.Data.Key.FromMe {
		return channel.IncomingMessage{}, ErrSelfMessage
	}
	if env.Data.Key.ID == "" {
		return channel.IncomingMessage{}, errors.New("whatsapp: missing message id")
	}

	content, err := parseContent(env.Data.Message)
	if err != nil {
		return channel.IncomingMessage{}, err
	}

	jid := env.Data.Key.RemoteJID
	msg := channel.IncomingMessage{
		ID:             env.Data.Key.ID,
		ChannelType:    channel.TypeWhatsApp,
		InstanceID:     env.Instance,
		ConversationID: jid,
		Sender: channel.Sender{
			ID:    jid,
			Name:  env.Data.PushName,
			Phone: phoneFromJID(jid),
		},
		Content:   content,
		Timestamp: time.Unix(env.Data.MessageTimestamp, 0).UTC(),
	}
	if env.Data.MessageTimestamp == 0 {
		msg.Timestamp = time.Time{}
	}
	return msg, nil
}

func parseContent(m *messageContent) (channel.Content, error) {
	if m == nil {
		return channel.Content{}, errors.New("whatsapp: empty message body")
	}

	switch {
	case m.Conversation != "":
		return channel.Content{Type: channel.ContentText, Text: m.Conversation}, nil
	case m.ExtendedText != nil:
		return channel.Content{Type: channel.ContentText, Text: m.ExtendedText.Text}, nil
	case m.Image != nil:
		return mediaContent(channel.ContentImage, m.Image), nil
	case m.Audio != nil:
		return mediaContent(channel.ContentAudio, m.Audio), nil
	case m.Document != nil:
		return mediaContent(channel.ContentDocument, m.Document), nil
	case m.Location != nil:
		return channel.Content{
			Type: channel.ContentLocation,
			Text: fmt.Sprintf("%s (%f, %f)", m.Location.Name, m.Location.Latitude, m.Location.Longitude),
		}, nil
	default:
		return channel.Content{}, errors.New("whatsapp: unsupported message type")
	}
}

func mediaContent(kind channel.ContentType, m *mediaMessage) channel.Content {
	return channel.Content{
		Type: kind,
		Text: m.Caption,
		Media: &channel.Media{
			URL:      m.URL,
			MimeType: m.MimeType,
			Caption:  m.Caption,
		},
	}
}

func phoneFromJID(jid string) string {
	number, _, found := strings.Cut(jid, "@")
	if !found {
		return ""
	}
	return "+" + number
}

// FormatResponse builds a canonical outgoing message for a conversation.
func (a *Adapter) FormatResponse(conversationID, text string, metadata map[string]string) channel.OutgoingMessage {
	return channel.OutgoingMessage{
		ConversationID: conversationID,
		Content:        channel.Content{Type: channel.ContentText, Text: text},
		Metadata:       metadata,
	}
}

// Send transmits an outgoing message through the gateway. The recipient JID
// and gateway instance travel in the message metadata.
func (a *Adapter) Send(ctx context.Context, msg channel.OutgoingMessage) error {
	recipient := msg.Metadata["recipient"]
	instance := msg.Metadata["instance_id"]
	if recipient == "" || instance == "" {
		return errors.New("whatsapp: outgoing message missing recipient or instance")
	}

	_, err := a.client.SendText(ctx, instance, recipient, msg.Content.Text)
	if err != nil {
		a.logger.Error("whatsapp: failed to send message",
			"conversation_id", msg.ConversationID,
			"instance_id", instance,
			"error", err,
		)
	}
	return err
}
