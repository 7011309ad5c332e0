// Package channel defines the canonical message shapes exchanged between
// channel adapters and the conversation pipeline, plus the per-instance
// configuration the pipeline consumes read-only.
package channel

import (
	"time"

	"github.com/medicita/medicita-platform/internal/schedule"
)

// Type identifies which messaging channel a message arrived on.
type Type string

const (
	TypeUnknown   Type = ""
	TypeWhatsApp  Type = "whatsapp"
	TypeTelegram  Type = "telegram"
	TypeInstagram Type = "instagram"
	TypeWebchat   Type = "webchat"
)

// ParseType maps a URL path segment to a channel type. The second
// return value is false for channels the platform does not know.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypeWhatsApp, TypeTelegram, TypeInstagram, TypeWebchat:
		return Type(s), true
	default:
		return TypeUnknown, false
	}
}

// ContentType distinguishes text messages from media attachments.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentAudio    ContentType = "audio"
	ContentDocument ContentType = "document"
	ContentLocation ContentType = "location"
)

// Media describes an attachment on an incoming message.
type Media struct {
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Content is the payload of a message.
type Content struct {
	Type  ContentType `json:"type"`
	Text  string      `json:"text,omitempty"`
	Media *Media      `json:"media,omitempty"`
}

// Sender identifies the contact who sent an incoming message.
type Sender struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Username string `json:"username,omitempty"`
}

// IncomingMessage is the canonical inbound message the pipeline consumes.
// The id is provider-assigned and is the idempotency key for duplicate
// webhook deliveries.
type IncomingMessage struct {
	ID             string            `json:"id"`
	ChannelType    Type              `json:"channel_type"`
	InstanceID     string            `json:"instance_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Sender         Sender            `json:"sender"`
	Content        Content           `json:"content"`
	Timestamp      time.Time         `json:"timestamp"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// OutgoingMessage is the canonical reply shape handed back to an adapter.
type OutgoingMessage struct {
	ConversationID string            `json:"conversation_id"`
	Content        Content           `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// AIParams are the per-instance model settings forwarded to the NLU layer.
type AIParams struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	CustomPrompt string
}

// InstanceConfig is the read-only per-tenant configuration for one channel
// instance. It is passed explicitly into every pipeline invocation; the
// pipeline holds no per-instance state of its own.
type InstanceConfig struct {
	OrgID      string
	InstanceID string
	Channel    Type

	AutoReplyEnabled bool
	// ReplyToUnknown controls whether an unknown intent with no actionable
	// entities still receives a clarifying reply.
	ReplyToUnknown bool
	BusinessHours  *schedule.BusinessHours

	AI AIParams
}
