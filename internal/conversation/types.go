// Package conversation persists conversations, their AI context, and the
// append-only message history backing the channel pipeline.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/nlu"
)

// Status is the conversation lifecycle state, distinct from the AI stage.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
)

// Direction marks whether a message came from the patient or was sent by us.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Contact identifies the patient on the channel.
type Contact struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// AIContext is the pipeline-owned state embedded in a conversation. It is
// mutated exclusively by the pipeline after each processed message.
type AIContext struct {
	CurrentIntent  string       `json:"current_intent,omitempty"`
	LastEntities   nlu.Entities `json:"last_entities"`
	Stage          string       `json:"stage,omitempty"`
	PendingActions []string     `json:"pending_actions,omitempty"`
	Confidence     float64      `json:"confidence"`
}

// Conversation is the ongoing exchange with one contact on one channel
// instance. At most one active conversation exists per (instance, contact).
type Conversation struct {
	ID           uuid.UUID
	OrgID        string
	ChannelType  channel.Type
	InstanceID   string
	Contact      Contact
	Status       Status
	MessageCount int
	AIContext    AIContext
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MessageRecord is one immutable message in a conversation. Inbound
// messages keep the provider-assigned id for idempotency; outbound ids are
// generated.
type MessageRecord struct {
	ID                uuid.UUID
	ProviderMessageID string
	ConversationID    uuid.UUID
	ChannelType       channel.Type
	Direction         Direction
	Content           channel.Content
	Sender            *channel.Sender
	Metadata          map[string]string
	CreatedAt         time.Time
}
