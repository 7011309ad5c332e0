package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medicita/medicita-platform/internal/channel"
)

// Store persists conversations and messages to PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a conversation store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("conversation: db cannot be nil")
	}
	return &Store{db: db}
}

// FindActive returns the active conversation for (instance, contact), or
// nil when the contact has no active conversation.
func (s *Store) FindActive(ctx context.Context, instanceID, contactID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, channel_type, instance_id,
			   contact_external_id, contact_name, contact_phone,
			   status, message_count, ai_context, created_at, updated_at
		FROM conversations
		WHERE instance_id = $1 AND contact_external_id = $2 AND status = 'active'
	`, instanceID, contactID)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: find active: %w", err)
	}
	return conv, nil
}

// EnsureActive returns the contact's active conversation, creating one with
// stage initial and empty AI context when none exists. The created flag
// reports whether a new conversation was opened.
func (s *Store) EnsureActive(ctx context.Context, orgID string, channelType channel.Type, instanceID string, contact Contact) (*Conversation, bool, error) {
	existing, err := s.FindActive(ctx, instanceID, contact.ExternalID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:          uuid.New(),
		OrgID:       orgID,
		ChannelType: channelType,
		InstanceID:  instanceID,
		Contact:     contact,
		Status:      StatusActive,
		AIContext:   AIContext{Stage: "initial"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctxJSON, err := json.Marshal(conv.AIContext)
	if err != nil {
		return nil, false, fmt.Errorf("conversation: marshal ai context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, org_id, channel_type, instance_id,
			contact_external_id, contact_name, contact_phone,
			status, message_count, ai_context, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, conv.ID, conv.OrgID, conv.ChannelType, conv.InstanceID,
		conv.Contact.ExternalID, nullString(conv.Contact.Name), nullString(conv.Contact.Phone),
		conv.Status, 0, ctxJSON, now, now,
	)
	if err != nil {
		// The partial unique index on (instance_id, contact_external_id)
		// WHERE status = 'active' means a concurrent insert won the race.
		if strings.Contains(err.Error(), "duplicate key") {
			return s.EnsureActive(ctx, orgID, channelType, instanceID, contact)
		}
		return nil, false, fmt.Errorf("conversation: create: %w", err)
	}

	return conv, true, nil
}

// UpdateAIContext stores the pipeline's new AI context for a conversation.
func (s *Store) UpdateAIContext(ctx context.Context, conversationID uuid.UUID, aiCtx AIContext) error {
	ctxJSON, err := json.Marshal(aiCtx)
	if err != nil {
		return fmt.Errorf("conversation: marshal ai context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET ai_context = $1, updated_at = $2 WHERE id = $3
	`, ctxJSON, time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("conversation: update ai context: %w", err)
	}
	return nil
}

// UpdateStatus moves a conversation through its lifecycle (close, archive).
func (s *Store) UpdateStatus(ctx context.Context, conversationID uuid.UUID, status Status) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = $1, updated_at = $2 WHERE id = $3
	`, status, time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("conversation: update status: %w", err)
	}
	return nil
}

// HasProviderMessage reports whether an inbound message with this provider
// id was already stored. The pipeline uses it to skip duplicate webhook
// deliveries.
func (s *Store) HasProviderMessage(ctx context.Context, providerMessageID string) (bool, error) {
	if strings.TrimSpace(providerMessageID) == "" {
		return false, nil
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM messages WHERE provider_message_id = $1 LIMIT 1
	`, providerMessageID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("conversation: check provider message: %w", err)
	}
	return true, nil
}

// AppendMessage inserts a message and bumps the conversation counter.
// Messages are append-only; a duplicate provider id is a silent no-op and
// the returned flag reports whether a row was actually written.
func (s *Store) AppendMessage(ctx context.Context, msg MessageRecord) (bool, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	contentJSON, err := json.Marshal(msg.Content)
	if err != nil {
		return false, fmt.Errorf("conversation: marshal content: %w", err)
	}
	var senderJSON []byte
	if msg.Sender != nil {
		senderJSON, err = json.Marshal(msg.Sender)
		if err != nil {
			return false, fmt.Errorf("conversation: marshal sender: %w", err)
		}
	}
	var metaJSON []byte
	if len(msg.Metadata) > 0 {
		metaJSON, err = json.Marshal(msg.Metadata)
		if err != nil {
			return false, fmt.Errorf("conversation: marshal metadata: %w", err)
		}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, provider_message_id, conversation_id, channel_type,
			direction, content, sender, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider_message_id) DO NOTHING
	`, msg.ID, nullString(msg.ProviderMessageID), msg.ConversationID, msg.ChannelType,
		msg.Direction, contentJSON, senderJSON, metaJSON, msg.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("conversation: insert message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("conversation: read insert result: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET
			message_count = message_count + 1,
			updated_at = $1
		WHERE id = $2
	`, msg.CreatedAt, msg.ConversationID)
	if err != nil {
		return true, fmt.Errorf("conversation: update counters: %w", err)
	}

	return true, nil
}

// ListMessages returns a conversation's messages ordered by timestamp.
func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]MessageRecord, error) {
	query := `
		SELECT id, COALESCE(provider_message_id, ''), conversation_id, channel_type,
			   direction, content, sender, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: list messages: %w", err)
	}
	defer rows.Close()

	var messages []MessageRecord
	for rows.Next() {
		var msg MessageRecord
		var contentJSON, senderJSON, metaJSON []byte
		err := rows.Scan(
			&msg.ID, &msg.ProviderMessageID, &msg.ConversationID, &msg.ChannelType,
			&msg.Direction, &contentJSON, &senderJSON, &metaJSON, &msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		if err := json.Unmarshal(contentJSON, &msg.Content); err != nil {
			return nil, fmt.Errorf("conversation: decode content: %w", err)
		}
		if len(senderJSON) > 0 {
			msg.Sender = &channel.Sender{}
			if err := json.Unmarshal(senderJSON, msg.Sender); err != nil {
				return nil, fmt.Errorf("conversation: decode sender: %w", err)
			}
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("conversation: decode metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var name, phone sql.NullString
	var ctxJSON []byte

	err := row.Scan(
		&conv.ID, &conv.OrgID, &conv.ChannelType, &conv.InstanceID,
		&conv.Contact.ExternalID, &name, &phone,
		&conv.Status, &conv.MessageCount, &ctxJSON, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	conv.Contact.Name = name.String
	conv.Contact.Phone = phone.String
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &conv.AIContext); err != nil {
			return nil, fmt.Errorf("decode ai context: %w", err)
		}
	}
	return &conv, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
