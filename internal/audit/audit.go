// Package audit records every pipeline action as an immutable entry, for
// compliance review and debugging.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActorType identifies who caused a pipeline action.
type ActorType string

const (
	ActorPatient ActorType = "patient"
	ActorStaff   ActorType = "staff"
	ActorSystem  ActorType = "system"
	ActorAI      ActorType = "ai"
)

// Action names for pipeline events. Every state-changing pipeline step logs
// exactly one of these, including failures.
const (
	ActionMessageProcessed  = "pipeline.message_processed"
	ActionMessageRejected   = "pipeline.message_rejected"
	ActionMessageDuplicate  = "pipeline.message_duplicate"
	ActionProcessingFailed  = "pipeline.processing_failed"
	ActionStageChanged      = "pipeline.stage_changed"
	ActionReplySuppressed   = "pipeline.reply_suppressed"
	ActionEscalatedToHuman  = "pipeline.escalated_to_human"
	ActionBookingRequested  = "booking.requested"
	ActionBookingFailed     = "booking.failed"
	ActionAppointmentBooked = "booking.appointment_created"
)

// Entry is an append-only record of one pipeline action.
type Entry struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"organization_id"`
	ChannelType    string          `json:"channel_type"`
	InstanceID     string          `json:"instance_id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Action         string          `json:"action"`
	ActorID        string          `json:"actor_id,omitempty"`
	ActorType      ActorType       `json:"actor_type"`
	Details        json.RawMessage `json:"details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Logger is the narrow contract the pipeline writes through.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// Service persists audit entries to PostgreSQL.
type Service struct {
	db *sql.DB
}

// NewService creates the Postgres-backed audit logger.
func NewService(db *sql.DB) *Service {
	if db == nil {
		panic("audit: db cannot be nil")
	}
	return &Service{db: db}
}

// Log records one audit entry. Entries are never updated or deleted.
func (s *Service) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ActorType == "" {
		entry.ActorType = ActorSystem
	}

	query := `
		INSERT INTO audit_entries (
			id, org_id, channel_type, instance_id, conversation_id,
			action, actor_id, actor_type, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrgID,
		entry.ChannelType,
		entry.InstanceID,
		nullString(entry.ConversationID),
		entry.Action,
		nullString(entry.ActorID),
		entry.ActorType,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log entry: %w", err)
	}
	return nil
}

// Filter specifies criteria for querying audit entries.
type Filter struct {
	OrgID          string
	ConversationID string
	Action         string
	StartTime      time.Time
	EndTime        time.Time
	Limit          int
	Offset         int
}

// Query retrieves audit entries matching the filter, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, org_id, channel_type, instance_id, conversation_id,
			   action, actor_id, actor_type, details, created_at
		FROM audit_entries
		WHERE org_id = $1
	`
	args := []interface{}{filter.OrgID}
	argIdx := 2

	if filter.ConversationID != "" {
		query += fmt.Sprintf(" AND conversation_id = $%d", argIdx)
		args = append(args, filter.ConversationID)
		argIdx++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, filter.Action)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var convID, actorID sql.NullString
		err := rows.Scan(
			&e.ID, &e.OrgID, &e.ChannelType, &e.InstanceID, &convID,
			&e.Action, &actorID, &e.ActorType, &e.Details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		e.ConversationID = convID.String
		e.ActorID = actorID.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
