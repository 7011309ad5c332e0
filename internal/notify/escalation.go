package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medicita/medicita-platform/internal/tenancy"
	"github.com/medicita/medicita-platform/pkg/logging"
)

// Escalation describes a conversation that needs human attention.
type Escalation struct {
	OrgID          string
	ChannelType    string
	InstanceID     string
	ConversationID string
	PatientName    string
	PatientPhone   string
	Intent         string
	Urgency        string
	MessageText    string
	OccurredAt     time.Time
}

// EscalationService emails clinic staff when the pipeline escalates a
// conversation.
type EscalationService struct {
	email   EmailSender
	toEmail string
	logger  *logging.Logger
}

// NewEscalationService creates an escalation notifier. A nil email sender
// disables notifications.
func NewEscalationService(email EmailSender, toEmail string, logger *logging.Logger) *EscalationService {
	if logger == nil {
		logger = logging.Default()
	}
	return &EscalationService{
		email:   email,
		toEmail: toEmail,
		logger:  logger,
	}
}

// NotifyEscalation sends one escalation email to the configured staff
// address.
func (s *EscalationService) NotifyEscalation(ctx context.Context, esc Escalation) error {
	if s == nil || s.email == nil || s.toEmail == "" {
		return nil
	}
	if esc.OrgID == "" {
		esc.OrgID, _ = tenancy.OrgIDFromContext(ctx)
	}

	subject := fmt.Sprintf("[Medicita] Conversación escalada (%s)", esc.ChannelType)
	if esc.Urgency == "emergency" {
		subject = fmt.Sprintf("[Medicita] URGENTE: posible emergencia (%s)", esc.ChannelType)
	}

	var sb strings.Builder
	sb.WriteString("Una conversación necesita atención humana.\n\n")
	fmt.Fprintf(&sb, "Paciente: %s\n", orDash(esc.PatientName))
	fmt.Fprintf(&sb, "Teléfono: %s\n", orDash(esc.PatientPhone))
	fmt.Fprintf(&sb, "Canal: %s (instancia %s)\n", esc.ChannelType, esc.InstanceID)
	fmt.Fprintf(&sb, "Conversación: %s\n", esc.ConversationID)
	fmt.Fprintf(&sb, "Intención detectada: %s\n", orDash(esc.Intent))
	if esc.Urgency != "" {
		fmt.Fprintf(&sb, "Urgencia: %s\n", esc.Urgency)
	}
	if esc.MessageText != "" {
		fmt.Fprintf(&sb, "\nÚltimo mensaje:\n%s\n", esc.MessageText)
	}
	if !esc.OccurredAt.IsZero() {
		fmt.Fprintf(&sb, "\nRecibido: %s\n", esc.OccurredAt.Format(time.RFC3339))
	}

	err := s.email.Send(ctx, EmailMessage{
		To:      s.toEmail,
		Subject: subject,
		Body:    sb.String(),
	})
	if err != nil {
		s.logger.Error("escalation email failed", "error", err, "conversation_id", esc.ConversationID)
		return err
	}

	s.logger.Info("escalation email sent",
		"conversation_id", esc.ConversationID,
		"org_id", esc.OrgID,
		"urgency", esc.Urgency,
	)
	return nil
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
