package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medicita/medicita-platform/pkg/logging"
)

const (
	maxOfferedSlots       = 3
	defaultBookingTimeout = 15 * time.Second

	retryMessage = "Lo siento, no pude consultar la agenda en este momento. Por favor intenta de nuevo en unos minutos."

	// NextStep values the pipeline stores as pending context.
	StepSelectSlot = "select_slot"
	StepConfirmed  = "confirmed"
	StepRetry      = "retry"
)

// Bridge translates conversational booking requests into appointment
// service calls.
type Bridge struct {
	service AppointmentService
	timeout time.Duration
	logger  *logging.Logger
}

// BridgeOption customizes the bridge.
type BridgeOption func(*Bridge)

// WithTimeout bounds every appointment service call.
func WithTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// NewBridge wraps the appointment service.
func NewBridge(service AppointmentService, logger *logging.Logger, opts ...BridgeOption) *Bridge {
	if service == nil {
		panic("booking: appointment service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	b := &Bridge{service: service, timeout: defaultBookingTimeout, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ProcessBookingRequest turns a booking intent into either an availability
// query or an appointment creation call. Service failures produce a generic
// retry message; internal error text never reaches the patient.
func (b *Bridge) ProcessBookingRequest(ctx context.Context, req Request) Result {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if strings.TrimSpace(req.SlotID) != "" {
		return b.createAppointment(ctx, req)
	}
	return b.queryAvailability(ctx, req)
}

func (b *Bridge) queryAvailability(ctx context.Context, req Request) Result {
	slots, err := b.service.FindSlots(ctx, AvailabilityQuery{
		Specialty:     req.Specialty,
		PreferredDate: req.PreferredDate,
		PreferredTime: req.PreferredTime,
		Urgency:       req.Urgency,
	})
	if err != nil {
		b.logger.Error("availability query failed",
			"error", err,
			"conversation_id", req.ConversationID,
			"specialty", req.Specialty,
		)
		return Result{Success: false, Message: retryMessage, NextStep: StepRetry, Err: err}
	}

	if len(slots) == 0 {
		return Result{
			Success:  true,
			Message:  fmt.Sprintf("No encontré horarios disponibles de %s para el %s. ¿Quieres intentar con otra fecha?", req.Specialty, req.PreferredDate),
			NextStep: StepRetry,
		}
	}

	if len(slots) > maxOfferedSlots {
		slots = slots[:maxOfferedSlots]
	}

	var sb strings.Builder
	sb.WriteString("Encontré estos horarios disponibles:\n")
	for i, slot := range slots {
		sb.WriteString(fmt.Sprintf("%d. %s — %s (%s)\n",
			i+1,
			slot.StartsAt.Format("02/01/2006 15:04"),
			slot.DoctorName,
			slot.Specialty,
		))
	}
	sb.WriteString("Responde con el número de tu preferencia para confirmar.")

	return Result{
		Success:        true,
		Message:        sb.String(),
		AvailableSlots: slots,
		NextStep:       StepSelectSlot,
	}
}

func (b *Bridge) createAppointment(ctx context.Context, req Request) Result {
	appt, err := b.service.CreateAppointment(ctx, CreateRequest{
		SlotID:    req.SlotID,
		PatientID: req.PatientID,
		Specialty: req.Specialty,
		Symptoms:  req.Symptoms,
		Notes:     req.Notes,
	})
	if err != nil {
		b.logger.Error("appointment creation failed",
			"error", err,
			"conversation_id", req.ConversationID,
			"slot_id", req.SlotID,
		)
		return Result{Success: false, Message: retryMessage, NextStep: StepRetry, Err: err}
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("¡Listo! Tu cita de %s con %s quedó confirmada para el %s. Tu número de confirmación es %s.",
			appt.Specialty,
			appt.DoctorName,
			appt.StartsAt.Format("02/01/2006 a las 15:04"),
			appt.ID,
		),
		NextStep:      StepConfirmed,
		AppointmentID: appt.ID,
	}
}

// QueryAppointments formats the patient's appointment list for the channel.
func (b *Bridge) QueryAppointments(ctx context.Context, query AppointmentsQuery) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	appointments, err := b.service.ListAppointments(ctx, query)
	if err != nil {
		b.logger.Error("appointments query failed",
			"error", err,
			"conversation_id", query.ConversationID,
		)
		return retryMessage, fmt.Errorf("booking: list appointments: %w", err)
	}

	if len(appointments) == 0 {
		return "No tienes citas programadas por el momento. ¿Quieres agendar una?", nil
	}

	var sb strings.Builder
	sb.WriteString("Estas son tus citas:\n")
	for _, appt := range appointments {
		sb.WriteString(fmt.Sprintf("• [%s] %s — %s, %s (ref %s)\n",
			appt.Status,
			appt.Specialty,
			appt.StartsAt.Format("02/01/2006"),
			appt.StartsAt.Format("15:04"),
			appt.ID,
		))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
