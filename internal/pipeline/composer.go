package pipeline

import (
	"context"

	"github.com/medicita/medicita-platform/internal/booking"
	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/conversation"
	"github.com/medicita/medicita-platform/internal/nlu"
	"github.com/medicita/medicita-platform/pkg/logging"
)

// Patient-facing responses for the stages the bridge does not cover.
const (
	greetingResponse = "¡Hola! Soy el asistente virtual de la clínica. Puedo ayudarte a agendar una cita, consultar tus citas existentes o responder tus preguntas. ¿En qué te puedo ayudar?"

	askSpecialtyResponse = "Con gusto te ayudo a agendar una cita. ¿Para qué especialidad la necesitas? Por ejemplo: medicina general, cardiología, dermatología o pediatría."

	askDateResponse = "Perfecto. ¿Qué día te gustaría tu cita? Puedes indicarme una fecha como 15/03 o decirme \"la próxima semana\"."

	emergencyResponse = "Si se trata de una emergencia médica, por favor llama inmediatamente al 911 o acude al servicio de urgencias más cercano. Ya he notificado a nuestro equipo para que se comunique contigo lo antes posible."

	rescheduleResponse = "Entiendo que quieres cambiar tu cita. Un miembro de nuestro equipo revisará tu solicitud y te contactará para confirmar el nuevo horario."

	cancelResponse = "Entiendo que quieres cancelar tu cita. Un miembro de nuestro equipo procesará la cancelación y te enviará la confirmación."

	clarifyResponse = "Disculpa, no estoy seguro de haber entendido. ¿Quieres agendar una cita, consultar tus citas o hablar con alguien de nuestro equipo?"

	apologyResponse = "Lo siento, tuvimos un inconveniente procesando tu mensaje. Un miembro de nuestro equipo te contactará en breve."
)

// BookingBridge is the slice of the booking package the composer uses.
type BookingBridge interface {
	ProcessBookingRequest(ctx context.Context, req booking.Request) booking.Result
	QueryAppointments(ctx context.Context, query booking.AppointmentsQuery) (string, error)
}

// Composer turns the pipeline's derived state into patient-facing text,
// delegating booking-shaped stages to the bridge.
type Composer struct {
	bridge BookingBridge
	logger *logging.Logger
}

// NewComposer creates a response composer.
func NewComposer(bridge BookingBridge, logger *logging.Logger) *Composer {
	if bridge == nil {
		panic("pipeline: bridge cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Composer{bridge: bridge, logger: logger}
}

// Compose returns the response text for the message. For booking-shaped
// stages it also returns the bridge result so the pipeline can audit the
// booking outcome; for every other stage the result is nil.
func (c *Composer) Compose(ctx context.Context, conv *conversation.Conversation, msg channel.IncomingMessage, intent nlu.Intent, entities nlu.Entities, stage Stage) (string, *booking.Result) {
	switch stage {
	case StageEmergencyEscalated:
		return emergencyResponse, nil

	case StageGreetingResponded:
		return greetingResponse, nil

	case StageBookingSpecialtyNeeded:
		return askSpecialtyResponse, nil

	case StageBookingDateNeeded:
		return askDateResponse, nil

	case StageBookingReady:
		result := c.bridge.ProcessBookingRequest(ctx, booking.Request{
			ChannelType:    msg.ChannelType,
			ConversationID: conv.ID.String(),
			PatientID:      conv.Contact.ExternalID,
			Specialty:      entities.Specialty,
			PreferredDate:  entities.PreferredDate,
			PreferredTime:  entities.PreferredTime,
			Urgency:        entities.Urgency,
			Symptoms:       entities.Symptoms,
		})
		return result.Message, &result

	case StageInquiryProcessing:
		text, err := c.bridge.QueryAppointments(ctx, booking.AppointmentsQuery{
			PatientID:      conv.Contact.ExternalID,
			ConversationID: conv.ID.String(),
		})
		if err != nil {
			c.logger.Error("appointment inquiry failed",
				"conversation_id", conv.ID.String(),
				"error", err,
			)
			return text, &booking.Result{Success: false, Message: text, Err: err}
		}
		return text, nil

	default:
		switch intent {
		case nlu.IntentRescheduling:
			return rescheduleResponse, nil
		case nlu.IntentCancellation:
			return cancelResponse, nil
		default:
			return clarifyResponse, nil
		}
	}
}
