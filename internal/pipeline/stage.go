package pipeline

import "github.com/medicita/medicita-platform/internal/nlu"

// Stage is the pipeline's derived progress marker within a conversation,
// distinct from the conversation's lifecycle status.
type Stage string

const (
	StageInitial                Stage = "initial"
	StageGreetingResponded      Stage = "greeting_responded"
	StageBookingSpecialtyNeeded Stage = "booking_specialty_needed"
	StageBookingDateNeeded      Stage = "booking_date_needed"
	StageBookingReady           Stage = "booking_ready"
	StageInquiryProcessing      Stage = "inquiry_processing"
	StageEmergencyEscalated     Stage = "emergency_escalated"
	StageProcessing             Stage = "processing"
)

// ComputeStage recomputes the conversation stage from the current intent and
// entities alone. It is a pure function: identical inputs always yield the
// identical stage regardless of where the conversation was before. The
// emergency stage's stickiness is applied by the caller, not here.
func ComputeStage(intent nlu.Intent, entities nlu.Entities) Stage {
	switch intent {
	case nlu.IntentAppointmentBooking:
		hasSpecialty := entities.Specialty != ""
		hasDate := entities.PreferredDate != ""
		switch {
		case hasSpecialty && hasDate:
			return StageBookingReady
		case hasSpecialty:
			return StageBookingDateNeeded
		default:
			return StageBookingSpecialtyNeeded
		}
	case nlu.IntentAppointmentInquiry:
		return StageInquiryProcessing
	case nlu.IntentGreeting:
		return StageGreetingResponded
	case nlu.IntentEmergency:
		return StageEmergencyEscalated
	default:
		return StageProcessing
	}
}
