package pipeline

import "github.com/medicita/medicita-platform/internal/nlu"

// Next-action names the pipeline hands back to its caller and records in the
// conversation's pending actions.
const (
	ActionRequestSpecialty     = "request_specialty"
	ActionRequestDate          = "request_date"
	ActionCheckAvailability    = "check_availability"
	ActionEscalateToHuman      = "escalate_to_human"
	ActionProvideEmergencyInfo = "provide_emergency_info"
	ActionFetchAppointments    = "fetch_appointments"
	ActionContinueConversation = "continue_conversation"
)

// NextActions derives the pipeline's follow-up actions from the current
// intent and entities. Like ComputeStage it is pure and exhaustive over the
// intent set.
func NextActions(intent nlu.Intent, entities nlu.Entities) []string {
	switch intent {
	case nlu.IntentAppointmentBooking:
		hasSpecialty := entities.Specialty != ""
		hasDate := entities.PreferredDate != ""
		switch {
		case hasSpecialty && hasDate:
			return []string{ActionCheckAvailability}
		case hasSpecialty:
			return []string{ActionRequestDate}
		case hasDate:
			return []string{ActionRequestSpecialty}
		default:
			return []string{ActionRequestSpecialty}
		}
	case nlu.IntentEmergency:
		return []string{ActionEscalateToHuman, ActionProvideEmergencyInfo}
	case nlu.IntentAppointmentInquiry:
		return []string{ActionFetchAppointments}
	case nlu.IntentRescheduling, nlu.IntentCancellation:
		return []string{ActionFetchAppointments, ActionEscalateToHuman}
	case nlu.IntentGreeting:
		return []string{ActionContinueConversation}
	default:
		return []string{ActionContinueConversation}
	}
}
