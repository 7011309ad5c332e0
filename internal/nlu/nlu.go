// Package nlu defines the intent classification and entity extraction
// contracts the pipeline depends on, plus the shipped implementations.
package nlu

import (
	"context"
	"strings"

	"github.com/medicita/medicita-platform/internal/channel"
)

// Intent is the closed set of things a patient can want from the channel.
type Intent string

const (
	IntentUnknown            Intent = "unknown"
	IntentGreeting           Intent = "greeting"
	IntentAppointmentBooking Intent = "appointment_booking"
	IntentAppointmentInquiry Intent = "appointment_inquiry"
	IntentRescheduling       Intent = "rescheduling"
	IntentCancellation       Intent = "cancellation"
	IntentEmergency          Intent = "emergency"
)

// ParseIntent maps a raw classifier label onto the closed set, defaulting
// to unknown for anything unrecognized.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentGreeting:
		return IntentGreeting
	case IntentAppointmentBooking:
		return IntentAppointmentBooking
	case IntentAppointmentInquiry:
		return IntentAppointmentInquiry
	case IntentRescheduling:
		return IntentRescheduling
	case IntentCancellation:
		return IntentCancellation
	case IntentEmergency:
		return IntentEmergency
	default:
		return IntentUnknown
	}
}

// Urgency grades how soon the patient needs to be seen.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

// Entities is the structured bag extracted from free text.
type Entities struct {
	Specialty     string   `json:"specialty,omitempty"`
	PreferredDate string   `json:"preferred_date,omitempty"`
	PreferredTime string   `json:"preferred_time,omitempty"`
	Urgency       Urgency  `json:"urgency,omitempty"`
	Symptoms      []string `json:"symptoms,omitempty"`
	PatientName   string   `json:"patient_name,omitempty"`
	Phone         string   `json:"phone,omitempty"`
}

// FieldCount returns the number of populated entity fields. The confidence
// score scales with it.
func (e Entities) FieldCount() int {
	count := 0
	if strings.TrimSpace(e.Specialty) != "" {
		count++
	}
	if strings.TrimSpace(e.PreferredDate) != "" {
		count++
	}
	if strings.TrimSpace(e.PreferredTime) != "" {
		count++
	}
	if e.Urgency != "" {
		count++
	}
	if len(e.Symptoms) > 0 {
		count++
	}
	if strings.TrimSpace(e.PatientName) != "" {
		count++
	}
	if strings.TrimSpace(e.Phone) != "" {
		count++
	}
	return count
}

// IsEmpty reports whether no entity field is populated.
func (e Entities) IsEmpty() bool {
	return e.FieldCount() == 0
}

// Request carries the message text plus prior conversation context into the
// classifier and extractor.
type Request struct {
	Text        string
	PriorIntent Intent
	PriorStage  string
	Params      channel.AIParams
}

// IntentClassifier returns one intent from the closed set for a message.
// A failing classifier must be treated as IntentUnknown by the caller.
type IntentClassifier interface {
	Classify(ctx context.Context, req Request) (Intent, error)
}

// EntityExtractor pulls structured fields out of the message text given the
// detected intent. A failing extractor degrades to an empty bag.
type EntityExtractor interface {
	Extract(ctx context.Context, req Request, intent Intent) (Entities, error)
}
