// Package booking bridges conversational booking intents into the external
// appointment service and formats results back into patient-facing text.
package booking

import (
	"context"
	"time"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/nlu"
)

// Request is a booking-shaped intent translated from conversation entities.
type Request struct {
	ChannelType    channel.Type `json:"channel_type"`
	ConversationID string       `json:"conversation_id"`
	PatientID      string       `json:"patient_id,omitempty"`
	Specialty      string       `json:"specialty"`
	PreferredDate  string       `json:"preferred_date"`
	PreferredTime  string       `json:"preferred_time,omitempty"`
	Urgency        nlu.Urgency  `json:"urgency"`
	Symptoms       []string     `json:"symptoms,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	// SlotID confirms a previously offered slot; when set the bridge books
	// instead of querying availability.
	SlotID string `json:"slot_id,omitempty"`
}

// Slot is one available appointment slot returned by the service.
type Slot struct {
	ID         string    `json:"id"`
	DoctorName string    `json:"doctor_name"`
	Specialty  string    `json:"specialty"`
	StartsAt   time.Time `json:"starts_at"`
}

// Appointment is an existing or newly created appointment.
type Appointment struct {
	ID         string    `json:"id"`
	Specialty  string    `json:"specialty"`
	DoctorName string    `json:"doctor_name"`
	StartsAt   time.Time `json:"starts_at"`
	Status     string    `json:"status"`
}

// AvailabilityQuery asks the appointment service for open slots.
type AvailabilityQuery struct {
	Specialty     string
	PreferredDate string
	PreferredTime string
	Urgency       nlu.Urgency
}

// CreateRequest books a specific slot for a patient.
type CreateRequest struct {
	SlotID    string
	PatientID string
	Specialty string
	Symptoms  []string
	Notes     string
}

// AppointmentsQuery lists a patient's appointments.
type AppointmentsQuery struct {
	PatientID      string
	ConversationID string
	IncludePast    bool
}

// AppointmentService is the external scheduling system the bridge talks to.
type AppointmentService interface {
	FindSlots(ctx context.Context, query AvailabilityQuery) ([]Slot, error)
	CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error)
	ListAppointments(ctx context.Context, query AppointmentsQuery) ([]Appointment, error)
}

// Result is the outcome of a booking request, already formatted for the
// patient. Err carries the internal cause for logging only; Message never
// exposes it.
type Result struct {
	Success        bool
	Message        string
	AvailableSlots []Slot
	NextStep       string
	AppointmentID  string
	Err            error
}
