package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPService talks to the clinic's scheduling system over its REST API.
type HTTPService struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ AppointmentService = (*HTTPService)(nil)

// NewHTTPService creates a scheduling API client.
func NewHTTPService(baseURL, token string) *HTTPService {
	return &HTTPService{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetBaseURL overrides the API base URL (useful for testing).
func (s *HTTPService) SetBaseURL(base string) {
	s.baseURL = base
}

type availabilityRequest struct {
	Specialty     string `json:"specialty"`
	PreferredDate string `json:"preferred_date,omitempty"`
	PreferredTime string `json:"preferred_time,omitempty"`
	Urgency       string `json:"urgency,omitempty"`
}

type availabilityResponse struct {
	Slots []Slot `json:"slots"`
}

type createAppointmentRequest struct {
	SlotID    string   `json:"slot_id"`
	PatientID string   `json:"patient_id"`
	Specialty string   `json:"specialty,omitempty"`
	Symptoms  []string `json:"symptoms,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

type appointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

// FindSlots asks the scheduling system for open slots.
func (s *HTTPService) FindSlots(ctx context.Context, query AvailabilityQuery) ([]Slot, error) {
	req := availabilityRequest{
		Specialty:     query.Specialty,
		PreferredDate: query.PreferredDate,
		PreferredTime: query.PreferredTime,
		Urgency:       string(query.Urgency),
	}
	var resp availabilityResponse
	if err := s.post(ctx, "/v1/availability", req, &resp); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

// CreateAppointment books a previously offered slot.
func (s *HTTPService) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	body := createAppointmentRequest{
		SlotID:    req.SlotID,
		PatientID: req.PatientID,
		Specialty: req.Specialty,
		Symptoms:  req.Symptoms,
		Notes:     req.Notes,
	}
	var appt Appointment
	if err := s.post(ctx, "/v1/appointments", body, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListAppointments returns a patient's appointments.
func (s *HTTPService) ListAppointments(ctx context.Context, query AppointmentsQuery) ([]Appointment, error) {
	path := "/v1/patients/" + url.PathEscape(query.PatientID) + "/appointments" +
		"?include_past=" + strconv.FormatBool(query.IncludePast)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("booking: create request: %w", err)
	}
	var resp appointmentsResponse
	if err := s.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return resp.Appointments, nil
}

func (s *HTTPService) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("booking: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("booking: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return s.do(httpReq, out)
}

func (s *HTTPService) do(req *http.Request, out any) error {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("booking: call scheduling service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("booking: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("booking: scheduling service error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("booking: unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("booking: unmarshal response: %w", err)
	}
	return nil
}
