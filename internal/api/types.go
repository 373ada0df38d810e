package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinagenda/appointment-service/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	AreaID    string `json:"area_id"`
	Notes     string `json:"notes,omitempty"`

	// Optional: when all three are present the appointment is booked
	// directly by staff instead of left as a request.
	ClinicianID string `json:"clinician_id,omitempty"`
	Date        string `json:"date,omitempty"`
	Hour        *int   `json:"hour,omitempty"`
}

type AssignRequest struct {
	ClinicianID string `json:"clinician_id"`
	Date        string `json:"date"`
	Hour        int    `json:"hour"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Hour int    `json:"hour"`
}

type FollowUpRequest struct {
	Date string `json:"date"`
	Hour int    `json:"hour"`
}

type CompleteSessionRequest struct {
	Attended bool             `json:"attended"`
	Notes    string           `json:"notes,omitempty"`
	FollowUp *FollowUpRequest `json:"follow_up,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	ClinicianID     *uuid.UUID `json:"clinician_id,omitempty"`
	AreaID          uuid.UUID  `json:"area_id"`
	Date            string     `json:"date,omitempty"`
	Hour            *int       `json:"hour,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type SessionResponse struct {
	ID               uuid.UUID `json:"id"`
	AppointmentID    uuid.UUID `json:"appointment_id"`
	ClinicalRecordID uuid.UUID `json:"clinical_record_id"`
	Attended         bool      `json:"attended"`
	CreatedAt        time.Time `json:"created_at"`
}

type CompleteSessionResponse struct {
	Session         SessionResponse      `json:"session"`
	NextAppointment *AppointmentResponse `json:"next_appointment,omitempty"`
}

type OperatingWindow struct {
	Open  int `json:"open"`
	Close int `json:"close"`
}

type AvailabilityResponse struct {
	ClinicianID     uuid.UUID       `json:"clinician_id"`
	Date            string          `json:"date"`
	OccupiedHours   []int           `json:"occupied_hours"`
	OperatingWindow OperatingWindow `json:"operating_window"`
	IsWeekend       bool            `json:"is_weekend"`
}

type SlotDetail struct {
	ClinicianID uuid.UUID `json:"clinician_id,omitempty"`
	Date        string    `json:"date"`
	Hour        int       `json:"hour"`
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Details string      `json:"details,omitempty"`
	Slot    *SlotDetail `json:"slot,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		ClinicianID:     a.ClinicianID,
		AreaID:          a.AreaID,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
	}
	if a.ScheduledAt != nil {
		resp.Date = a.ScheduledAt.Format("2006-01-02")
		h := a.ScheduledAt.Hour()
		resp.Hour = &h
	}
	return resp
}

func toSessionResponse(s *appointment.ClinicalSession) SessionResponse {
	return SessionResponse{
		ID:               s.ID,
		AppointmentID:    s.AppointmentID,
		ClinicalRecordID: s.ClinicalRecordID,
		Attended:         s.Attended,
		CreatedAt:        s.CreatedAt,
	}
}
