package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service. It performs
// persistence only; business validation lives in the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetClinicianByID(ctx context.Context, id uuid.UUID) (*Clinician, error)
	GetAreaByID(ctx context.Context, id uuid.UUID) (*Area, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListByClinicianAndDay returns every appointment of the clinician whose
	// scheduled_at falls on the given calendar day, any status.
	ListByClinicianAndDay(ctx context.Context, clinicianID uuid.UUID, day time.Time) ([]Appointment, error)

	// Creation and transitions. The conditional writes return
	// ErrAppointmentNotFound when no row matched the expected status, so a
	// lost race surfaces instead of overwriting.
	CreateRequested(ctx context.Context, patientID, areaID uuid.UUID, notes string) (*Appointment, error)
	ConfirmSlot(ctx context.Context, id, clinicianID uuid.UUID, at time.Time) (*Appointment, error)
	MoveSlot(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	CreateSession(ctx context.Context, s ClinicalSession) (*ClinicalSession, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// RecordDirectory answers whether a patient has an active clinical record.
// The record content itself belongs to another subsystem.
type RecordDirectory interface {
	ActiveRecord(ctx context.Context, patientID uuid.UUID) (uuid.UUID, bool, error)
}
