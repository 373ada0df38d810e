package appointment

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. Handlers branch on these with errors.Is; the detail types
// below unwrap to them and carry the offending field/slot for the response
// body.
var (
	ErrValidation          = errors.New("invalid input")
	ErrConflict            = errors.New("slot already booked")
	ErrInvalidState        = errors.New("invalid status transition")
	ErrMissingPrerequisite = errors.New("missing prerequisite")
	ErrSlotBeingBooked     = errors.New("slot is currently being booked, please retry")

	ErrPatientNotFound     = errors.New("patient not found")
	ErrClinicianNotFound   = errors.New("clinician not found")
	ErrAreaNotFound        = errors.New("area not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ConflictError reports the occupied slot that rejected an assign or
// reschedule.
type ConflictError struct {
	ClinicianID uuid.UUID
	Date        string
	Hour        int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("clinician %s already has a confirmed appointment at %s %02d:00", e.ClinicianID, e.Date, e.Hour)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvalidStateError reports a transition attempted from a state that does not
// permit it.
type InvalidStateError struct {
	AppointmentID uuid.UUID
	Status        Status
	Attempted     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s appointment %s in status %s", e.Attempted, e.AppointmentID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MissingPrerequisiteError is returned when a session is recorded for a
// patient without an active clinical record. Callers redirect to the
// record-creation flow on this one.
type MissingPrerequisiteError struct {
	PatientID    uuid.UUID
	Prerequisite string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("patient %s has no %s", e.PatientID, e.Prerequisite)
}

func (e *MissingPrerequisiteError) Unwrap() error { return ErrMissingPrerequisite }
