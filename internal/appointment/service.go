package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/clinagenda/appointment-service/internal/redis"
)

const (
	EventAppointmentRequested   = "APPOINTMENT_REQUESTED"
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentAssigned    = "APPOINTMENT_ASSIGNED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventSessionCompleted       = "SESSION_COMPLETED"
)

// Service is the appointment state machine. Every mutation that claims a slot
// runs its availability check and its write inside the per-slot lock, with the
// partial unique index on confirmed (clinician_id, scheduled_at) as the final
// word.
type Service struct {
	repo    Repository
	calc    *Calculator
	locker  redisclient.Locker
	records RecordDirectory
	log     zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, records RecordDirectory, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		calc:    NewCalculator(repo),
		locker:  locker,
		records: records,
		log:     log,
	}
}

// RequestAppointment creates a patient-initiated appointment with no clinician
// and no slot. Requested appointments never block anyone's availability.
func (s *Service) RequestAppointment(ctx context.Context, patientID, areaID uuid.UUID, notes string) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAreaByID(ctx, areaID); err != nil {
		return nil, err
	}

	appt, err := s.repo.CreateRequested(ctx, patientID, areaID, notes)
	if err != nil {
		return nil, fmt.Errorf("create requested appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventAppointmentRequested, map[string]any{
		"patient_id": patientID.String(),
		"area_id":    areaID.String(),
	})

	return appt, nil
}

// Assign moves a requested appointment onto a clinician's slot and confirms
// it.
func (s *Service) Assign(ctx context.Context, appointmentID, clinicianID uuid.UUID, date string, hour int) (*Appointment, error) {
	at, err := s.validateSlot(date, hour)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusRequested {
		return nil, &InvalidStateError{AppointmentID: appt.ID, Status: appt.Status, Attempted: "assign"}
	}

	if _, err := s.repo.GetClinicianByID(ctx, clinicianID); err != nil {
		return nil, err
	}

	var updated *Appointment

	err = s.locker.WithSlotLock(ctx, clinicianID, date, hour, func(lockCtx context.Context) error {
		free, err := s.calc.slotFree(lockCtx, clinicianID, date, hour, nil)
		if err != nil {
			return err
		}
		if !free {
			return &ConflictError{ClinicianID: clinicianID, Date: date, Hour: hour}
		}

		confirmed, err := s.repo.ConfirmSlot(lockCtx, appt.ID, clinicianID, at)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// The row left REQUESTED between our read and the write.
				return &InvalidStateError{AppointmentID: appt.ID, Status: appt.Status, Attempted: "assign"}
			}
			return fmt.Errorf("confirm slot: %w", err)
		}

		updated = confirmed

		s.logEvent(lockCtx, confirmed.ID, EventAppointmentAssigned, map[string]any{
			"clinician_id": clinicianID.String(),
			"date":         date,
			"hour":         hour,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return updated, nil
}

// Book is the staff shortcut: request plus assign in one validated step, so a
// walk-in or phone booking lands CONFIRMED without a dangling request.
func (s *Service) Book(ctx context.Context, patientID, areaID, clinicianID uuid.UUID, date string, hour int, notes string) (*Appointment, error) {
	at, err := s.validateSlot(date, hour)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAreaByID(ctx, areaID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetClinicianByID(ctx, clinicianID); err != nil {
		return nil, err
	}

	var booked *Appointment

	err = s.locker.WithSlotLock(ctx, clinicianID, date, hour, func(lockCtx context.Context) error {
		free, err := s.calc.slotFree(lockCtx, clinicianID, date, hour, nil)
		if err != nil {
			return err
		}
		if !free {
			return &ConflictError{ClinicianID: clinicianID, Date: date, Hour: hour}
		}

		appt, err := s.repo.CreateRequested(lockCtx, patientID, areaID, notes)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		confirmed, err := s.repo.ConfirmSlot(lockCtx, appt.ID, clinicianID, at)
		if err != nil {
			return fmt.Errorf("confirm slot: %w", err)
		}

		booked = confirmed

		s.logEvent(lockCtx, confirmed.ID, EventAppointmentBooked, map[string]any{
			"patient_id":   patientID.String(),
			"clinician_id": clinicianID.String(),
			"date":         date,
			"hour":         hour,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return booked, nil
}

// Cancel is terminal. A second cancel fails; looser idempotence is a caller
// retry concern. The freed slot is visible to availability reads as soon as
// the update commits.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, &InvalidStateError{AppointmentID: appt.ID, Status: appt.Status, Attempted: "cancel"}
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, &InvalidStateError{AppointmentID: appt.ID, Status: appt.Status, Attempted: "cancel"}
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"previous_status": string(appt.Status),
	})

	return updated, nil
}

// Availability returns the booking-grid view for one clinician day.
func (s *Service) Availability(ctx context.Context, clinicianID uuid.UUID, date string) (*DayAvailability, error) {
	if _, err := s.repo.GetClinicianByID(ctx, clinicianID); err != nil {
		return nil, err
	}
	return s.calc.Day(ctx, clinicianID, date)
}

// Get retrieves an appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// Agenda lists a clinician's appointments for one day, any status.
func (s *Service) Agenda(ctx context.Context, clinicianID uuid.UUID, date string) ([]Appointment, error) {
	d, err := ParseDate(date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if _, err := s.repo.GetClinicianByID(ctx, clinicianID); err != nil {
		return nil, err
	}
	return s.repo.ListByClinicianAndDay(ctx, clinicianID, d)
}

func (s *Service) validateSlot(date string, hour int) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if !InOperatingWindow(hour) {
		return time.Time{}, &ValidationError{
			Field:  "hour",
			Reason: fmt.Sprintf("must be between %d and %d", WindowOpenHour, WindowCloseHour),
		}
	}
	return SlotTime(d, hour), nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
