package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/clinagenda/appointment-service/internal/redis"
)

// SessionResult is what closing an encounter produces: the recorded session
// and, when the clinician picked a follow-up slot, the next appointment.
type SessionResult struct {
	Session         *ClinicalSession
	NextAppointment *Appointment
}

// CompleteSession records the outcome of the encounter held during a
// confirmed appointment. A patient without an active clinical record fails
// with MissingPrerequisiteError so the caller can branch into the
// record-creation flow. When a follow-up slot was picked, the next appointment
// for the same patient, clinician and area is created through the normal
// validated path; a taken follow-up slot fails the whole call before the
// session row is written, nothing is silently dropped.
func (s *Service) CompleteSession(ctx context.Context, appointmentID uuid.UUID, enc EncounterData) (*SessionResult, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusConfirmed || appt.ClinicianID == nil {
		return nil, &InvalidStateError{AppointmentID: appt.ID, Status: appt.Status, Attempted: "complete session"}
	}

	recordID, ok, err := s.records.ActiveRecord(ctx, appt.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check clinical record: %w", err)
	}
	if !ok {
		return nil, &MissingPrerequisiteError{PatientID: appt.PatientID, Prerequisite: "active clinical record"}
	}

	session := ClinicalSession{
		AppointmentID:    appt.ID,
		ClinicalRecordID: recordID,
		Attended:         enc.Attended,
		Notes:            enc.Notes,
	}

	if enc.FollowUp == nil {
		stored, err := s.repo.CreateSession(ctx, session)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		s.logEvent(ctx, appt.ID, EventSessionCompleted, map[string]any{
			"attended": enc.Attended,
		})
		return &SessionResult{Session: stored}, nil
	}

	at, err := s.validateSlot(enc.FollowUp.Date, enc.FollowUp.Hour)
	if err != nil {
		return nil, err
	}

	clinicianID := *appt.ClinicianID

	var result SessionResult

	err = s.locker.WithSlotLock(ctx, clinicianID, enc.FollowUp.Date, enc.FollowUp.Hour, func(lockCtx context.Context) error {
		free, err := s.calc.slotFree(lockCtx, clinicianID, enc.FollowUp.Date, enc.FollowUp.Hour, nil)
		if err != nil {
			return err
		}
		if !free {
			return &ConflictError{ClinicianID: clinicianID, Date: enc.FollowUp.Date, Hour: enc.FollowUp.Hour}
		}

		stored, err := s.repo.CreateSession(lockCtx, session)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		result.Session = stored

		next, err := s.repo.CreateRequested(lockCtx, appt.PatientID, appt.AreaID, "")
		if err != nil {
			return fmt.Errorf("create follow-up appointment: %w", err)
		}

		confirmed, err := s.repo.ConfirmSlot(lockCtx, next.ID, clinicianID, at)
		if err != nil {
			return fmt.Errorf("confirm follow-up slot: %w", err)
		}
		result.NextAppointment = confirmed

		s.logEvent(lockCtx, appt.ID, EventSessionCompleted, map[string]any{
			"attended":       enc.Attended,
			"follow_up_id":   confirmed.ID.String(),
			"follow_up_date": enc.FollowUp.Date,
			"follow_up_hour": enc.FollowUp.Hour,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return &result, nil
}
