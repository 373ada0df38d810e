package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/clinagenda/appointment-service/internal/redis"
)

// Reschedule moves a confirmed appointment to a new slot without losing its
// identity: only scheduled_at changes. The conflict check excludes the
// appointment itself, so moving to its own current slot succeeds.
func (s *Service) Reschedule(ctx context.Context, appointmentID uuid.UUID, date string, hour int) (*Appointment, error) {
	at, err := s.validateSlot(date, hour)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusConfirmed || appt.ClinicianID == nil {
		return nil, &InvalidStateError{AppointmentID: appt.ID, Status: appt.Status, Attempted: "reschedule"}
	}

	clinicianID := *appt.ClinicianID

	var moved *Appointment

	err = s.locker.WithSlotLock(ctx, clinicianID, date, hour, func(lockCtx context.Context) error {
		exclude := appt.ID
		free, err := s.calc.slotFree(lockCtx, clinicianID, date, hour, &exclude)
		if err != nil {
			return err
		}
		if !free {
			return &ConflictError{ClinicianID: clinicianID, Date: date, Hour: hour}
		}

		updated, err := s.repo.MoveSlot(lockCtx, appt.ID, at)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// No longer confirmed between our read and the write.
				return &InvalidStateError{AppointmentID: appt.ID, Status: appt.Status, Attempted: "reschedule"}
			}
			return fmt.Errorf("move slot: %w", err)
		}

		moved = updated

		s.logEvent(lockCtx, updated.ID, EventAppointmentRescheduled, map[string]any{
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

	return moved, nil
}
