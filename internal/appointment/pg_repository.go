package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanClinician(row pgx.Row) (*Clinician, error) {
	var c Clinician
	var specialty *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&specialty,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicianNotFound
		}
		return nil, err
	}

	c.Specialty = specialty
	return &c, nil
}

func scanArea(row pgx.Row) (*Area, error) {
	var a Area

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAreaNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var clinicianID *uuid.UUID
	var scheduledAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&clinicianID,
		&a.AreaID,
		&scheduledAt,
		&a.DurationMinutes,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ClinicianID = clinicianID
	a.ScheduledAt = scheduledAt
	return &a, nil
}

const appointmentColumns = `id, patient_id, clinician_id, area_id, scheduled_at, duration_minutes, status, notes, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetClinicianByID(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM clinicians
		WHERE id = $1
	`, id)
	return scanClinician(row)
}

func (r *PgRepository) GetAreaByID(ctx context.Context, id uuid.UUID) (*Area, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM areas
		WHERE id = $1
	`, id)
	return scanArea(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByClinicianAndDay(ctx context.Context, clinicianID uuid.UUID, day time.Time) ([]Appointment, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinician_id = $1
		  AND scheduled_at >= $2
		  AND scheduled_at < $3
		ORDER BY scheduled_at
	`, clinicianID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateRequested(ctx context.Context, patientID, areaID uuid.UUID, notes string) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, clinician_id, area_id, scheduled_at, duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, NULL, $3, NULL, $4, 'requested', $5, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, patientID, areaID, DefaultDuration, notes)

	return scanAppointment(row)
}

func (r *PgRepository) ConfirmSlot(ctx context.Context, id, clinicianID uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET clinician_id = $2,
		    scheduled_at = $3,
		    status = 'confirmed',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'requested'
		RETURNING `+appointmentColumns+`
	`, id, clinicianID, at)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, mapSlotConflict(err, clinicianID, at)
	}
	return appt, nil
}

func (r *PgRepository) MoveSlot(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_at = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'confirmed'
		RETURNING `+appointmentColumns+`
	`, id, at)

	appt, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, &ConflictError{Date: at.Format(dateLayout), Hour: at.Hour()}
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) CreateSession(ctx context.Context, s ClinicalSession) (*ClinicalSession, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO clinical_sessions (id, appointment_id, clinical_record_id, attended, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, appointment_id, clinical_record_id, attended, notes, created_at
	`, id, s.AppointmentID, s.ClinicalRecordID, s.Attended, s.Notes)

	var stored ClinicalSession
	err := row.Scan(
		&stored.ID,
		&stored.AppointmentID,
		&stored.ClinicalRecordID,
		&stored.Attended,
		&stored.Notes,
		&stored.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var appID *uuid.UUID
	if ev.AppointmentID != nil {
		appID = ev.AppointmentID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, appID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// mapSlotConflict translates the partial unique index violation on confirmed
// (clinician_id, scheduled_at) into the domain conflict error. The index is
// the authoritative double-booking guard; the availability pre-check is only
// an optimistic hint.
func mapSlotConflict(err error, clinicianID uuid.UUID, at time.Time) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &ConflictError{ClinicianID: clinicianID, Date: at.Format(dateLayout), Hour: at.Hour()}
	}
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// PgRecordDirectory resolves clinical-record existence from the records
// subsystem's table. Record content stays opaque to this service.
type PgRecordDirectory struct {
	pool *pgxpool.Pool
}

func NewPgRecordDirectory(pool *pgxpool.Pool) *PgRecordDirectory {
	return &PgRecordDirectory{pool: pool}
}

func (d *PgRecordDirectory) ActiveRecord(ctx context.Context, patientID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID

	err := d.pool.QueryRow(ctx, `
		SELECT id
		FROM clinical_records
		WHERE patient_id = $1
		  AND active
		ORDER BY opened_at DESC
		LIMIT 1
	`, patientID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}

	return id, true, nil
}
