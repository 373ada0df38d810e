package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	redisclient "github.com/clinagenda/appointment-service/internal/redis"
)

type fixture struct {
	svc     *Service
	repo    *MemoryRepository
	records *MemoryRecordDirectory

	patient   uuid.UUID
	clinician uuid.UUID
	area      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	records := NewMemoryRecordDirectory()
	svc := NewService(repo, redisclient.NewLocalLocker(), records, zerolog.Nop())

	f := &fixture{
		svc:       svc,
		repo:      repo,
		records:   records,
		patient:   uuid.New(),
		clinician: uuid.New(),
		area:      uuid.New(),
	}

	repo.AddPatient(Patient{ID: f.patient, Name: "Ana Torres"})
	repo.AddClinician(Clinician{ID: f.clinician, Name: "Dr. Ruiz"})
	repo.AddArea(Area{ID: f.area, Name: "Clinical Psychology"})

	return f
}

func TestRequestAppointment(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.RequestAppointment(context.Background(), f.patient, f.area, "ansiedad")
	require.NoError(t, err)
	require.Equal(t, StatusRequested, appt.Status)
	require.Nil(t, appt.ClinicianID)
	require.Nil(t, appt.ScheduledAt)
	require.Equal(t, "ansiedad", appt.Notes)
	require.Equal(t, DefaultDuration, appt.DurationMinutes)
}

func TestRequestAppointmentUnknownPatient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RequestAppointment(context.Background(), uuid.New(), f.area, "")
	require.ErrorIs(t, err, ErrPatientNotFound)
}

func TestAssignConfirms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "ansiedad")
	require.NoError(t, err)

	assigned, err := f.svc.Assign(ctx, appt.ID, f.clinician, "2025-03-10", 9)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, assigned.Status)
	require.Equal(t, f.clinician, *assigned.ClinicianID)
	require.Equal(t, 9, assigned.ScheduledAt.Hour())
	require.Equal(t, appt.ID, assigned.ID)
}

func TestAssignTakenSlotConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "")
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, first.ID, f.clinician, "2025-03-10", 9)
	require.NoError(t, err)

	second, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "")
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, second.ID, f.clinician, "2025-03-10", 9)
	require.ErrorIs(t, err, ErrConflict)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, f.clinician, conflict.ClinicianID)
	require.Equal(t, "2025-03-10", conflict.Date)
	require.Equal(t, 9, conflict.Hour)
}

func TestAssignRequiresRequestedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "")
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, appt.ID, f.clinician, "2025-03-10", 9)
	require.NoError(t, err)

	// Assigning a confirmed appointment is not a legal transition.
	_, err = f.svc.Assign(ctx, appt.ID, f.clinician, "2025-03-10", 10)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestAssignOutsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "")
	require.NoError(t, err)

	for _, hour := range []int{0, 6, 19, 23} {
		_, err = f.svc.Assign(ctx, appt.ID, f.clinician, "2025-03-10", hour)
		require.ErrorIs(t, err, ErrValidation, "hour %d", hour)
	}

	_, err = f.svc.Assign(ctx, appt.ID, f.clinician, "10-03-2025", 9)
	require.ErrorIs(t, err, ErrValidation)
}

func TestAssignUnknownClinician(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "")
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, appt.ID, uuid.New(), "2025-03-10", 9)
	require.ErrorIs(t, err, ErrClinicianNotFound)
}

func TestBookDirectly(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.Book(context.Background(), f.patient, f.area, f.clinician, "2025-03-10", 11, "walk-in")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, appt.Status)
	require.Equal(t, 11, appt.ScheduledAt.Hour())
}

func TestBookTakenSlotLeavesNoRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.patient, f.area, f.clinician, "2025-03-10", 11, "")
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, f.patient, f.area, f.clinician, "2025-03-10", 11, "")
	require.ErrorIs(t, err, ErrConflict)

	// A rejected direct booking must not leave a dangling request behind.
	agenda, err := f.svc.Agenda(ctx, f.clinician, "2025-03-10")
	require.NoError(t, err)
	require.Len(t, agenda, 1)
}

func TestCancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.patient, f.area, f.clinician, "2025-03-10", 9, "")
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	// The freed slot is immediately assignable again.
	next, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "")
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, next.ID, f.clinician, "2025-03-10", 9)
	require.NoError(t, err)
}

func TestCancelledIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, appt.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Assign(ctx, appt.ID, f.clinician, "2025-03-10", 9)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Reschedule(ctx, appt.ID, "2025-03-10", 9)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelUnknownAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Cancel(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestLifecycleEventsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "")
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, appt.ID, f.clinician, "2025-03-10", 9)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)

	var types []string
	for _, ev := range f.repo.Events() {
		types = append(types, ev.EventType)
	}
	require.Equal(t, []string{
		EventAppointmentRequested,
		EventAppointmentAssigned,
		EventAppointmentCancelled,
	}, types)
}
