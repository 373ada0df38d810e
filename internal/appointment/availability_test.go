package appointment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAvailabilityOnlyConfirmedOccupy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A bare request claims nothing.
	_, err := f.svc.RequestAppointment(ctx, f.patient, f.area, "")
	require.NoError(t, err)

	day, err := f.svc.Availability(ctx, f.clinician, "2025-03-10")
	require.NoError(t, err)
	require.Empty(t, day.OccupiedHours)

	_, err = f.svc.Book(ctx, f.patient, f.area, f.clinician, "2025-03-10", 9, "")
	require.NoError(t, err)
	booked, err := f.svc.Book(ctx, f.patient, f.area, f.clinician, "2025-03-10", 14, "")
	require.NoError(t, err)

	day, err = f.svc.Availability(ctx, f.clinician, "2025-03-10")
	require.NoError(t, err)
	require.Equal(t, []int{9, 14}, day.OccupiedHours)

	// Cancelled appointments never block.
	_, err = f.svc.Cancel(ctx, booked.ID)
	require.NoError(t, err)

	day, err = f.svc.Availability(ctx, f.clinician, "2025-03-10")
	require.NoError(t, err)
	require.Equal(t, []int{9}, day.OccupiedHours)
}

func TestAvailabilityWindowAndWeekend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day, err := f.svc.Availability(ctx, f.clinician, "2025-03-10") // Monday
	require.NoError(t, err)
	require.Equal(t, WindowOpenHour, day.WindowOpen)
	require.Equal(t, WindowCloseHour, day.WindowClose)
	require.False(t, day.IsWeekend)

	day, err = f.svc.Availability(ctx, f.clinician, "2025-03-08") // Saturday
	require.NoError(t, err)
	require.True(t, day.IsWeekend)

	// Weekend slots are annotated, not rejected.
	_, err = f.svc.Book(ctx, f.patient, f.area, f.clinician, "2025-03-08", 10, "")
	require.NoError(t, err)
}

func TestAvailabilityBadDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Availability(context.Background(), f.clinician, "not-a-date")
	require.ErrorIs(t, err, ErrValidation)
}

func TestOccupiedHoursExcludesAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.patient, f.area, f.clinician, "2025-03-10", 9, "")
	require.NoError(t, err)

	calc := NewCalculator(f.repo)

	hours, err := calc.OccupiedHours(ctx, f.clinician, "2025-03-10", nil)
	require.NoError(t, err)
	require.Equal(t, []int{9}, hours)

	exclude := appt.ID
	hours, err = calc.OccupiedHours(ctx, f.clinician, "2025-03-10", &exclude)
	require.NoError(t, err)
	require.Empty(t, hours)
}

func TestSlotHelpers(t *testing.T) {
	require.True(t, InOperatingWindow(WindowOpenHour))
	require.True(t, InOperatingWindow(WindowCloseHour))
	require.False(t, InOperatingWindow(WindowOpenHour-1))
	require.False(t, InOperatingWindow(WindowCloseHour+1))

	d, err := ParseDate("2025-03-10")
	require.NoError(t, err)
	at := SlotTime(d, 9)
	require.Equal(t, 9, at.Hour())
	require.Equal(t, 0, at.Minute())
	require.False(t, IsWeekend(d))
}
