package appointment

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Calculator computes the occupied hours of a clinician's day. It is a pure
// read over the store: only confirmed appointments claim slots, requested ones
// are not yet claims on anyone's time and cancelled ones never block.
type Calculator struct {
	repo Repository
}

func NewCalculator(repo Repository) *Calculator {
	return &Calculator{repo: repo}
}

// OccupiedHours returns the sorted confirmed hours of the clinician on the
// given day. exclude, when non-nil, skips that appointment so a reschedule
// does not collide with itself.
func (c *Calculator) OccupiedHours(ctx context.Context, clinicianID uuid.UUID, dateStr string, exclude *uuid.UUID) ([]int, error) {
	d, err := ParseDate(dateStr)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	appts, err := c.repo.ListByClinicianAndDay(ctx, clinicianID, d)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	seen := make(map[int]struct{})
	for _, a := range appts {
		if a.Status != StatusConfirmed || a.ScheduledAt == nil {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		seen[a.ScheduledAt.Hour()] = struct{}{}
	}

	hours := make([]int, 0, len(seen))
	for h := range seen {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours, nil
}

// Day returns the availability view the booking grids render. Weekends are
// annotated, not rejected; whether to see weekend patients is clinic policy.
func (c *Calculator) Day(ctx context.Context, clinicianID uuid.UUID, dateStr string) (*DayAvailability, error) {
	d, err := ParseDate(dateStr)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	occupied, err := c.OccupiedHours(ctx, clinicianID, dateStr, nil)
	if err != nil {
		return nil, err
	}

	return &DayAvailability{
		ClinicianID:   clinicianID,
		Date:          dateStr,
		OccupiedHours: occupied,
		WindowOpen:    WindowOpenHour,
		WindowClose:   WindowCloseHour,
		IsWeekend:     IsWeekend(d),
	}, nil
}

// slotFree is the optimistic pre-check used inside the per-slot critical
// section; the partial unique index on confirmed (clinician_id, scheduled_at)
// remains the authoritative guard.
func (c *Calculator) slotFree(ctx context.Context, clinicianID uuid.UUID, dateStr string, hour int, exclude *uuid.UUID) (bool, error) {
	occupied, err := c.OccupiedHours(ctx, clinicianID, dateStr, exclude)
	if err != nil {
		return false, err
	}
	for _, h := range occupied {
		if h == hour {
			return false, nil
		}
	}
	return true, nil
}
