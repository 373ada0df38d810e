package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// The clinic books whole hours between 07:00 and 18:00 inclusive.
const (
	WindowOpenHour  = 7
	WindowCloseHour = 18
	DefaultDuration = 60
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Clinician struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Area struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ClinicianID     *uuid.UUID // nil while requested
	AreaID          uuid.UUID
	ScheduledAt     *time.Time // top of an hour, nil while requested
	DurationMinutes int        // display only, conflicts are per hour
	Status          Status
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ClinicalSession closes out the encounter held during a confirmed
// appointment. The appointment itself stays confirmed; a follow-up becomes a
// new appointment.
type ClinicalSession struct {
	ID               uuid.UUID
	AppointmentID    uuid.UUID
	ClinicalRecordID uuid.UUID
	Attended         bool
	Notes            string
	CreatedAt        time.Time
}

// FollowUp is the next slot a clinician picks while completing a session.
type FollowUp struct {
	Date string // YYYY-MM-DD
	Hour int
}

// EncounterData is what the clinician submits when closing an encounter.
type EncounterData struct {
	Attended bool
	Notes    string
	FollowUp *FollowUp
}

type DayAvailability struct {
	ClinicianID   uuid.UUID
	Date          string
	OccupiedHours []int
	WindowOpen    int
	WindowClose   int
	IsWeekend     bool
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar day in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// SlotTime builds the timestamp for a given day and hour.
func SlotTime(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)
}

// InOperatingWindow reports whether an hour is bookable at all.
func InOperatingWindow(hour int) bool {
	return hour >= WindowOpenHour && hour <= WindowCloseHour
}

func IsWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
