package appointment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by tests and by the
// handler tests one package up. It mirrors the partial unique index on
// confirmed (clinician_id, scheduled_at) so conflict behavior matches the
// Postgres implementation.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	clinicians   map[uuid.UUID]Clinician
	areas        map[uuid.UUID]Area
	appointments map[uuid.UUID]Appointment
	sessions     map[uuid.UUID]ClinicalSession
	events       []EventLog
	slotIndex    map[string]uuid.UUID // clinician:timestamp -> confirmed appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		clinicians:   make(map[uuid.UUID]Clinician),
		areas:        make(map[uuid.UUID]Area),
		appointments: make(map[uuid.UUID]Appointment),
		sessions:     make(map[uuid.UUID]ClinicalSession),
		slotIndex:    make(map[string]uuid.UUID),
	}
}

func slotKey(clinicianID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s:%s", clinicianID, at.UTC().Format(time.RFC3339))
}

// Fixture helpers

func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) AddClinician(c Clinician) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clinicians[c.ID] = c
}

func (r *MemoryRepository) AddArea(a Area) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.areas[a.ID] = a
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

// SessionCount reports how many clinical sessions were persisted.
func (r *MemoryRepository) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Repository implementation

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetClinicianByID(_ context.Context, id uuid.UUID) (*Clinician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clinicians[id]
	if !ok {
		return nil, ErrClinicianNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) GetAreaByID(_ context.Context, id uuid.UUID) (*Area, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.areas[id]
	if !ok {
		return nil, ErrAreaNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListByClinicianAndDay(_ context.Context, clinicianID uuid.UUID, day time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var result []Appointment
	for _, a := range r.appointments {
		if a.ClinicianID == nil || *a.ClinicianID != clinicianID || a.ScheduledAt == nil {
			continue
		}
		if a.ScheduledAt.Before(dayStart) || !a.ScheduledAt.Before(dayEnd) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (r *MemoryRepository) CreateRequested(_ context.Context, patientID, areaID uuid.UUID, notes string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	a := Appointment{
		ID:              uuid.New(),
		PatientID:       patientID,
		AreaID:          areaID,
		DurationMinutes: DefaultDuration,
		Status:          StatusRequested,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) ConfirmSlot(_ context.Context, id, clinicianID uuid.UUID, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != StatusRequested {
		return nil, ErrAppointmentNotFound
	}

	key := slotKey(clinicianID, at)
	if _, taken := r.slotIndex[key]; taken {
		return nil, &ConflictError{ClinicianID: clinicianID, Date: at.Format(dateLayout), Hour: at.Hour()}
	}

	cid := clinicianID
	t := at
	a.ClinicianID = &cid
	a.ScheduledAt = &t
	a.Status = StatusConfirmed
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	r.slotIndex[key] = id
	return &a, nil
}

func (r *MemoryRepository) MoveSlot(_ context.Context, id uuid.UUID, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != StatusConfirmed || a.ClinicianID == nil || a.ScheduledAt == nil {
		return nil, ErrAppointmentNotFound
	}

	oldKey := slotKey(*a.ClinicianID, *a.ScheduledAt)
	newKey := slotKey(*a.ClinicianID, at)
	if holder, taken := r.slotIndex[newKey]; taken && holder != id {
		return nil, &ConflictError{ClinicianID: *a.ClinicianID, Date: at.Format(dateLayout), Hour: at.Hour()}
	}

	delete(r.slotIndex, oldKey)
	t := at
	a.ScheduledAt = &t
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	r.slotIndex[newKey] = id
	return &a, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	if to == StatusCancelled && a.ClinicianID != nil && a.ScheduledAt != nil {
		delete(r.slotIndex, slotKey(*a.ClinicianID, *a.ScheduledAt))
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) CreateSession(_ context.Context, s ClinicalSession) (*ClinicalSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	r.sessions[s.ID] = s
	return &s, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// MemoryRecordDirectory is a RecordDirectory over a fixed set of patients.
type MemoryRecordDirectory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]uuid.UUID // patient -> record
}

func NewMemoryRecordDirectory() *MemoryRecordDirectory {
	return &MemoryRecordDirectory{records: make(map[uuid.UUID]uuid.UUID)}
}

func (d *MemoryRecordDirectory) Open(patientID uuid.UUID) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	d.records[patientID] = id
	return id
}

func (d *MemoryRecordDirectory) ActiveRecord(_ context.Context, patientID uuid.UUID) (uuid.UUID, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.records[patientID]
	return id, ok, nil
}
