package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clinagenda/appointment-service/internal/appointment"
	redisclient "github.com/clinagenda/appointment-service/internal/redis"
)

type testEnv struct {
	server  *httptest.Server
	records *appointment.MemoryRecordDirectory

	patient   uuid.UUID
	clinician uuid.UUID
	area      uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := appointment.NewMemoryRepository()
	records := appointment.NewMemoryRecordDirectory()
	svc := appointment.NewService(repo, redisclient.NewLocalLocker(), records, zerolog.Nop())

	env := &testEnv{
		records:   records,
		patient:   uuid.New(),
		clinician: uuid.New(),
		area:      uuid.New(),
	}

	repo.AddPatient(appointment.Patient{ID: env.patient, Name: "Ana Torres"})
	repo.AddClinician(appointment.Clinician{ID: env.clinician, Name: "Dr. Ruiz"})
	repo.AddArea(appointment.Area{ID: env.area, Name: "Clinical Psychology"})

	router := NewRouter(RouterConfig{
		Service: svc,
		Logger:  zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})

	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)

	return env
}

func (e *testEnv) post(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	resp, err := http.Post(e.server.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (e *testEnv) request(t *testing.T) AppointmentResponse {
	t.Helper()

	resp, body := e.post(t, "/appointments", CreateAppointmentRequest{
		PatientID: e.patient.String(),
		AreaID:    e.area.String(),
		Notes:     "ansiedad",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))
	return appt
}

func TestRequestAppointmentEndpoint(t *testing.T) {
	env := newTestEnv(t)

	appt := env.request(t)
	require.Equal(t, "requested", appt.Status)
	require.Nil(t, appt.ClinicianID)
	require.Nil(t, appt.Hour)
	require.Equal(t, "ansiedad", appt.Notes)
}

func TestDirectBookingEndpoint(t *testing.T) {
	env := newTestEnv(t)

	hour := 9
	resp, body := env.post(t, "/appointments", CreateAppointmentRequest{
		PatientID:   env.patient.String(),
		AreaID:      env.area.String(),
		ClinicianID: env.clinician.String(),
		Date:        "2025-03-10",
		Hour:        &hour,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))
	require.Equal(t, "confirmed", appt.Status)
	require.Equal(t, "2025-03-10", appt.Date)
	require.Equal(t, 9, *appt.Hour)
}

func TestAssignEndpointAndConflict(t *testing.T) {
	env := newTestEnv(t)

	first := env.request(t)
	resp, body := env.post(t, "/appointments/"+first.ID.String()+"/assign", AssignRequest{
		ClinicianID: env.clinician.String(),
		Date:        "2025-03-10",
		Hour:        9,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var assigned AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &assigned))
	require.Equal(t, "confirmed", assigned.Status)

	// A second appointment on the same slot gets 409 with the slot detail.
	second := env.request(t)
	resp, body = env.post(t, "/appointments/"+second.ID.String()+"/assign", AssignRequest{
		ClinicianID: env.clinician.String(),
		Date:        "2025-03-10",
		Hour:        9,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Equal(t, "slot_conflict", errResp.Error)
	require.NotNil(t, errResp.Slot)
	require.Equal(t, "2025-03-10", errResp.Slot.Date)
	require.Equal(t, 9, errResp.Slot.Hour)
}

func TestAssignEndpointValidation(t *testing.T) {
	env := newTestEnv(t)

	appt := env.request(t)

	resp, body := env.post(t, "/appointments/"+appt.ID.String()+"/assign", AssignRequest{
		ClinicianID: env.clinician.String(),
		Date:        "2025-03-10",
		Hour:        19,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Equal(t, "invalid_request", errResp.Error)

	resp, _ = env.post(t, "/appointments/not-a-uuid/assign", AssignRequest{
		ClinicianID: env.clinician.String(),
		Date:        "2025-03-10",
		Hour:        9,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRescheduleEndpoint(t *testing.T) {
	env := newTestEnv(t)

	hour := 9
	resp, body := env.post(t, "/appointments", CreateAppointmentRequest{
		PatientID:   env.patient.String(),
		AreaID:      env.area.String(),
		ClinicianID: env.clinician.String(),
		Date:        "2025-03-10",
		Hour:        &hour,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))

	resp, body = env.post(t, "/appointments/"+appt.ID.String()+"/reschedule", RescheduleRequest{
		Date: "2025-03-10",
		Hour: 11,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var moved AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &moved))
	require.Equal(t, 11, *moved.Hour)

	// Availability shows 09 freed.
	resp, body = env.get(t, fmt.Sprintf("/availability?clinician_id=%s&date=2025-03-10", env.clinician))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var avail AvailabilityResponse
	require.NoError(t, json.Unmarshal(body, &avail))
	require.Equal(t, []int{11}, avail.OccupiedHours)
	require.Equal(t, 7, avail.OperatingWindow.Open)
	require.Equal(t, 18, avail.OperatingWindow.Close)
	require.False(t, avail.IsWeekend)
}

func TestCancelEndpoint(t *testing.T) {
	env := newTestEnv(t)

	appt := env.request(t)

	resp, body := env.post(t, "/appointments/"+appt.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var cancelled AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &cancelled))
	require.Equal(t, "cancelled", cancelled.Status)

	// Terminal: a second cancel is an invalid state.
	resp, body = env.post(t, "/appointments/"+appt.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Equal(t, "invalid_state", errResp.Error)
}

func TestCompleteSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.records.Open(env.patient)

	hour := 9
	resp, body := env.post(t, "/appointments", CreateAppointmentRequest{
		PatientID:   env.patient.String(),
		AreaID:      env.area.String(),
		ClinicianID: env.clinician.String(),
		Date:        "2025-03-10",
		Hour:        &hour,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))

	resp, body = env.post(t, "/appointments/"+appt.ID.String()+"/session", CompleteSessionRequest{
		Attended: true,
		Notes:    "primera sesión",
		FollowUp: &FollowUpRequest{Date: "2025-03-17", Hour: 9},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var result CompleteSessionResponse
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, appt.ID, result.Session.AppointmentID)
	require.NotNil(t, result.NextAppointment)
	require.Equal(t, "confirmed", result.NextAppointment.Status)
	require.Equal(t, "2025-03-17", result.NextAppointment.Date)
}

func TestCompleteSessionWithoutRecordEndpoint(t *testing.T) {
	env := newTestEnv(t)

	hour := 9
	resp, body := env.post(t, "/appointments", CreateAppointmentRequest{
		PatientID:   env.patient.String(),
		AreaID:      env.area.String(),
		ClinicianID: env.clinician.String(),
		Date:        "2025-03-10",
		Hour:        &hour,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))

	resp, body = env.post(t, "/appointments/"+appt.ID.String()+"/session", CompleteSessionRequest{
		Attended: true,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Equal(t, "missing_clinical_record", errResp.Error)
}

func TestGetAndListEndpoints(t *testing.T) {
	env := newTestEnv(t)

	hour := 9
	resp, body := env.post(t, "/appointments", CreateAppointmentRequest{
		PatientID:   env.patient.String(),
		AreaID:      env.area.String(),
		ClinicianID: env.clinician.String(),
		Date:        "2025-03-10",
		Hour:        &hour,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))

	resp, body = env.get(t, "/appointments/"+appt.ID.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, appt.ID, got.ID)

	resp, body = env.get(t, fmt.Sprintf("/appointments?clinician_id=%s&date=2025-03-10", env.clinician))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)

	resp, _ = env.get(t, "/appointments/"+uuid.NewString())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownIDsReturn404(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, "/appointments", CreateAppointmentRequest{
		PatientID: uuid.NewString(),
		AreaID:    env.area.String(),
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Equal(t, "patient_not_found", errResp.Error)

	appt := env.request(t)
	resp, body = env.post(t, "/appointments/"+appt.ID.String()+"/assign", AssignRequest{
		ClinicianID: uuid.NewString(),
		Date:        "2025-03-10",
		Hour:        9,
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Equal(t, "clinician_not_found", errResp.Error)
}
