package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinagenda/appointment-service/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		areaID, err := uuid.Parse(req.AreaID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_area_id", "area_id must be a valid UUID")
			return
		}

		// Staff direct booking when a clinician and slot are supplied.
		if req.ClinicianID != "" || req.Date != "" || req.Hour != nil {
			if req.ClinicianID == "" || req.Date == "" || req.Hour == nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "direct booking requires clinician_id, date and hour")
				return
			}
			clinicianID, err := uuid.Parse(req.ClinicianID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_clinician_id", "clinician_id must be a valid UUID")
				return
			}

			appt, err := svc.Book(r.Context(), patientID, areaID, clinicianID, req.Date, *req.Hour, req.Notes)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
			return
		}

		appt, err := svc.RequestAppointment(r.Context(), patientID, areaID, req.Notes)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID, err := uuid.Parse(r.URL.Query().Get("clinician_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinician_id", "clinician_id must be a valid UUID")
			return
		}
		date := r.URL.Query().Get("date")

		appts, err := svc.Agenda(r.Context(), clinicianID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func assignAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clinicianID, err := uuid.Parse(req.ClinicianID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinician_id", "clinician_id must be a valid UUID")
			return
		}

		appt, err := svc.Assign(r.Context(), id, clinicianID, req.Date, req.Hour)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, req.Date, req.Hour)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeSessionHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CompleteSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		enc := appointment.EncounterData{
			Attended: req.Attended,
			Notes:    req.Notes,
		}
		if req.FollowUp != nil {
			enc.FollowUp = &appointment.FollowUp{
				Date: req.FollowUp.Date,
				Hour: req.FollowUp.Hour,
			}
		}

		result, err := svc.CompleteSession(r.Context(), id, enc)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := CompleteSessionResponse{Session: toSessionResponse(result.Session)}
		if result.NextAppointment != nil {
			next := toAppointmentResponse(result.NextAppointment)
			resp.NextAppointment = &next
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func availabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID, err := uuid.Parse(r.URL.Query().Get("clinician_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinician_id", "clinician_id must be a valid UUID")
			return
		}
		date := r.URL.Query().Get("date")

		day, err := svc.Availability(r.Context(), clinicianID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			ClinicianID:   day.ClinicianID,
			Date:          day.Date,
			OccupiedHours: day.OccupiedHours,
			OperatingWindow: OperatingWindow{
				Open:  day.WindowOpen,
				Close: day.WindowClose,
			},
			IsWeekend: day.IsWeekend,
		})
	}
}
