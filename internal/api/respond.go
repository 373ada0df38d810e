package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinagenda/appointment-service/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the service error taxonomy onto HTTP statuses.
// Conflicts carry the occupied slot so the caller can re-render its grid.
func writeDomainError(w http.ResponseWriter, err error) {
	var conflict *appointment.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "slot_conflict",
			Details: conflict.Error(),
			Slot: &SlotDetail{
				ClinicianID: conflict.ClinicianID,
				Date:        conflict.Date,
				Hour:        conflict.Hour,
			},
		})
		return
	}

	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrClinicianNotFound):
		writeError(w, http.StatusNotFound, "clinician_not_found", err.Error())
	case errors.Is(err, appointment.ErrAreaNotFound):
		writeError(w, http.StatusNotFound, "area_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrMissingPrerequisite):
		writeError(w, http.StatusUnprocessableEntity, "missing_clinical_record", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
