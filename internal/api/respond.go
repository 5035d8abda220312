package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/clinova/clinic-scheduling/internal/clinic"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the domain error families onto HTTP statuses.
// The families are disjoint, which is what makes 400 vs 403 vs 404 vs 409
// decidable here without string matching.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrPhysicianNotFound):
		writeError(w, http.StatusNotFound, "physician_not_found", err.Error())
	case errors.Is(err, clinic.ErrCancelNotAllowed):
		writeError(w, http.StatusForbidden, "cancel_not_allowed", err.Error())
	case errors.Is(err, clinic.ErrScheduleConflict):
		writeError(w, http.StatusConflict, "schedule_conflict", err.Error())
	case errors.Is(err, clinic.ErrStaleAppointment):
		writeError(w, http.StatusConflict, "stale_appointment", "the appointment was modified by another user, refresh and retry")
	case errors.Is(err, clinic.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, clinic.ErrInvariantViolated):
		writeError(w, http.StatusBadRequest, "invalid_appointment_state", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
