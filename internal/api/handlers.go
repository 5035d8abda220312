package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinova/clinic-scheduling/internal/clinic"
)

// BookingWindow bounds how far ahead patients may self-book. Staff callers
// are exempt; they book walk-ins and same-day visits at the front desk.
type BookingWindow struct {
	MinDaysAhead int
	MaxDaysAhead int
}

// actorFrom trusts the identity headers set by the (external) session
// layer: X-User-ID and a comma-separated X-User-Roles.
func actorFrom(r *http.Request) (clinic.Actor, bool) {
	id, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		return clinic.Actor{}, false
	}
	var roles []string
	for _, role := range strings.Split(r.Header.Get("X-User-Roles"), ",") {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return clinic.Actor{}, false
	}
	return clinic.Actor{UserID: id, Roles: roles}, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (clinic.Actor, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-User-ID and X-User-Roles headers are required")
	}
	return actor, ok
}

func isStaff(actor clinic.Actor) bool {
	return slices.Contains(actor.Roles, clinic.RolePhysician) || slices.Contains(actor.Roles, clinic.RoleFrontDesk)
}

func scheduleAppointmentHandler(svc *clinic.Service, window BookingWindow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req ScheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		physicianID, err := uuid.Parse(req.PhysicianID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_physician_id", "physician_id must be a valid UUID")
			return
		}
		if req.ScheduledStartAt.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_start", "scheduled_start_at is required")
			return
		}

		// Patients book within the clinic's advance window; the core does
		// not enforce this, the request surface does.
		if !isStaff(actor) {
			now := time.Now().UTC()
			earliest := now.Add(time.Duration(window.MinDaysAhead) * 24 * time.Hour)
			latest := now.Add(time.Duration(window.MaxDaysAhead) * 24 * time.Hour)
			if req.ScheduledStartAt.Before(earliest) || req.ScheduledStartAt.After(latest) {
				writeError(w, http.StatusBadRequest, "outside_booking_window",
					"scheduled_start_at is outside the allowed booking window")
				return
			}
		}

		apt, err := svc.Schedule(r.Context(), clinic.ScheduleRequest{
			PatientID:       patientID,
			PhysicianID:     physicianID,
			ServiceType:     clinic.ServiceType(req.ServiceType),
			StartAt:         req.ScheduledStartAt,
			DurationMinutes: req.DurationMinutes,
			Notes:           req.Notes,
		}, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(apt, svc.PermissionsFor(apt, actor, time.Now().UTC())))
	}
}

func walkInHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		if !isStaff(actor) {
			writeError(w, http.StatusForbidden, "staff_only", "walk-in registration requires a staff role")
			return
		}

		var req WalkInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		apt, err := svc.RegisterWalkIn(r.Context(), clinic.WalkInRequest{
			PatientID:   patientID,
			ServiceType: clinic.ServiceType(req.ServiceType),
			Notes:       req.Notes,
		}, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(apt, svc.PermissionsFor(apt, actor, time.Now().UTC())))
	}
}

func transitionHandler(svc *clinic.Service, apply func(*clinic.Service, *http.Request, clinic.TransitionRequest) (*clinic.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		if !isStaff(actor) {
			writeError(w, http.StatusForbidden, "staff_only", "this transition requires a staff role")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		at := time.Time{}
		if req.At != nil {
			at = *req.At
		}

		apt, err := apply(svc, r, clinic.TransitionRequest{
			AppointmentID:     id,
			At:                at,
			ExpectedUpdatedAt: req.ExpectedUpdatedAt,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(apt, svc.PermissionsFor(apt, actor, time.Now().UTC())))
	}
}

func checkInHandler(svc *clinic.Service) http.HandlerFunc {
	return transitionHandler(svc, func(s *clinic.Service, r *http.Request, req clinic.TransitionRequest) (*clinic.Appointment, error) {
		return s.CheckIn(r.Context(), req)
	})
}

func startHandler(svc *clinic.Service) http.HandlerFunc {
	return transitionHandler(svc, func(s *clinic.Service, r *http.Request, req clinic.TransitionRequest) (*clinic.Appointment, error) {
		return s.Start(r.Context(), req)
	})
}

func completeHandler(svc *clinic.Service) http.HandlerFunc {
	return transitionHandler(svc, func(s *clinic.Service, r *http.Request, req clinic.TransitionRequest) (*clinic.Appointment, error) {
		return s.Complete(r.Context(), req)
	})
}

func cancelAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if len(strings.TrimSpace(req.Reason)) < 5 {
			writeError(w, http.StatusBadRequest, "invalid_reason", "reason must be at least 5 characters long")
			return
		}

		at := time.Time{}
		if req.At != nil {
			at = *req.At
		}

		apt, err := svc.Cancel(r.Context(), clinic.CancelRequest{
			AppointmentID:     id,
			Reason:            req.Reason,
			At:                at,
			ExpectedUpdatedAt: req.ExpectedUpdatedAt,
		}, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(apt, svc.PermissionsFor(apt, actor, time.Now().UTC())))
	}
}

func getAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		apt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(apt, svc.PermissionsFor(apt, actor, time.Now().UTC())))
	}
}

func listAppointmentsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		filter := clinic.ListFilter{}
		q := r.URL.Query()

		if v := q.Get("patient_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			filter.PatientID = id
		}
		if v := q.Get("physician_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_physician_id", "physician_id must be a valid UUID")
				return
			}
			filter.PhysicianID = id
		}
		if v := q.Get("status"); v != "" {
			status := clinic.AppointmentStatus(strings.ToUpper(v))
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+v)
				return
			}
			filter.Status = status
		}
		if v := q.Get("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC3339")
				return
			}
			filter.ScheduledFrom = t
		}
		if v := q.Get("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC3339")
				return
			}
			filter.ScheduledTo = t
		}

		apts, err := svc.List(r.Context(), filter)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		now := time.Now().UTC()
		out := make([]AppointmentResponse, 0, len(apts))
		for _, apt := range apts {
			out = append(out, toAppointmentResponse(apt, svc.PermissionsFor(apt, actor, now)))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func availableSlotsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		physicianID, err := uuid.Parse(q.Get("physician_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_physician_id", "physician_id must be a valid UUID")
			return
		}
		// Parse in the clinic's zone so the requested calendar day is the
		// clinic-local one, not the UTC day.
		date, err := time.ParseInLocation("2006-01-02", q.Get("date"), svc.Clock().Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		service := clinic.ServiceType(strings.ToUpper(q.Get("service_type")))
		if !service.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_service_type", "unknown service type")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), physicianID, date, service)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}
