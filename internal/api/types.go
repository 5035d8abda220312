package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinova/clinic-scheduling/internal/clinic"
)

type ScheduleAppointmentRequest struct {
	PatientID        string    `json:"patient_id"`
	PhysicianID      string    `json:"physician_id"`
	ServiceType      string    `json:"service_type"`
	ScheduledStartAt time.Time `json:"scheduled_start_at"`
	DurationMinutes  int       `json:"duration_minutes,omitempty"`
	Notes            string    `json:"notes,omitempty"`
}

type WalkInRequest struct {
	PatientID   string `json:"patient_id"`
	ServiceType string `json:"service_type"`
	Notes       string `json:"notes,omitempty"`
}

// TransitionRequest drives check-in, start and complete. expected_updated_at
// is the concurrency token observed by the caller; when present the save is
// compare-and-swap guarded.
type TransitionRequest struct {
	At                *time.Time `json:"at,omitempty"`
	ExpectedUpdatedAt *time.Time `json:"expected_updated_at,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason            string     `json:"reason"`
	At                *time.Time `json:"at,omitempty"`
	ExpectedUpdatedAt *time.Time `json:"expected_updated_at,omitempty"`
}

type ServiceInfo struct {
	Type            string `json:"type"`
	DisplayName     string `json:"display_name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type ScheduleInfo struct {
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

type LifecycleInfo struct {
	CreatedAt    time.Time  `json:"created_at"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	NoShowAt     *time.Time `json:"no_show_at,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID          `json:"id"`
	Status      string             `json:"status"`
	PatientID   uuid.UUID          `json:"patient_id"`
	PhysicianID uuid.UUID          `json:"physician_id"`
	Service     ServiceInfo        `json:"service"`
	Schedule    ScheduleInfo       `json:"schedule"`
	Lifecycle   LifecycleInfo      `json:"lifecycle"`
	Notes       string             `json:"notes,omitempty"`
	Permissions clinic.Permissions `json:"permissions"`
}

type SlotResponse struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
	PhysicianID uuid.UUID `json:"physician_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(apt *clinic.Appointment, perms clinic.Permissions) AppointmentResponse {
	return AppointmentResponse{
		ID:          apt.ID(),
		Status:      string(apt.Status()),
		PatientID:   apt.PatientID(),
		PhysicianID: apt.PhysicianID(),
		Service: ServiceInfo{
			Type:            string(apt.ServiceType()),
			DisplayName:     apt.ServiceType().DisplayName(),
			DurationMinutes: apt.ServiceType().DefaultDurationMinutes(),
		},
		Schedule: ScheduleInfo{
			StartAt:         apt.ScheduledStartAt(),
			EndAt:           apt.ScheduledEndAt(),
			DurationMinutes: apt.DurationMinutes(),
		},
		Lifecycle: LifecycleInfo{
			CreatedAt:    apt.CreatedAt(),
			CreatedBy:    apt.CreatedByUserID(),
			UpdatedAt:    apt.UpdatedAt(),
			CheckedInAt:  apt.CheckedInAt(),
			StartedAt:    apt.StartedAt(),
			CompletedAt:  apt.CompletedAt(),
			CancelledAt:  apt.CancelledAt(),
			CancelReason: apt.CancelReason(),
			NoShowAt:     apt.NoShowAt(),
		},
		Notes:       apt.Notes(),
		Permissions: perms,
	}
}

func toSlotResponses(slots []clinic.TimeSlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
			IsAvailable: s.IsAvailable,
			PhysicianID: s.PhysicianID,
		})
	}
	return out
}
