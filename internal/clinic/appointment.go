package clinic

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Appointment is the aggregate root for a confirmed clinical booking. All
// fields are unexported: the only way to obtain a valid instance is
// NewScheduled or Reconstitute, and the only way to change one is a
// transition method. Every path re-runs the full invariant check, so an
// invalid appointment is never observable outside this package.
type Appointment struct {
	entity

	patientID       uuid.UUID
	physicianID     uuid.UUID
	createdByUserID uuid.UUID
	serviceType     ServiceType

	scheduledStartAt time.Time
	durationMinutes  int
	notes            string

	status AppointmentStatus

	checkedInAt  *time.Time
	startedAt    *time.Time
	completedAt  *time.Time
	cancelledAt  *time.Time
	cancelReason string
	noShowAt     *time.Time
}

// ScheduleParams carries everything a fresh booking needs. Now is the
// construction instant; a zero value falls back to the wall clock, but
// callers should pass it explicitly.
type ScheduleParams struct {
	PatientID       uuid.UUID
	PhysicianID     uuid.UUID
	CreatedByUserID uuid.UUID
	ServiceType     ServiceType
	StartAt         time.Time
	DurationMinutes int
	Notes           string
	Now             time.Time
}

// NewScheduled creates a booking in the SCHEDULED state.
func NewScheduled(p ScheduleParams) (*Appointment, error) {
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	a := &Appointment{
		entity:           newEntity(uuid.Nil, now, now),
		patientID:        p.PatientID,
		physicianID:      p.PhysicianID,
		createdByUserID:  p.CreatedByUserID,
		serviceType:      p.ServiceType,
		scheduledStartAt: p.StartAt,
		durationMinutes:  p.DurationMinutes,
		notes:            strings.TrimSpace(p.Notes),
		status:           StatusScheduled,
	}

	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// AppointmentSnapshot is the flat, serializable view of an appointment.
// It is the storage/wire shape: Snapshot and Reconstitute round-trip
// through it without loss.
type AppointmentSnapshot struct {
	ID              uuid.UUID         `json:"id"`
	PatientID       uuid.UUID         `json:"patientId"`
	PhysicianID     uuid.UUID         `json:"physicianId"`
	CreatedByUserID uuid.UUID         `json:"createdByUserId"`
	ServiceType     ServiceType       `json:"serviceType"`
	ScheduledStart  time.Time         `json:"scheduledStartAt"`
	DurationMinutes int               `json:"scheduledDurationMinutes"`
	Status          AppointmentStatus `json:"status"`
	Notes           string            `json:"notes,omitempty"`
	CheckedInAt     *time.Time        `json:"checkedInAt,omitempty"`
	StartedAt       *time.Time        `json:"startedAt,omitempty"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	CancelledAt     *time.Time        `json:"cancelledAt,omitempty"`
	CancelReason    string            `json:"cancelReason,omitempty"`
	NoShowAt        *time.Time        `json:"noShowAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Reconstitute rebuilds an aggregate from stored state. It funnels through
// the same validation as NewScheduled, so storage can never reintroduce an
// inconsistent appointment; a failure here means the row is corrupt.
func Reconstitute(s AppointmentSnapshot) (*Appointment, error) {
	a := &Appointment{
		entity:           newEntity(s.ID, s.CreatedAt, s.UpdatedAt),
		patientID:        s.PatientID,
		physicianID:      s.PhysicianID,
		createdByUserID:  s.CreatedByUserID,
		serviceType:      s.ServiceType,
		scheduledStartAt: s.ScheduledStart,
		durationMinutes:  s.DurationMinutes,
		notes:            strings.TrimSpace(s.Notes),
		status:           s.Status,
		checkedInAt:      copyTime(s.CheckedInAt),
		startedAt:        copyTime(s.StartedAt),
		completedAt:      copyTime(s.CompletedAt),
		cancelledAt:      copyTime(s.CancelledAt),
		cancelReason:     strings.TrimSpace(s.CancelReason),
		noShowAt:         copyTime(s.NoShowAt),
	}

	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Snapshot returns the serializable state of the appointment.
func (a *Appointment) Snapshot() AppointmentSnapshot {
	return AppointmentSnapshot{
		ID:              a.id,
		PatientID:       a.patientID,
		PhysicianID:     a.physicianID,
		CreatedByUserID: a.createdByUserID,
		ServiceType:     a.serviceType,
		ScheduledStart:  a.scheduledStartAt,
		DurationMinutes: a.durationMinutes,
		Status:          a.status,
		Notes:           a.notes,
		CheckedInAt:     copyTime(a.checkedInAt),
		StartedAt:       copyTime(a.startedAt),
		CompletedAt:     copyTime(a.completedAt),
		CancelledAt:     copyTime(a.cancelledAt),
		CancelReason:    a.cancelReason,
		NoShowAt:        copyTime(a.noShowAt),
		CreatedAt:       a.createdAt,
		UpdatedAt:       a.updatedAt,
	}
}

// Accessors

func (a *Appointment) PatientID() uuid.UUID         { return a.patientID }
func (a *Appointment) PhysicianID() uuid.UUID       { return a.physicianID }
func (a *Appointment) CreatedByUserID() uuid.UUID   { return a.createdByUserID }
func (a *Appointment) ServiceType() ServiceType     { return a.serviceType }
func (a *Appointment) ScheduledStartAt() time.Time  { return a.scheduledStartAt }
func (a *Appointment) DurationMinutes() int         { return a.durationMinutes }
func (a *Appointment) Status() AppointmentStatus    { return a.status }
func (a *Appointment) Notes() string                { return a.notes }
func (a *Appointment) CheckedInAt() *time.Time      { return copyTime(a.checkedInAt) }
func (a *Appointment) StartedAt() *time.Time        { return copyTime(a.startedAt) }
func (a *Appointment) CompletedAt() *time.Time      { return copyTime(a.completedAt) }
func (a *Appointment) CancelledAt() *time.Time      { return copyTime(a.cancelledAt) }
func (a *Appointment) CancelReason() string         { return a.cancelReason }
func (a *Appointment) NoShowAt() *time.Time         { return copyTime(a.noShowAt) }

// ScheduledEndAt is derived, never stored.
func (a *Appointment) ScheduledEndAt() time.Time {
	return a.scheduledStartAt.Add(time.Duration(a.durationMinutes) * time.Minute)
}

// Transitions. Each one builds the next state on a copy, validates it, and
// only then commits, so a rejected transition leaves the aggregate exactly
// as it was.

// CheckIn moves SCHEDULED -> CHECKED_IN.
func (a *Appointment) CheckIn(at time.Time) error {
	if a.status != StatusScheduled {
		return transitionError("check in", a.status)
	}
	at = orNow(at)
	next := *a
	next.status = StatusCheckedIn
	next.checkedInAt = &at
	next.touch(at)
	return a.commit(&next)
}

// Start moves CHECKED_IN -> IN_PROGRESS. at must not precede checkedInAt.
func (a *Appointment) Start(at time.Time) error {
	if a.status != StatusCheckedIn {
		return transitionError("start", a.status)
	}
	at = orNow(at)
	next := *a
	next.status = StatusInProgress
	next.startedAt = &at
	next.touch(at)
	return a.commit(&next)
}

// Complete moves IN_PROGRESS -> COMPLETED. at must not precede startedAt.
func (a *Appointment) Complete(at time.Time) error {
	if a.status != StatusInProgress {
		return transitionError("complete", a.status)
	}
	at = orNow(at)
	next := *a
	next.status = StatusCompleted
	next.completedAt = &at
	next.touch(at)
	return a.commit(&next)
}

// Cancel moves SCHEDULED -> CANCELLED. The aggregate only demands a
// reason; who may cancel and until when is Policy.CanCancel's call.
func (a *Appointment) Cancel(reason string, at time.Time) error {
	if a.status != StatusScheduled {
		return transitionError("cancel", a.status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: cancel reason is required", ErrInvariantViolated)
	}
	at = orNow(at)
	next := *a
	next.status = StatusCancelled
	next.cancelledAt = &at
	next.cancelReason = reason
	next.touch(at)
	return a.commit(&next)
}

// MarkNoShow moves SCHEDULED -> NO_SHOW.
func (a *Appointment) MarkNoShow(at time.Time) error {
	if a.status != StatusScheduled {
		return transitionError("mark no-show", a.status)
	}
	at = orNow(at)
	next := *a
	next.status = StatusNoShow
	next.noShowAt = &at
	next.touch(at)
	return a.commit(&next)
}

func (a *Appointment) commit(next *Appointment) error {
	if err := next.validate(); err != nil {
		return err
	}
	*a = *next
	return nil
}

func transitionError(op string, from AppointmentStatus) error {
	return fmt.Errorf("%w: cannot %s: current status is %s", ErrInvalidTransition, op, from)
}

// validate asserts every invariant of the aggregate. It runs after each
// construction and mutation.
func (a *Appointment) validate() error {
	if !a.status.Valid() {
		return invariant("unknown status %q", a.status)
	}
	if a.patientID == uuid.Nil {
		return invariant("patientId is required")
	}
	if a.createdByUserID == uuid.Nil {
		return invariant("createdByUserId is required")
	}
	if a.physicianID == uuid.Nil {
		return invariant("physicianId is required")
	}
	if a.scheduledStartAt.IsZero() {
		return invariant("scheduledStartAt is required")
	}
	if a.durationMinutes <= 0 {
		return invariant("scheduledDurationMinutes must be a positive integer")
	}
	if !a.serviceType.Valid() {
		return invariant("unknown service type %q", a.serviceType)
	}
	if a.updatedAt.Before(a.createdAt) {
		return invariant("updatedAt precedes createdAt")
	}

	// Lifecycle timestamps exist exactly for the statuses that reached them.
	wantCheckedIn := a.status == StatusCheckedIn || a.status == StatusInProgress || a.status == StatusCompleted
	if wantCheckedIn != (a.checkedInAt != nil) {
		return invariant("checkedInAt presence does not match status %s", a.status)
	}
	wantStarted := a.status == StatusInProgress || a.status == StatusCompleted
	if wantStarted != (a.startedAt != nil) {
		return invariant("startedAt presence does not match status %s", a.status)
	}
	if (a.status == StatusCompleted) != (a.completedAt != nil) {
		return invariant("completedAt presence does not match status %s", a.status)
	}
	if (a.status == StatusCancelled) != (a.cancelledAt != nil) {
		return invariant("cancelledAt presence does not match status %s", a.status)
	}
	if (a.status == StatusCancelled) != (a.cancelReason != "") {
		return invariant("cancelReason presence does not match status %s", a.status)
	}
	if (a.status == StatusNoShow) != (a.noShowAt != nil) {
		return invariant("noShowAt presence does not match status %s", a.status)
	}

	// No retroactive progress.
	if a.startedAt != nil && a.checkedInAt != nil && a.startedAt.Before(*a.checkedInAt) {
		return invariant("startedAt precedes checkedInAt")
	}
	if a.completedAt != nil && a.startedAt != nil && a.completedAt.Before(*a.startedAt) {
		return invariant("completedAt precedes startedAt")
	}

	return nil
}

func invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolated, fmt.Sprintf(format, args...))
}

func orNow(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
