package clinic

import (
	"slices"
	"time"
)

// Policy holds the clinic's booking rules: the minimum idle gap required
// around every active appointment and the patient cancellation window.
// Both decision functions are pure; all inputs, including "now", arrive as
// arguments.
type Policy struct {
	// Gap is the turnaround buffer applied on each side of an existing
	// appointment when testing a new interval. It enforces a minimum gap
	// between consecutive visits, not just non-overlap.
	Gap time.Duration

	// CancelWindow is how far before the scheduled start a patient may
	// still cancel. Staff are not bound by it.
	CancelWindow time.Duration
}

// DefaultPolicy mirrors the clinic defaults: 10 minute gap, 24 hour
// cancellation window.
func DefaultPolicy() Policy {
	return Policy{
		Gap:          10 * time.Minute,
		CancelWindow: 24 * time.Hour,
	}
}

// HasConflict reports whether the interval [newStart, newEnd) collides
// with any active appointment in existing, after widening each existing
// span by the gap on both sides. Cancelled and no-show appointments never
// block; completed and in-progress ones still do.
//
// Callers booking a new appointment must run this twice: once against the
// physician's day and once against the patient's day.
func (p Policy) HasConflict(newStart, newEnd time.Time, existing []*Appointment) bool {
	for _, apt := range existing {
		if !apt.Status().Blocks() {
			continue
		}
		start := apt.ScheduledStartAt()
		end := apt.ScheduledEndAt()
		if newStart.Before(end.Add(p.Gap)) && newEnd.After(start.Add(-p.Gap)) {
			return true
		}
	}
	return false
}

// CanCancel decides whether a caller holding the given roles may cancel
// the appointment at instant now. Only a SCHEDULED appointment is
// cancellable at all; staff may cancel any remaining time, a patient only
// while now is still before start minus the cancellation window.
func (p Policy) CanCancel(apt *Appointment, roles []string, now time.Time) bool {
	if apt.Status() != StatusScheduled {
		return false
	}
	if slices.Contains(roles, RolePhysician) || slices.Contains(roles, RoleFrontDesk) {
		return true
	}
	if slices.Contains(roles, RolePatient) {
		return now.Before(apt.ScheduledStartAt().Add(-p.CancelWindow))
	}
	return false
}

// Permissions is the action surface projected onto a DTO: which
// transitions the given caller could perform on the appointment right now.
type Permissions struct {
	CanBeCancelled bool `json:"canBeCancelled"`
	CanBeCheckedIn bool `json:"canBeCheckedIn"`
	CanBeStarted   bool `json:"canBeStarted"`
	CanBeCompleted bool `json:"canBeCompleted"`
}

// PermissionsFor re-runs the transition guards and cancellation policy
// against the appointment's current state.
func (p Policy) PermissionsFor(apt *Appointment, roles []string, now time.Time) Permissions {
	staff := slices.Contains(roles, RolePhysician) || slices.Contains(roles, RoleFrontDesk)
	return Permissions{
		CanBeCancelled: p.CanCancel(apt, roles, now),
		CanBeCheckedIn: staff && apt.Status() == StatusScheduled,
		CanBeStarted:   staff && apt.Status() == StatusCheckedIn,
		CanBeCompleted: staff && apt.Status() == StatusInProgress,
	}
}
