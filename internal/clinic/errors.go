package clinic

import "errors"

// Error families. Callers dispatch on these with errors.Is; the HTTP layer
// maps each family to a distinct status code, so every error returned from
// this package wraps exactly one of them.
var (
	// ErrInvariantViolated marks an aggregate that failed validation. From
	// Reconstitute it signals corrupt stored data; from a constructor it
	// signals bad input.
	ErrInvariantViolated = errors.New("appointment invariant violated")

	// ErrInvalidTransition marks a transition not permitted from the
	// appointment's current status. The aggregate is left untouched.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrScheduleConflict is the policy rejection for a booking that
	// overlaps an existing active appointment (buffer included).
	ErrScheduleConflict = errors.New("schedule conflict")

	// ErrCancelNotAllowed is the policy rejection for a caller who may not
	// cancel the appointment at this time.
	ErrCancelNotAllowed = errors.New("cancellation not allowed")

	// ErrStaleAppointment is returned by Save when expectedUpdatedAt no
	// longer matches the stored row. Retryable: re-fetch, re-check policy,
	// resubmit.
	ErrStaleAppointment = errors.New("appointment was modified by another user")

	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPhysicianNotFound   = errors.New("physician not found")
	ErrBadSlotIncrement    = errors.New("slot increment must be positive")
)
