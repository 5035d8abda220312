package clinic

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduledAt(t *testing.T, start time.Time, minutes int) *Appointment {
	t.Helper()
	apt, err := NewScheduled(ScheduleParams{
		PatientID:       uuid.New(),
		PhysicianID:     uuid.New(),
		CreatedByUserID: uuid.New(),
		ServiceType:     ServiceFollowUpVisit,
		StartAt:         start,
		DurationMinutes: minutes,
		Now:             start.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	return apt
}

func TestHasConflict(t *testing.T) {
	policy := DefaultPolicy()
	day := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time {
		return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	}

	// One existing appointment 10:00-10:30.
	existing := []*Appointment{scheduledAt(t, at(10, 0), 30)}

	t.Run("overlap conflicts", func(t *testing.T) {
		assert.True(t, policy.HasConflict(at(10, 15), at(10, 45), existing))
	})

	t.Run("candidate inside the trailing buffer conflicts", func(t *testing.T) {
		// 10:35 is only 5 minutes after the 10:30 end; the 10 minute gap
		// is not satisfied.
		assert.True(t, policy.HasConflict(at(10, 35), at(11, 0), existing))
	})

	t.Run("candidate clear of the buffer does not conflict", func(t *testing.T) {
		assert.False(t, policy.HasConflict(at(10, 45), at(11, 15), existing))
	})

	t.Run("candidate ending inside the leading buffer conflicts", func(t *testing.T) {
		assert.True(t, policy.HasConflict(at(9, 30), at(9, 55), existing))
	})

	t.Run("cancelled and no-show appointments never block", func(t *testing.T) {
		cancelled := scheduledAt(t, at(10, 0), 30)
		require.NoError(t, cancelled.Cancel("rescheduled by patient", at(8, 0)))

		noShow := scheduledAt(t, at(11, 0), 30)
		require.NoError(t, noShow.MarkNoShow(at(11, 40)))

		assert.False(t, policy.HasConflict(at(10, 0), at(10, 30), []*Appointment{cancelled, noShow}))
	})

	t.Run("completed appointments still block", func(t *testing.T) {
		done := scheduledAt(t, at(10, 0), 30)
		require.NoError(t, done.CheckIn(at(10, 0)))
		require.NoError(t, done.Start(at(10, 5)))
		require.NoError(t, done.Complete(at(10, 25)))

		assert.True(t, policy.HasConflict(at(10, 15), at(10, 45), []*Appointment{done}))
	})

	t.Run("empty calendar never conflicts", func(t *testing.T) {
		assert.False(t, policy.HasConflict(at(10, 0), at(10, 30), nil))
	})
}

func TestCanCancel(t *testing.T) {
	policy := DefaultPolicy()
	start := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	apt := scheduledAt(t, start, 30)

	t.Run("staff may cancel inside the window", func(t *testing.T) {
		now := start.Add(-2 * time.Hour)
		assert.True(t, policy.CanCancel(apt, []string{RoleFrontDesk}, now))
		assert.True(t, policy.CanCancel(apt, []string{RolePhysician}, now))
	})

	t.Run("patient may cancel before the window", func(t *testing.T) {
		now := start.Add(-25 * time.Hour)
		assert.True(t, policy.CanCancel(apt, []string{RolePatient}, now))
	})

	t.Run("patient may not cancel inside the window", func(t *testing.T) {
		now := start.Add(-2 * time.Hour)
		assert.False(t, policy.CanCancel(apt, []string{RolePatient}, now))
	})

	t.Run("exactly at the window boundary is too late for a patient", func(t *testing.T) {
		now := start.Add(-24 * time.Hour)
		assert.False(t, policy.CanCancel(apt, []string{RolePatient}, now))
	})

	t.Run("unknown roles may not cancel", func(t *testing.T) {
		assert.False(t, policy.CanCancel(apt, []string{"AUDITOR"}, start.Add(-48*time.Hour)))
		assert.False(t, policy.CanCancel(apt, nil, start.Add(-48*time.Hour)))
	})

	t.Run("nothing past SCHEDULED is cancellable", func(t *testing.T) {
		checkedIn := scheduledAt(t, start, 30)
		require.NoError(t, checkedIn.CheckIn(start))
		assert.False(t, policy.CanCancel(checkedIn, []string{RoleFrontDesk}, start))

		cancelled := scheduledAt(t, start, 30)
		require.NoError(t, cancelled.Cancel("duplicate booking", start.Add(-time.Hour)))
		assert.False(t, policy.CanCancel(cancelled, []string{RoleFrontDesk}, start))
	})
}

func TestPermissionsFor(t *testing.T) {
	policy := DefaultPolicy()
	start := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	now := start.Add(-time.Hour)
	staff := []string{RoleFrontDesk}

	t.Run("scheduled appointment for staff", func(t *testing.T) {
		apt := scheduledAt(t, start, 30)
		perms := policy.PermissionsFor(apt, staff, now)
		assert.Equal(t, Permissions{CanBeCancelled: true, CanBeCheckedIn: true}, perms)
	})

	t.Run("scheduled appointment for patient inside window", func(t *testing.T) {
		apt := scheduledAt(t, start, 30)
		perms := policy.PermissionsFor(apt, []string{RolePatient}, now)
		assert.Equal(t, Permissions{}, perms)
	})

	t.Run("checked-in appointment can only be started", func(t *testing.T) {
		apt := scheduledAt(t, start, 30)
		require.NoError(t, apt.CheckIn(now))
		perms := policy.PermissionsFor(apt, staff, now)
		assert.Equal(t, Permissions{CanBeStarted: true}, perms)
	})

	t.Run("in-progress appointment can only be completed", func(t *testing.T) {
		apt := scheduledAt(t, start, 30)
		require.NoError(t, apt.CheckIn(now))
		require.NoError(t, apt.Start(now.Add(5*time.Minute)))
		perms := policy.PermissionsFor(apt, staff, now)
		assert.Equal(t, Permissions{CanBeCompleted: true}, perms)
	})

	t.Run("terminal appointment allows nothing", func(t *testing.T) {
		apt := scheduledAt(t, start, 30)
		require.NoError(t, apt.MarkNoShow(start.Add(time.Hour)))
		assert.Equal(t, Permissions{}, policy.PermissionsFor(apt, staff, now))
	})
}
