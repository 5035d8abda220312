package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(repo Repository, dir PhysicianDirectory, cache AvailabilityCache) *Service {
	return NewService(repo, dir, cache, ServiceConfig{
		Policy:        DefaultPolicy(),
		SlotIncrement: 10 * time.Minute,
		Clock:         ClinicTime{},
		NoShowGrace:   30 * time.Minute,
	})
}

func TestServiceSchedule(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	actor := Actor{UserID: uuid.New(), Roles: []string{RoleFrontDesk}}

	req := ScheduleRequest{
		PatientID:   uuid.New(),
		PhysicianID: uuid.New(),
		ServiceType: ServiceNewPatientVisit,
		StartAt:     start,
	}

	t.Run("books and persists a valid request", func(t *testing.T) {
		var saved *Appointment
		repo := &mockRepository{
			saveFn: func(ctx context.Context, apt *Appointment, opts SaveOptions) error {
				saved = apt
				assert.Nil(t, opts.ExpectedUpdatedAt)
				return nil
			},
		}
		cache := &mockCache{}
		svc := newTestService(repo, &mockDirectory{}, cache)

		apt, err := svc.Schedule(ctx, req, actor)
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, saved.ID(), apt.ID())
		assert.Equal(t, StatusScheduled, apt.Status())
		assert.Equal(t, actor.UserID, apt.CreatedByUserID())
		// Duration comes from the service catalog when the request omits it.
		assert.Equal(t, ServiceNewPatientVisit.DefaultDurationMinutes(), apt.DurationMinutes())
		assert.Equal(t, 1, cache.invalidations)
	})

	t.Run("rejects a physician-side collision", func(t *testing.T) {
		busy := physicianAppointment(t, req.PhysicianID, start.Add(15*time.Minute), 20)
		repo := &mockRepository{
			getByPhysicianAndDateFn: func(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]*Appointment, error) {
				return []*Appointment{busy}, nil
			},
			saveFn: func(ctx context.Context, apt *Appointment, opts SaveOptions) error {
				t.Fatal("conflicting booking must not be saved")
				return nil
			},
		}
		svc := newTestService(repo, &mockDirectory{}, nil)

		_, err := svc.Schedule(ctx, req, actor)
		assert.ErrorIs(t, err, ErrScheduleConflict)
	})

	t.Run("rejects a patient-side collision", func(t *testing.T) {
		// Same patient, different physician, overlapping time.
		other := physicianAppointment(t, uuid.New(), start.Add(10*time.Minute), 20)
		repo := &mockRepository{
			listFn: func(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
				assert.Equal(t, req.PatientID, filter.PatientID)
				return []*Appointment{other}, nil
			},
		}
		svc := newTestService(repo, &mockDirectory{}, nil)

		_, err := svc.Schedule(ctx, req, actor)
		assert.ErrorIs(t, err, ErrScheduleConflict)
	})

	t.Run("a gap violation is a collision even without overlap", func(t *testing.T) {
		// Ends 09:55, five minutes before the candidate start.
		busy := physicianAppointment(t, req.PhysicianID, start.Add(-35*time.Minute), 30)
		repo := &mockRepository{
			getByPhysicianAndDateFn: func(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]*Appointment, error) {
				return []*Appointment{busy}, nil
			},
		}
		svc := newTestService(repo, &mockDirectory{}, nil)

		_, err := svc.Schedule(ctx, req, actor)
		assert.ErrorIs(t, err, ErrScheduleConflict)
	})

	t.Run("rejects an unknown service type", func(t *testing.T) {
		bad := req
		bad.ServiceType = "ACUPUNCTURE"
		svc := newTestService(&mockRepository{}, &mockDirectory{}, nil)

		_, err := svc.Schedule(ctx, bad, actor)
		assert.ErrorIs(t, err, ErrInvariantViolated)
	})

	t.Run("rejects an unknown physician", func(t *testing.T) {
		dir := &mockDirectory{
			getPhysicianFn: func(ctx context.Context, id uuid.UUID) (*PhysicianProfile, error) {
				return nil, ErrPhysicianNotFound
			},
		}
		svc := newTestService(&mockRepository{}, dir, nil)

		_, err := svc.Schedule(ctx, req, actor)
		assert.ErrorIs(t, err, ErrPhysicianNotFound)
	})
}

func TestServiceTransitions(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

	t.Run("check-in forwards the concurrency token to save", func(t *testing.T) {
		apt := physicianAppointment(t, uuid.New(), start, 30)
		token := apt.UpdatedAt()
		var gotOpts SaveOptions
		repo := &mockRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
				return apt, nil
			},
			saveFn: func(ctx context.Context, apt *Appointment, opts SaveOptions) error {
				gotOpts = opts
				return nil
			},
		}
		svc := newTestService(repo, &mockDirectory{}, nil)

		got, err := svc.CheckIn(ctx, TransitionRequest{
			AppointmentID:     apt.ID(),
			At:                start,
			ExpectedUpdatedAt: &token,
		})
		require.NoError(t, err)
		assert.Equal(t, StatusCheckedIn, got.Status())
		require.NotNil(t, gotOpts.ExpectedUpdatedAt)
		assert.True(t, gotOpts.ExpectedUpdatedAt.Equal(token))
	})

	t.Run("a losing save surfaces the stale error unchanged", func(t *testing.T) {
		apt := physicianAppointment(t, uuid.New(), start, 30)
		token := apt.UpdatedAt()
		repo := &mockRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
				return apt, nil
			},
			saveFn: func(ctx context.Context, apt *Appointment, opts SaveOptions) error {
				return ErrStaleAppointment
			},
		}
		svc := newTestService(repo, &mockDirectory{}, nil)

		_, err := svc.CheckIn(ctx, TransitionRequest{AppointmentID: apt.ID(), At: start, ExpectedUpdatedAt: &token})
		assert.ErrorIs(t, err, ErrStaleAppointment)
	})

	t.Run("an illegal transition never reaches the repository", func(t *testing.T) {
		apt := physicianAppointment(t, uuid.New(), start, 30)
		repo := &mockRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
				return apt, nil
			},
			saveFn: func(ctx context.Context, apt *Appointment, opts SaveOptions) error {
				t.Fatal("illegal transition must not be saved")
				return nil
			},
		}
		svc := newTestService(repo, &mockDirectory{}, nil)

		_, err := svc.Start(ctx, TransitionRequest{AppointmentID: apt.ID(), At: start})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		svc := newTestService(&mockRepository{}, &mockDirectory{}, nil)
		_, err := svc.Complete(ctx, TransitionRequest{AppointmentID: uuid.New()})
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
	})
}

func TestServiceCancel(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

	newRepo := func(apt *Appointment) *mockRepository {
		return &mockRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
				return apt, nil
			},
		}
	}

	t.Run("staff cancels inside the patient window", func(t *testing.T) {
		apt := physicianAppointment(t, uuid.New(), start, 30)
		svc := newTestService(newRepo(apt), &mockDirectory{}, nil)

		got, err := svc.Cancel(ctx, CancelRequest{
			AppointmentID: apt.ID(),
			Reason:        "physician out sick",
			At:            start.Add(-time.Hour),
		}, Actor{UserID: uuid.New(), Roles: []string{RoleFrontDesk}})
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status())
		assert.Equal(t, "physician out sick", got.CancelReason())
	})

	t.Run("patient inside the window is refused before any mutation", func(t *testing.T) {
		apt := physicianAppointment(t, uuid.New(), start, 30)
		repo := newRepo(apt)
		repo.saveFn = func(ctx context.Context, apt *Appointment, opts SaveOptions) error {
			t.Fatal("refused cancellation must not be saved")
			return nil
		}
		svc := newTestService(repo, &mockDirectory{}, nil)

		_, err := svc.Cancel(ctx, CancelRequest{
			AppointmentID: apt.ID(),
			Reason:        "cannot make it",
			At:            start.Add(-time.Hour),
		}, Actor{UserID: uuid.New(), Roles: []string{RolePatient}})
		assert.ErrorIs(t, err, ErrCancelNotAllowed)
		assert.Equal(t, StatusScheduled, apt.Status())
	})

	t.Run("patient outside the window succeeds", func(t *testing.T) {
		apt := physicianAppointment(t, uuid.New(), start, 30)
		svc := newTestService(newRepo(apt), &mockDirectory{}, nil)

		got, err := svc.Cancel(ctx, CancelRequest{
			AppointmentID: apt.ID(),
			Reason:        "travel plans changed",
			At:            start.Add(-48 * time.Hour),
		}, Actor{UserID: uuid.New(), Roles: []string{RolePatient}})
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status())
	})
}

func TestServiceAvailableSlots(t *testing.T) {
	ctx := context.Background()
	physicianID := uuid.New()
	monday := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

	t.Run("cache hit short-circuits generation", func(t *testing.T) {
		cached := []TimeSlot{{StartTime: monday, EndTime: monday.Add(20 * time.Minute), IsAvailable: true, PhysicianID: physicianID}}
		cache := &mockCache{
			getSlotsFn: func(ctx context.Context, id uuid.UUID, day time.Time, service ServiceType) ([]TimeSlot, bool) {
				return cached, true
			},
		}
		repo := &mockRepository{
			getByPhysicianAndDateFn: func(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]*Appointment, error) {
				t.Fatal("cache hit must not touch the repository")
				return nil, nil
			},
		}
		svc := newTestService(repo, &mockDirectory{}, cache)

		slots, err := svc.AvailableSlots(ctx, physicianID, monday, ServiceFollowUpVisit)
		require.NoError(t, err)
		assert.Equal(t, cached, slots)
	})

	t.Run("cache miss generates and stores the tiling", func(t *testing.T) {
		var stored []TimeSlot
		cache := &mockCache{
			setSlotsFn: func(ctx context.Context, id uuid.UUID, day time.Time, service ServiceType, slots []TimeSlot) {
				stored = slots
			},
		}
		svc := newTestService(&mockRepository{}, &mockDirectory{}, cache)

		slots, err := svc.AvailableSlots(ctx, physicianID, monday, ServiceFollowUpVisit)
		require.NoError(t, err)
		assert.NotEmpty(t, slots)
		assert.Equal(t, slots, stored)
	})

	t.Run("works without a cache", func(t *testing.T) {
		svc := newTestService(&mockRepository{}, &mockDirectory{}, nil)
		slots, err := svc.AvailableSlots(ctx, physicianID, monday, ServiceFollowUpVisit)
		require.NoError(t, err)
		assert.NotEmpty(t, slots)
	})

	t.Run("unknown service type", func(t *testing.T) {
		svc := newTestService(&mockRepository{}, &mockDirectory{}, nil)
		_, err := svc.AvailableSlots(ctx, physicianID, monday, "HOUSE_CALL")
		assert.ErrorIs(t, err, ErrInvariantViolated)
	})
}

func TestServiceMarkOverdueNoShows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)

	t.Run("marks overdue rows and skips the ones that moved", func(t *testing.T) {
		stale := physicianAppointment(t, uuid.New(), now.Add(-2*time.Hour), 30)
		fresh := physicianAppointment(t, uuid.New(), now.Add(-90*time.Minute), 30)
		repo := &mockRepository{
			findOverdueScheduledFn: func(ctx context.Context, threshold time.Time) ([]*Appointment, error) {
				assert.True(t, threshold.Equal(now.Add(-30*time.Minute)))
				return []*Appointment{stale, fresh}, nil
			},
			saveFn: func(ctx context.Context, apt *Appointment, opts SaveOptions) error {
				require.NotNil(t, opts.ExpectedUpdatedAt)
				if apt.ID() == stale.ID() {
					// The front desk checked this patient in concurrently.
					return ErrStaleAppointment
				}
				return nil
			},
		}
		svc := newTestService(repo, &mockDirectory{}, nil)

		marked, err := svc.MarkOverdueNoShows(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, marked)
		assert.Equal(t, StatusNoShow, fresh.Status())
	})

	t.Run("empty sweep is a no-op", func(t *testing.T) {
		svc := newTestService(&mockRepository{}, &mockDirectory{}, nil)
		marked, err := svc.MarkOverdueNoShows(ctx, now)
		require.NoError(t, err)
		assert.Zero(t, marked)
	})
}

func TestServiceRegisterWalkIn(t *testing.T) {
	ctx := context.Background()
	actor := Actor{UserID: uuid.New(), Roles: []string{RoleFrontDesk}}
	now := time.Date(2025, time.June, 2, 11, 0, 0, 0, time.UTC)
	req := WalkInRequest{PatientID: uuid.New(), ServiceType: ServiceUrgentSameDay, Now: now}

	t.Run("prefers an idle physician", func(t *testing.T) {
		idle := uuid.New()
		busy := uuid.New()
		dir := &mockDirectory{
			listPhysiciansFn: func(ctx context.Context) ([]PhysicianProfile, error) {
				return []PhysicianProfile{
					{ID: busy, Schedule: weekdaySchedule()},
					{ID: idle, Schedule: weekdaySchedule()},
				}, nil
			},
		}
		inProgress := physicianAppointment(t, busy, now.Add(-10*time.Minute), 30)
		require.NoError(t, inProgress.CheckIn(now.Add(-10*time.Minute)))
		require.NoError(t, inProgress.Start(now.Add(-5*time.Minute)))
		repo := &mockRepository{
			listFn: func(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
				return []*Appointment{inProgress}, nil
			},
		}
		svc := newTestService(repo, dir, nil)

		apt, err := svc.RegisterWalkIn(ctx, req, actor)
		require.NoError(t, err)
		assert.Equal(t, idle, apt.PhysicianID())
		assert.Equal(t, StatusCheckedIn, apt.Status())
		require.NotNil(t, apt.CheckedInAt())
		// The request's instant drives the whole registration.
		assert.True(t, apt.CheckedInAt().Equal(now))
		assert.True(t, apt.ScheduledStartAt().Equal(now))
	})

	t.Run("falls back to the earliest free physician", func(t *testing.T) {
		soon := uuid.New()
		late := uuid.New()
		dir := &mockDirectory{
			listPhysiciansFn: func(ctx context.Context) ([]PhysicianProfile, error) {
				return []PhysicianProfile{
					{ID: late, Schedule: weekdaySchedule()},
					{ID: soon, Schedule: weekdaySchedule()},
				}, nil
			},
		}
		repo := &mockRepository{
			listFn: func(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
				return []*Appointment{
					physicianAppointment(t, late, now.Add(time.Hour), 60),
					physicianAppointment(t, soon, now.Add(10*time.Minute), 20),
				}, nil
			},
		}
		svc := newTestService(repo, dir, nil)

		apt, err := svc.RegisterWalkIn(ctx, req, actor)
		require.NoError(t, err)
		assert.Equal(t, soon, apt.PhysicianID())
		assert.True(t, apt.ScheduledStartAt().Equal(now.Add(30*time.Minute)))
	})

	t.Run("no physicians on file", func(t *testing.T) {
		dir := &mockDirectory{
			listPhysiciansFn: func(ctx context.Context) ([]PhysicianProfile, error) {
				return []PhysicianProfile{}, nil
			},
		}
		svc := newTestService(&mockRepository{}, dir, nil)

		_, err := svc.RegisterWalkIn(ctx, req, actor)
		assert.ErrorIs(t, err, ErrPhysicianNotFound)
	})
}
