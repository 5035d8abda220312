package clinic

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Actor identifies the caller of an operation: the user id recorded as
// creator and the roles the session layer asserted for them.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

// ServiceConfig bundles the scheduling knobs the service needs.
type ServiceConfig struct {
	Policy        Policy
	SlotIncrement time.Duration
	Clock         ClinicTime
	// NoShowGrace is how long past its start a SCHEDULED appointment may
	// sit before the sweep marks it NO_SHOW.
	NoShowGrace time.Duration
}

// Service drives the appointment lifecycle: booking with conflict checks,
// status transitions under the CAS save contract, slot availability and
// the no-show sweep. It holds no mutable state of its own; every request
// works on its own aggregate instance and the persisted row is the only
// shared resource.
type Service struct {
	repo       Repository
	physicians PhysicianDirectory
	cache      AvailabilityCache
	policy     Policy
	slotgen    SlotGenerator
	clock      ClinicTime
	cfg        ServiceConfig
}

// NewService wires the service. cache may be nil.
func NewService(repo Repository, physicians PhysicianDirectory, cache AvailabilityCache, cfg ServiceConfig) *Service {
	return &Service{
		repo:       repo,
		physicians: physicians,
		cache:      cache,
		policy:     cfg.Policy,
		slotgen:    SlotGenerator{Increment: cfg.SlotIncrement, Policy: cfg.Policy, Clock: cfg.Clock},
		clock:      cfg.Clock,
		cfg:        cfg,
	}
}

// ScheduleRequest describes a new booking.
type ScheduleRequest struct {
	PatientID       uuid.UUID
	PhysicianID     uuid.UUID
	ServiceType     ServiceType
	StartAt         time.Time
	DurationMinutes int // 0 means the service catalog default
	Notes           string
}

// Schedule books a new appointment. The conflict policy runs twice, once
// against the physician's day and once against the patient's day; either
// collision rejects the booking. Note the check-then-write window is not
// locked: a racing booking can slip in between, which is why callers
// retrying after a conflict or stale save must re-validate against fresh
// state.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest, actor Actor) (*Appointment, error) {
	if !req.ServiceType.Valid() {
		return nil, invariant("unknown service type %q", req.ServiceType)
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = req.ServiceType.DefaultDurationMinutes()
	}

	if _, err := s.physicians.GetPhysician(ctx, req.PhysicianID); err != nil {
		return nil, err
	}

	start := req.StartAt
	end := start.Add(time.Duration(duration) * time.Minute)

	physicianDay, err := s.repo.GetByPhysicianAndDate(ctx, req.PhysicianID, start)
	if err != nil {
		return nil, fmt.Errorf("load physician day: %w", err)
	}
	if s.policy.HasConflict(start, end, physicianDay) {
		return nil, fmt.Errorf("%w: the physician is already booked for this time", ErrScheduleConflict)
	}

	patientDay, err := s.repo.List(ctx, ListFilter{
		PatientID:     req.PatientID,
		ScheduledFrom: s.clock.DayStart(start),
		ScheduledTo:   s.clock.DayEnd(start),
	})
	if err != nil {
		return nil, fmt.Errorf("load patient day: %w", err)
	}
	if s.policy.HasConflict(start, end, patientDay) {
		return nil, fmt.Errorf("%w: the patient already has a conflicting appointment", ErrScheduleConflict)
	}

	apt, err := NewScheduled(ScheduleParams{
		PatientID:       req.PatientID,
		PhysicianID:     req.PhysicianID,
		CreatedByUserID: actor.UserID,
		ServiceType:     req.ServiceType,
		StartAt:         start,
		DurationMinutes: duration,
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, apt, SaveOptions{}); err != nil {
		return nil, fmt.Errorf("save appointment: %w", err)
	}
	s.invalidateDay(ctx, apt.PhysicianID(), apt.ScheduledStartAt())

	return apt, nil
}

// WalkInRequest registers a patient who is physically at the front desk.
// Now is the registration instant; a zero value falls back to the wall
// clock, like ScheduleParams.Now.
type WalkInRequest struct {
	PatientID   uuid.UUID
	ServiceType ServiceType
	Notes       string
	Now         time.Time
}

// RegisterWalkIn routes a walk-in to the best physician available today:
// an idle one first, otherwise the one whose last active booking ends
// soonest. The appointment is created at that ready time and immediately
// checked in.
func (s *Service) RegisterWalkIn(ctx context.Context, req WalkInRequest, actor Actor) (*Appointment, error) {
	now := orNow(req.Now)

	doctors, err := s.physicians.ListPhysicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("list physicians: %w", err)
	}
	if len(doctors) == 0 {
		return nil, fmt.Errorf("%w: no physicians available", ErrPhysicianNotFound)
	}

	today, err := s.repo.List(ctx, ListFilter{
		ScheduledFrom: s.clock.DayStart(now),
		ScheduledTo:   s.clock.DayEnd(now),
	})
	if err != nil {
		return nil, fmt.Errorf("load today's appointments: %w", err)
	}

	type candidate struct {
		id      uuid.UUID
		busy    bool
		readyAt time.Time
	}
	candidates := make([]candidate, 0, len(doctors))
	for _, doc := range doctors {
		c := candidate{id: doc.ID, readyAt: now}
		for _, apt := range today {
			if apt.PhysicianID() != doc.ID {
				continue
			}
			if apt.Status() == StatusInProgress {
				c.busy = true
			}
			if apt.Status() != StatusCancelled && apt.ScheduledEndAt().After(c.readyAt) {
				c.readyAt = apt.ScheduledEndAt()
			}
		}
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].busy != candidates[j].busy {
			return !candidates[i].busy
		}
		return candidates[i].readyAt.Before(candidates[j].readyAt)
	})
	best := candidates[0]

	apt, err := NewScheduled(ScheduleParams{
		PatientID:       req.PatientID,
		PhysicianID:     best.id,
		CreatedByUserID: actor.UserID,
		ServiceType:     req.ServiceType,
		StartAt:         best.readyAt,
		DurationMinutes: req.ServiceType.DefaultDurationMinutes(),
		Notes:           req.Notes,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}
	if err := apt.CheckIn(now); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, apt, SaveOptions{}); err != nil {
		return nil, fmt.Errorf("save walk-in appointment: %w", err)
	}
	s.invalidateDay(ctx, apt.PhysicianID(), apt.ScheduledStartAt())

	return apt, nil
}

// TransitionRequest targets one appointment for a status change. At
// defaults to now when zero; ExpectedUpdatedAt, when set, arms the CAS
// check on save.
type TransitionRequest struct {
	AppointmentID     uuid.UUID
	At                time.Time
	ExpectedUpdatedAt *time.Time
}

// CheckIn moves a scheduled appointment to CHECKED_IN.
func (s *Service) CheckIn(ctx context.Context, req TransitionRequest) (*Appointment, error) {
	return s.transition(ctx, req, (*Appointment).CheckIn)
}

// Start moves a checked-in appointment to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, req TransitionRequest) (*Appointment, error) {
	return s.transition(ctx, req, (*Appointment).Start)
}

// Complete moves an in-progress appointment to COMPLETED.
func (s *Service) Complete(ctx context.Context, req TransitionRequest) (*Appointment, error) {
	return s.transition(ctx, req, (*Appointment).Complete)
}

func (s *Service) transition(ctx context.Context, req TransitionRequest, apply func(*Appointment, time.Time) error) (*Appointment, error) {
	apt, err := s.repo.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if err := apply(apt, req.At); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, apt, SaveOptions{ExpectedUpdatedAt: req.ExpectedUpdatedAt}); err != nil {
		return nil, err
	}
	return apt, nil
}

// CancelRequest cancels a scheduled appointment on behalf of actor.
type CancelRequest struct {
	AppointmentID     uuid.UUID
	Reason            string
	At                time.Time
	ExpectedUpdatedAt *time.Time
}

// Cancel applies the cancellation policy for the actor, then the
// aggregate transition, then the CAS save. A losing save surfaces
// ErrStaleAppointment; the caller re-fetches and re-applies policy before
// retrying.
func (s *Service) Cancel(ctx context.Context, req CancelRequest, actor Actor) (*Appointment, error) {
	apt, err := s.repo.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	now := req.At
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if !s.policy.CanCancel(apt, actor.Roles, now) {
		return nil, fmt.Errorf("%w: caller may not cancel this appointment", ErrCancelNotAllowed)
	}

	if err := apt.Cancel(req.Reason, now); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, apt, SaveOptions{ExpectedUpdatedAt: req.ExpectedUpdatedAt}); err != nil {
		return nil, err
	}
	s.invalidateDay(ctx, apt.PhysicianID(), apt.ScheduledStartAt())

	return apt, nil
}

// Clock returns the clinic wall clock the service resolves days against.
// The request surface uses it to parse calendar dates in the clinic's
// location.
func (s *Service) Clock() ClinicTime {
	return s.clock
}

// Get loads one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns appointments matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	return s.repo.List(ctx, filter)
}

// PermissionsFor projects the caller's action surface for an appointment.
func (s *Service) PermissionsFor(apt *Appointment, actor Actor, now time.Time) Permissions {
	return s.policy.PermissionsFor(apt, actor.Roles, now)
}

// AvailableSlots returns the full tiling of the physician's day for the
// service: every increment step, open or blocked. Served from the
// availability cache when the day hasn't changed since it was generated.
func (s *Service) AvailableSlots(ctx context.Context, physicianID uuid.UUID, date time.Time, service ServiceType) ([]TimeSlot, error) {
	if !service.Valid() {
		return nil, invariant("unknown service type %q", service)
	}

	day := s.clock.DayStart(date)
	if s.cache != nil {
		if slots, ok := s.cache.GetSlots(ctx, physicianID, day, service); ok {
			return slots, nil
		}
	}

	physician, err := s.physicians.GetPhysician(ctx, physicianID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByPhysicianAndDate(ctx, physicianID, date)
	if err != nil {
		return nil, fmt.Errorf("load physician day: %w", err)
	}

	duration := time.Duration(service.DefaultDurationMinutes()) * time.Minute
	slots, err := s.slotgen.Generate(physicianID, physician.Schedule, date, duration, existing)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetSlots(ctx, physicianID, day, service, slots)
	}
	return slots, nil
}

// MarkOverdueNoShows sweeps SCHEDULED appointments whose start is more
// than the grace period in the past and marks them NO_SHOW. Each save is
// CAS-guarded with the updatedAt observed at load; a row that moved in
// the meantime (front desk checked the patient in) is skipped, not
// overwritten.
func (s *Service) MarkOverdueNoShows(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	threshold := now.Add(-s.cfg.NoShowGrace)

	overdue, err := s.repo.FindOverdueScheduled(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, apt := range overdue {
		observed := apt.UpdatedAt()
		if err := apt.MarkNoShow(now); err != nil {
			log.Printf("skip no-show for appointment %s: %v", apt.ID(), err)
			continue
		}
		if err := s.repo.Save(ctx, apt, SaveOptions{ExpectedUpdatedAt: &observed}); err != nil {
			log.Printf("skip no-show for appointment %s: %v", apt.ID(), err)
			continue
		}
		s.invalidateDay(ctx, apt.PhysicianID(), apt.ScheduledStartAt())
		marked++
	}

	return marked, nil
}

func (s *Service) invalidateDay(ctx context.Context, physicianID uuid.UUID, at time.Time) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateDay(ctx, physicianID, s.clock.DayStart(at))
}
