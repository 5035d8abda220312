package clinic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows List. Zero-valued fields are ignored.
type ListFilter struct {
	PatientID     uuid.UUID
	PhysicianID   uuid.UUID
	Status        AppointmentStatus
	ScheduledFrom time.Time
	ScheduledTo   time.Time
}

// SaveOptions carries the optimistic-concurrency token. When
// ExpectedUpdatedAt is set, Save must atomically compare it against the
// stored updatedAt and reject the write with ErrStaleAppointment on a
// mismatch. This compare-and-swap is the system's only synchronization
// primitive; there are no locks anywhere.
type SaveOptions struct {
	ExpectedUpdatedAt *time.Time
}

// Repository is the storage contract the scheduling core requires.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByPhysician(ctx context.Context, physicianID uuid.UUID) ([]*Appointment, error)
	// GetByPhysicianAndDate returns the physician's appointments whose
	// scheduled start falls on the clinic-local day containing date.
	GetByPhysicianAndDate(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	Save(ctx context.Context, apt *Appointment, opts SaveOptions) error
	// FindOverdueScheduled returns SCHEDULED appointments whose start time
	// is before threshold; input for the no-show sweep.
	FindOverdueScheduled(ctx context.Context, threshold time.Time) ([]*Appointment, error)
}

// PhysicianProfile is the read-only capability the scheduler needs from a
// physician: identity, a display name, and the working schedule. The full
// user record lives elsewhere.
type PhysicianProfile struct {
	ID          uuid.UUID
	DisplayName string
	Schedule    WorkSchedule
}

// PhysicianDirectory looks up physician profiles.
type PhysicianDirectory interface {
	GetPhysician(ctx context.Context, id uuid.UUID) (*PhysicianProfile, error)
	ListPhysicians(ctx context.Context) ([]PhysicianProfile, error)
}

// AvailabilityCache caches a generated day tiling per physician, date and
// service. A nil-safe implementation; misses are cheap, the generator is
// the source of truth, and any write to the physician's day invalidates.
type AvailabilityCache interface {
	GetSlots(ctx context.Context, physicianID uuid.UUID, day time.Time, service ServiceType) ([]TimeSlot, bool)
	SetSlots(ctx context.Context, physicianID uuid.UUID, day time.Time, service ServiceType, slots []TimeSlot)
	InvalidateDay(ctx context.Context, physicianID uuid.UUID, day time.Time)
}
