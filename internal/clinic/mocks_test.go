package clinic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type mockRepository struct {
	getByIDFn               func(ctx context.Context, id uuid.UUID) (*Appointment, error)
	getByPhysicianFn        func(ctx context.Context, physicianID uuid.UUID) ([]*Appointment, error)
	getByPhysicianAndDateFn func(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]*Appointment, error)
	listFn                  func(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	saveFn                  func(ctx context.Context, apt *Appointment, opts SaveOptions) error
	findOverdueScheduledFn  func(ctx context.Context, threshold time.Time) ([]*Appointment, error)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ErrAppointmentNotFound
}

func (m *mockRepository) GetByPhysician(ctx context.Context, physicianID uuid.UUID) ([]*Appointment, error) {
	if m.getByPhysicianFn != nil {
		return m.getByPhysicianFn(ctx, physicianID)
	}
	return nil, nil
}

func (m *mockRepository) GetByPhysicianAndDate(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]*Appointment, error) {
	if m.getByPhysicianAndDateFn != nil {
		return m.getByPhysicianAndDateFn(ctx, physicianID, date)
	}
	return nil, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockRepository) Save(ctx context.Context, apt *Appointment, opts SaveOptions) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, apt, opts)
	}
	return nil
}

func (m *mockRepository) FindOverdueScheduled(ctx context.Context, threshold time.Time) ([]*Appointment, error) {
	if m.findOverdueScheduledFn != nil {
		return m.findOverdueScheduledFn(ctx, threshold)
	}
	return nil, nil
}

type mockDirectory struct {
	getPhysicianFn   func(ctx context.Context, id uuid.UUID) (*PhysicianProfile, error)
	listPhysiciansFn func(ctx context.Context) ([]PhysicianProfile, error)
}

func (m *mockDirectory) GetPhysician(ctx context.Context, id uuid.UUID) (*PhysicianProfile, error) {
	if m.getPhysicianFn != nil {
		return m.getPhysicianFn(ctx, id)
	}
	return &PhysicianProfile{ID: id, DisplayName: "Dr. Test", Schedule: weekdaySchedule()}, nil
}

func (m *mockDirectory) ListPhysicians(ctx context.Context) ([]PhysicianProfile, error) {
	if m.listPhysiciansFn != nil {
		return m.listPhysiciansFn(ctx)
	}
	return nil, nil
}

type mockCache struct {
	getSlotsFn    func(ctx context.Context, physicianID uuid.UUID, day time.Time, service ServiceType) ([]TimeSlot, bool)
	setSlotsFn    func(ctx context.Context, physicianID uuid.UUID, day time.Time, service ServiceType, slots []TimeSlot)
	invalidations int
}

func (m *mockCache) GetSlots(ctx context.Context, physicianID uuid.UUID, day time.Time, service ServiceType) ([]TimeSlot, bool) {
	if m.getSlotsFn != nil {
		return m.getSlotsFn(ctx, physicianID, day, service)
	}
	return nil, false
}

func (m *mockCache) SetSlots(ctx context.Context, physicianID uuid.UUID, day time.Time, service ServiceType, slots []TimeSlot) {
	if m.setSlotsFn != nil {
		m.setSlotsFn(ctx, physicianID, day, service, slots)
	}
}

func (m *mockCache) InvalidateDay(ctx context.Context, physicianID uuid.UUID, day time.Time) {
	m.invalidations++
}

func weekdaySchedule() WorkSchedule {
	return WorkSchedule{
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		HoursStart:  "09:00",
		HoursEnd:    "17:00",
	}
}
