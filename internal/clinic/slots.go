package clinic

import (
	"time"

	"github.com/google/uuid"
)

// WorkSchedule is the narrow read-only profile the slot generator needs
// from a physician: which weekdays they work and the clinic-local HH:MM
// bounds of their day.
type WorkSchedule struct {
	WorkingDays []time.Weekday
	HoursStart  string // "09:00"
	HoursEnd    string // "17:00"
}

func (s WorkSchedule) worksOn(day time.Weekday) bool {
	for _, d := range s.WorkingDays {
		if d == day {
			return true
		}
	}
	return false
}

// TimeSlot is one candidate window on a physician's calendar.
type TimeSlot struct {
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	IsAvailable bool      `json:"isAvailable"`
	PhysicianID uuid.UUID `json:"physicianId"`
}

// SlotGenerator tiles a physician's working day into fixed-increment
// candidate slots and marks each one available or blocked.
type SlotGenerator struct {
	Increment time.Duration
	Policy    Policy
	Clock     ClinicTime
}

// Generate produces the full tiling of the physician's day: one slot per
// increment step whose interval fits entirely inside the working window,
// blocked ones included. Filtering to open slots is the caller's business.
//
// Steps: resolve date to the clinic-local day; empty result on a
// non-working weekday; walk from the working-hours start in Increment
// steps while start+duration still fits; each candidate is blocked when
// it conflicts (buffered overlap) with any appointment of the physician
// that still occupies time.
func (g SlotGenerator) Generate(physicianID uuid.UUID, schedule WorkSchedule, date time.Time, duration time.Duration, existing []*Appointment) ([]TimeSlot, error) {
	if g.Increment <= 0 {
		return nil, ErrBadSlotIncrement
	}

	if !schedule.worksOn(g.Clock.Weekday(date)) {
		return []TimeSlot{}, nil
	}

	dayStart, err := g.Clock.At(date, schedule.HoursStart)
	if err != nil {
		return nil, err
	}
	dayEnd, err := g.Clock.At(date, schedule.HoursEnd)
	if err != nil {
		return nil, err
	}

	active := make([]*Appointment, 0, len(existing))
	for _, apt := range existing {
		if apt.PhysicianID() == physicianID && apt.Status().Blocks() {
			active = append(active, apt)
		}
	}

	var slots []TimeSlot
	for cur := dayStart; !cur.Add(duration).After(dayEnd); cur = cur.Add(g.Increment) {
		end := cur.Add(duration)
		slots = append(slots, TimeSlot{
			StartTime:   cur,
			EndTime:     end,
			IsAvailable: !g.Policy.HasConflict(cur, end, active),
			PhysicianID: physicianID,
		})
	}
	if slots == nil {
		slots = []TimeSlot{}
	}
	return slots, nil
}
