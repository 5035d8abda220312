package clinic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClinicTime resolves instants against the clinic's wall clock. The clinic
// runs on a fixed UTC offset (no DST handling; the clinic config owns
// that choice), which keeps day boundaries and HH:MM schedule bounds
// deterministic.
type ClinicTime struct {
	OffsetHours int
}

// Location returns the clinic's fixed zone. Callers parsing calendar
// dates from user input must parse in this location, or a plain
// "2006-01-02" lands on midnight UTC and shifts onto the neighbouring
// clinic-local day for any non-zero offset.
func (c ClinicTime) Location() *time.Location {
	if c.OffsetHours == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("clinic%+d", c.OffsetHours), c.OffsetHours*3600)
}

// DayStart returns the instant at 00:00 clinic-local on the day containing t.
func (c ClinicTime) DayStart(t time.Time) time.Time {
	local := t.In(c.Location())
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.Location())
}

// DayEnd returns the last instant of the clinic-local day containing t.
func (c ClinicTime) DayEnd(t time.Time) time.Time {
	return c.DayStart(t).Add(24*time.Hour - time.Nanosecond)
}

// Weekday returns the clinic-local weekday of t.
func (c ClinicTime) Weekday(t time.Time) time.Weekday {
	return t.In(c.Location()).Weekday()
}

// At resolves an "HH:MM" clinic-local time of day on the day containing t.
func (c ClinicTime) At(t time.Time, hhmm string) (time.Time, error) {
	h, m, err := parseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return c.DayStart(t).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid HH:MM value %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
