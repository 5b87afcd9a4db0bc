// Package wallclock converts between wall-clock values in the platform's
// operating timezone and absolute instants. All scheduling data is stored
// as (date, time-of-day) strings in that single timezone; conversion to an
// instant happens only when comparing against "now".
package wallclock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidTimezone   = errors.New("invalid timezone")
)

// Zone is the fixed operating timezone for all wall-clock values.
type Zone struct {
	name string
	loc  *time.Location
}

// LoadZone resolves an IANA timezone name into a Zone.
func LoadZone(name string) (*Zone, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return &Zone{name: name, loc: loc}, nil
}

// Name returns the IANA name the zone was loaded from.
func (z *Zone) Name() string {
	return z.name
}

// ToUnixMilli maps a (date, time) wall-clock pair to milliseconds since epoch.
// The same pair maps to the same instant regardless of the host's local zone,
// including DST shifts observed by the operating timezone.
func (z *Zone) ToUnixMilli(date, tm string) (int64, error) {
	y, m, d, err := splitDate(date)
	if err != nil {
		return 0, err
	}
	minutes, err := ParseMinutes(tm)
	if err != nil {
		return 0, err
	}
	t := time.Date(y, time.Month(m), d, minutes/60, minutes%60, 0, 0, z.loc)
	return t.UnixMilli(), nil
}

// FromUnixMilli is the inverse of ToUnixMilli. It round-trips exactly for any
// instant produced by the forward conversion.
func (z *Zone) FromUnixMilli(ms int64) (date, tm string) {
	t := time.UnixMilli(ms).In(z.loc)
	return t.Format(dateLayout), t.Format(timeLayout)
}

// Today returns the current date in the operating timezone, which can differ
// from the host's local date near midnight.
func (z *Zone) Today() string {
	return time.Now().In(z.loc).Format(dateLayout)
}

// Now returns the current instant in the operating timezone.
func (z *Zone) Now() time.Time {
	return time.Now().In(z.loc)
}

// ParseDate validates a YYYY-MM-DD string and returns it at UTC midnight for
// calendar arithmetic (weekday lookup, day stepping).
func ParseDate(date string) (time.Time, error) {
	y, m, d, err := splitDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
}

// Weekday returns the weekday of a YYYY-MM-DD date (Sunday = 0).
func Weekday(date string) (time.Weekday, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(dateLayout), nil
}

// ParseMinutes converts an HH:MM string to minutes since midnight.
func ParseMinutes(tm string) (int, error) {
	parts := strings.Split(tm, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q, expected HH:MM", ErrInvalidTimeFormat, tm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q, bad hour", ErrInvalidTimeFormat, tm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q, bad minute", ErrInvalidTimeFormat, tm)
	}
	return hour*60 + minute, nil
}

// FormatMinutes converts minutes since midnight back to HH:MM.
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func splitDate(date string) (year, month, day int, err error) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return 0, 0, 0, fmt.Errorf("%w: %q, expected YYYY-MM-DD", ErrInvalidTimeFormat, date)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q, bad year", ErrInvalidTimeFormat, date)
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("%w: %q, bad month", ErrInvalidTimeFormat, date)
	}
	day, err = strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return 0, 0, 0, fmt.Errorf("%w: %q, bad day", ErrInvalidTimeFormat, date)
	}
	// time.Date normalizes overflow (Feb 31 becomes Mar 2); a date that does
	// not round-trip never existed on the calendar.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return 0, 0, 0, fmt.Errorf("%w: %q, no such day", ErrInvalidTimeFormat, date)
	}
	return year, month, day, nil
}
