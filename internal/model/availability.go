package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

var (
	// ErrInvalidBlockRange is returned for a time_range block whose start does
	// not precede its end, or a full_day block whose dates are reversed.
	ErrInvalidBlockRange = errors.New("invalid block range")

	// ErrInvalidRule is returned for a working-hours rule that can never
	// produce a bookable interval.
	ErrInvalidRule = errors.New("invalid working hours rule")
)

// WorkingHoursRule is a professional's weekly availability template. There is
// at most one active rule per professional; updates replace it wholesale.
type WorkingHoursRule struct {
	ProfessionalID string    `json:"professional_id"`
	Weekdays       []int     `json:"weekdays"`   // 0-6, 0 = Sunday
	StartTime      string    `json:"start_time"` // "09:00"
	EndTime        string    `json:"end_time"`   // "17:00"
	UpdatedAt      time.Time `json:"updated_at"`
}

// AppliesOn reports whether the rule offers the given weekday.
func (r *WorkingHoursRule) AppliesOn(wd time.Weekday) bool {
	for _, d := range r.Weekdays {
		if d == int(wd) {
			return true
		}
	}
	return false
}

// Validate checks the rule's structural invariants.
func (r *WorkingHoursRule) Validate() error {
	if len(r.Weekdays) == 0 {
		return fmt.Errorf("%w: no weekdays", ErrInvalidRule)
	}
	for _, d := range r.Weekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, d)
		}
	}
	start, err := wallclock.ParseMinutes(r.StartTime)
	if err != nil {
		return err
	}
	end, err := wallclock.ParseMinutes(r.EndTime)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("%w: start %s not before end %s", ErrInvalidRule, r.StartTime, r.EndTime)
	}
	return nil
}

// BlockType discriminates whole-day blocks from partial-day ones.
type BlockType string

const (
	BlockFullDay   BlockType = "full_day"
	BlockTimeRange BlockType = "time_range"
)

// AvailabilityBlock subtracts time from a professional's availability. Blocks
// never add time; they always win over working hours. A block is either
// entered manually or mirrored from an external calendar event, in which case
// ExternalEventID keys idempotent re-sync.
type AvailabilityBlock struct {
	ID             string    `json:"id"`
	ProfessionalID string    `json:"professional_id"`
	BlockType      BlockType `json:"block_type"`

	// full_day: inclusive date range.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	// time_range: single date with a time window.
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	IsExternalEvent bool   `json:"is_external_event"`
	ExternalEventID string `json:"external_event_id,omitempty"`
	Reason          string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the block's structural invariants.
func (b *AvailabilityBlock) Validate() error {
	switch b.BlockType {
	case BlockFullDay:
		if _, err := wallclock.ParseDate(b.StartDate); err != nil {
			return err
		}
		if _, err := wallclock.ParseDate(b.EndDate); err != nil {
			return err
		}
		if b.StartDate > b.EndDate {
			return fmt.Errorf("%w: start date %s after end date %s", ErrInvalidBlockRange, b.StartDate, b.EndDate)
		}
	case BlockTimeRange:
		if _, err := wallclock.ParseDate(b.Date); err != nil {
			return err
		}
		start, err := wallclock.ParseMinutes(b.StartTime)
		if err != nil {
			return err
		}
		end, err := wallclock.ParseMinutes(b.EndTime)
		if err != nil {
			return err
		}
		if start >= end {
			return fmt.Errorf("%w: %s-%s on %s", ErrInvalidBlockRange, b.StartTime, b.EndTime, b.Date)
		}
	default:
		return fmt.Errorf("%w: unknown block type %q", ErrInvalidBlockRange, b.BlockType)
	}
	return nil
}

// CoversDate reports whether the block touches the given calendar date.
func (b *AvailabilityBlock) CoversDate(date string) bool {
	switch b.BlockType {
	case BlockFullDay:
		return b.StartDate <= date && date <= b.EndDate
	case BlockTimeRange:
		return b.Date == date
	}
	return false
}

// Booking statuses that occupy a slot. Cancelled and no-show bookings must be
// filtered out before reaching the engine.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
)

// BookedInterval is an appointment already on the calendar. Read-only from the
// engine's perspective.
type BookedInterval struct {
	ID             int64  `json:"id,omitempty"`
	ProfessionalID string `json:"professional_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Status         string `json:"status"`
}

// Occupies reports whether the interval blocks a slot from being offered.
func (b *BookedInterval) Occupies() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// ExternalEvent is a busy period fetched from an external calendar, already
// converted to operating-timezone wall-clock values. All-day events may span
// several dates; EndDate is inclusive and defaults to Date when empty.
type ExternalEvent struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	EndDate   string `json:"end_date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	AllDay    bool   `json:"all_day"`
	Summary   string `json:"summary,omitempty"`
}

// CalendarLink ties a professional to the external calendar mirrored into
// availability blocks.
type CalendarLink struct {
	ProfessionalID string    `json:"professional_id"`
	CalendarID     string    `json:"calendar_id"`
	CreatedAt      time.Time `json:"created_at"`
}
