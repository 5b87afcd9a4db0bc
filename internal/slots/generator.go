// Package slots derives bookable appointment slots from working hours,
// availability blocks, and existing bookings. All functions are pure over
// their inputs; "now" never enters the computation, callers filter past slots.
package slots

import (
	"fmt"
	"time"

	"github.com/imsoft/Holistia-sub011/internal/model"
	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

const dateLayout = "2006-01-02"

// Input carries everything the generator needs for one professional and range.
// Booked intervals must already be filtered to statuses that occupy a slot;
// the generator treats every interval it receives as occupied.
type Input struct {
	ProfessionalID         string
	StartDate              string // "2024-01-15", inclusive
	EndDate                string // inclusive
	SlotMinutes            int
	ServiceDurationMinutes int
	Rules                  []model.WorkingHoursRule
	Blocks                 []model.AvailabilityBlock
	Booked                 []model.BookedInterval
}

// ruleFor returns the rule covering the weekday, or nil when the day is not
// offered. Rules claim disjoint weekday sets, so at most one matches.
func (in *Input) ruleFor(wd time.Weekday) *model.WorkingHoursRule {
	for i := range in.Rules {
		if in.Rules[i].AppliesOn(wd) {
			return &in.Rules[i]
		}
	}
	return nil
}

func (in *Input) validate() (start, end time.Time, err error) {
	start, err = wallclock.ParseDate(in.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
	}
	end, err = wallclock.ParseDate(in.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s after end date %s", in.StartDate, in.EndDate)
	}
	if in.SlotMinutes <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("slot minutes must be positive, got %d", in.SlotMinutes)
	}
	if in.ServiceDurationMinutes <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("service duration must be positive, got %d", in.ServiceDurationMinutes)
	}
	claimed := make(map[int]bool)
	for i := range in.Rules {
		if err := in.Rules[i].Validate(); err != nil {
			return time.Time{}, time.Time{}, err
		}
		for _, wd := range in.Rules[i].Weekdays {
			if claimed[wd] {
				return time.Time{}, time.Time{}, fmt.Errorf("weekday %d claimed by two rules", wd)
			}
			claimed[wd] = true
		}
	}
	for i := range in.Blocks {
		if err := in.Blocks[i].Validate(); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	for i := range in.Booked {
		if _, err := wallclock.ParseMinutes(in.Booked[i].StartTime); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("booked interval: %w", err)
		}
		if _, err := wallclock.ParseMinutes(in.Booked[i].EndTime); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("booked interval: %w", err)
		}
	}
	return start, end, nil
}

// span is a half-open [start, end) interval in minutes since midnight.
type span struct {
	start, end int
}

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// subtract removes cut from each span, splitting spans the cut lands inside.
// Overlapping cuts union naturally: subtracting already-removed time is a no-op.
func subtract(open []span, cut span) []span {
	var out []span
	for _, s := range open {
		if !s.overlaps(cut) {
			out = append(out, s)
			continue
		}
		if cut.start > s.start {
			out = append(out, span{s.start, cut.start})
		}
		if cut.end < s.end {
			out = append(out, span{cut.end, s.end})
		}
	}
	return out
}

// Generate returns the ordered list of bookable slots for the input range:
// date ascending, then start time ascending. A slot start is emitted only if
// the full service duration fits inside one open sub-interval, so no slot
// straddles a block or booking boundary.
func Generate(in Input) ([]model.Slot, error) {
	start, end, err := in.validate()
	if err != nil {
		return nil, err
	}
	if len(in.Rules) == 0 {
		return nil, nil
	}

	var out []model.Slot
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		date := cur.Format(dateLayout)
		rule := in.ruleFor(cur.Weekday())
		if rule == nil {
			continue
		}
		ruleStart, _ := wallclock.ParseMinutes(rule.StartTime)
		ruleEnd, _ := wallclock.ParseMinutes(rule.EndTime)

		open := openIntervals(date, span{ruleStart, ruleEnd}, in.Blocks, in.Booked)
		for _, sub := range open {
			for t := sub.start; t+in.ServiceDurationMinutes <= sub.end; t += in.SlotMinutes {
				out = append(out, model.Slot{
					Date:      date,
					StartTime: wallclock.FormatMinutes(t),
					EndTime:   wallclock.FormatMinutes(t + in.ServiceDurationMinutes),
					Status:    model.SlotAvailable,
				})
			}
		}
	}
	return out, nil
}

// openIntervals subtracts every block and booking touching date from the
// day's working window. Blocks and bookings subtract identically here;
// priority between them only matters for preview labels.
func openIntervals(date string, window span, blocks []model.AvailabilityBlock, booked []model.BookedInterval) []span {
	open := []span{window}
	for i := range blocks {
		b := &blocks[i]
		if !b.CoversDate(date) {
			continue
		}
		open = subtract(open, blockSpan(b, window))
	}
	for i := range booked {
		bk := &booked[i]
		if bk.Date != date {
			continue
		}
		s, _ := wallclock.ParseMinutes(bk.StartTime)
		e, _ := wallclock.ParseMinutes(bk.EndTime)
		open = subtract(open, span{s, e})
	}
	return open
}

func blockSpan(b *model.AvailabilityBlock, window span) span {
	if b.BlockType == model.BlockFullDay {
		return window
	}
	s, _ := wallclock.ParseMinutes(b.StartTime)
	e, _ := wallclock.ParseMinutes(b.EndTime)
	return span{s, e}
}
