package slots

import (
	"github.com/imsoft/Holistia-sub011/internal/model"
	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

// Merge produces the owner-facing preview calendar: every grid cell in the
// range with a display status, not just the bookable ones. When the same cell
// is covered by several sources the highest priority wins:
//
//	manual block > external-calendar block > booked interval > available
//
// A manually entered block is an explicit statement of unavailability and is
// never overridden by an automated sync; a synced block still beats a booking
// label because it reflects a real-world commitment regardless of how the
// overlapping appointment got there.
func Merge(in Input) (model.DaySlotMap, error) {
	start, end, err := in.validate()
	if err != nil {
		return nil, err
	}

	out := make(model.DaySlotMap)
	if len(in.Rules) == 0 {
		for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
			out[cur.Format(dateLayout)] = nil
		}
		return out, nil
	}

	// Days no rule covers still render a grid so the calendar stays a uniform
	// rectangle; they use the widest window any rule defines.
	displayStart, displayEnd := displayWindow(in.Rules)

	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		date := cur.Format(dateLayout)
		rule := in.ruleFor(cur.Weekday())

		gridStart, gridEnd := displayStart, displayEnd
		if rule != nil {
			gridStart, _ = wallclock.ParseMinutes(rule.StartTime)
			gridEnd, _ = wallclock.ParseMinutes(rule.EndTime)
		}

		var day []model.Slot
		for t := gridStart; t+in.SlotMinutes <= gridEnd; t += in.SlotMinutes {
			cell := span{t, t + in.SlotMinutes}
			slot := model.Slot{
				Date:      date,
				StartTime: wallclock.FormatMinutes(cell.start),
				EndTime:   wallclock.FormatMinutes(cell.end),
			}
			if rule == nil {
				slot.Status = model.SlotNotOffered
			} else {
				slot.Status, slot.Reason = classify(date, cell, in.Blocks, in.Booked)
			}
			day = append(day, slot)
		}
		out[date] = day
	}
	return out, nil
}

func displayWindow(rules []model.WorkingHoursRule) (start, end int) {
	for i := range rules {
		s, _ := wallclock.ParseMinutes(rules[i].StartTime)
		e, _ := wallclock.ParseMinutes(rules[i].EndTime)
		if i == 0 || s < start {
			start = s
		}
		if e > end {
			end = e
		}
	}
	return start, end
}

// classify labels one grid cell by the highest-priority source covering any
// part of it. A cell nothing touches is available.
func classify(date string, cell span, blocks []model.AvailabilityBlock, booked []model.BookedInterval) (model.SlotStatus, string) {
	external := false
	for i := range blocks {
		b := &blocks[i]
		if !b.CoversDate(date) {
			continue
		}
		if b.BlockType == model.BlockTimeRange {
			s, _ := wallclock.ParseMinutes(b.StartTime)
			e, _ := wallclock.ParseMinutes(b.EndTime)
			if !cell.overlaps(span{s, e}) {
				continue
			}
		}
		if !b.IsExternalEvent {
			return model.SlotBlocked, "manual_block"
		}
		external = true
	}
	if external {
		return model.SlotBlocked, "external_block"
	}

	for i := range booked {
		bk := &booked[i]
		if bk.Date != date {
			continue
		}
		s, _ := wallclock.ParseMinutes(bk.StartTime)
		e, _ := wallclock.ParseMinutes(bk.EndTime)
		if cell.overlaps(span{s, e}) {
			return model.SlotOccupied, ""
		}
	}
	return model.SlotAvailable, ""
}
