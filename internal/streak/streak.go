// Package streak computes schedule-aware completion streaks for recurring
// challenges: gaps on non-scheduled days never break a streak, a missed
// scheduled day always does.
package streak

import (
	"time"

	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

// Compute returns the current streak for a fixed weekly schedule, using the
// operating timezone's current date as "today". ok is false when the schedule
// has no fixed days, in which case the caller falls back to a plain
// consecutive-day count.
func Compute(scheduleDays []int, startedAt string, checkins []string, zone *wallclock.Zone) (streak int, ok bool, err error) {
	return ComputeAsOf(scheduleDays, startedAt, checkins, zone.Today())
}

// ComputeAsOf is the pure form of Compute with an explicit "today".
//
// Required dates are every date from startedAt through today whose weekday is
// in scheduleDays. Walking from the most recent required date backwards, the
// streak counts matched check-ins until the first miss. Today, while still
// uncompleted, is not yet a miss: it neither counts nor breaks, the day is
// simply not over. Any uncompleted required date in the past breaks the walk.
// Multiple check-ins on one date count once.
func ComputeAsOf(scheduleDays []int, startedAt string, checkins []string, today string) (streak int, ok bool, err error) {
	if len(scheduleDays) == 0 {
		return 0, false, nil
	}

	start, err := wallclock.ParseDate(startedAt)
	if err != nil {
		return 0, false, err
	}
	end, err := wallclock.ParseDate(today)
	if err != nil {
		return 0, false, err
	}

	scheduled := make(map[time.Weekday]bool, len(scheduleDays))
	for _, d := range scheduleDays {
		scheduled[time.Weekday(d)] = true
	}

	done := make(map[string]bool, len(checkins))
	for _, c := range checkins {
		done[c] = true
	}

	// Walk backwards from today so the first miss ends the count.
	for cur := end; !cur.Before(start); cur = cur.AddDate(0, 0, -1) {
		if !scheduled[cur.Weekday()] {
			continue
		}
		date := cur.Format("2006-01-02")
		if done[date] {
			streak++
			continue
		}
		if date == today {
			continue // still in progress, judgment suspended
		}
		break
	}
	return streak, true, nil
}
