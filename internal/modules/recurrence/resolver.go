// README: Pure recurrence resolution: weekday match, recurrence window and date projection.
package recurrence

import (
	"time"
)

// AppliesOnWeekday reports whether date's weekday is in the set.
func AppliesOnWeekday(days WeekdaySet, date time.Time) bool {
	return days.Has(date.Weekday())
}

// WithinRecurrenceWindow reports whether date falls in the closed interval
// [start, start+weeks*7]. Absent or incomplete goals never bound the date.
func WithinRecurrenceWindow(goal *Goal, date time.Time) bool {
	end, ok := goal.WindowEnd()
	if !ok {
		return true
	}
	d := dayOf(date)
	return !d.Before(dayOf(*goal.StartDate)) && !d.After(dayOf(end))
}

func IsActiveOn(days WeekdaySet, goal *Goal, date time.Time) bool {
	return AppliesOnWeekday(days, date) && WithinRecurrenceWindow(goal, date)
}

// Project lists the dates in [from, to] on which the assignment is active.
func Project(days WeekdaySet, goal *Goal, from, to time.Time) []time.Time {
	from, to = dayOf(from), dayOf(to)
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsActiveOn(days, goal, d) {
			out = append(out, d)
		}
	}
	return out
}

// ProjectWeek projects onto the seven days starting at weekStart.
func ProjectWeek(days WeekdaySet, goal *Goal, weekStart time.Time) []time.Time {
	start := dayOf(weekStart)
	return Project(days, goal, start, start.AddDate(0, 0, 6))
}

// WeekStart returns the Monday on or before date.
func WeekStart(date time.Time) time.Time {
	d := dayOf(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// dayOf drops the clock part, keeping the date as written in date's location.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
