// README: Shared identifiers, coordinates and calendar-day helpers used across modules.
package types

import "time"

type ID string

type Point struct {
	Lat float64
	Lng float64
}

// Day returns the civil date of t in loc, expressed as midnight UTC so that
// days compare and round-trip through DATE columns unchanged.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole days from a to b (both day values).
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
