// README: Weekday sets and recurrence goals attached to assignments.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownWeekday = errors.New("unknown weekday")

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
	}
	return wd, nil
}

// WeekdaySet is the set of days an assignment is visited on. Order is irrelevant.
type WeekdaySet uint8

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// ParseWeekdaySet builds a set from weekday names; duplicates collapse.
func ParseWeekdaySet(names []string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, n := range names {
		wd, err := ParseWeekday(n)
		if err != nil {
			return 0, err
		}
		s |= 1 << uint(wd)
	}
	return s, nil
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool {
	return s == 0
}

// Names returns lower-case weekday names starting from Sunday.
func (s WeekdaySet) Names() []string {
	out := make([]string, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, strings.ToLower(d.String()))
		}
	}
	return out
}

// Goal is the optional recurrence window of an assignment. It only bounds the
// assignment when both fields are set.
type Goal struct {
	StartDate      *time.Time
	RecurringWeeks *int
}

func (g *Goal) Complete() bool {
	return g != nil && g.StartDate != nil && g.RecurringWeeks != nil
}

// WindowEnd is StartDate + RecurringWeeks*7 days. ok is false for incomplete goals.
func (g *Goal) WindowEnd() (end time.Time, ok bool) {
	if !g.Complete() {
		return time.Time{}, false
	}
	return g.StartDate.AddDate(0, 0, *g.RecurringWeeks*7), true
}
