package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func goal(start time.Time, weeks int) *Goal {
	return &Goal{StartDate: &start, RecurringWeeks: &weeks}
}

func everyDay() WeekdaySet {
	return NewWeekdaySet(time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday)
}

func TestParseWeekdaySet(t *testing.T) {
	s, err := ParseWeekdaySet([]string{"Monday", "wednesday", " FRIDAY ", "monday"})
	require.NoError(t, err)
	assert.Equal(t, []string{"monday", "wednesday", "friday"}, s.Names())
	assert.True(t, s.Has(time.Monday))
	assert.False(t, s.Has(time.Tuesday))

	_, err = ParseWeekdaySet([]string{"mon"})
	require.ErrorIs(t, err, ErrUnknownWeekday)

	empty, err := ParseWeekdaySet(nil)
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestAppliesOnWeekday(t *testing.T) {
	s := NewWeekdaySet(time.Monday, time.Thursday)
	assert.True(t, AppliesOnWeekday(s, date(2024, 1, 1)))   // Monday
	assert.False(t, AppliesOnWeekday(s, date(2024, 1, 2)))  // Tuesday
	assert.True(t, AppliesOnWeekday(s, date(2024, 1, 4)))   // Thursday
	assert.False(t, AppliesOnWeekday(s, date(2024, 1, 7)))  // Sunday
}

func TestWithinRecurrenceWindow(t *testing.T) {
	g := goal(date(2024, 1, 1), 2)

	cases := []struct {
		name string
		d    time.Time
		want bool
	}{
		{"day before start", date(2023, 12, 31), false},
		{"start day", date(2024, 1, 1), true},
		{"inside first week", date(2024, 1, 7), true},
		{"window end is inclusive", date(2024, 1, 15), true},
		{"day after end", date(2024, 1, 16), false},
		{"well beyond", date(2024, 1, 20), false},
		{"clock part ignored", time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WithinRecurrenceWindow(g, tc.d))
		})
	}
}

func TestWithinRecurrenceWindow_ZeroWeeksIsSingleDay(t *testing.T) {
	g := goal(date(2024, 3, 4), 0)
	assert.True(t, WithinRecurrenceWindow(g, date(2024, 3, 4)))
	assert.False(t, WithinRecurrenceWindow(g, date(2024, 3, 5)))
	assert.False(t, WithinRecurrenceWindow(g, date(2024, 3, 3)))
}

func TestWithinRecurrenceWindow_AbsentOrIncompleteGoal(t *testing.T) {
	start := date(2024, 1, 1)
	weeks := 2
	far := []time.Time{date(1990, 5, 5), date(2024, 6, 1), date(2099, 12, 31)}

	for _, g := range []*Goal{nil, {}, {StartDate: &start}, {RecurringWeeks: &weeks}} {
		for _, d := range far {
			assert.True(t, WithinRecurrenceWindow(g, d), "goal %+v date %v", g, d)
		}
	}
}

func TestIsActiveOn(t *testing.T) {
	all := everyDay()
	g := goal(date(2024, 1, 1), 2)

	assert.True(t, IsActiveOn(all, g, date(2024, 1, 7)))
	assert.False(t, IsActiveOn(all, g, date(2024, 1, 20)))

	// No goal: any matching weekday, however far away.
	mondays := NewWeekdaySet(time.Monday)
	for _, d := range []time.Time{date(1900, 1, 1), date(2024, 1, 1), date(2300, 1, 1)} {
		require.Equal(t, time.Monday, d.Weekday())
		assert.True(t, IsActiveOn(mondays, nil, d))
		assert.False(t, IsActiveOn(mondays, nil, d.AddDate(0, 0, 1)))
	}
}

func TestIsActiveOn_Deterministic(t *testing.T) {
	s := NewWeekdaySet(time.Tuesday)
	g := goal(date(2024, 1, 1), 4)
	d := date(2024, 1, 16)
	first := IsActiveOn(s, g, d)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, IsActiveOn(s, g, d))
	}
}

func TestProjectWeek(t *testing.T) {
	s := NewWeekdaySet(time.Monday, time.Wednesday, time.Friday)

	got := ProjectWeek(s, nil, date(2024, 1, 1))
	assert.Equal(t, []time.Time{date(2024, 1, 1), date(2024, 1, 3), date(2024, 1, 5)}, got)

	// Window ends mid-week: 2023-12-20 + 2 weeks = 2024-01-03.
	got = ProjectWeek(s, goal(date(2023, 12, 20), 2), date(2024, 1, 1))
	assert.Equal(t, []time.Time{date(2024, 1, 1), date(2024, 1, 3)}, got)

	// Window starts mid-week.
	got = ProjectWeek(s, goal(date(2024, 1, 2), 1), date(2024, 1, 1))
	assert.Equal(t, []time.Time{date(2024, 1, 3), date(2024, 1, 5)}, got)
}

func TestProject_EmptyWhenReversed(t *testing.T) {
	assert.Empty(t, Project(everyDay(), nil, date(2024, 1, 5), date(2024, 1, 1)))
}

func TestWeekStart(t *testing.T) {
	assert.Equal(t, date(2024, 1, 1), WeekStart(date(2024, 1, 1)))
	assert.Equal(t, date(2024, 1, 1), WeekStart(date(2024, 1, 4)))
	assert.Equal(t, date(2024, 1, 1), WeekStart(date(2024, 1, 7)))
	assert.Equal(t, date(2024, 1, 8), WeekStart(date(2024, 1, 8)))
}
