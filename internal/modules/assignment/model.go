// README: Assignment aggregate: a standing representative-to-doctor pairing with visit days and an optional goal.
package assignment

import (
	"time"

	"fieldforce/internal/modules/recurrence"
	"fieldforce/internal/types"
)

type Assignment struct {
	ID               types.ID
	RepresentativeID types.ID
	DoctorID         types.ID
	VisitDays        recurrence.WeekdaySet
	Products         []string
	Goal             *recurrence.Goal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ActiveOn reports whether the assignment schedules a visit on date.
func (a Assignment) ActiveOn(date time.Time) bool {
	return recurrence.IsActiveOn(a.VisitDays, a.Goal, date)
}
