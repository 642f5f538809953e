// README: Calendar agenda types.
package calendar

import (
	"time"

	"fieldforce/internal/modules/visit"
	"fieldforce/internal/types"
)

// Slot is one expected or recorded visit on a day. Instant visits have no
// assignment.
type Slot struct {
	DoctorID     types.ID
	AssignmentID *types.ID
	Products     []string
	Kind         visit.Kind
	Status       visit.Status
	Visit        *visit.VisitLog
}

type Day struct {
	Date  time.Time
	Slots []Slot
}

type Schedule struct {
	RepresentativeID types.ID
	From             time.Time
	To               time.Time
	Days             []Day
}
