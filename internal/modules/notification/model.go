// README: Visit announcements sent to managers and admins.
package notification

import (
	"time"

	"fieldforce/internal/types"
)

type Role string

const (
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

type Kind string

const (
	KindVisitStarted   Kind = "visit_started"
	KindVisitPostponed Kind = "visit_postponed"
)

type Message struct {
	Kind             Kind      `json:"kind"`
	VisitID          types.ID  `json:"visit_id"`
	RepresentativeID types.ID  `json:"representative_id"`
	DoctorID         types.ID  `json:"doctor_id"`
	VisitKind        string    `json:"visit_kind,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	At               time.Time `json:"at"`
}

// Title is the human-readable headline used by push backends.
func (m Message) Title() string {
	switch m.Kind {
	case KindVisitStarted:
		return "Visit started"
	case KindVisitPostponed:
		return "Visit postponed"
	}
	return "Visit update"
}

func (m Message) Body() string {
	body := "Representative " + string(m.RepresentativeID) + " / doctor " + string(m.DoctorID)
	if m.Reason != "" {
		body += ": " + m.Reason
	}
	return body
}
