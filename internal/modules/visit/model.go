// README: VisitLog aggregate, status and kind definitions.
package visit

import (
	"time"

	"fieldforce/internal/types"
)

type Status string

const (
	// StatusPlanned is virtual: no row yet, or a row that was never started.
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusPostponed  Status = "postponed"
	StatusMissed     Status = "missed"
)

// Terminal reports whether no further automatic transition applies.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPostponed, StatusMissed:
		return true
	}
	return false
}

type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindInstant   Kind = "instant"
)

type VisitLog struct {
	ID               types.ID
	RepresentativeID types.ID
	DoctorID         types.ID
	ScheduledDate    time.Time
	Status           Status
	Kind             Kind
	StartedAt        *time.Time
	EndedAt          *time.Time
	PostponeReason   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Active reports whether the visit holds the representative's single active slot.
func (v *VisitLog) Active() bool {
	return v.Status == StatusInProgress && v.EndedAt == nil
}

// EffectiveStatus maps never-started rows onto the virtual planned state.
func (v *VisitLog) EffectiveStatus() Status {
	if v == nil {
		return StatusPlanned
	}
	if v.Status == StatusInProgress && v.StartedAt == nil {
		return StatusPlanned
	}
	return v.Status
}

type Event struct {
	ID         int64
	VisitID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

const (
	actorRepresentative = "representative"
	actorSystem         = "system"
)
