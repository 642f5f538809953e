// README: Calendar projector: expands assignments into a per-day agenda and backfills missed visits.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fieldforce/internal/modules/assignment"
	"fieldforce/internal/modules/recurrence"
	"fieldforce/internal/modules/visit"
	"fieldforce/internal/types"
)

const defaultMaxRangeDays = 42

var ErrInvalidRange = errors.New("invalid calendar range")

type AssignmentReader interface {
	FindByRepresentative(ctx context.Context, repID types.ID) ([]assignment.Assignment, error)
}

type VisitReader interface {
	FindByRepDateRange(ctx context.Context, repID types.ID, from, to time.Time) ([]*visit.VisitLog, error)
}

type Backfiller interface {
	BackfillMissed(ctx context.Context, repID types.ID, assignments []assignment.Assignment, date time.Time) (visit.BackfillReport, error)
}

type Deps struct {
	Assignments  AssignmentReader
	Visits       VisitReader
	Backfill     Backfiller
	Logger       *zap.Logger
	Location     *time.Location
	Now          func() time.Time
	MaxRangeDays int
}

type Service struct {
	assignments  AssignmentReader
	visits       VisitReader
	backfill     Backfiller
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
	maxRangeDays int
}

func NewService(deps Deps) *Service {
	s := &Service{
		assignments:  deps.Assignments,
		visits:       deps.Visits,
		backfill:     deps.Backfill,
		logger:       deps.Logger,
		loc:          deps.Location,
		now:          deps.Now,
		maxRangeDays: deps.MaxRangeDays,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxRangeDays <= 0 {
		s.maxRangeDays = defaultMaxRangeDays
	}
	return s
}

// Schedule returns one entry per day in [from, to]. Past days are backfilled
// first, so unfinished visits show up as missed.
func (s *Service) Schedule(ctx context.Context, repID types.ID, from, to time.Time) (Schedule, error) {
	from, to = civil(from), civil(to)
	if repID == "" {
		return Schedule{}, fmt.Errorf("%w: representative is required", ErrInvalidRange)
	}
	if to.Before(from) {
		return Schedule{}, fmt.Errorf("%w: from %s is after to %s", ErrInvalidRange, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	if n := types.DaysBetween(from, to) + 1; n > s.maxRangeDays {
		return Schedule{}, fmt.Errorf("%w: %d days requested, at most %d allowed", ErrInvalidRange, n, s.maxRangeDays)
	}

	assignments, err := s.assignments.FindByRepresentative(ctx, repID)
	if err != nil {
		return Schedule{}, fmt.Errorf("load assignments: %w", err)
	}

	s.backfillPast(ctx, repID, assignments, from, to)

	visits, err := s.visits.FindByRepDateRange(ctx, repID, from, to)
	if err != nil {
		return Schedule{}, fmt.Errorf("load visits: %w", err)
	}

	return project(repID, from, to, assignments, visits), nil
}

// Week is the Monday-to-Sunday schedule containing date.
func (s *Service) Week(ctx context.Context, repID types.ID, date time.Time) (Schedule, error) {
	start := recurrence.WeekStart(civil(date))
	return s.Schedule(ctx, repID, start, start.AddDate(0, 0, 6))
}

func (s *Service) backfillPast(ctx context.Context, repID types.ID, assignments []assignment.Assignment, from, to time.Time) {
	if s.backfill == nil || len(assignments) == 0 {
		return
	}
	today := types.Day(s.now(), s.loc)
	for d := from; !d.After(to) && d.Before(today); d = d.AddDate(0, 0, 1) {
		if !anyActive(assignments, d) {
			continue
		}
		report, err := s.backfill.BackfillMissed(ctx, repID, assignments, d)
		if err != nil {
			s.logger.Warn("missed-visit backfill skipped",
				zap.String("representative_id", string(repID)),
				zap.String("date", d.Format(time.DateOnly)),
				zap.Error(err))
			continue
		}
		if len(report.Marked) > 0 || !report.OK() {
			s.logger.Info("missed-visit backfill",
				zap.String("representative_id", string(repID)),
				zap.String("date", d.Format(time.DateOnly)),
				zap.Int("marked", len(report.Marked)),
				zap.Int("failed", len(report.Failures)))
		}
	}
}

func project(repID types.ID, from, to time.Time, assignments []assignment.Assignment, visits []*visit.VisitLog) Schedule {
	type slotKey struct {
		doctor types.ID
		date   time.Time
	}
	scheduled := make(map[slotKey]*visit.VisitLog)
	// Visits not covered by an active assignment: instant ones, and scheduled
	// ones whose assignment changed or was removed afterwards.
	unplanned := make(map[time.Time][]*visit.VisitLog)
	for _, v := range visits {
		d := civil(v.ScheduledDate)
		if v.Kind == visit.KindInstant {
			unplanned[d] = append(unplanned[d], v)
			continue
		}
		scheduled[slotKey{doctor: v.DoctorID, date: d}] = v
	}
	for _, v := range visits {
		d := civil(v.ScheduledDate)
		if v.Kind == visit.KindScheduled && !activeFor(assignments, v.DoctorID, d) {
			unplanned[d] = append(unplanned[d], v)
		}
	}

	sched := Schedule{RepresentativeID: repID, From: from, To: to}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		day := Day{Date: d}
		for _, a := range assignments {
			if !a.ActiveOn(d) {
				continue
			}
			id := a.ID
			slot := Slot{
				DoctorID:     a.DoctorID,
				AssignmentID: &id,
				Products:     a.Products,
				Kind:         visit.KindScheduled,
				Status:       visit.StatusPlanned,
			}
			if v, ok := scheduled[slotKey{doctor: a.DoctorID, date: d}]; ok {
				slot.Visit = v
				slot.Status = v.EffectiveStatus()
			}
			day.Slots = append(day.Slots, slot)
		}
		for _, v := range unplanned[d] {
			day.Slots = append(day.Slots, Slot{
				DoctorID: v.DoctorID,
				Kind:     v.Kind,
				Status:   v.EffectiveStatus(),
				Visit:    v,
			})
		}
		sched.Days = append(sched.Days, day)
	}
	return sched
}

func anyActive(assignments []assignment.Assignment, d time.Time) bool {
	for _, a := range assignments {
		if a.ActiveOn(d) {
			return true
		}
	}
	return false
}

func activeFor(assignments []assignment.Assignment, doctorID types.ID, d time.Time) bool {
	for _, a := range assignments {
		if a.DoctorID == doctorID && a.ActiveOn(d) {
			return true
		}
	}
	return false
}

// civil keeps the calendar date as written in t's own location.
func civil(t time.Time) time.Time {
	return types.Day(t, t.Location())
}
