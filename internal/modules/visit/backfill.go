// README: Missed-visit backfill for past days.
package visit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fieldforce/internal/modules/assignment"
	"fieldforce/internal/types"
)

type BackfillFailure struct {
	AssignmentID types.ID
	DoctorID     types.ID
	Err          error
}

// BackfillReport lists the visits marked missed and the assignments that
// could not be processed.
type BackfillReport struct {
	Date     time.Time
	Marked   []*VisitLog
	Failures []BackfillFailure
}

func (r BackfillReport) OK() bool {
	return len(r.Failures) == 0
}

// BackfillMissed marks every visit due on date that never reached a terminal
// state as missed. date is read as a calendar date in its own location and
// must lie strictly before today. Failures on individual assignments are
// collected in the report and do not stop the batch.
func (s *Service) BackfillMissed(ctx context.Context, repID types.ID, assignments []assignment.Assignment, date time.Time) (BackfillReport, error) {
	day := types.Day(date, date.Location())
	report := BackfillReport{Date: day}
	if repID == "" {
		return report, fmt.Errorf("%w: representative_id is required", ErrValidation)
	}
	if !day.Before(s.Today()) {
		return report, fmt.Errorf("%w: backfill date %s is not in the past", ErrValidation, day.Format(time.DateOnly))
	}

	unlock := s.locks.lock(repID)
	defer unlock()

	for _, a := range assignments {
		if a.RepresentativeID != "" && a.RepresentativeID != repID {
			continue
		}
		if !a.ActiveOn(day) {
			continue
		}
		v, err := s.markMissed(ctx, repID, a.DoctorID, day)
		if err != nil {
			report.Failures = append(report.Failures, BackfillFailure{AssignmentID: a.ID, DoctorID: a.DoctorID, Err: err})
			s.logger.Warn("backfill missed visit failed",
				zap.String("representative_id", string(repID)),
				zap.String("doctor_id", string(a.DoctorID)),
				zap.String("date", day.Format(time.DateOnly)),
				zap.Error(err))
			continue
		}
		if v != nil {
			report.Marked = append(report.Marked, v)
		}
	}
	return report, nil
}

// markMissed returns nil when the slot was already terminal.
func (s *Service) markMissed(ctx context.Context, repID, doctorID types.ID, day time.Time) (*VisitLog, error) {
	existing, err := s.findSlot(ctx, repID, doctorID, day)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status.Terminal() {
		return nil, nil
	}

	now := s.now()
	v := existing
	from := StatusPlanned
	if v == nil {
		v = s.newVisit(repID, doctorID, day, KindScheduled, now)
	} else {
		from = v.EffectiveStatus()
	}
	wasActive := v.Active()
	v.Status = StatusMissed
	v.UpdatedAt = now

	saved, err := s.store.Upsert(ctx, v)
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, saved, from, actorSystem)
	if wasActive {
		s.stopTracking(ctx, saved.ID)
	}
	return saved, nil
}
