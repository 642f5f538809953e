// README: Visit service implements the visit lifecycle and the single-active-visit rule.
package visit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldforce/internal/modules/notification"
	"fieldforce/internal/types"
)

const notifyTimeout = 10 * time.Second

type Repository interface {
	Get(ctx context.Context, id types.ID) (*VisitLog, error)
	FindByRepDoctorDate(ctx context.Context, repID, doctorID types.ID, date time.Time) (*VisitLog, error)
	FindByRepDateRange(ctx context.Context, repID types.ID, from, to time.Time) ([]*VisitLog, error)
	Upsert(ctx context.Context, v *VisitLog) (*VisitLog, error)
	AppendEvent(ctx context.Context, e *Event) error
}

type ClinicMembership interface {
	DoctorBelongsToRepresentativeClinic(ctx context.Context, repID, doctorID types.ID) (bool, error)
}

// Notifier delivers visit announcements. Calls are made off the request path
// and never retried.
type Notifier interface {
	Notify(ctx context.Context, role notification.Role, msg notification.Message) types.BestEffort
}

// Tracking supervises the route tracker of an in-progress visit.
type Tracking interface {
	Start(ctx context.Context, visitID, repID types.ID) error
	Stop(ctx context.Context, visitID types.ID) types.BestEffort
}

type Deps struct {
	Store    Repository
	Clinics  ClinicMembership
	Notifier Notifier
	Tracking Tracking
	Logger   *zap.Logger
	// Location decides which calendar day "today" is. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	store    Repository
	clinics  ClinicMembership
	notifier Notifier
	tracking Tracking
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time
	locks    *repLocks
	pending  sync.WaitGroup
}

func NewService(deps Deps) *Service {
	s := &Service{
		store:    deps.Store,
		clinics:  deps.Clinics,
		notifier: deps.Notifier,
		tracking: deps.Tracking,
		logger:   deps.Logger,
		loc:      deps.Location,
		now:      deps.Now,
		locks:    newRepLocks(),
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
	return s
}

type StartCommand struct {
	RepresentativeID types.ID
	DoctorID         types.ID
}

type InstantCommand struct {
	RepresentativeID types.ID
	DoctorID         types.ID
}

type EndCommand struct {
	VisitID types.ID
}

type PostponeCommand struct {
	RepresentativeID types.ID
	DoctorID         types.ID
	Reason           string
}

// Today is the current calendar day in the service's time zone.
func (s *Service) Today() time.Time {
	return types.Day(s.now(), s.loc)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*VisitLog, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// StartVisit moves today's scheduled visit for (representative, doctor) into
// progress, creating it when absent. A completed visit is returned unchanged.
func (s *Service) StartVisit(ctx context.Context, cmd StartCommand) (*VisitLog, error) {
	if err := requireIDs(cmd.RepresentativeID, cmd.DoctorID); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(cmd.RepresentativeID)
	defer unlock()

	now := s.now()
	today := types.Day(now, s.loc)

	existing, err := s.findSlot(ctx, cmd.RepresentativeID, cmd.DoctorID, today)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == StatusCompleted {
		return existing, nil
	}

	var exceptID types.ID
	if existing != nil {
		exceptID = existing.ID
	}
	if err := s.ensureNoActiveVisit(ctx, cmd.RepresentativeID, today, exceptID); err != nil {
		return nil, err
	}

	v := existing
	from := StatusPlanned
	if v == nil {
		v = s.newVisit(cmd.RepresentativeID, cmd.DoctorID, today, KindScheduled, now)
	} else {
		from = v.EffectiveStatus()
	}
	v.Status = StatusInProgress
	v.StartedAt = &now
	v.EndedAt = nil
	v.PostponeReason = nil
	v.UpdatedAt = now

	saved, err := s.store.Upsert(ctx, v)
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, saved, from, actorRepresentative)
	s.startTracking(ctx, saved)
	s.announce(notification.KindVisitStarted, saved, "")
	return saved, nil
}

// CreateInstantVisit starts an unscheduled visit at a doctor of one of the
// representative's clinics. It always inserts a new row.
func (s *Service) CreateInstantVisit(ctx context.Context, cmd InstantCommand) (*VisitLog, error) {
	if err := requireIDs(cmd.RepresentativeID, cmd.DoctorID); err != nil {
		return nil, err
	}
	if s.clinics == nil {
		return nil, ErrAuthorizationDenied
	}
	ok, err := s.clinics.DoctorBelongsToRepresentativeClinic(ctx, cmd.RepresentativeID, cmd.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("checking clinic membership: %w", err)
	}
	if !ok {
		return nil, ErrAuthorizationDenied
	}

	unlock := s.locks.lock(cmd.RepresentativeID)
	defer unlock()

	now := s.now()
	today := types.Day(now, s.loc)
	if err := s.ensureNoActiveVisit(ctx, cmd.RepresentativeID, today, ""); err != nil {
		return nil, err
	}

	v := s.newVisit(cmd.RepresentativeID, cmd.DoctorID, today, KindInstant, now)
	v.Status = StatusInProgress
	v.StartedAt = &now

	saved, err := s.store.Upsert(ctx, v)
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, saved, StatusPlanned, actorRepresentative)
	s.startTracking(ctx, saved)
	s.announce(notification.KindVisitStarted, saved, "")
	return saved, nil
}

// EndVisit completes the visit whatever its current status, then stops its
// route tracker and waits for the final flush.
func (s *Service) EndVisit(ctx context.Context, cmd EndCommand) (*VisitLog, error) {
	v, err := s.Get(ctx, cmd.VisitID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(v.RepresentativeID)
	defer unlock()

	// Re-read under the lock; another command may have touched the row.
	v, err = s.store.Get(ctx, cmd.VisitID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	from := v.EffectiveStatus()
	v.Status = StatusCompleted
	v.EndedAt = &now
	v.UpdatedAt = now

	saved, err := s.store.Upsert(ctx, v)
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, saved, from, actorRepresentative)
	s.stopTracking(ctx, saved.ID)
	return saved, nil
}

// PostponeVisit records why today's visit will not happen. The reason is required.
func (s *Service) PostponeVisit(ctx context.Context, cmd PostponeCommand) (*VisitLog, error) {
	if err := requireIDs(cmd.RepresentativeID, cmd.DoctorID); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: postpone reason is required", ErrValidation)
	}

	unlock := s.locks.lock(cmd.RepresentativeID)
	defer unlock()

	now := s.now()
	today := types.Day(now, s.loc)

	existing, err := s.findSlot(ctx, cmd.RepresentativeID, cmd.DoctorID, today)
	if err != nil {
		return nil, err
	}
	v := existing
	from := StatusPlanned
	if v == nil {
		v = s.newVisit(cmd.RepresentativeID, cmd.DoctorID, today, KindScheduled, now)
	} else {
		from = v.EffectiveStatus()
	}
	wasActive := v.Active()
	v.Status = StatusPostponed
	v.PostponeReason = &reason
	v.UpdatedAt = now

	saved, err := s.store.Upsert(ctx, v)
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, saved, from, actorRepresentative)
	if wasActive {
		s.stopTracking(ctx, saved.ID)
	}
	s.announce(notification.KindVisitPostponed, saved, reason)
	return saved, nil
}

// Drain blocks until in-flight notifications have been handed off.
func (s *Service) Drain() {
	s.pending.Wait()
}

func (s *Service) findSlot(ctx context.Context, repID, doctorID types.ID, day time.Time) (*VisitLog, error) {
	v, err := s.store.FindByRepDoctorDate(ctx, repID, doctorID, day)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ensureNoActiveVisit is the fast-path check; the storage unique index on
// active visits remains the authority.
func (s *Service) ensureNoActiveVisit(ctx context.Context, repID types.ID, day time.Time, exceptID types.ID) error {
	visits, err := s.store.FindByRepDateRange(ctx, repID, day, day)
	if err != nil {
		return err
	}
	for _, v := range visits {
		if v.ID != exceptID && v.Active() {
			return ErrConflictActiveVisit
		}
	}
	return nil
}

func (s *Service) newVisit(repID, doctorID types.ID, day time.Time, kind Kind, now time.Time) *VisitLog {
	return &VisitLog{
		ID:               types.ID(uuid.NewString()),
		RepresentativeID: repID,
		DoctorID:         doctorID,
		ScheduledDate:    day,
		Status:           StatusPlanned,
		Kind:             kind,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *Service) recordEvent(ctx context.Context, v *VisitLog, from Status, actorType string) {
	var actorID *types.ID
	if actorType == actorRepresentative {
		id := v.RepresentativeID
		actorID = &id
	}
	err := s.store.AppendEvent(ctx, &Event{
		VisitID:    v.ID,
		FromStatus: from,
		ToStatus:   v.Status,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  v.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn("append visit event failed", zap.String("visit_id", string(v.ID)), zap.Error(err))
	}
}

func (s *Service) startTracking(ctx context.Context, v *VisitLog) {
	if s.tracking == nil {
		return
	}
	if err := s.tracking.Start(ctx, v.ID, v.RepresentativeID); err != nil {
		s.logger.Warn("route tracker did not start",
			zap.String("visit_id", string(v.ID)),
			zap.String("representative_id", string(v.RepresentativeID)),
			zap.Error(err))
	}
}

func (s *Service) stopTracking(ctx context.Context, visitID types.ID) {
	if s.tracking == nil {
		return
	}
	if res := s.tracking.Stop(ctx, visitID); !res.OK() {
		s.logger.Warn("route tracker final flush failed",
			zap.String("visit_id", string(visitID)),
			zap.String("op", res.Op),
			zap.Error(res.Err))
	}
}

// announce notifies managers and admins without blocking the caller.
func (s *Service) announce(kind notification.Kind, v *VisitLog, reason string) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:             kind,
		VisitID:          v.ID,
		RepresentativeID: v.RepresentativeID,
		DoctorID:         v.DoctorID,
		VisitKind:        string(v.Kind),
		Reason:           reason,
		At:               v.UpdatedAt,
	}
	for _, role := range []notification.Role{notification.RoleManager, notification.RoleAdmin} {
		s.pending.Add(1)
		go func(role notification.Role) {
			defer s.pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if res := s.notifier.Notify(ctx, role, msg); !res.OK() {
				s.logger.Warn("visit notification not delivered",
					zap.String("role", string(role)),
					zap.String("kind", string(kind)),
					zap.String("visit_id", string(v.ID)),
					zap.Error(res.Err))
			}
		}(role)
	}
}

func requireIDs(repID, doctorID types.ID) error {
	if strings.TrimSpace(string(repID)) == "" {
		return fmt.Errorf("%w: representative_id is required", ErrValidation)
	}
	if strings.TrimSpace(string(doctorID)) == "" {
		return fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	return nil
}
