// README: Assignment service validates and persists representative-to-doctor pairings.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldforce/internal/modules/recurrence"
	"fieldforce/internal/types"
)

var (
	ErrNotFound   = errors.New("assignment not found")
	ErrBadRequest = errors.New("bad request")
)

type Repository interface {
	FindByRepresentative(ctx context.Context, repID types.ID) ([]Assignment, error)
	Get(ctx context.Context, id types.ID) (*Assignment, error)
	Upsert(ctx context.Context, a *Assignment) error
	Delete(ctx context.Context, id types.ID) error
}

type Service struct {
	store  Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Repository, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

type UpsertCommand struct {
	RepresentativeID types.ID
	DoctorID         types.ID
	VisitDays        []string
	Products         []string
	GoalStartDate    *time.Time
	RecurringWeeks   *int
}

// Upsert creates the assignment or replaces the one already pairing the same
// representative and doctor.
func (s *Service) Upsert(ctx context.Context, cmd UpsertCommand) (*Assignment, error) {
	if strings.TrimSpace(string(cmd.RepresentativeID)) == "" || strings.TrimSpace(string(cmd.DoctorID)) == "" {
		return nil, fmt.Errorf("%w: representative_id and doctor_id are required", ErrBadRequest)
	}
	if len(cmd.VisitDays) == 0 {
		return nil, fmt.Errorf("%w: visit_days must not be empty", ErrBadRequest)
	}
	days, err := recurrence.ParseWeekdaySet(cmd.VisitDays)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if cmd.RecurringWeeks != nil && *cmd.RecurringWeeks < 0 {
		return nil, fmt.Errorf("%w: recurring_weeks must be >= 0", ErrBadRequest)
	}

	now := s.now()
	a := &Assignment{
		ID:               types.ID(uuid.NewString()),
		RepresentativeID: cmd.RepresentativeID,
		DoctorID:         cmd.DoctorID,
		VisitDays:        days,
		Products:         cmd.Products,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if cmd.GoalStartDate != nil || cmd.RecurringWeeks != nil {
		g := &recurrence.Goal{RecurringWeeks: cmd.RecurringWeeks}
		if cmd.GoalStartDate != nil {
			d := types.Day(*cmd.GoalStartDate, time.UTC)
			g.StartDate = &d
		}
		if !g.Complete() {
			// Kept as given; an incomplete goal never narrows the schedule.
			s.logger.Warn("assignment goal is incomplete",
				zap.String("representative_id", string(cmd.RepresentativeID)),
				zap.String("doctor_id", string(cmd.DoctorID)))
		}
		a.Goal = g
	}

	if err := s.store.Upsert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListByRepresentative(ctx context.Context, repID types.ID) ([]Assignment, error) {
	if repID == "" {
		return nil, ErrBadRequest
	}
	return s.store.FindByRepresentative(ctx, repID)
}

func (s *Service) FindByRepresentative(ctx context.Context, repID types.ID) ([]Assignment, error) {
	return s.store.FindByRepresentative(ctx, repID)
}

func (s *Service) Delete(ctx context.Context, id types.ID) error {
	if id == "" {
		return ErrBadRequest
	}
	return s.store.Delete(ctx, id)
}
