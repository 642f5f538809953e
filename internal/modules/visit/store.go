// README: Visit log store backed by PostgreSQL; unique indexes are the authoritative invariant guards.
package visit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldforce/internal/types"
)

const (
	pgUniqueViolation = "23505"

	activeVisitIndex   = "visit_logs_one_active_per_rep_day"
	scheduledSlotIndex = "visit_logs_scheduled_slot"
)

type Store struct {
	db *pgxpool.Pool
}

var _ Repository = (*Store)(nil)

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectVisit = `
        SELECT id, representative_id, doctor_id, scheduled_date, status, kind,
               started_at, ended_at, postpone_reason, created_at, updated_at
        FROM visit_logs`

func (s *Store) Get(ctx context.Context, id types.ID) (*VisitLog, error) {
	row := s.db.QueryRow(ctx, selectVisit+` WHERE id = $1`, string(id))
	v, err := scanVisit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// FindByRepDoctorDate returns the scheduled visit for the slot; instant visits
// never occupy it.
func (s *Store) FindByRepDoctorDate(ctx context.Context, repID, doctorID types.ID, date time.Time) (*VisitLog, error) {
	row := s.db.QueryRow(ctx, selectVisit+`
        WHERE representative_id = $1 AND doctor_id = $2 AND scheduled_date = $3 AND kind = $4`,
		string(repID), string(doctorID), date, string(KindScheduled),
	)
	v, err := scanVisit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// FindByRepDateRange returns visits with from <= scheduled_date <= to.
func (s *Store) FindByRepDateRange(ctx context.Context, repID types.ID, from, to time.Time) ([]*VisitLog, error) {
	rows, err := s.db.Query(ctx, selectVisit+`
        WHERE representative_id = $1 AND scheduled_date BETWEEN $2 AND $3
        ORDER BY scheduled_date, created_at`,
		string(repID), from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*VisitLog
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Upsert inserts v or overwrites its mutable columns when the id exists.
func (s *Store) Upsert(ctx context.Context, v *VisitLog) (*VisitLog, error) {
	row := s.db.QueryRow(ctx, `
        INSERT INTO visit_logs (
            id, representative_id, doctor_id, scheduled_date, status, kind,
            started_at, ended_at, postpone_reason, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO UPDATE
        SET status = EXCLUDED.status,
            started_at = EXCLUDED.started_at,
            ended_at = EXCLUDED.ended_at,
            postpone_reason = EXCLUDED.postpone_reason,
            updated_at = EXCLUDED.updated_at
        RETURNING id, representative_id, doctor_id, scheduled_date, status, kind,
                  started_at, ended_at, postpone_reason, created_at, updated_at`,
		string(v.ID),
		string(v.RepresentativeID),
		string(v.DoctorID),
		v.ScheduledDate,
		string(v.Status),
		string(v.Kind),
		v.StartedAt,
		v.EndedAt,
		v.PostponeReason,
		v.CreatedAt,
		v.UpdatedAt,
	)
	saved, err := scanVisit(row)
	if err != nil {
		return nil, translateWriteError(err)
	}
	return saved, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO visit_state_events (
            visit_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.VisitID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case activeVisitIndex:
		return ErrConflictActiveVisit
	case scheduledSlotIndex:
		return ErrConflict
	}
	return err
}

func scanVisit(row pgx.Row) (*VisitLog, error) {
	var v VisitLog
	var id, repID, doctorID, status, kind string
	if err := row.Scan(
		&id, &repID, &doctorID, &v.ScheduledDate, &status, &kind,
		&v.StartedAt, &v.EndedAt, &v.PostponeReason, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	v.ID = types.ID(id)
	v.RepresentativeID = types.ID(repID)
	v.DoctorID = types.ID(doctorID)
	v.Status = Status(status)
	v.Kind = Kind(kind)
	return &v, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
