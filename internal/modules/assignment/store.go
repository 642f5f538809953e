// README: Assignment store backed by PostgreSQL (assignments + visit_goals).
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldforce/internal/modules/recurrence"
	"fieldforce/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// FindByRepresentative returns the representative's assignments, each with the
// most recent goal attached when one exists.
func (s *Store) FindByRepresentative(ctx context.Context, repID types.ID) ([]Assignment, error) {
	rows, err := s.db.Query(ctx, `
        SELECT a.id, a.representative_id, a.doctor_id, a.visit_days, a.products,
               a.created_at, a.updated_at, g.start_date, g.recurring_weeks
        FROM assignments a
        LEFT JOIN LATERAL (
            SELECT start_date, recurring_weeks
            FROM visit_goals
            WHERE assignment_id = a.id
            ORDER BY created_at DESC
            LIMIT 1
        ) g ON TRUE
        WHERE a.representative_id = $1
        ORDER BY a.doctor_id`, string(repID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	row := s.db.QueryRow(ctx, `
        SELECT a.id, a.representative_id, a.doctor_id, a.visit_days, a.products,
               a.created_at, a.updated_at, g.start_date, g.recurring_weeks
        FROM assignments a
        LEFT JOIN LATERAL (
            SELECT start_date, recurring_weeks
            FROM visit_goals
            WHERE assignment_id = a.id
            ORDER BY created_at DESC
            LIMIT 1
        ) g ON TRUE
        WHERE a.id = $1`, string(id),
	)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Upsert inserts or replaces the assignment keyed by (representative, doctor)
// and, when a goal is given, records it. The stored id is written back to a.
func (s *Store) Upsert(ctx context.Context, a *Assignment) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
        INSERT INTO assignments (id, representative_id, doctor_id, visit_days, products, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (representative_id, doctor_id) DO UPDATE
        SET visit_days = EXCLUDED.visit_days,
            products = EXCLUDED.products,
            updated_at = EXCLUDED.updated_at
        RETURNING id`,
		string(a.ID),
		string(a.RepresentativeID),
		string(a.DoctorID),
		a.VisitDays.Names(),
		a.Products,
		a.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("upsert assignment: %w", err)
	}
	a.ID = types.ID(id)

	if a.Goal != nil {
		_, err = tx.Exec(ctx, `
            INSERT INTO visit_goals (assignment_id, start_date, recurring_weeks, created_at)
            VALUES ($1, $2, $3, $4)`,
			id, a.Goal.StartDate, a.Goal.RecurringWeeks, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert visit goal: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	var id, repID, doctorID string
	var days, products []string
	var goalStart *time.Time
	var goalWeeks *int32

	if err := row.Scan(&id, &repID, &doctorID, &days, &products, &a.CreatedAt, &a.UpdatedAt, &goalStart, &goalWeeks); err != nil {
		return Assignment{}, err
	}
	set, err := recurrence.ParseWeekdaySet(days)
	if err != nil {
		return Assignment{}, fmt.Errorf("assignment %s: %w", id, err)
	}
	a.ID = types.ID(id)
	a.RepresentativeID = types.ID(repID)
	a.DoctorID = types.ID(doctorID)
	a.VisitDays = set
	a.Products = products
	if goalStart != nil || goalWeeks != nil {
		g := &recurrence.Goal{StartDate: goalStart}
		if goalWeeks != nil {
			w := int(*goalWeeks)
			g.RecurringWeeks = &w
		}
		a.Goal = g
	}
	return a, nil
}
