// README: Route point store backed by PostgreSQL.
package route

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fieldforce/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// InsertBatch writes points in one statement. Ids already present are
// skipped, so a retried batch does not duplicate points.
func (s *Store) InsertBatch(ctx context.Context, points []RoutePoint) error {
	if len(points) == 0 {
		return nil
	}
	ids := make([]string, len(points))
	visits := make([]string, len(points))
	reps := make([]string, len(points))
	lats := make([]float64, len(points))
	lngs := make([]float64, len(points))
	recorded := make([]time.Time, len(points))
	for i, p := range points {
		ids[i] = string(p.ID)
		visits[i] = string(p.VisitID)
		reps[i] = string(p.RepresentativeID)
		lats[i] = p.Position.Lat
		lngs[i] = p.Position.Lng
		recorded[i] = p.RecordedAt
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO route_points (id, visit_log_id, representative_id, lat, lng, recorded_at)
        SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::float8[], $5::float8[], $6::timestamptz[])
        ON CONFLICT (id) DO NOTHING`,
		ids, visits, reps, lats, lngs, recorded,
	)
	if err != nil {
		return fmt.Errorf("insert %d route points: %w", len(points), err)
	}
	return nil
}

// ListByVisit returns the visit's points in recording order.
func (s *Store) ListByVisit(ctx context.Context, visitID types.ID) ([]RoutePoint, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, visit_log_id, representative_id, lat, lng, recorded_at
        FROM route_points
        WHERE visit_log_id = $1
        ORDER BY recorded_at, id`, string(visitID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoutePoint
	for rows.Next() {
		var p RoutePoint
		var id, visit, rep string
		if err := rows.Scan(&id, &visit, &rep, &p.Position.Lat, &p.Position.Lng, &p.RecordedAt); err != nil {
			return nil, err
		}
		p.ID = types.ID(id)
		p.VisitID = types.ID(visit)
		p.RepresentativeID = types.ID(rep)
		out = append(out, p)
	}
	return out, rows.Err()
}
