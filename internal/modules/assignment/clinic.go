// README: Clinic membership lookups used to authorize instant visits.
package assignment

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"fieldforce/internal/types"
)

type ClinicStore struct {
	db *pgxpool.Pool
}

func NewClinicStore(db *pgxpool.Pool) *ClinicStore {
	return &ClinicStore{db: db}
}

// DoctorBelongsToRepresentativeClinic reports whether doctorID practices at
// any clinic the representative is assigned to.
func (s *ClinicStore) DoctorBelongsToRepresentativeClinic(ctx context.Context, repID, doctorID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1
            FROM representative_clinics rc
            JOIN clinic_doctors cd ON cd.clinic_id = rc.clinic_id
            WHERE rc.representative_id = $1
              AND cd.doctor_id = $2
        )`, string(repID), string(doctorID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
