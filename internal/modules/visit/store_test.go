package visit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldforce/internal/testutil"
	"fieldforce/internal/types"
)

func newStoreVisit(rep, doctor types.ID, day time.Time, status Status, kind Kind) *VisitLog {
	now := time.Now().UTC().Truncate(time.Microsecond)
	v := &VisitLog{
		ID:               types.ID(uuid.NewString()),
		RepresentativeID: rep,
		DoctorID:         doctor,
		ScheduledDate:    day,
		Status:           status,
		Kind:             kind,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if status == StatusInProgress {
		v.StartedAt = &now
	}
	return v
}

func TestStore_UniqueIndexesTranslateErrors(t *testing.T) {
	db := testutil.Postgres(t, "route_points", "visit_state_events", "visit_logs")
	store := NewStore(db)
	ctx := context.Background()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	first, err := store.Upsert(ctx, newStoreVisit("rep-1", "doc-1", day, StatusInProgress, KindScheduled))
	require.NoError(t, err)
	assert.True(t, first.ScheduledDate.Equal(day))

	_, err = store.Upsert(ctx, newStoreVisit("rep-1", "doc-2", day, StatusInProgress, KindInstant))
	assert.ErrorIs(t, err, ErrConflictActiveVisit)

	_, err = store.Upsert(ctx, newStoreVisit("rep-1", "doc-1", day, StatusMissed, KindScheduled))
	assert.ErrorIs(t, err, ErrConflict)

	// Instant visits for the same doctor and day are allowed once the active one ends.
	_, err = store.Upsert(ctx, newStoreVisit("rep-1", "doc-1", day, StatusCompleted, KindInstant))
	require.NoError(t, err)
	_, err = store.Upsert(ctx, newStoreVisit("rep-1", "doc-1", day, StatusCompleted, KindInstant))
	require.NoError(t, err)
}

func TestStore_UpsertUpdatesAndFinds(t *testing.T) {
	db := testutil.Postgres(t, "route_points", "visit_state_events", "visit_logs")
	store := NewStore(db)
	ctx := context.Background()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	v, err := store.Upsert(ctx, newStoreVisit("rep-2", "doc-1", day, StatusInProgress, KindScheduled))
	require.NoError(t, err)

	ended := time.Now().UTC().Truncate(time.Microsecond)
	v.Status = StatusCompleted
	v.EndedAt = &ended
	_, err = store.Upsert(ctx, v)
	require.NoError(t, err)

	got, err := store.FindByRepDoctorDate(ctx, "rep-2", "doc-1", day)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(ended))

	require.NoError(t, store.AppendEvent(ctx, &Event{
		VisitID: v.ID, FromStatus: StatusInProgress, ToStatus: StatusCompleted,
		ActorType: actorSystem, CreatedAt: ended,
	}))

	list, err := store.FindByRepDateRange(ctx, "rep-2", day.AddDate(0, 0, -1), day)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.Get(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
