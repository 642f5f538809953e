package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldforce/internal/modules/assignment"
	"fieldforce/internal/modules/recurrence"
	"fieldforce/internal/modules/visit"
	"fieldforce/internal/types"
)

type fakeAssignments struct {
	list []assignment.Assignment
	err  error
}

func (f *fakeAssignments) FindByRepresentative(_ context.Context, repID types.ID) ([]assignment.Assignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []assignment.Assignment
	for _, a := range f.list {
		if a.RepresentativeID == repID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeVisits struct {
	mu     sync.Mutex
	visits []*visit.VisitLog
}

func (f *fakeVisits) FindByRepDateRange(_ context.Context, repID types.ID, from, to time.Time) ([]*visit.VisitLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*visit.VisitLog
	for _, v := range f.visits {
		if v.RepresentativeID == repID && !v.ScheduledDate.Before(from) && !v.ScheduledDate.After(to) {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}

// fakeBackfill marks planned slots missed the way the visit service does.
type fakeBackfill struct {
	visits *fakeVisits
	dates  []time.Time
	err    error
}

func (f *fakeBackfill) BackfillMissed(_ context.Context, repID types.ID, as []assignment.Assignment, date time.Time) (visit.BackfillReport, error) {
	f.dates = append(f.dates, date)
	if f.err != nil {
		return visit.BackfillReport{}, f.err
	}
	report := visit.BackfillReport{Date: date}
	f.visits.mu.Lock()
	defer f.visits.mu.Unlock()
	for _, a := range as {
		if !a.ActiveOn(date) {
			continue
		}
		var found *visit.VisitLog
		for _, v := range f.visits.visits {
			if v.DoctorID == a.DoctorID && v.ScheduledDate.Equal(date) && v.Kind == visit.KindScheduled {
				found = v
			}
		}
		if found != nil && found.Status.Terminal() {
			continue
		}
		if found == nil {
			found = &visit.VisitLog{ID: types.ID("missed-" + string(a.DoctorID) + date.Format("0102")), RepresentativeID: repID, DoctorID: a.DoctorID, ScheduledDate: date, Kind: visit.KindScheduled}
			f.visits.visits = append(f.visits.visits, found)
		}
		found.Status = visit.StatusMissed
		report.Marked = append(report.Marked, found)
	}
	return report, nil
}

// visitRepo lets the real visit service persist into fakeVisits.
type visitRepo struct{ *fakeVisits }

func (r visitRepo) Get(_ context.Context, id types.ID) (*visit.VisitLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.visits {
		if v.ID == id {
			c := *v
			return &c, nil
		}
	}
	return nil, visit.ErrNotFound
}

func (r visitRepo) FindByRepDoctorDate(_ context.Context, repID, doctorID types.ID, day time.Time) (*visit.VisitLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.visits {
		if v.RepresentativeID == repID && v.DoctorID == doctorID && v.ScheduledDate.Equal(day) && v.Kind == visit.KindScheduled {
			c := *v
			return &c, nil
		}
	}
	return nil, visit.ErrNotFound
}

func (r visitRepo) Upsert(_ context.Context, v *visit.VisitLog) (*visit.VisitLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *v
	for i, o := range r.visits {
		if o.ID == v.ID {
			r.visits[i] = &c
			out := c
			return &out, nil
		}
	}
	r.visits = append(r.visits, &c)
	out := c
	return &out, nil
}

func (r visitRepo) AppendEvent(context.Context, *visit.Event) error { return nil }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weekly(id, doctor types.ID, days ...time.Weekday) assignment.Assignment {
	return assignment.Assignment{ID: id, RepresentativeID: "rep-1", DoctorID: doctor, VisitDays: recurrence.NewWeekdaySet(days...), Products: []string{"brand-x"}}
}

type fixture struct {
	svc         *Service
	assignments *fakeAssignments
	visits      *fakeVisits
	backfill    *fakeBackfill
}

// Today is Wednesday 2024-03-06.
func newFixture(as ...assignment.Assignment) *fixture {
	f := &fixture{assignments: &fakeAssignments{list: as}, visits: &fakeVisits{}}
	f.backfill = &fakeBackfill{visits: f.visits}
	f.svc = NewService(Deps{
		Assignments: f.assignments,
		Visits:      f.visits,
		Backfill:    f.backfill,
		Logger:      zap.NewNop(),
		Now:         func() time.Time { return time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC) },
	})
	return f
}

func slotFor(t *testing.T, d Day, doctor types.ID) Slot {
	t.Helper()
	for _, s := range d.Slots {
		if s.DoctorID == doctor {
			return s
		}
	}
	t.Fatalf("no slot for %s on %s", doctor, d.Date.Format(time.DateOnly))
	return Slot{}
}

func TestSchedule_RejectsInvalidRanges(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, "rep-1", date(2024, 3, 10), date(2024, 3, 9))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = f.svc.Schedule(ctx, "rep-1", date(2024, 3, 1), date(2024, 4, 12))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = f.svc.Schedule(ctx, "", date(2024, 3, 1), date(2024, 3, 2))
	assert.ErrorIs(t, err, ErrInvalidRange)

	s, err := f.svc.Schedule(ctx, "rep-1", date(2024, 3, 1), date(2024, 4, 11))
	require.NoError(t, err)
	assert.Len(t, s.Days, 42)
}

func TestSchedule_ProjectsAssignmentsOntoDays(t *testing.T) {
	f := newFixture(
		weekly("a-1", "doc-1", time.Monday, time.Wednesday),
		weekly("a-2", "doc-2", time.Friday),
	)

	s, err := f.svc.Schedule(context.Background(), "rep-1", date(2024, 3, 6), date(2024, 3, 12))
	require.NoError(t, err)
	require.Len(t, s.Days, 7)

	var gotDates []string
	for _, d := range s.Days {
		for _, slot := range d.Slots {
			gotDates = append(gotDates, d.Date.Format("01-02")+" "+string(slot.DoctorID))
			assert.Equal(t, visit.StatusPlanned, slot.Status)
			require.NotNil(t, slot.AssignmentID)
		}
	}
	assert.Equal(t, []string{"03-06 doc-1", "03-08 doc-2", "03-11 doc-1"}, gotDates)
	for i := 1; i < len(s.Days); i++ {
		assert.True(t, s.Days[i-1].Date.Before(s.Days[i].Date))
	}
	assert.Empty(t, f.backfill.dates, "no past days in range")
}

func TestSchedule_AttachesRecordedVisits(t *testing.T) {
	f := newFixture(weekly("a-1", "doc-1", time.Wednesday), weekly("a-2", "doc-2", time.Wednesday))
	started := time.Date(2024, 3, 6, 7, 30, 0, 0, time.UTC)
	f.visits.visits = []*visit.VisitLog{
		{ID: "v-1", RepresentativeID: "rep-1", DoctorID: "doc-1", ScheduledDate: date(2024, 3, 6), Status: visit.StatusInProgress, Kind: visit.KindScheduled, StartedAt: &started},
		{ID: "v-2", RepresentativeID: "rep-1", DoctorID: "doc-7", ScheduledDate: date(2024, 3, 6), Status: visit.StatusCompleted, Kind: visit.KindInstant, StartedAt: &started},
	}

	s, err := f.svc.Schedule(context.Background(), "rep-1", date(2024, 3, 6), date(2024, 3, 6))
	require.NoError(t, err)
	require.Len(t, s.Days, 1)
	day := s.Days[0]
	require.Len(t, day.Slots, 3)

	doc1 := slotFor(t, day, "doc-1")
	assert.Equal(t, visit.StatusInProgress, doc1.Status)
	require.NotNil(t, doc1.Visit)
	assert.Equal(t, types.ID("v-1"), doc1.Visit.ID)

	assert.Equal(t, visit.StatusPlanned, slotFor(t, day, "doc-2").Status)

	instant := slotFor(t, day, "doc-7")
	assert.Equal(t, visit.KindInstant, instant.Kind)
	assert.Nil(t, instant.AssignmentID)
	assert.Equal(t, visit.StatusCompleted, instant.Status)
}

func TestSchedule_KeepsScheduledVisitWithoutActiveAssignment(t *testing.T) {
	f := newFixture(weekly("a-1", "doc-1", time.Monday))
	f.visits.visits = []*visit.VisitLog{
		{ID: "v-1", RepresentativeID: "rep-1", DoctorID: "doc-1", ScheduledDate: date(2024, 3, 6), Status: visit.StatusCompleted, Kind: visit.KindScheduled},
	}
	s, err := f.svc.Schedule(context.Background(), "rep-1", date(2024, 3, 6), date(2024, 3, 6))
	require.NoError(t, err)
	require.Len(t, s.Days[0].Slots, 1)
	slot := s.Days[0].Slots[0]
	assert.Nil(t, slot.AssignmentID)
	assert.Equal(t, visit.StatusCompleted, slot.Status)
}

func TestSchedule_BackfillsPastDays(t *testing.T) {
	f := newFixture(weekly("a-1", "doc-1", time.Monday, time.Tuesday), weekly("a-2", "doc-2", time.Monday))
	f.visits.visits = []*visit.VisitLog{
		{ID: "v-done", RepresentativeID: "rep-1", DoctorID: "doc-2", ScheduledDate: date(2024, 3, 4), Status: visit.StatusCompleted, Kind: visit.KindScheduled},
	}

	s, err := f.svc.Schedule(context.Background(), "rep-1", date(2024, 3, 3), date(2024, 3, 6))
	require.NoError(t, err)

	// Sunday has no active assignment; today is never backfilled.
	assert.Equal(t, []time.Time{date(2024, 3, 4), date(2024, 3, 5)}, f.backfill.dates)

	monday := s.Days[1]
	assert.Equal(t, visit.StatusMissed, slotFor(t, monday, "doc-1").Status)
	assert.Equal(t, visit.StatusCompleted, slotFor(t, monday, "doc-2").Status)
	assert.Equal(t, visit.StatusMissed, slotFor(t, s.Days[2], "doc-1").Status)
}

func TestSchedule_BackfillWestOfUTCMarksTheRequestedDay(t *testing.T) {
	eastern := time.FixedZone("EST", -5*60*60)
	now := func() time.Time { return time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC) }
	visits := &fakeVisits{}
	visitSvc := visit.NewService(visit.Deps{Store: visitRepo{visits}, Logger: zap.NewNop(), Location: eastern, Now: now})
	svc := NewService(Deps{
		Assignments: &fakeAssignments{list: []assignment.Assignment{weekly("a-1", "doc-1", time.Monday)}},
		Visits:      visits,
		Backfill:    visitSvc,
		Logger:      zap.NewNop(),
		Location:    eastern,
		Now:         now,
	})

	s, err := svc.Schedule(context.Background(), "rep-1", date(2024, 3, 4), date(2024, 3, 6))
	require.NoError(t, err)

	monday := slotFor(t, s.Days[0], "doc-1")
	assert.Equal(t, visit.StatusMissed, monday.Status)
	require.NotNil(t, monday.Visit)
	assert.Equal(t, date(2024, 3, 4), monday.Visit.ScheduledDate)
	require.Len(t, visits.visits, 1)
}

func TestSchedule_BackfillErrorsDoNotFailProjection(t *testing.T) {
	f := newFixture(weekly("a-1", "doc-1", time.Monday))
	f.backfill.err = errors.New("db down")

	s, err := f.svc.Schedule(context.Background(), "rep-1", date(2024, 3, 4), date(2024, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, visit.StatusPlanned, s.Days[0].Slots[0].Status)
}

func TestSchedule_AssignmentLoadFailure(t *testing.T) {
	f := newFixture()
	f.assignments.err = errors.New("timeout")
	_, err := f.svc.Schedule(context.Background(), "rep-1", date(2024, 3, 6), date(2024, 3, 6))
	assert.ErrorContains(t, err, "timeout")
}

func TestSchedule_HonoursGoalWindow(t *testing.T) {
	start := date(2024, 3, 4)
	weeks := 1
	a := weekly("a-1", "doc-1", time.Monday)
	a.Goal = &recurrence.Goal{StartDate: &start, RecurringWeeks: &weeks}
	f := newFixture(a)

	s, err := f.svc.Schedule(context.Background(), "rep-1", date(2024, 3, 6), date(2024, 3, 31))
	require.NoError(t, err)
	var active []time.Time
	for _, d := range s.Days {
		if len(d.Slots) > 0 {
			active = append(active, d.Date)
		}
	}
	assert.Equal(t, []time.Time{date(2024, 3, 11)}, active)
}

func TestWeek_StartsOnMonday(t *testing.T) {
	f := newFixture(weekly("a-1", "doc-1", time.Sunday))
	s, err := f.svc.Week(context.Background(), "rep-1", date(2024, 3, 7))
	require.NoError(t, err)

	assert.Equal(t, date(2024, 3, 4), s.From)
	assert.Equal(t, date(2024, 3, 10), s.To)
	require.Len(t, s.Days, 7)
	assert.Len(t, s.Days[6].Slots, 1)
}
