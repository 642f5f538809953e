package visit

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldforce/internal/modules/notification"
	"fieldforce/internal/types"
)

// memStore mirrors the unique indexes of the visit_logs table.
type memStore struct {
	mu       sync.Mutex
	visits   map[types.ID]*VisitLog
	events   []Event
	eventErr error
	upserts  int
}

var _ Repository = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{visits: make(map[types.ID]*VisitLog)}
}

func clone(v *VisitLog) *VisitLog {
	c := *v
	return &c
}

func (m *memStore) Get(_ context.Context, id types.ID) (*VisitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (m *memStore) FindByRepDoctorDate(_ context.Context, repID, doctorID types.ID, date time.Time) (*VisitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.visits {
		if v.RepresentativeID == repID && v.DoctorID == doctorID && v.ScheduledDate.Equal(date) && v.Kind == KindScheduled {
			return clone(v), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindByRepDateRange(_ context.Context, repID types.ID, from, to time.Time) ([]*VisitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*VisitLog
	for _, v := range m.visits {
		if v.RepresentativeID == repID && !v.ScheduledDate.Before(from) && !v.ScheduledDate.After(to) {
			out = append(out, clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate.Before(out[j].ScheduledDate) })
	return out, nil
}

func (m *memStore) Upsert(_ context.Context, v *VisitLog) (*VisitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, o := range m.visits {
		if id == v.ID || o.RepresentativeID != v.RepresentativeID || !o.ScheduledDate.Equal(v.ScheduledDate) {
			continue
		}
		if o.Active() && v.Active() {
			return nil, ErrConflictActiveVisit
		}
		if o.Kind == KindScheduled && v.Kind == KindScheduled && o.DoctorID == v.DoctorID {
			return nil, ErrConflict
		}
	}
	m.upserts++
	if existing, ok := m.visits[v.ID]; ok {
		c := clone(existing)
		c.Status = v.Status
		c.StartedAt = v.StartedAt
		c.EndedAt = v.EndedAt
		c.PostponeReason = v.PostponeReason
		c.UpdatedAt = v.UpdatedAt
		m.visits[v.ID] = c
		return clone(c), nil
	}
	m.visits[v.ID] = clone(v)
	return clone(v), nil
}

func (m *memStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventErr != nil {
		return m.eventErr
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visits)
}

type memClinics map[types.ID][]types.ID

func (c memClinics) DoctorBelongsToRepresentativeClinic(_ context.Context, repID, doctorID types.ID) (bool, error) {
	for _, d := range c[repID] {
		if d == doctorID {
			return true, nil
		}
	}
	return false, nil
}

type recordedNotice struct {
	role notification.Role
	msg  notification.Message
}

type mockNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
	result  types.BestEffort
}

func (n *mockNotifier) Notify(_ context.Context, role notification.Role, msg notification.Message) types.BestEffort {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, recordedNotice{role: role, msg: msg})
	return n.result
}

func (n *mockNotifier) all() []recordedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedNotice(nil), n.notices...)
}

type mockTracking struct {
	mu      sync.Mutex
	started []types.ID
	stopped []types.ID
}

func (t *mockTracking) Start(_ context.Context, visitID, _ types.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = append(t.started, visitID)
	return nil
}

func (t *mockTracking) Stop(_ context.Context, visitID types.ID) types.BestEffort {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = append(t.stopped, visitID)
	return types.Succeeded("route.stop")
}
