// README: Route service owns the trackers of in-progress visits and serves route playback.
package route

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fieldforce/internal/types"
)

type PointReader interface {
	ListByVisit(ctx context.Context, visitID types.ID) ([]RoutePoint, error)
}

type PointStore interface {
	PointWriter
	PointReader
}

type LiveReader interface {
	Get(ctx context.Context, repID types.ID) (LivePosition, error)
}

type LivePositions interface {
	LivePublisher
	LiveReader
}

// VisitLookup resolves whether a visit is currently in progress. It lets the
// service resume tracking after a restart.
type VisitLookup interface {
	ActiveVisit(ctx context.Context, visitID types.ID) (repID types.ID, active bool, err error)
}

type Deps struct {
	Points  PointStore
	Live    LivePositions
	Snapper Snapper
	Visits  VisitLookup
	Config  Config
	Logger  *zap.Logger
	Now     func() time.Time
}

type Service struct {
	points  PointStore
	live    LivePositions
	snapper Snapper
	visits  VisitLookup
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	trackers map[types.ID]*Tracker
	// stopped remembers recently stopped visits so a resume racing with
	// Stop cannot bring their tracker back.
	stopped map[types.ID]time.Time
}

const stoppedRetention = 10 * time.Minute

func NewService(deps Deps) *Service {
	s := &Service{
		points:   deps.Points,
		live:     deps.Live,
		snapper:  deps.Snapper,
		visits:   deps.Visits,
		cfg:      deps.Config.withDefaults(),
		logger:   deps.Logger,
		now:      deps.Now,
		trackers: make(map[types.ID]*Tracker),
		stopped:  make(map[types.ID]time.Time),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start begins tracking a visit. Starting an already tracked visit is a no-op.
func (s *Service) Start(_ context.Context, visitID, repID types.ID) error {
	if visitID == "" || repID == "" {
		return errors.New("route: visit and representative are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stopped, visitID)
	s.startLocked(visitID, repID)
	return nil
}

func (s *Service) startLocked(visitID, repID types.ID) *Tracker {
	if t, ok := s.trackers[visitID]; ok {
		return t
	}
	t := NewTracker(visitID, repID, s.cfg, s.points, s.live, s.logger)
	s.trackers[visitID] = t
	s.logger.Info("route tracking started", zap.String("visit_id", string(visitID)), zap.String("representative_id", string(repID)))
	return t
}

// Push forwards a sample to the visit's tracker. A missing recorded time is
// filled with the current time.
func (s *Service) Push(ctx context.Context, visitID types.ID, sample Sample) error {
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = s.now().UTC()
	}
	t, err := s.tracker(ctx, visitID)
	if err != nil {
		return err
	}
	err = t.Push(ctx, sample)
	if errors.Is(err, ErrTrackerStopped) {
		return ErrNotTracking
	}
	return err
}

// Stop ends tracking and waits for the final flush.
func (s *Service) Stop(ctx context.Context, visitID types.ID) types.BestEffort {
	s.mu.Lock()
	t, ok := s.trackers[visitID]
	delete(s.trackers, visitID)
	s.markStoppedLocked(visitID)
	s.mu.Unlock()
	if !ok {
		return types.Succeeded("route.stop")
	}
	res := t.Stop(ctx)
	s.logger.Info("route tracking stopped",
		zap.String("visit_id", string(visitID)),
		zap.Int("points", t.Flushed()),
		zap.Bool("final_flush_ok", res.OK()))
	return res
}

// StopAll stops every tracker concurrently; used at shutdown.
func (s *Service) StopAll(ctx context.Context) types.BestEffort {
	s.mu.Lock()
	trackers := s.trackers
	s.trackers = make(map[types.ID]*Tracker)
	for id := range trackers {
		s.markStoppedLocked(id)
	}
	s.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for id, t := range trackers {
		wg.Add(1)
		go func(id types.ID, t *Tracker) {
			defer wg.Done()
			if res := t.Stop(ctx); !res.OK() {
				mu.Lock()
				errs = append(errs, fmt.Errorf("visit %s: %w", id, res.Err))
				mu.Unlock()
			}
		}(id, t)
	}
	wg.Wait()
	if len(errs) > 0 {
		return types.Failed("route.stop_all", errors.Join(errs...))
	}
	return types.Succeeded("route.stop_all")
}

func (s *Service) Tracking(visitID types.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trackers[visitID]
	return ok
}

// Playback returns the persisted route of a visit, optionally snapped to
// roads. Snapping failures fall back to the raw route.
func (s *Service) Playback(ctx context.Context, visitID types.ID, snap bool) (Playback, error) {
	points, err := s.points.ListByVisit(ctx, visitID)
	if err != nil {
		return Playback{}, err
	}
	pb := Playback{VisitID: visitID, Points: points}
	if !snap || s.snapper == nil || len(points) == 0 {
		return pb, nil
	}
	path := make([]types.Point, len(points))
	for i, p := range points {
		path[i] = p.Position
	}
	snapped, err := s.snapper.Snap(ctx, path)
	if err != nil {
		s.logger.Warn("road snapping failed", zap.String("visit_id", string(visitID)), zap.Error(err))
		return pb, nil
	}
	pb.Snapped = snapped
	return pb, nil
}

func (s *Service) LivePosition(ctx context.Context, repID types.ID) (LivePosition, error) {
	if s.live == nil {
		return LivePosition{}, ErrNoPosition
	}
	return s.live.Get(ctx, repID)
}

func (s *Service) tracker(ctx context.Context, visitID types.ID) (*Tracker, error) {
	s.mu.Lock()
	t, ok := s.trackers[visitID]
	s.mu.Unlock()
	if ok {
		return t, nil
	}
	if s.visits == nil {
		return nil, ErrNotTracking
	}
	repID, active, err := s.visits.ActiveVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !active || repID == "" {
		return nil, ErrNotTracking
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// The lookup ran unlocked; a Stop since then wins over the resume.
	if _, ok := s.stopped[visitID]; ok {
		return nil, ErrNotTracking
	}
	return s.startLocked(visitID, repID), nil
}

func (s *Service) markStoppedLocked(visitID types.ID) {
	now := s.now()
	for id, at := range s.stopped {
		if now.Sub(at) > stoppedRetention {
			delete(s.stopped, id)
		}
	}
	s.stopped[visitID] = now
}
