// README: Per-visit route tracker: filters samples, buffers route points and flushes them in batches.
package route

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldforce/internal/types"
)

const (
	defaultBatchSize     = 20
	defaultFlushInterval = 30 * time.Second
	defaultQueueSize     = 64
	defaultFlushTimeout  = 10 * time.Second
)

type PointWriter interface {
	InsertBatch(ctx context.Context, points []RoutePoint) error
}

// LivePublisher receives the newest persisted point of a representative.
type LivePublisher interface {
	Publish(ctx context.Context, p RoutePoint) error
}

type Config struct {
	// MinDisplacementM is the distance a sample must move away from the last
	// accepted one to be kept.
	MinDisplacementM float64
	BatchSize        int
	FlushInterval    time.Duration
	QueueSize        int
	FlushTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinDisplacementM < 0 {
		c.MinDisplacementM = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = defaultFlushTimeout
	}
	return c
}

// Tracker accumulates one visit's route. Samples enter through a bounded
// queue; a single goroutine filters them into the pending buffer and
// triggers flushes, which run on their own goroutine so intake never waits
// on storage. Points leave the buffer only after a successful write.
type Tracker struct {
	visitID types.ID
	repID   types.ID
	cfg     Config
	writer  PointWriter
	live    LivePublisher
	logger  *zap.Logger

	samples chan Sample
	quit    chan struct{}
	done    chan struct{}

	// pushMu orders Push against Stop: once closed is set no sample can be
	// enqueued, so the final drain sees everything that was accepted.
	pushMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	pending []RoutePoint
	last    *types.Point
	flushed int

	flushMu  sync.Mutex
	flushing atomic.Bool
	flushWG  sync.WaitGroup

	stopOnce sync.Once
	final    types.BestEffort
}

func NewTracker(visitID, repID types.ID, cfg Config, writer PointWriter, live LivePublisher, logger *zap.Logger) *Tracker {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		visitID: visitID,
		repID:   repID,
		cfg:     cfg,
		writer:  writer,
		live:    live,
		logger:  logger.With(zap.String("visit_id", string(visitID)), zap.String("representative_id", string(repID))),
		samples: make(chan Sample, cfg.QueueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Tracker) VisitID() types.ID { return t.visitID }

func (t *Tracker) RepresentativeID() types.ID { return t.repID }

// Push enqueues a sample, blocking while the queue is full.
func (t *Tracker) Push(ctx context.Context, s Sample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t.pushMu.RLock()
	defer t.pushMu.RUnlock()
	if t.closed {
		return ErrTrackerStopped
	}
	select {
	case t.samples <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush writes the pending buffer now and waits for the result.
func (t *Tracker) Flush(ctx context.Context) types.BestEffort {
	return t.flush(ctx)
}

// Stop refuses further samples, drains the queue, waits for any in-flight
// flush and performs a final flush. It returns the final flush outcome once
// the tracker goroutine has exited, or early if ctx ends first.
func (t *Tracker) Stop(ctx context.Context) types.BestEffort {
	t.stopOnce.Do(func() {
		t.pushMu.Lock()
		t.closed = true
		t.pushMu.Unlock()
		close(t.quit)
	})
	select {
	case <-t.done:
		return t.final
	case <-ctx.Done():
		return types.Failed("route.stop", fmt.Errorf("waiting for tracker of visit %s: %w", t.visitID, ctx.Err()))
	}
}

// Pending is the number of buffered points not yet persisted.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Flushed is the number of points persisted so far.
func (t *Tracker) Flushed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushed
}

func (t *Tracker) run() {
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case s := <-t.samples:
			if t.accept(s) >= t.cfg.BatchSize {
				t.flushAsync()
				// The interval counts from the most recent flush.
				ticker.Reset(t.cfg.FlushInterval)
			}
		case <-ticker.C:
			t.flushAsync()
		case <-t.quit:
			t.drain()
			t.flushWG.Wait()
			ctx, cancel := context.WithTimeout(context.Background(), t.cfg.FlushTimeout)
			t.final = t.flush(ctx)
			cancel()
			close(t.done)
			return
		}
	}
}

func (t *Tracker) drain() {
	for {
		select {
		case s := <-t.samples:
			t.accept(s)
		default:
			return
		}
	}
}

// accept applies the displacement filter and returns the buffer length.
func (t *Tracker) accept(s Sample) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last != nil && haversineMeters(*t.last, s.Position) <= t.cfg.MinDisplacementM {
		return len(t.pending)
	}
	pos := s.Position
	t.last = &pos
	t.pending = append(t.pending, RoutePoint{
		ID:               types.ID(uuid.NewString()),
		VisitID:          t.visitID,
		RepresentativeID: t.repID,
		Position:         pos,
		RecordedAt:       s.RecordedAt,
	})
	return len(t.pending)
}

// flushAsync starts a background flush unless one is already running.
func (t *Tracker) flushAsync() {
	if !t.flushing.CompareAndSwap(false, true) {
		return
	}
	t.flushWG.Add(1)
	go func() {
		defer t.flushWG.Done()
		defer t.flushing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.FlushTimeout)
		defer cancel()
		t.flush(ctx)
	}()
}

func (t *Tracker) flush(ctx context.Context) types.BestEffort {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	t.mu.Lock()
	batch := append([]RoutePoint(nil), t.pending...)
	t.mu.Unlock()
	if len(batch) == 0 {
		return types.Succeeded("route.flush")
	}

	if err := t.writer.InsertBatch(ctx, batch); err != nil {
		t.logger.Warn("route flush failed; points kept for retry", zap.Int("points", len(batch)), zap.Error(err))
		return types.Failed("route.flush", err)
	}

	// flushMu makes this the only writer trimming the front, so the snapshot
	// is still the buffer's prefix; points accepted meanwhile stay queued.
	t.mu.Lock()
	t.pending = append(t.pending[:0:0], t.pending[len(batch):]...)
	t.flushed += len(batch)
	t.mu.Unlock()

	if t.live != nil {
		if err := t.live.Publish(ctx, batch[len(batch)-1]); err != nil {
			t.logger.Debug("live position not published", zap.Error(err))
		}
	}
	return types.Succeeded("route.flush")
}
