package raycast

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/soundprop/config"
	"github.com/lixenwraith/soundprop/parameter"
)

type job struct {
	req Request
	tag Tag
}

// Backend answers rays against a World on a pool of worker goroutines
// Results are pushed to a ResultQueue drained by the audio thread
//
// Capacity counts every accepted request until its result is consumed, so the
// ring never has to refuse a result
type Backend struct {
	world *World
	queue *ResultQueue
	log   *zap.Logger

	workers  int
	capacity int64
	maxHits  int

	mu      sync.Mutex
	pending deque.Deque[job]
	wake    chan struct{}

	reserved atomic.Int64
	running  atomic.Bool

	lifeMu sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// BackendOption configures a Backend
type BackendOption func(*Backend)

// WithLogger sets the backend logger
func WithLogger(log *zap.Logger) BackendOption {
	return func(b *Backend) {
		if log != nil {
			b.log = log
		}
	}
}

// WithBackendConfig applies worker count, capacity and hit cap
func WithBackendConfig(cfg config.Backend) BackendOption {
	return func(b *Backend) {
		b.applyConfig(cfg)
	}
}

// NewBackend creates a stopped backend over world
func NewBackend(world *World, opts ...BackendOption) *Backend {
	b := &Backend{
		world:    world,
		queue:    NewResultQueue(),
		log:      zap.NewNop(),
		workers:  parameter.BackendWorkers,
		capacity: parameter.BackendMaxPending,
		maxHits:  parameter.MaxObstructionRayHits,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) applyConfig(cfg config.Backend) {
	if cfg.Workers > 0 {
		b.workers = cfg.Workers
	}
	if cfg.MaxPending > 0 {
		b.capacity = int64(min(cfg.MaxPending, b.queue.Cap()))
	}
	if cfg.MaxHits > 0 {
		b.maxHits = cfg.MaxHits
	}
}

// Name implements service.Service
func (b *Backend) Name() string { return "raycast" }

// Dependencies implements service.Service
func (b *Backend) Dependencies() []string { return nil }

// Init implements service.Service
// Accepts an optional config.Backend; ignored while running
func (b *Backend) Init(args ...any) error {
	if b.running.Load() {
		return nil
	}
	for _, arg := range args {
		switch v := arg.(type) {
		case config.Backend:
			b.applyConfig(v)
		case *config.Backend:
			b.applyConfig(*v)
		case *config.Config:
			b.applyConfig(v.Backend)
		}
	}
	return nil
}

// Start implements service.Service and launches the worker pool
func (b *Backend) Start() error {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()

	if b.running.Load() {
		return nil
	}
	if b.world == nil {
		return fmt.Errorf("raycast backend: nil world")
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < b.workers; i++ {
		g.Go(func() error {
			b.work(gctx)
			return nil
		})
	}

	b.cancel = cancel
	b.group = g
	b.running.Store(true)
	b.log.Info("raycast backend started", zap.Int("workers", b.workers), zap.Int64("capacity", b.capacity))
	return nil
}

// Stop implements service.Service; queued requests are discarded
// Results already produced stay consumable
func (b *Backend) Stop() error {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()

	if !b.running.Swap(false) {
		return nil
	}

	b.cancel()
	err := b.group.Wait()

	b.mu.Lock()
	dropped := b.pending.Len()
	b.pending.Clear()
	b.mu.Unlock()
	b.reserved.Add(-int64(dropped))

	b.log.Info("raycast backend stopped", zap.Int("dropped", dropped))
	return err
}

// Running reports whether workers are active
func (b *Backend) Running() bool {
	return b.running.Load()
}

// CastRayAsync queues req; never blocks
func (b *Backend) CastRayAsync(req Request, tag Tag) error {
	if !b.running.Load() {
		return ErrBackendStopped
	}

	if b.reserved.Add(1) > b.capacity {
		b.reserved.Add(-1)
		return ErrQueueFull
	}

	b.mu.Lock()
	b.pending.PushBack(job{req: b.capped(req), tag: tag})
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// CastRaySync answers req on the calling goroutine
func (b *Backend) CastRaySync(req Request) ([]Hit, error) {
	if b.world == nil {
		return nil, fmt.Errorf("raycast backend: nil world")
	}
	return b.world.Intersect(b.capped(req)), nil
}

// Consume drains completed results; single consumer
func (b *Backend) Consume() []Result {
	out := b.queue.Consume()
	if n := len(out); n > 0 {
		b.reserved.Add(-int64(n))
	}
	return out
}

// CancelObject removes queued requests of object id and returns how many
// Requests already executing still deliver
func (b *Backend) CancelObject(id uint64) int {
	b.mu.Lock()
	removed := 0
	for i := 0; i < b.pending.Len(); {
		if b.pending.At(i).tag.Object == id {
			b.pending.Remove(i)
			removed++
			continue
		}
		i++
	}
	b.mu.Unlock()

	if removed > 0 {
		b.reserved.Add(-int64(removed))
	}
	return removed
}

// Pending returns accepted requests whose results are not yet consumed
func (b *Backend) Pending() int {
	return int(b.reserved.Load())
}

func (b *Backend) capped(req Request) Request {
	if req.MaxResults <= 0 || req.MaxResults > b.maxHits {
		req.MaxResults = b.maxHits
	}
	return req
}

func (b *Backend) next() (job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending.Len() == 0 {
		return job{}, false
	}
	return b.pending.PopFront(), true
}

func (b *Backend) work(ctx context.Context) {
	for {
		j, ok := b.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-b.wake:
				continue
			}
		}

		if ctx.Err() != nil {
			b.reserved.Add(-1)
			return
		}

		hits := b.world.Intersect(j.req)
		if !b.queue.Push(Result{Tag: j.tag, Hits: hits}) {
			// Capacity accounting keeps this unreachable
			b.reserved.Add(-1)
			b.log.Warn("ray result dropped, queue full",
				zap.Uint64("object", j.tag.Object),
				zap.Int("ray", j.tag.Ray))
		}
	}
}
