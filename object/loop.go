package object

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lixenwraith/soundprop/config"
	"github.com/lixenwraith/soundprop/parameter"
	"github.com/lixenwraith/soundprop/vmath"
)

// ErrLoopStopped is returned by Do when the loop is not running
var ErrLoopStopped = errors.New("audio loop stopped")

// Loop owns the audio goroutine: it ticks the Manager and runs queued
// commands between ticks so callers never touch the Manager concurrently
type Loop struct {
	mgr      *Manager
	log      *zap.Logger
	interval time.Duration
	cmds     chan func(*Manager)

	listener vmath.Vec3F // Loop goroutine only
	last     time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewLoop wraps mgr; interval <= 0 uses the default audio tick
func NewLoop(mgr *Manager, interval time.Duration, log *zap.Logger) *Loop {
	if interval <= 0 {
		interval = parameter.AudioUpdateInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		mgr:      mgr,
		log:      log,
		interval: interval,
		cmds:     make(chan func(*Manager), 64),
	}
}

// Name implements service.Service
func (l *Loop) Name() string { return "propagation" }

// Dependencies implements service.Service
func (l *Loop) Dependencies() []string { return []string{"raycast", "output"} }

// Init implements service.Service
// Accepts *config.Config or config.Propagation
func (l *Loop) Init(args ...any) error {
	for _, arg := range args {
		switch v := arg.(type) {
		case *config.Config:
			return l.mgr.SetConfig(v.Propagation)
		case config.Propagation:
			return l.mgr.SetConfig(v)
		}
	}
	return nil
}

// Start implements service.Service
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.running = true
	l.last = time.Now()
	go l.run(l.stop, l.done)
	return nil
}

// Stop implements service.Service
// In-flight batches are released before the goroutine exits
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	close(l.stop)
	done := l.done
	l.mu.Unlock()

	<-done
	return nil
}

// Do runs fn on the audio goroutine and waits for it
func (l *Loop) Do(fn func(*Manager)) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	stop := l.stop
	l.mu.Unlock()

	finished := make(chan struct{})
	cmd := func(m *Manager) {
		fn(m)
		close(finished)
	}

	select {
	case l.cmds <- cmd:
	case <-stop:
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-stop:
		return ErrLoopStopped
	}
}

// SetListener moves the listener used by the next tick
func (l *Loop) SetListener(pos vmath.Vec3F) error {
	return l.Do(func(*Manager) { l.listener = pos })
}

func (l *Loop) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			l.mgr.ReleasePendingRays()
			l.log.Debug("audio loop stopped")
			return

		case cmd := <-l.cmds:
			cmd(l.mgr)

		case now := <-ticker.C:
			elapsed := float64(now.Sub(l.last)) / float64(time.Millisecond)
			l.last = now
			l.mgr.Update(elapsed, l.listener)
		}
	}
}
