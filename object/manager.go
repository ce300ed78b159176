package object

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lixenwraith/soundprop/audio"
	"github.com/lixenwraith/soundprop/config"
	"github.com/lixenwraith/soundprop/parameter"
	"github.com/lixenwraith/soundprop/propagation"
	"github.com/lixenwraith/soundprop/raycast"
	"github.com/lixenwraith/soundprop/status"
	"github.com/lixenwraith/soundprop/vmath"
)

var (
	// ErrUnknownObject is returned for ids that are not reserved
	ErrUnknownObject = errors.New("unknown audio object")
	// ErrPoolExhausted is returned when the active object limit is reached
	ErrPoolExhausted = errors.New("audio object pool exhausted")
)

// Manager reserves audio objects, drives their processors once per tick and
// routes ray results back to them
// All methods run on the audio goroutine
type Manager struct {
	gateway raycast.Gateway
	results raycast.ResultSource
	sink    audio.Sink
	log     *zap.Logger
	reg     *status.Registry
	now     func() time.Time

	cfg         config.Propagation // Processors point at this field
	defaultCalc propagation.CalcType
	limiter     *rate.Limiter

	objects    map[uint64]*AudioObject
	active     []*AudioObject
	pool       deque.Deque[*AudioObject]
	poolSize   int
	maxObjects int
	nextID     uint64

	resultsDropped   *atomic.Int64
	batchesThrottled *atomic.Int64
	objectsActive    *atomic.Int64
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the manager and processor logger
func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithRegistry publishes counters to reg
func WithRegistry(reg *status.Registry) ManagerOption {
	return func(m *Manager) {
		if reg != nil {
			m.reg = reg
		}
	}
}

// WithSink sets the consumer of per-object propagation values
func WithSink(sink audio.Sink) ManagerOption {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithResultSource sets where asynchronous results are drained from
// Defaults to the gateway when it implements raycast.ResultSource
func WithResultSource(src raycast.ResultSource) ManagerOption {
	return func(m *Manager) {
		m.results = src
	}
}

// WithPoolSize sets how many recycled objects are kept
func WithPoolSize(n int) ManagerOption {
	return func(m *Manager) {
		if n >= 0 {
			m.poolSize = n
		}
	}
}

// WithMaxObjects caps simultaneously reserved objects, 0 = unlimited
func WithMaxObjects(n int) ManagerOption {
	return func(m *Manager) {
		if n >= 0 {
			m.maxObjects = n
		}
	}
}

// WithClock replaces the time source used by the ray budget
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager issuing rays through gw
func NewManager(gw raycast.Gateway, cfg config.Propagation, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		gateway:  gw,
		log:      zap.NewNop(),
		reg:      status.NewRegistry(),
		now:      time.Now,
		objects:  make(map[uint64]*AudioObject),
		poolSize: parameter.ObjectPoolSize,
	}
	if src, ok := gw.(raycast.ResultSource); ok {
		m.results = src
	}
	for _, opt := range opts {
		opt(m)
	}

	m.resultsDropped = m.reg.Counter(status.ResultsDropped)
	m.batchesThrottled = m.reg.Counter(status.BatchesThrottled)
	m.objectsActive = m.reg.Counter(status.ObjectsActive)

	if err := m.SetConfig(cfg); err != nil {
		return nil, err
	}

	for i := 0; i < m.poolSize; i++ {
		m.pool.PushBack(m.newObject())
	}
	return m, nil
}

func (m *Manager) newObject() *AudioObject {
	o := &AudioObject{}
	o.proc = propagation.NewProcessor(0, &o.position, &o.refs, m.gateway, &m.cfg,
		propagation.WithLogger(m.log),
		propagation.WithRegistry(m.reg),
	)
	return o
}

// Config returns the active propagation config
func (m *Manager) Config() config.Propagation { return m.cfg }

// Registry returns the stats registry
func (m *Manager) Registry() *status.Registry { return m.reg }

// SetConfig swaps the propagation config
// Turning raycasts off releases every pending batch immediately
func (m *Manager) SetConfig(cfg config.Propagation) error {
	calc, err := propagation.ParseCalcType(cfg.DefaultCalcType)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	wasEnabled := m.cfg.RaycastsEnabled
	m.cfg = cfg
	m.defaultCalc = calc

	switch {
	case cfg.RayBudgetPerSecond <= 0:
		m.limiter = nil
	case m.limiter == nil:
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RayBudgetPerSecond), budgetBurst(cfg.RayBudgetPerSecond))
	default:
		now := m.now()
		m.limiter.SetLimitAt(now, rate.Limit(cfg.RayBudgetPerSecond))
		m.limiter.SetBurstAt(now, budgetBurst(cfg.RayBudgetPerSecond))
	}

	if wasEnabled && !cfg.RaycastsEnabled {
		m.log.Info("raycasts disabled, releasing pending rays")
		m.ReleasePendingRays()
	}
	return nil
}

// budgetBurst lets one full batch through even for tiny budgets
func budgetBurst(perSecond float64) int {
	burst := int(perSecond)
	if burst < parameter.MaxObstructionRays {
		burst = parameter.MaxObstructionRays
	}
	return burst
}

// ReserveID activates an object and holds one reference for the caller
func (m *Manager) ReserveID() (uint64, error) {
	if m.maxObjects > 0 && len(m.objects) >= m.maxObjects {
		return 0, ErrPoolExhausted
	}

	var o *AudioObject
	if m.pool.Len() > 0 {
		o = m.pool.PopBack()
	} else {
		o = m.newObject()
	}

	m.nextID++
	o.id = m.nextID
	o.released = false
	o.position = vmath.Vec3F{}
	o.proc.SetID(o.id)
	o.proc.SetCalcType(m.defaultCalc)
	// Fresh objects jump to their first result
	o.proc.ResetOnNextBatch()
	o.refs.Inc()

	m.objects[o.id] = o
	m.active = append(m.active, o)
	m.objectsActive.Store(int64(len(m.objects)))
	return o.id, nil
}

// ReleaseID drops the caller reference
// The object is recycled now, or once its in-flight batch resolves
func (m *Manager) ReleaseID(id uint64) error {
	o, ok := m.objects[id]
	if !ok || o.released {
		return fmt.Errorf("release %d: %w", id, ErrUnknownObject)
	}

	o.released = true
	if _, err := o.refs.Dec(); err != nil {
		m.log.DPanic("caller reference release", zap.Uint64("object", id), zap.Error(err))
	}
	if o.refs.Zero() {
		m.recycle(o)
	}
	return nil
}

// Lookup returns the object for id
func (m *Manager) Lookup(id uint64) (*AudioObject, bool) {
	o, ok := m.objects[id]
	return o, ok
}

// SetPosition moves an object
func (m *Manager) SetPosition(id uint64, pos vmath.Vec3F) error {
	o, err := m.reserved(id)
	if err != nil {
		return err
	}
	o.SetPosition(pos)
	return nil
}

// SetCalcType changes an object's calculation type
func (m *Manager) SetCalcType(id uint64, ct propagation.CalcType) error {
	o, err := m.reserved(id)
	if err != nil {
		return err
	}
	o.proc.SetCalcType(ct)
	return nil
}

// ResetObstructionOcclusion makes the object's next batch snap, e.g. after a teleport
func (m *Manager) ResetObstructionOcclusion(id uint64) error {
	o, err := m.reserved(id)
	if err != nil {
		return err
	}
	o.proc.ResetOnNextBatch()
	return nil
}

// Propagation returns the current values of an object
func (m *Manager) Propagation(id uint64) (obstruction, occlusion float64, err error) {
	o, err := m.reserved(id)
	if err != nil {
		return 0, 0, err
	}
	obstruction, occlusion = o.Propagation()
	return obstruction, occlusion, nil
}

func (m *Manager) reserved(id uint64) (*AudioObject, error) {
	o, ok := m.objects[id]
	if !ok || o.released {
		return nil, fmt.Errorf("object %d: %w", id, ErrUnknownObject)
	}
	return o, nil
}

// Active returns the number of objects not yet recycled
func (m *Manager) Active() int { return len(m.objects) }

// Pooled returns the number of idle objects kept for reuse
func (m *Manager) Pooled() int { return m.pool.Len() }

// Update runs one audio tick
// Results are routed first, then every reserved object advances and may
// issue a new batch, and its values are published to the sink
func (m *Manager) Update(elapsedMs float64, listener vmath.Vec3F) {
	if m.results != nil {
		for _, res := range m.results.Consume() {
			m.ReportObstructionRay(res)
		}
	}

	now := m.now()
	for _, o := range m.active {
		if o.released {
			continue
		}
		o.proc.Update(elapsedMs)

		if o.proc.CanRun() {
			if need := o.proc.RaysNeeded(listener); need > 0 && m.limiter != nil && !m.limiter.AllowN(now, need) {
				m.batchesThrottled.Add(1)
			} else {
				o.proc.Run(listener)
			}
		}

		if m.sink != nil {
			m.sink.SetObstructionOcclusion(o.id, o.proc.GetObstruction(), o.proc.GetOcclusion())
		}
	}
}

// ReportObstructionRay routes one result to its object
// Late results for recycled ids are discarded silently; ids never issued
// and malformed results are logged and dropped
func (m *Manager) ReportObstructionRay(res raycast.Result) {
	o, ok := m.objects[res.Tag.Object]
	if !ok {
		if m.recycledID(res.Tag.Object) {
			return
		}
		m.resultsDropped.Add(1)
		m.log.Warn("ray result for unknown object",
			zap.Uint64("object", res.Tag.Object),
			zap.Int("ray", res.Tag.Ray))
		return
	}

	if err := o.proc.ReportRayResult(res); err != nil {
		m.resultsDropped.Add(1)
	}
	if o.refs.Zero() {
		m.recycle(o)
	}
}

// recycledID reports whether id was handed out before and is no longer active
// Ids are never reused, so any result for it belongs to an abandoned batch
func (m *Manager) recycledID(id uint64) bool {
	return id != 0 && id <= m.nextID
}

// ReleasePendingRays abandons every in-flight batch
// Queued requests are cancelled when the gateway supports it
func (m *Manager) ReleasePendingRays() {
	canceler, _ := m.gateway.(raycast.Canceler)

	var done []*AudioObject
	for _, o := range m.active {
		if o.proc.ReleasePendingRays() && canceler != nil {
			canceler.CancelObject(o.id)
		}
		if o.refs.Zero() {
			done = append(done, o)
		}
	}
	for _, o := range done {
		m.recycle(o)
	}
}

// recycle returns o to the pool; the id becomes unknown
func (m *Manager) recycle(o *AudioObject) {
	delete(m.objects, o.id)
	for i, a := range m.active {
		if a == o {
			last := len(m.active) - 1
			m.active[i] = m.active[last]
			m.active[last] = nil
			m.active = m.active[:last]
			break
		}
	}

	if f, ok := m.sink.(audio.Forgetter); ok {
		f.Forget(o.id)
	}

	o.proc.Reset()
	o.released = false
	if m.pool.Len() < m.poolSize {
		m.pool.PushBack(o)
	}
	m.objectsActive.Store(int64(len(m.objects)))
}
