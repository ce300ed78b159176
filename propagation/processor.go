// Package propagation computes per-object obstruction and occlusion from
// batches of rays cast between the listener and the sound source.
//
// A Processor is driven from a single audio goroutine. Ray results arrive
// through ReportRayResult after the audio goroutine drains them from the
// physics backend; no method is safe for concurrent use except reading the
// shared RefCount.
package propagation

import (
	"errors"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lixenwraith/soundprop/config"
	"github.com/lixenwraith/soundprop/parameter"
	"github.com/lixenwraith/soundprop/raycast"
	"github.com/lixenwraith/soundprop/status"
	"github.com/lixenwraith/soundprop/vmath"
)

var (
	// ErrRayIndexOutOfRange marks a result for a slot outside the current batch
	ErrRayIndexOutOfRange = errors.New("ray index out of range")
	// ErrUnexpectedResult marks a result for a slot that is not pending
	ErrUnexpectedResult = errors.New("unexpected ray result")
)

// Processor owns the ray slots and smoothed outputs of one audio object
type Processor struct {
	id       uint64
	position *vmath.Vec3F
	refs     *RefCount
	gateway  raycast.Gateway
	cfg      *config.Propagation
	base     *zap.Logger
	log      *zap.Logger
	rng      *vmath.FastRand

	rays        [parameter.MaxObstructionRays]RayInfo
	obstruction SmoothFloat
	occlusion   SmoothFloat

	calcType     CalcType
	totalRays    int     // Slots used by the current batch
	remaining    int     // Pending slots
	batch        uint64  // Generation carried in raycast.Tag
	released     bool    // Late results of a released batch are ignored
	resetNext    bool    // Next aggregate snaps without correction
	listenerDist float64 // Distance at last Run

	// Slot 0 state at the previous aggregate for the volatility correction
	prevDirectHits    int
	prevDirectContrib float64

	raysAsync        *atomic.Int64
	raysSync         *atomic.Int64
	batchesIssued    *atomic.Int64
	batchesCompleted *atomic.Int64
	batchesReleased  *atomic.Int64
}

// Option configures a Processor
type Option func(*Processor)

// WithLogger sets the logger; the object id is attached
func WithLogger(log *zap.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithRegistry publishes ray and batch counters to reg
func WithRegistry(reg *status.Registry) Option {
	return func(p *Processor) {
		if reg == nil {
			return
		}
		p.raysAsync = reg.Counter(status.RaysAsync)
		p.raysSync = reg.Counter(status.RaysSync)
		p.batchesIssued = reg.Counter(status.BatchesIssued)
		p.batchesCompleted = reg.Counter(status.BatchesCompleted)
		p.batchesReleased = reg.Counter(status.BatchesReleased)
	}
}

// WithSeed fixes the jitter sequence
func WithSeed(seed uint64) Option {
	return func(p *Processor) {
		p.rng = vmath.NewFastRand(seed)
	}
}

// NewProcessor creates an idle processor
// position is read on every Run; cfg is owned by the caller and may change between ticks
func NewProcessor(id uint64, position *vmath.Vec3F, refs *RefCount, gw raycast.Gateway, cfg *config.Propagation, opts ...Option) *Processor {
	if cfg == nil {
		def := config.DefaultPropagation()
		cfg = &def
	}
	if position == nil {
		position = &vmath.Vec3F{}
	}
	if refs == nil {
		refs = &RefCount{}
	}

	p := &Processor{
		id:          id,
		position:    position,
		refs:        refs,
		gateway:     gw,
		cfg:         cfg,
		log:         zap.NewNop(),
		rng:         vmath.NewFastRand(id),
		obstruction: NewSmoothFloat(cfg.SmoothingRate, cfg.Epsilon),
		occlusion:   NewSmoothFloat(cfg.SmoothingRate, cfg.Epsilon),
	}
	for i := range p.rays {
		p.rays[i].Index = i
	}
	for _, opt := range opts {
		opt(p)
	}
	p.base = p.log
	p.log = p.base.With(zap.Uint64("object", id))
	return p
}

// ID returns the owning object id
func (p *Processor) ID() uint64 { return p.id }

// SetID rebinds an idle processor to a new object id
// Results tagged with the old id no longer route here
func (p *Processor) SetID(id uint64) {
	p.id = id
	p.log = p.base.With(zap.Uint64("object", id))
}

// SetConfig points the processor at a new config section
func (p *Processor) SetConfig(cfg *config.Propagation) {
	if cfg != nil {
		p.cfg = cfg
	}
}

// SetCalcType changes the slot count used from the next Run
// Ignore zeroes both outputs
func (p *Processor) SetCalcType(ct CalcType) {
	p.calcType = ct
	if ct == CalcIgnore {
		p.obstruction.Reset()
		p.occlusion.Reset()
	}
}

// CalcType returns the active calculation type
func (p *Processor) CalcType() CalcType { return p.calcType }

// CanRun reports whether Run may issue rays
func (p *Processor) CanRun() bool {
	return p.cfg.RaycastsEnabled && p.gateway != nil && p.calcType.NumRays() > 0
}

// IsBatchInFlight reports outstanding asynchronous rays
func (p *Processor) IsBatchInFlight() bool {
	return p.remaining > 0
}

// GetObstruction returns the smoothed obstruction
func (p *Processor) GetObstruction() float64 { return p.obstruction.Current() }

// GetOcclusion returns the smoothed occlusion
func (p *Processor) GetOcclusion() float64 { return p.occlusion.Current() }

// Targets returns the obstruction and occlusion targets
func (p *Processor) Targets() (obstruction, occlusion float64) {
	return p.obstruction.Target(), p.occlusion.Target()
}

// ListenerDistance returns the distance measured by the last Run
func (p *Processor) ListenerDistance() float64 { return p.listenerDist }

// Rays returns a copy of the slots used by the current calc type
func (p *Processor) Rays() []RayInfo {
	n := p.calcType.NumRays()
	if p.totalRays > n {
		n = p.totalRays
	}
	out := make([]RayInfo, n)
	copy(out, p.rays[:n])
	return out
}

// ResetOnNextBatch makes the next aggregate jump straight to its value
func (p *Processor) ResetOnNextBatch() {
	p.resetNext = true
}

// Update advances cache timers and steps both outputs once
func (p *Processor) Update(elapsedMs float64) {
	p.obstruction.Tune(p.cfg.SmoothingRate, p.cfg.Epsilon)
	p.occlusion.Tune(p.cfg.SmoothingRate, p.cfg.Epsilon)
	p.obstruction.Step()
	p.occlusion.Step()

	for i := range p.rays {
		p.rays[i].Tick(elapsedMs)
	}
}

// RaysNeeded returns how many rays Run would issue toward listener now
// Out of range yields 0 since Run issues nothing there
func (p *Processor) RaysNeeded(listener vmath.Vec3F) int {
	if !p.CanRun() || p.remaining > 0 {
		return 0
	}
	if !p.inRange(vmath.V3FDist(*p.position, listener)) {
		return 0
	}
	n := 0
	for i := 0; i < p.calcType.NumRays(); i++ {
		if !p.rays[i].Pending && !p.rays[i].Cached {
			n++
		}
	}
	return n
}

// Run issues a new batch toward listener when idle and in range
// Out of range zeroes both outputs; returns the number of rays issued
func (p *Processor) Run(listener vmath.Vec3F) int {
	if !p.CanRun() || p.remaining > 0 {
		return 0
	}

	diff := vmath.V3FSub(*p.position, listener)
	dist := vmath.V3FMag(diff)
	p.listenerDist = dist

	if !p.inRange(dist) {
		p.obstruction.Reset()
		p.occlusion.Reset()
		return 0
	}

	p.totalRays = p.calcType.NumRays()

	t := vmath.Clamp((dist-parameter.OffsetNearDistance)/(parameter.OffsetFarDistance-parameter.OffsetNearDistance), 0, 1)
	offsetScale := vmath.Lerp(parameter.PeripheralRayOffsetMin, parameter.PeripheralRayOffsetMax, t)
	jitterScale := vmath.Lerp(parameter.RandomOffsetMin, parameter.RandomOffsetMax, t)

	dir := vmath.V3FNormalize(diff)
	side := vmath.V3FNormalize(vmath.V3FCross(dir, vmath.Up))
	if vmath.V3FIsZero(side) {
		// Source straight above or below
		side = vmath.Vec3F{X: 1}
	}

	bases := [parameter.MaxObstructionRays]vmath.Vec3F{
		listener,
		vmath.V3FSub(listener, vmath.V3FScale(vmath.Up, offsetScale)),
		vmath.V3FAdd(listener, vmath.V3FScale(vmath.Up, offsetScale)),
		vmath.V3FSub(listener, vmath.V3FScale(side, offsetScale)),
		vmath.V3FAdd(listener, vmath.V3FScale(side, offsetScale)),
	}

	sync := p.cfg.SyncRaycasts
	if !sync {
		p.batch++
	}

	issued := 0
	for i := 0; i < p.totalRays; i++ {
		r := &p.rays[i]
		if r.Pending || r.Cached {
			continue
		}

		scale := jitterScale
		if i == 0 {
			scale *= parameter.DirectRayJitterScale
		}
		offset := vmath.V3FScale(vmath.V3FAdd(
			vmath.V3FScale(vmath.Up, p.rng.Symmetric()),
			vmath.V3FScale(side, p.rng.Symmetric()),
		), scale)

		r.Origin = vmath.V3FAdd(bases[i], offset)
		r.Direction = dir
		r.Offset = offset
		r.RequestedDistance = dist

		req := raycast.Request{
			Origin:      r.Origin,
			Direction:   dir,
			MaxDistance: dist,
			MaxResults:  parameter.MaxObstructionRayHits,
		}

		if sync {
			hits, err := p.gateway.CastRaySync(req)
			if err != nil {
				p.log.Warn("sync raycast failed", zap.Int("ray", i), zap.Error(err))
				hits = nil
			}
			p.store(r, hits)
			issued++
			inc(p.raysSync, 1)
			continue
		}

		tag := raycast.Tag{Object: p.id, Ray: i, Batch: p.batch}
		if err := p.gateway.CastRayAsync(req, tag); err != nil {
			// Slot counts as no hit for this batch and is retried next Run
			p.log.Warn("async raycast submit failed", zap.Int("ray", i), zap.Error(err))
			r.ClearHits()
			continue
		}
		r.Pending = true
		p.remaining++
		issued++
		inc(p.raysAsync, 1)
	}

	if sync {
		if issued > 0 {
			p.aggregate()
		}
		return issued
	}

	if p.remaining > 0 {
		p.refs.Inc()
		p.released = false
		inc(p.batchesIssued, 1)
	}
	return issued
}

// ReportRayResult stores one asynchronous result
// Results of a released or superseded batch are ignored without error
// The last result of a batch recomputes the outputs and drops the reference
func (p *Processor) ReportRayResult(res raycast.Result) error {
	if p.released || res.Tag.Batch != p.batch {
		return nil
	}

	i := res.Tag.Ray
	if i < 0 || i >= p.totalRays {
		p.log.Warn("ray result dropped", zap.Int("ray", i), zap.Int("total", p.totalRays))
		return ErrRayIndexOutOfRange
	}

	r := &p.rays[i]
	if !r.Pending {
		p.log.Warn("ray result for idle slot dropped", zap.Int("ray", i))
		return ErrUnexpectedResult
	}

	r.Pending = false
	p.store(r, res.Hits)

	p.remaining--
	if p.remaining == 0 {
		p.aggregate()
		p.release()
		inc(p.batchesCompleted, 1)
	}
	return nil
}

// ReleasePendingRays abandons the in-flight batch without recomputing
// Idempotent; returns true when a batch was released
func (p *Processor) ReleasePendingRays() bool {
	if p.remaining == 0 {
		return false
	}

	for i := range p.rays {
		p.rays[i].Pending = false
	}
	p.remaining = 0
	p.released = true
	p.release()
	inc(p.batchesReleased, 1)
	return true
}

// Reset returns the processor to its initial state, keeping calc type and config
func (p *Processor) Reset() {
	p.ReleasePendingRays()

	for i := range p.rays {
		p.rays[i].Reset()
	}
	p.obstruction.Reset()
	p.occlusion.Reset()

	p.totalRays = 0
	p.resetNext = false
	p.listenerDist = 0
	p.prevDirectHits = 0
	p.prevDirectContrib = 0
}

// inRange is the open interval (Min, Max) in which rays are cast
func (p *Processor) inRange(dist float64) bool {
	return p.cfg.MinObstructionDistance < dist && dist < p.cfg.MaxObstructionDistance
}

func (p *Processor) store(r *RayInfo, hits []raycast.Hit) {
	if dropped := r.SetHits(hits, parameter.MaxObstructionRayHits, p.resetNext); dropped > 0 {
		p.log.Warn("ray hits truncated", zap.Int("ray", r.Index), zap.Int("dropped", dropped))
	}

	// A zero window still holds the slot until the next Update
	r.Cached = true
	r.CacheRemainingMs = p.cfg.RaycastCacheTimeMs
}

func (p *Processor) release() {
	if _, err := p.refs.Dec(); err != nil {
		p.log.DPanic("batch reference release", zap.Error(err))
	}
}

// aggregate folds the slots of the finished batch into new output targets
func (p *Processor) aggregate() {
	if p.totalRays == 0 {
		return
	}
	reset := p.resetNext
	p.resetNext = false

	direct := &p.rays[0]
	obstruction := direct.DistanceScaledContribution()

	// Damp sudden hit count swings on the direct ray
	if !reset {
		delta := direct.NumHits - p.prevDirectHits
		correction := 1 / math.Max(1, math.Abs(float64(delta)))
		obstruction = p.prevDirectContrib + correction*(obstruction-p.prevDirectContrib)
	}
	p.prevDirectHits = direct.NumHits
	p.prevDirectContrib = obstruction

	occlusion := 0.0
	if p.listenerDist > parameter.ListenerDistanceEpsilon {
		if p.totalRays > 1 {
			for i := 1; i < p.totalRays; i++ {
				occlusion += p.rays[i].DistanceScaledContribution()
			}
			occlusion /= float64(p.totalRays - 1)
		} else {
			occlusion = obstruction
		}

		obstruction *= math.Min(1, p.cfg.FullObstructionMaxDistance/p.listenerDist)
		obstruction = math.Max(0, obstruction-occlusion)
	} else {
		obstruction = 0
		occlusion = 0
	}

	p.obstruction.SetNewTarget(obstruction, reset)
	p.occlusion.SetNewTarget(occlusion, reset)
}

func inc(c *atomic.Int64, n int64) {
	if c != nil {
		c.Add(n)
	}
}
