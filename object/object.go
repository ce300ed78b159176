// Package object owns the audio objects that carry propagation state and the
// Manager that reserves, updates and recycles them on the audio goroutine.
package object

import (
	"github.com/lixenwraith/soundprop/propagation"
	"github.com/lixenwraith/soundprop/vmath"
)

// AudioObject is a positioned sound emitter with its propagation processor
// The reference count holds one entry for the reserving caller and one per
// in-flight ray batch
type AudioObject struct {
	id       uint64
	position vmath.Vec3F
	refs     propagation.RefCount
	proc     *propagation.Processor
	released bool // Caller gave up the id; waiting for in-flight batches
}

// ID returns the current object id
func (o *AudioObject) ID() uint64 { return o.id }

// Position returns the world position
func (o *AudioObject) Position() vmath.Vec3F { return o.position }

// SetPosition moves the object; read on the next Run
func (o *AudioObject) SetPosition(pos vmath.Vec3F) { o.position = pos }

// Processor exposes the propagation processor
func (o *AudioObject) Processor() *propagation.Processor { return o.proc }

// RefCount returns the current reference count
func (o *AudioObject) RefCount() int64 { return o.refs.Load() }

// CanRunPropagation reports whether the processor may issue rays
func (o *AudioObject) CanRunPropagation() bool {
	return !o.released && o.proc.CanRun()
}

// Propagation returns the current smoothed obstruction and occlusion
func (o *AudioObject) Propagation() (obstruction, occlusion float64) {
	return o.proc.GetObstruction(), o.proc.GetOcclusion()
}
