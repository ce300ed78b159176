// Package audio applies per-object obstruction and occlusion to emitter
// streams and plays them through the beep speaker.
package audio

import (
	"sync"

	"github.com/lixenwraith/soundprop/status"
)

// Sink receives smoothed propagation values once per audio tick
type Sink interface {
	SetObstructionOcclusion(id uint64, obstruction, occlusion float64)
}

// Forgetter is implemented by sinks that hold per-object state
type Forgetter interface {
	Forget(id uint64)
}

// Values holds the latest propagation pair of one object
// Written by the audio goroutine, read by the speaker callback
type Values struct {
	Obstruction status.Float64
	Occlusion   status.Float64
}

// PropagationTable is a Sink keyed by object id
type PropagationTable struct {
	mu     sync.RWMutex
	values map[uint64]*Values
}

// NewPropagationTable creates an empty table
func NewPropagationTable() *PropagationTable {
	return &PropagationTable{values: make(map[uint64]*Values)}
}

// SetObstructionOcclusion implements Sink
func (t *PropagationTable) SetObstructionOcclusion(id uint64, obstruction, occlusion float64) {
	v := t.Values(id)
	v.Obstruction.Store(obstruction)
	v.Occlusion.Store(occlusion)
}

// Values returns the entry for id, creating it on first use
// The pointer stays valid until Forget
func (t *PropagationTable) Values(id uint64) *Values {
	t.mu.RLock()
	v, ok := t.values[id]
	t.mu.RUnlock()
	if ok {
		return v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok = t.values[id]; ok {
		return v
	}
	v = &Values{}
	t.values[id] = v
	return v
}

// Lookup returns the current pair for id
func (t *PropagationTable) Lookup(id uint64) (obstruction, occlusion float64, ok bool) {
	t.mu.RLock()
	v, ok := t.values[id]
	t.mu.RUnlock()
	if !ok {
		return 0, 0, false
	}
	return v.Obstruction.Load(), v.Occlusion.Load(), true
}

// Forget implements Forgetter
func (t *PropagationTable) Forget(id uint64) {
	t.mu.Lock()
	delete(t.values, id)
	t.mu.Unlock()
}

// Len returns the number of tracked objects
func (t *PropagationTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}
