package status

import (
	"math"
	"sync/atomic"
)

// Float64 is an atomic float64 with the sync/atomic method set
// The zero value holds 0.0
type Float64 struct {
	v atomic.Uint64
}

func (f *Float64) Load() float64 { return math.Float64frombits(f.v.Load()) }

func (f *Float64) Store(val float64) { f.v.Store(math.Float64bits(val)) }

func (f *Float64) Swap(val float64) (old float64) {
	return math.Float64frombits(f.v.Swap(math.Float64bits(val)))
}

// CompareAndSwap compares bit patterns, so NaN never matches itself
func (f *Float64) CompareAndSwap(old, val float64) bool {
	return f.v.CompareAndSwap(math.Float64bits(old), math.Float64bits(val))
}

// Add returns the new value
func (f *Float64) Add(delta float64) float64 {
	for {
		old := f.Load()
		if f.CompareAndSwap(old, old+delta) {
			return old + delta
		}
	}
}
