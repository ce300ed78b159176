package propagation

import (
	"errors"
	"sync/atomic"
)

// ErrRefUnderflow is returned by Dec at zero
var ErrRefUnderflow = errors.New("reference count underflow")

// RefCount is the in-flight batch count shared by an object and its processor
// Read from any goroutine; written by the audio thread
type RefCount struct {
	n atomic.Int64
}

// Inc adds one and returns the new value
func (r *RefCount) Inc() int64 {
	return r.n.Add(1)
}

// Dec subtracts one; at zero it returns ErrRefUnderflow and leaves the value
func (r *RefCount) Dec() (int64, error) {
	for {
		cur := r.n.Load()
		if cur <= 0 {
			return cur, ErrRefUnderflow
		}
		if r.n.CompareAndSwap(cur, cur-1) {
			return cur - 1, nil
		}
	}
}

// Load returns the current value
func (r *RefCount) Load() int64 {
	return r.n.Load()
}

// Zero reports whether no reference is held
func (r *RefCount) Zero() bool {
	return r.n.Load() == 0
}
