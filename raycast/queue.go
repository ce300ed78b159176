package raycast

import (
	"sync/atomic"

	"github.com/lixenwraith/soundprop/parameter"
)

// ResultQueue is a lock-free MPSC ring buffer of ray results
// Thread-Safety:
//   - Push: lock-free CAS, multiple physics workers
//   - Consume: single consumer (audio thread)
//   - Published flags prevent reading partial writes
//
// Overflow: Push refuses when full; results are never overwritten
type ResultQueue struct {
	results   [parameter.RayResultQueueSize]Result
	published [parameter.RayResultQueueSize]atomic.Bool
	head      atomic.Uint64 // Read index
	tail      atomic.Uint64 // Write index
}

// NewResultQueue creates an empty queue
func NewResultQueue() *ResultQueue {
	return &ResultQueue{}
}

// Push appends res; returns false when the ring is full
func (q *ResultQueue) Push(res Result) bool {
	for {
		currentTail := q.tail.Load()
		if currentTail-q.head.Load() >= parameter.RayResultQueueSize {
			return false
		}

		if q.tail.CompareAndSwap(currentTail, currentTail+1) {
			idx := currentTail & parameter.RayResultBufferMask
			q.results[idx] = res
			q.published[idx].Store(true) // MUST be after write
			return true
		}
	}
}

// Consume returns all published results in FIFO order
// Stops at the first slot whose writer has not finished
func (q *ResultQueue) Consume() []Result {
	currentHead := q.head.Load()
	currentTail := q.tail.Load()
	if currentTail == currentHead {
		return nil
	}

	available := currentTail - currentHead
	out := make([]Result, 0, available)
	for i := uint64(0); i < available; i++ {
		idx := (currentHead + i) & parameter.RayResultBufferMask
		if !q.published[idx].Load() {
			break
		}
		out = append(out, q.results[idx])
		q.results[idx] = Result{}
		q.published[idx].Store(false)
	}

	// Single consumer: no other writer of head
	q.head.Store(currentHead + uint64(len(out)))
	if len(out) == 0 {
		return nil
	}
	return out
}

// Len returns the approximate number of unconsumed results
func (q *ResultQueue) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail <= head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the ring capacity
func (q *ResultQueue) Cap() int {
	return parameter.RayResultQueueSize
}
