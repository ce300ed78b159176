// Package status collects lock-free counters for ray traffic and object churn.
package status

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Stat keys published by the processor and the object manager
const (
	RaysAsync        = "rays.async"
	RaysSync         = "rays.sync"
	BatchesIssued    = "batches.issued"
	BatchesCompleted = "batches.completed"
	BatchesReleased  = "batches.released"
	BatchesThrottled = "batches.throttled"
	ResultsDropped   = "results.dropped"
	ObjectsActive    = "objects.active"
)

// stat is one named slot; only the field matching its kind is used
type stat struct {
	name    string
	counter atomic.Int64
	gauge   Float64
	isGauge bool
}

// Registry hands out stable pointers to named counters and gauges
// Resolution locks; hot paths keep the pointer and touch only the atomic
// A name is either a counter or a gauge, decided by its first lookup
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*stat
	sorted []*stat // By name, kept on insert for Snapshot
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*stat)}
}

// Counter returns the counter for key
func (r *Registry) Counter(key string) *atomic.Int64 {
	return &r.resolve(key, false).counter
}

// Gauge returns the float gauge for key
func (r *Registry) Gauge(key string) *Float64 {
	return &r.resolve(key, true).gauge
}

func (r *Registry) resolve(key string, gauge bool) *stat {
	r.mu.RLock()
	s, ok := r.byName[key]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.byName[key]; ok {
		return s
	}

	s = &stat{name: key, isGauge: gauge}
	r.byName[key] = s
	i := sort.Search(len(r.sorted), func(i int) bool { return r.sorted[i].name >= key })
	r.sorted = append(r.sorted, nil)
	copy(r.sorted[i+1:], r.sorted[i:])
	r.sorted[i] = s
	return s
}

// Snapshot copies every counter value
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.sorted))
	for _, s := range r.sorted {
		if !s.isGauge {
			out[s.name] = s.counter.Load()
		}
	}
	return out
}

// Names returns every registered key in order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.sorted))
	for i, s := range r.sorted {
		names[i] = s.name
	}
	return names
}

// Len returns the number of registered stats
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sorted)
}
