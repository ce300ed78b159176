package propagation

import (
	"sort"

	"github.com/lixenwraith/soundprop/parameter"
	"github.com/lixenwraith/soundprop/raycast"
	"github.com/lixenwraith/soundprop/vmath"
)

// RayInfo is the state of one ray slot
// Owned and mutated by a single processor
type RayInfo struct {
	Index int

	// Geometry of the last issue
	Origin            vmath.Vec3F
	Direction         vmath.Vec3F
	Offset            vmath.Vec3F
	RequestedDistance float64

	Pending          bool
	Cached           bool
	CacheRemainingMs float64

	Contribution float64
	NumHits      int
	AvgHits      float64

	hits  [parameter.MaxObstructionRayHits]raycast.Hit
	nHits int
}

// Hits returns the stored hits, nearest first
func (r *RayInfo) Hits() []raycast.Hit {
	return r.hits[:r.nHits]
}

// SetHits replaces the hit list
// Hits with non-positive distance or weight are discarded, weights above 1 are
// clamped, the rest sorted by distance and cut at maxHits
// Returns the number of valid hits dropped by the cap
func (r *RayInfo) SetHits(hits []raycast.Hit, maxHits int, reset bool) int {
	if maxHits <= 0 || maxHits > len(r.hits) {
		maxHits = len(r.hits)
	}

	valid := make([]raycast.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Distance <= 0 || h.Weight <= 0 {
			continue
		}
		if h.Weight > 1 {
			h.Weight = 1
		}
		valid = append(valid, h)
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Distance < valid[j].Distance })

	dropped := 0
	if len(valid) > maxHits {
		dropped = len(valid) - maxHits
		valid = valid[:maxHits]
	}

	r.nHits = copy(r.hits[:], valid)
	r.NumHits = r.nHits
	if reset {
		r.AvgHits = float64(r.NumHits)
	} else {
		r.AvgHits += (float64(r.NumHits) - r.AvgHits) * parameter.RayHitAvgAlpha
	}

	r.UpdateContribution()
	return dropped
}

// ClearHits empties the hit list without touching the averages
func (r *RayInfo) ClearHits() {
	r.nHits = 0
	r.NumHits = 0
	r.Contribution = 0
}

// UpdateContribution recomputes Contribution as sum of 2^-(k+1) * weight_k
// Unit weights give 0.5, 0.75, 0.875 for one, two, three hits
func (r *RayInfo) UpdateContribution() {
	sum := 0.0
	share := 0.5
	for i := 0; i < r.nHits; i++ {
		sum += share * vmath.Clamp(r.hits[i].Weight, 0, 1)
		share *= 0.5
	}
	r.Contribution = sum
}

// NearestHitDistance returns the first hit distance, or RequestedDistance with no hits
func (r *RayInfo) NearestHitDistance() float64 {
	if r.nHits == 0 {
		return r.RequestedDistance
	}
	return r.hits[0].Distance
}

// DistanceScaledContribution weights Contribution by how close the nearest
// hit is to the ray origin relative to RequestedDistance
func (r *RayInfo) DistanceScaledContribution() float64 {
	if r.nHits == 0 || r.RequestedDistance <= 0 {
		return 0
	}
	limit := r.RequestedDistance
	near := vmath.Clamp(r.hits[0].Distance, 0, limit)
	return r.Contribution * (1 - near/limit)
}

// Tick advances the cache timer
func (r *RayInfo) Tick(elapsedMs float64) {
	if !r.Cached {
		return
	}
	r.CacheRemainingMs -= elapsedMs
	if r.CacheRemainingMs <= 0 {
		r.CacheRemainingMs = 0
		r.Cached = false
	}
}

// Reset clears hits, pending and cache state
func (r *RayInfo) Reset() {
	idx := r.Index
	*r = RayInfo{Index: idx}
}
