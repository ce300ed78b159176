package raycast

import (
	"math"
	"sort"
	"sync"

	"github.com/lixenwraith/soundprop/vmath"
)

const parallelEpsilon = 1e-12

// Box is an axis-aligned obstacle
// Weight in (0,1] is the obstruction of one crossing; 0 means opaque (1)
type Box struct {
	Min    vmath.Vec3F
	Max    vmath.Vec3F
	Weight float64
}

// World is static box geometry queried by physics workers
// Reads take a shared lock; SetBoxes swaps the whole set
type World struct {
	mu    sync.RWMutex
	boxes []Box
}

// NewWorld creates a world with a copy of boxes
func NewWorld(boxes ...Box) *World {
	w := &World{}
	w.SetBoxes(boxes)
	return w
}

// SetBoxes replaces the geometry
func (w *World) SetBoxes(boxes []Box) {
	cp := make([]Box, len(boxes))
	for i, b := range boxes {
		b.Min, b.Max = minMax(b.Min, b.Max)
		if b.Weight <= 0 || b.Weight > 1 {
			b.Weight = 1
		}
		cp[i] = b
	}

	w.mu.Lock()
	w.boxes = cp
	w.mu.Unlock()
}

// Boxes returns a copy of the geometry
func (w *World) Boxes() []Box {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Box(nil), w.boxes...)
}

// Intersect returns one hit per crossed box, nearest first
// Entry surface is reported; an origin inside a box reports its exit surface
// Hits beyond MaxDistance are dropped, the list is capped at MaxResults when positive
func (w *World) Intersect(req Request) []Hit {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var hits []Hit
	for i := range w.boxes {
		b := &w.boxes[i]
		t, ok := rayBox(req.Origin, req.Direction, b.Min, b.Max)
		if !ok || t <= 0 {
			continue
		}
		if req.MaxDistance > 0 && t > req.MaxDistance {
			continue
		}
		hits = append(hits, Hit{Distance: t, Weight: b.Weight})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if req.MaxResults > 0 && len(hits) > req.MaxResults {
		hits = hits[:req.MaxResults]
	}
	return hits
}

// rayBox is the slab test; returns the first non-negative crossing parameter
func rayBox(o, d, minP, maxP vmath.Vec3F) (float64, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)

	axes := [3][4]float64{
		{o.X, d.X, minP.X, maxP.X},
		{o.Y, d.Y, minP.Y, maxP.Y},
		{o.Z, d.Z, minP.Z, maxP.Z},
	}
	for _, a := range axes {
		origin, dir, lo, hi := a[0], a[1], a[2], a[3]
		if math.Abs(dir) < parallelEpsilon {
			if origin < lo || origin > hi {
				return 0, false
			}
			continue
		}
		inv := 1 / dir
		t1 := (lo - origin) * inv
		t2 := (hi - origin) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
	}

	if tmax < 0 || tmin > tmax {
		return 0, false
	}
	if tmin > 0 {
		return tmin, true
	}
	return tmax, true
}

func minMax(a, b vmath.Vec3F) (vmath.Vec3F, vmath.Vec3F) {
	return vmath.Vec3F{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)},
		vmath.Vec3F{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
