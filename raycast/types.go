// Package raycast is the boundary between audio propagation and the physics
// system: request and result types, the Gateway contract, a lock-free result
// queue, static box geometry and an asynchronous worker backend.
package raycast

import "github.com/lixenwraith/soundprop/vmath"

// Request describes one ray; Direction is expected to be unit length
type Request struct {
	Origin      vmath.Vec3F
	Direction   vmath.Vec3F
	MaxDistance float64
	MaxResults  int
}

// Tag routes a result back to the issuing slot
// Batch distinguishes results of a superseded batch
type Tag struct {
	Object uint64
	Ray    int
	Batch  uint64
}

// Hit is one surface crossing along a ray
// Weight in (0,1] scales its obstruction contribution; 1 is fully opaque
type Hit struct {
	Distance float64
	Weight   float64
}

// Result is a completed asynchronous ray
type Result struct {
	Tag  Tag
	Hits []Hit
}
