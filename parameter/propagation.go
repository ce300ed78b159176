package parameter

// Ray Slots
const (
	// MaxObstructionRays is the slot count per object: 1 direct + 4 peripheral
	MaxObstructionRays = 5

	// MaxObstructionRayHits caps the hit list stored per slot
	MaxObstructionRayHits = 5

	// RayHitAvgAlpha smooths the per-slot average hit count
	RayHitAvgAlpha = 0.05
)

// Peripheral Ray Geometry
// Spread is interpolated between the Min and Max values as the listener
// distance moves from OffsetNearDistance to OffsetFarDistance
const (
	PeripheralRayOffsetMin = 0.3
	PeripheralRayOffsetMax = 1.0

	RandomOffsetMin = 0.05
	RandomOffsetMax = 0.5

	OffsetNearDistance = 1.0
	OffsetFarDistance  = 20.0

	// DirectRayJitterScale halves the jitter on slot 0
	DirectRayJitterScale = 0.5
)

// Propagation Defaults
const (
	MinObstructionDistance     = 0.3
	MaxObstructionDistance     = 500.0
	FullObstructionMaxDistance = 5.0
	RaycastCacheTimeMs         = 0.0
	SmoothingRate              = 0.2
	SmoothingEpsilon           = 0.0001

	// ListenerDistanceEpsilon treats the source as colocated with the listener
	ListenerDistanceEpsilon = 1e-6
)

// Ray Result Queue
const (
	// RayResultQueueSize must be a power of 2
	RayResultQueueSize  = 1024
	RayResultBufferMask = RayResultQueueSize - 1
)

// Physics Backend
const (
	BackendWorkers    = 2
	BackendMaxPending = RayResultQueueSize
)

// Object Pool
const (
	ObjectPoolSize = 256
)
