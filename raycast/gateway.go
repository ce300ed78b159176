package raycast

import "errors"

var (
	// ErrQueueFull is returned when in-flight plus undrained results reach capacity
	ErrQueueFull = errors.New("raycast queue full")
	// ErrBackendStopped is returned for submissions outside Start/Stop
	ErrBackendStopped = errors.New("raycast backend stopped")
)

// Gateway accepts rays from the audio thread
// CastRayAsync must not block; its result arrives later through a ResultSource
// CastRaySync answers inline and is only used in the degraded sync mode
type Gateway interface {
	CastRayAsync(req Request, tag Tag) error
	CastRaySync(req Request) ([]Hit, error)
}

// ResultSource yields completed results; drained once per audio tick
type ResultSource interface {
	Consume() []Result
}

// Canceler drops queued, not yet executed requests of one object
type Canceler interface {
	CancelObject(id uint64) int
}
