package propagation

import "math"

// SmoothFloat is a first-order IIR follower
// current moves toward target by a fraction of the gap per Update and snaps
// once inside epsilon
type SmoothFloat struct {
	current float64
	target  float64
	rate    float64
	epsilon float64
}

// NewSmoothFloat creates a follower at rest at zero
func NewSmoothFloat(rate, epsilon float64) SmoothFloat {
	s := SmoothFloat{}
	s.Tune(rate, epsilon)
	return s
}

// Tune replaces rate and epsilon; rate is clamped to (0,1]
func (s *SmoothFloat) Tune(rate, epsilon float64) {
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	s.rate = rate
	s.epsilon = math.Abs(epsilon)
}

// SetNewTarget sets the target; reset also jumps current to it
func (s *SmoothFloat) SetNewTarget(value float64, reset bool) {
	s.target = value
	if reset {
		s.current = value
	}
}

// Update advances current by deltaFactor of the remaining gap
// deltaFactor is clamped to [0,1] so current never overshoots
func (s *SmoothFloat) Update(deltaFactor float64) {
	if deltaFactor < 0 {
		deltaFactor = 0
	} else if deltaFactor > 1 {
		deltaFactor = 1
	}

	s.current += (s.target - s.current) * deltaFactor
	if math.Abs(s.target-s.current) < s.epsilon {
		s.current = s.target
	}
}

// Step is Update at the configured rate
func (s *SmoothFloat) Step() {
	s.Update(s.rate)
}

// Current returns the smoothed value
func (s *SmoothFloat) Current() float64 { return s.current }

// Target returns the value being approached
func (s *SmoothFloat) Target() float64 { return s.target }

// Settled reports current == target
func (s *SmoothFloat) Settled() bool { return s.current == s.target }

// Reset zeroes current and target
func (s *SmoothFloat) Reset() {
	s.current = 0
	s.target = 0
}
