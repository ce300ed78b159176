package audio

import (
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// tone is an endless sine emitter
type tone struct {
	freq      float64
	amplitude float64
	phase     float64
	rate      beep.SampleRate
}

// NewTone creates a looping sine at freq Hz
func NewTone(freq, amplitude float64, rate beep.SampleRate) beep.Streamer {
	return &tone{freq: freq, amplitude: amplitude, rate: rate}
}

func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	step := t.freq / float64(t.rate)
	for i := range samples {
		val := t.amplitude * math.Sin(2*math.Pi*t.phase)
		samples[i][0] = val
		samples[i][1] = val

		t.phase += step
		t.phase -= math.Floor(t.phase) // Keep in [0, 1)
	}
	return len(samples), true
}

func (t *tone) Err() error { return nil }

// newVolume wraps s with a linear volume
// math.Log2(0) is -Inf, so 0 maps to silent
func newVolume(s beep.Streamer, vol float64) *effects.Volume {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol), Silent: false}
}
