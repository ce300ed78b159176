package audio

import (
	"math"
	"testing"

	"github.com/gopxl/beep"
)

// TestToneAmplitude verifies peak level and endless streaming
func TestToneAmplitude(t *testing.T) {
	s := NewTone(441, 0.2, beep.SampleRate(44100))
	buf := make([][2]float64, 1000)

	n, ok := s.Stream(buf)
	if n != len(buf) || !ok {
		t.Fatalf("stream = (%d, %v)", n, ok)
	}

	peak := 0.0
	for i := range buf {
		if buf[i][0] != buf[i][1] {
			t.Fatalf("sample %d not mono", i)
		}
		peak = math.Max(peak, math.Abs(buf[i][0]))
	}
	// 100 samples per cycle hit the crest exactly
	if math.Abs(peak-0.2) > 1e-9 {
		t.Errorf("peak = %f, want 0.2", peak)
	}
}

// TestNewVolumeSilentAtZero verifies zero volume does not produce -Inf
func TestNewVolumeSilentAtZero(t *testing.T) {
	v := newVolume(constStreamer{val: 1}, 0)
	if !v.Silent {
		t.Error("zero volume not silent")
	}
	if v := newVolume(constStreamer{val: 1}, 0.5); v.Volume != -1 {
		t.Errorf("volume exponent = %f, want -1", v.Volume)
	}
}
