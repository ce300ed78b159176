package audio

import (
	"github.com/gopxl/beep"

	"github.com/lixenwraith/soundprop/config"
	"github.com/lixenwraith/soundprop/parameter"
	"github.com/lixenwraith/soundprop/vmath"
)

// Depth scales how strongly propagation values shape the signal
type Depth struct {
	Obstruction float64
	Occlusion   float64
	LowPass     float64
}

// DepthFromConfig reads the depth settings of cfg
func DepthFromConfig(cfg config.Audio) Depth {
	return Depth{
		Obstruction: cfg.ObstructionDepth,
		Occlusion:   cfg.OcclusionDepth,
		LowPass:     cfg.LowPassDepth,
	}
}

// Gain returns the linear gain for a propagation pair
func Gain(d Depth, obstruction, occlusion float64) float64 {
	obstruction = vmath.Clamp(obstruction, 0, 1)
	occlusion = vmath.Clamp(occlusion, 0, 1)
	g := (1 - d.Obstruction*obstruction) * (1 - d.Occlusion*occlusion)
	return vmath.Clamp(g, 0, 1)
}

// LowPassCoefficient returns the one-pole smoothing factor, 1 = open
func LowPassCoefficient(d Depth, occlusion float64) float64 {
	occlusion = vmath.Clamp(occlusion, 0, 1)
	return vmath.Clamp(1-d.LowPass*occlusion, parameter.MinLowPass, 1)
}

// Occluder attenuates and muffles a stream by an object's propagation values
// Values are sampled once per buffer
type Occluder struct {
	streamer beep.Streamer
	values   *Values
	depth    Depth
	state    [2]float64 // Filter memory per channel
}

// NewOccluder wraps s; values is usually from PropagationTable.Values
func NewOccluder(s beep.Streamer, values *Values, depth Depth) *Occluder {
	if values == nil {
		values = &Values{}
	}
	return &Occluder{streamer: s, values: values, depth: depth}
}

func (o *Occluder) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = o.streamer.Stream(samples)

	obstruction := o.values.Obstruction.Load()
	occlusion := o.values.Occlusion.Load()
	gain := Gain(o.depth, obstruction, occlusion)
	alpha := LowPassCoefficient(o.depth, occlusion)

	for i := 0; i < n; i++ {
		for c := 0; c < 2; c++ {
			o.state[c] += alpha * (samples[i][c] - o.state[c])
			samples[i][c] = o.state[c] * gain
		}
	}
	return n, ok
}

func (o *Occluder) Err() error { return o.streamer.Err() }
