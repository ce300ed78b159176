package parameter

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate = 44100
	AudioChannels   = 2
)

// Audio Output Timing
const (
	// SpeakerBufferDuration determines latency of the beep speaker
	SpeakerBufferDuration = 100 * time.Millisecond

	// AudioUpdateInterval is the audio-thread tick driving propagation updates
	AudioUpdateInterval = 50 * time.Millisecond
)

// Propagation Filter
const (
	// ObstructionGainDepth is max attenuation at obstruction 1.0
	ObstructionGainDepth = 0.6

	// OcclusionGainDepth is max attenuation at occlusion 1.0
	OcclusionGainDepth = 0.5

	// LowPassDepth scales the one-pole coefficient reduction by occlusion
	LowPassDepth = 0.9

	// MinLowPass keeps the filter from closing completely
	MinLowPass = 0.05

	MasterVolume = 0.5
)

// Emitter Tones
const (
	EmitterToneAmplitude = 0.2
)
