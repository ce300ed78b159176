package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	"go.uber.org/zap"

	"github.com/lixenwraith/soundprop/config"
	"github.com/lixenwraith/soundprop/parameter"
)

// Output plays occluded emitters through the system speaker
// Degrades to silent operation when no audio device is available
type Output struct {
	table *PropagationTable
	log   *zap.Logger

	mu       sync.Mutex
	cfg      config.Audio
	mixer    *beep.Mixer
	master   *effects.Volume
	emitters map[uint64]*beep.Ctrl
	started  bool

	disabled atomic.Bool
	muted    atomic.Bool
}

// NewOutput creates an output fed by table
func NewOutput(table *PropagationTable, log *zap.Logger) *Output {
	if table == nil {
		table = NewPropagationTable()
	}
	if log == nil {
		log = zap.NewNop()
	}
	mixer := &beep.Mixer{}
	return &Output{
		table:    table,
		log:      log,
		cfg:      config.Default().Audio,
		mixer:    mixer,
		master:   newVolume(mixer, parameter.MasterVolume),
		emitters: make(map[uint64]*beep.Ctrl),
	}
}

// Name implements service.Service
func (o *Output) Name() string { return "output" }

// Dependencies implements service.Service
func (o *Output) Dependencies() []string { return nil }

// Init implements service.Service
// Accepts config.Audio, *config.Config and a bool mute flag
func (o *Output) Init(args ...any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, arg := range args {
		switch v := arg.(type) {
		case config.Audio:
			o.cfg = v
		case *config.Config:
			o.cfg = v.Audio
		case bool:
			o.muted.Store(v)
		}
	}
	if !o.cfg.Enabled {
		o.disabled.Store(true)
	}
	o.applyVolumeLocked()
	return nil
}

// Start implements service.Service
// Speaker failure disables output without returning an error
func (o *Output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started || o.disabled.Load() {
		return nil
	}

	rate := beep.SampleRate(o.cfg.SampleRate)
	if err := speaker.Init(rate, rate.N(parameter.SpeakerBufferDuration)); err != nil {
		o.log.Warn("audio output unavailable", zap.Error(err))
		o.disabled.Store(true)
		return nil
	}
	speaker.Play(o.master)
	o.started = true
	return nil
}

// Stop implements service.Service
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	o.started = false
	return nil
}

// Table returns the propagation table feeding the filters
func (o *Output) Table() *PropagationTable { return o.table }

// IsDisabled reports whether no device is in use
func (o *Output) IsDisabled() bool { return o.disabled.Load() }

// ToggleMute flips mute and returns the new state
func (o *Output) ToggleMute() bool {
	muted := !o.muted.Load()
	o.muted.Store(muted)
	o.withSpeaker(o.applyVolumeLocked)
	return muted
}

// IsMuted reports the mute state
func (o *Output) IsMuted() bool { return o.muted.Load() }

// SetConfig applies a reloaded audio section
// Sample rate changes need a restart
func (o *Output) SetConfig(cfg config.Audio) {
	o.withSpeaker(func() {
		cfg.SampleRate = o.cfg.SampleRate
		o.cfg = cfg
		o.applyVolumeLocked()
	})
}

// Play starts a looping tone for object id shaped by its propagation values
func (o *Output) Play(id uint64, freq float64) {
	o.withSpeaker(func() {
		if _, ok := o.emitters[id]; ok {
			return
		}
		rate := beep.SampleRate(o.cfg.SampleRate)
		src := NewTone(freq, parameter.EmitterToneAmplitude, rate)
		ctrl := &beep.Ctrl{Streamer: NewOccluder(src, o.table.Values(id), DepthFromConfig(o.cfg))}
		o.emitters[id] = ctrl
		o.mixer.Add(ctrl)
	})
}

// StopEmitter silences object id; the mixer drops it on the next buffer
func (o *Output) StopEmitter(id uint64) {
	o.withSpeaker(func() {
		ctrl, ok := o.emitters[id]
		if !ok {
			return
		}
		ctrl.Streamer = nil
		delete(o.emitters, id)
	})
}

// Emitters returns the number of playing emitters
func (o *Output) Emitters() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.emitters)
}

// withSpeaker runs fn under the output lock and, once started, the speaker lock
func (o *Output) withSpeaker(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		speaker.Lock()
		defer speaker.Unlock()
	}
	fn()
}

func (o *Output) applyVolumeLocked() {
	vol := o.cfg.MasterVolume
	if o.muted.Load() || vol <= 0 {
		o.master.Silent = true
		return
	}
	o.master.Silent = false
	o.master.Volume = math.Log2(vol)
}
