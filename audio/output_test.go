package audio

import (
	"testing"

	"github.com/lixenwraith/soundprop/config"
)

// newSilentOutput returns an output that never opens the speaker
func newSilentOutput(t *testing.T) *Output {
	t.Helper()
	cfg := config.Default()
	cfg.Audio.Enabled = false

	o := NewOutput(nil, nil)
	if err := o.Init(cfg); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	return o
}

// TestOutputDisabledLifecycle verifies a disabled output is a silent no-op
func TestOutputDisabledLifecycle(t *testing.T) {
	o := newSilentOutput(t)
	if !o.IsDisabled() {
		t.Error("expected disabled output")
	}
	if err := o.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
	if o.Name() != "output" {
		t.Errorf("name = %q", o.Name())
	}
}

// TestOutputEmitters verifies play is idempotent per id and stop removes
func TestOutputEmitters(t *testing.T) {
	o := newSilentOutput(t)

	o.Play(1, 220)
	o.Play(1, 220)
	o.Play(2, 330)
	if o.Emitters() != 2 {
		t.Errorf("emitters = %d, want 2", o.Emitters())
	}
	if o.Table().Len() != 2 {
		t.Errorf("table entries = %d, want 2", o.Table().Len())
	}

	o.StopEmitter(1)
	o.StopEmitter(9)
	if o.Emitters() != 1 {
		t.Errorf("emitters after stop = %d, want 1", o.Emitters())
	}
}

// TestOutputMute verifies mute toggles the master volume
func TestOutputMute(t *testing.T) {
	o := NewOutput(nil, nil)
	if err := o.Init(config.Default().Audio, true); err != nil {
		t.Fatal(err)
	}
	if !o.IsMuted() || !o.master.Silent {
		t.Fatal("init mute flag not applied")
	}
	if o.ToggleMute() {
		t.Error("toggle returned muted")
	}
	if o.master.Silent {
		t.Error("master still silent after unmute")
	}
}
