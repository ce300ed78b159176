package main

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lixenwraith/soundprop/config"
	"github.com/lixenwraith/soundprop/object"
)

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	scene, err := parseScene(defaultLayout)
	if err != nil {
		t.Fatal(err)
	}
	sb, err := newSandbox(config.Default(), scene, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return sb
}

func TestCommandsReportStoppedLoop(t *testing.T) {
	sb := newTestSandbox(t)

	sb.cycleCalcType()
	if sb.msg != object.ErrLoopStopped.Error() {
		t.Errorf("calc msg = %q", sb.msg)
	}
	sb.toggleRaycasts()
	if sb.msg != object.ErrLoopStopped.Error() {
		t.Errorf("raycasts msg = %q", sb.msg)
	}
}

func TestCommandsReportManagerErrors(t *testing.T) {
	sb := newTestSandbox(t)
	if err := sb.loop.Start(); err != nil {
		t.Fatal(err)
	}
	defer sb.loop.Stop()

	// Emitters were never reserved, so every id is unknown
	err := sb.eachEmitter(func(m *object.Manager, id uint64) error {
		return m.ResetObstructionOcclusion(id)
	})
	if !errors.Is(err, object.ErrUnknownObject) {
		t.Fatalf("eachEmitter = %v, want ErrUnknownObject", err)
	}

	sb.resetEmitters()
	if !strings.Contains(sb.msg, object.ErrUnknownObject.Error()) {
		t.Errorf("reset msg = %q", sb.msg)
	}

	sb.toggleSync()
	if sb.msg != "sync true" {
		t.Errorf("sync msg = %q", sb.msg)
	}
}
