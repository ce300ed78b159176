package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultValid verifies defaults pass validation
func TestDefaultValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if !cfg.Propagation.RaycastsEnabled {
		t.Error("expected raycasts enabled by default")
	}
	if cfg.Propagation.SyncRaycasts {
		t.Error("sync raycasts must not be the default")
	}
	if cfg.Propagation.DefaultCalcType != "multi" {
		t.Errorf("expected default calc type multi, got %q", cfg.Propagation.DefaultCalcType)
	}
}

// TestValidateRejects verifies each range check wraps ErrInvalid
func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative min", func(c *Config) { c.Propagation.MinObstructionDistance = -1 }},
		{"max below min", func(c *Config) { c.Propagation.MaxObstructionDistance = 0.1 }},
		{"zero full distance", func(c *Config) { c.Propagation.FullObstructionMaxDistance = 0 }},
		{"negative cache", func(c *Config) { c.Propagation.RaycastCacheTimeMs = -5 }},
		{"zero smoothing", func(c *Config) { c.Propagation.SmoothingRate = 0 }},
		{"smoothing above one", func(c *Config) { c.Propagation.SmoothingRate = 1.5 }},
		{"negative budget", func(c *Config) { c.Propagation.RayBudgetPerSecond = -1 }},
		{"bad calc type", func(c *Config) { c.Propagation.DefaultCalcType = "all" }},
		{"no workers", func(c *Config) { c.Backend.Workers = 0 }},
		{"pending too large", func(c *Config) { c.Backend.MaxPending = 1 << 20 }},
		{"too many hits", func(c *Config) { c.Backend.MaxHits = 99 }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"loud master", func(c *Config) { c.Audio.MasterVolume = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

// TestValidateCalcTypeSpellings verifies aliases and case are accepted
func TestValidateCalcTypeSpellings(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", CalcTypeNone},
		{"NONE", CalcTypeNone},
		{"Ignore", CalcTypeIgnore},
		{"single_ray", CalcTypeSingle},
		{"Multi", CalcTypeMulti},
		{" MULTI_RAY ", CalcTypeMulti},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := Default()
			cfg.Propagation.DefaultCalcType = tt.in
			if err := cfg.Validate(); err != nil {
				t.Fatalf("validate %q: %v", tt.in, err)
			}
			if got, _ := CanonicalCalcType(tt.in); got != tt.want {
				t.Errorf("canonical %q = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestLoadTOMLOverlay verifies a partial TOML file overrides only its keys
func TestLoadTOMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "prop.toml")
	data := `
[propagation]
min_obstruction_distance = 1.0
max_obstruction_distance = 100.0
raycast_cache_time_ms = 250

[backend]
workers = 4
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Propagation.MinObstructionDistance != 1.0 {
		t.Errorf("min distance = %f, want 1", cfg.Propagation.MinObstructionDistance)
	}
	if cfg.Propagation.MaxObstructionDistance != 100.0 {
		t.Errorf("max distance = %f, want 100", cfg.Propagation.MaxObstructionDistance)
	}
	if cfg.Propagation.RaycastCacheTimeMs != 250 {
		t.Errorf("cache time = %f, want 250", cfg.Propagation.RaycastCacheTimeMs)
	}
	if cfg.Backend.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Backend.Workers)
	}

	// Untouched keys keep defaults
	def := Default()
	if cfg.Propagation.SmoothingRate != def.Propagation.SmoothingRate {
		t.Errorf("smoothing rate changed to %f", cfg.Propagation.SmoothingRate)
	}
	if cfg.Audio.SampleRate != def.Audio.SampleRate {
		t.Errorf("sample rate changed to %d", cfg.Audio.SampleRate)
	}
}

// TestLoadYAML verifies YAML files decode through the same struct tags
func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "prop.yaml")
	data := "propagation:\n  sync_raycasts: true\n  full_obstruction_max_distance: 8\naudio:\n  master_volume: 0.25\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.Propagation.SyncRaycasts {
		t.Error("expected sync raycasts from yaml")
	}
	if cfg.Propagation.FullObstructionMaxDistance != 8 {
		t.Errorf("full distance = %f, want 8", cfg.Propagation.FullObstructionMaxDistance)
	}
	if cfg.Audio.MasterVolume != 0.25 {
		t.Errorf("master volume = %f, want 0.25", cfg.Audio.MasterVolume)
	}
}

// TestLoadRejectsInvalidFile verifies validation runs after decode
func TestLoadRejectsInvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[propagation]\nsmoothing_rate = 3.0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

// TestLoadUnsupportedFormat verifies unknown extensions fail
func TestLoadUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prop.ini")
	if err := os.WriteFile(path, []byte("x=1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for .ini")
	}
}

// TestLoadMissingFile verifies read errors surface
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestApplyEnv verifies environment overrides and clamping
func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvRaycastsEnabled, "false")
	t.Setenv(EnvSyncRaycasts, "1")
	t.Setenv(EnvCacheTimeMs, "125.5")
	t.Setenv(EnvMasterVolume, "150")

	cfg := Default()
	ApplyEnv(cfg)

	if cfg.Propagation.RaycastsEnabled {
		t.Error("expected raycasts disabled by env")
	}
	if !cfg.Propagation.SyncRaycasts {
		t.Error("expected sync raycasts by env")
	}
	if cfg.Propagation.RaycastCacheTimeMs != 125.5 {
		t.Errorf("cache = %f, want 125.5", cfg.Propagation.RaycastCacheTimeMs)
	}
	if cfg.Audio.MasterVolume != 1 {
		t.Errorf("master volume = %f, want clamped 1", cfg.Audio.MasterVolume)
	}
}

// TestApplyEnvIgnoresGarbage verifies unparsable values keep defaults
func TestApplyEnvIgnoresGarbage(t *testing.T) {
	t.Setenv(EnvRaycastsEnabled, "maybe")
	t.Setenv(EnvCacheTimeMs, "-3")
	t.Setenv(EnvMasterVolume, "loud")

	cfg := Default()
	ApplyEnv(cfg)
	def := Default()

	if cfg.Propagation.RaycastsEnabled != def.Propagation.RaycastsEnabled {
		t.Error("garbage bool changed raycasts flag")
	}
	if cfg.Propagation.RaycastCacheTimeMs != def.Propagation.RaycastCacheTimeMs {
		t.Error("negative cache time accepted")
	}
	if cfg.Audio.MasterVolume != def.Audio.MasterVolume {
		t.Error("garbage volume accepted")
	}
}

// TestCloneIndependent verifies Clone does not alias
func TestCloneIndependent(t *testing.T) {
	a := Default()
	b := a.Clone()
	b.Propagation.SmoothingRate = 0.9
	if a.Propagation.SmoothingRate == 0.9 {
		t.Error("clone aliases original")
	}
}

// TestWatchReload verifies a rewritten file is delivered to the callback
func TestWatchReload(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "prop.toml")
	if err := os.WriteFile(path, []byte("[propagation]\nsmoothing_rate = 0.2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c *Config) { got <- c })
	}()

	// Give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("[propagation]\nsmoothing_rate = 0.5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.Propagation.SmoothingRate != 0.5 {
			t.Errorf("reloaded smoothing = %f, want 0.5", c.Propagation.SmoothingRate)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload delivered")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch returned %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvRaycastsEnabled, EnvSyncRaycasts, EnvCacheTimeMs, EnvMasterVolume} {
		t.Setenv(k, "")
	}
}
