// Package config holds the runtime configuration value object passed into the
// propagation manager, loaded from TOML or YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lixenwraith/soundprop/parameter"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// Config is the complete runtime configuration
type Config struct {
	Propagation Propagation `toml:"propagation" yaml:"propagation"`
	Backend     Backend     `toml:"backend" yaml:"backend"`
	Audio       Audio       `toml:"audio" yaml:"audio"`
}

// Propagation tunes ray issue, caching and smoothing
type Propagation struct {
	// RaycastsEnabled gates issuing any obstruction rays
	RaycastsEnabled bool `toml:"raycasts_enabled" yaml:"raycasts_enabled"`
	// SyncRaycasts answers rays inline on the audio thread; degraded fallback only
	SyncRaycasts bool `toml:"sync_raycasts" yaml:"sync_raycasts"`

	MinObstructionDistance     float64 `toml:"min_obstruction_distance" yaml:"min_obstruction_distance"`
	MaxObstructionDistance     float64 `toml:"max_obstruction_distance" yaml:"max_obstruction_distance"`
	FullObstructionMaxDistance float64 `toml:"full_obstruction_max_distance" yaml:"full_obstruction_max_distance"`
	RaycastCacheTimeMs         float64 `toml:"raycast_cache_time_ms" yaml:"raycast_cache_time_ms"`
	SmoothingRate              float64 `toml:"smoothing_rate" yaml:"smoothing_rate"`
	Epsilon                    float64 `toml:"epsilon" yaml:"epsilon"`

	// RayBudgetPerSecond limits rays issued across all objects, 0 = unlimited
	RayBudgetPerSecond float64 `toml:"ray_budget_per_second" yaml:"ray_budget_per_second"`
	// DefaultCalcType is applied to newly reserved objects: ignore, single, multi
	DefaultCalcType string `toml:"default_calc_type" yaml:"default_calc_type"`
}

// Backend sizes the asynchronous physics worker pool
type Backend struct {
	Workers    int `toml:"workers" yaml:"workers"`
	MaxPending int `toml:"max_pending" yaml:"max_pending"`
	MaxHits    int `toml:"max_hits" yaml:"max_hits"`
}

// Audio configures the mixer-side application of propagation values
type Audio struct {
	Enabled          bool    `toml:"enabled" yaml:"enabled"`
	SampleRate       int     `toml:"sample_rate" yaml:"sample_rate"`
	MasterVolume     float64 `toml:"master_volume" yaml:"master_volume"`
	ObstructionDepth float64 `toml:"obstruction_depth" yaml:"obstruction_depth"`
	OcclusionDepth   float64 `toml:"occlusion_depth" yaml:"occlusion_depth"`
	LowPassDepth     float64 `toml:"low_pass_depth" yaml:"low_pass_depth"`
}

// Canonical calc type names
const (
	CalcTypeNone   = "none"
	CalcTypeIgnore = "ignore"
	CalcTypeSingle = "single"
	CalcTypeMulti  = "multi"
)

// calcTypeAliases maps every accepted default_calc_type spelling, lowercased
var calcTypeAliases = map[string]string{
	"":           CalcTypeNone,
	"none":       CalcTypeNone,
	"ignore":     CalcTypeIgnore,
	"single":     CalcTypeSingle,
	"single_ray": CalcTypeSingle,
	"multi":      CalcTypeMulti,
	"multi_ray":  CalcTypeMulti,
}

// CanonicalCalcType resolves s case-insensitively to a canonical name
func CanonicalCalcType(s string) (string, bool) {
	name, ok := calcTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return name, ok
}

// Default returns the engine defaults
func Default() *Config {
	return &Config{
		Propagation: DefaultPropagation(),
		Backend: Backend{
			Workers:    parameter.BackendWorkers,
			MaxPending: parameter.BackendMaxPending,
			MaxHits:    parameter.MaxObstructionRayHits,
		},
		Audio: Audio{
			Enabled:          true,
			SampleRate:       parameter.AudioSampleRate,
			MasterVolume:     parameter.MasterVolume,
			ObstructionDepth: parameter.ObstructionGainDepth,
			OcclusionDepth:   parameter.OcclusionGainDepth,
			LowPassDepth:     parameter.LowPassDepth,
		},
	}
}

// DefaultPropagation returns the propagation section defaults
func DefaultPropagation() Propagation {
	return Propagation{
		RaycastsEnabled:            true,
		SyncRaycasts:               false,
		MinObstructionDistance:     parameter.MinObstructionDistance,
		MaxObstructionDistance:     parameter.MaxObstructionDistance,
		FullObstructionMaxDistance: parameter.FullObstructionMaxDistance,
		RaycastCacheTimeMs:         parameter.RaycastCacheTimeMs,
		SmoothingRate:              parameter.SmoothingRate,
		Epsilon:                    parameter.SmoothingEpsilon,
		DefaultCalcType:            CalcTypeMulti,
	}
}

// Clone returns an independent copy
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Validate checks ranges; the returned error wraps ErrInvalid
func (c *Config) Validate() error {
	p := &c.Propagation
	switch {
	case p.MinObstructionDistance < 0:
		return fmt.Errorf("%w: min_obstruction_distance %g < 0", ErrInvalid, p.MinObstructionDistance)
	case p.MaxObstructionDistance <= p.MinObstructionDistance:
		return fmt.Errorf("%w: max_obstruction_distance %g <= min %g", ErrInvalid, p.MaxObstructionDistance, p.MinObstructionDistance)
	case p.FullObstructionMaxDistance <= 0:
		return fmt.Errorf("%w: full_obstruction_max_distance %g <= 0", ErrInvalid, p.FullObstructionMaxDistance)
	case p.RaycastCacheTimeMs < 0:
		return fmt.Errorf("%w: raycast_cache_time_ms %g < 0", ErrInvalid, p.RaycastCacheTimeMs)
	case p.SmoothingRate <= 0 || p.SmoothingRate > 1:
		return fmt.Errorf("%w: smoothing_rate %g not in (0,1]", ErrInvalid, p.SmoothingRate)
	case p.Epsilon < 0:
		return fmt.Errorf("%w: epsilon %g < 0", ErrInvalid, p.Epsilon)
	case p.RayBudgetPerSecond < 0:
		return fmt.Errorf("%w: ray_budget_per_second %g < 0", ErrInvalid, p.RayBudgetPerSecond)
	}

	if _, ok := CanonicalCalcType(p.DefaultCalcType); !ok {
		return fmt.Errorf("%w: default_calc_type %q", ErrInvalid, p.DefaultCalcType)
	}

	b := &c.Backend
	if b.Workers < 1 {
		return fmt.Errorf("%w: backend workers %d < 1", ErrInvalid, b.Workers)
	}
	if b.MaxPending < 1 || b.MaxPending > parameter.RayResultQueueSize {
		return fmt.Errorf("%w: backend max_pending %d not in [1,%d]", ErrInvalid, b.MaxPending, parameter.RayResultQueueSize)
	}
	if b.MaxHits < 1 || b.MaxHits > parameter.MaxObstructionRayHits {
		return fmt.Errorf("%w: backend max_hits %d not in [1,%d]", ErrInvalid, b.MaxHits, parameter.MaxObstructionRayHits)
	}

	a := &c.Audio
	if a.SampleRate <= 0 {
		return fmt.Errorf("%w: audio sample_rate %d <= 0", ErrInvalid, a.SampleRate)
	}
	if a.MasterVolume < 0 || a.MasterVolume > 1 {
		return fmt.Errorf("%w: audio master_volume %g not in [0,1]", ErrInvalid, a.MasterVolume)
	}
	return nil
}
