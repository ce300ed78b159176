package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file
const (
	EnvRaycastsEnabled = "SOUNDPROP_RAYCASTS_ENABLED"
	EnvSyncRaycasts    = "SOUNDPROP_SYNC_RAYCASTS"
	EnvCacheTimeMs     = "SOUNDPROP_CACHE_TIME_MS"
	EnvMasterVolume    = "SOUNDPROP_MASTER_VOLUME"
)

// Load reads path on top of Default, applies environment overrides and validates
// An empty path yields defaults plus environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Decode(data, filepath.Ext(path), cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals data into cfg, format chosen by file extension
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".toml", "":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

// ApplyEnv overrides cfg fields from environment variables
// Unparsable values are ignored
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvRaycastsEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Propagation.RaycastsEnabled = b
		}
	}

	if v := os.Getenv(EnvSyncRaycasts); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Propagation.SyncRaycasts = b
		}
	}

	if v := os.Getenv(EnvCacheTimeMs); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Propagation.RaycastCacheTimeMs = f
		}
	}

	// Master volume (0-100 converted to 0.0-1.0)
	if v := os.Getenv(EnvMasterVolume); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			vol := float64(n) / 100.0
			if vol < 0 {
				vol = 0
			}
			if vol > 1 {
				vol = 1
			}
			cfg.Audio.MasterVolume = vol
		}
	}
}
