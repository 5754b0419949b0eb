// Package config loads environment defaults from JSON. Fields are
// pointer-typed so a partial file only overrides what it names; the Get*
// methods supply fallbacks for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arenaworks/simarena/internal/sim"
	"github.com/arenaworks/simarena/internal/sim/obs"
)

// DefaultConfigPath is the path to the canonical defaults file, the
// single source of truth for stock environment settings.
const DefaultConfigPath = "config/env.defaults.json"

// EnvConfig is the root JSON configuration for an environment run.
type EnvConfig struct {
	ObsMode     *string `json:"obs_mode,omitempty"`
	RewardMode  *string `json:"reward_mode,omitempty"`
	SimFreq     *int    `json:"sim_freq,omitempty"`
	ControlFreq *int    `json:"control_freq,omitempty"`

	// CameraOverrides follows the camera merge schema: camera uuids map
	// to attribute maps, any other key is a global attribute.
	CameraOverrides map[string]any `json:"camera_overrides,omitempty"`

	EnableShadow *bool  `json:"enable_shadow,omitempty"`
	Seed         *int64 `json:"seed,omitempty"`

	// Rollout runner params
	Episodes   *int    `json:"episodes,omitempty"`
	MaxSteps   *int    `json:"max_steps,omitempty"`
	RecordPath *string `json:"record_path,omitempty"` // empty disables recording
}

// EmptyEnvConfig returns an EnvConfig with all fields set to nil.
// Use LoadEnvConfig to load actual values from the defaults file.
func EmptyEnvConfig() *EnvConfig {
	return &EnvConfig{}
}

// LoadEnvConfig loads an EnvConfig from a JSON file. Fields omitted from
// the file retain their default values, so partial configs are safe.
func LoadEnvConfig(path string) (*EnvConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEnvConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded, intended for test
// setup.
func MustLoadDefaultConfig() *EnvConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadEnvConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *EnvConfig) Validate() error {
	if c.ObsMode != nil {
		if _, err := obs.ParseMode(*c.ObsMode); err != nil {
			return err
		}
	}
	if c.RewardMode != nil {
		if _, err := sim.ParseRewardMode(*c.RewardMode); err != nil {
			return err
		}
	}
	if c.SimFreq != nil && *c.SimFreq <= 0 {
		return fmt.Errorf("sim_freq must be positive, got %d", *c.SimFreq)
	}
	if c.ControlFreq != nil && *c.ControlFreq <= 0 {
		return fmt.Errorf("control_freq must be positive, got %d", *c.ControlFreq)
	}
	if c.Episodes != nil && *c.Episodes < 0 {
		return fmt.Errorf("episodes must be non-negative, got %d", *c.Episodes)
	}
	if c.MaxSteps != nil && *c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", *c.MaxSteps)
	}
	return nil
}

// GetObsMode returns the obs_mode value or the default.
func (c *EnvConfig) GetObsMode() obs.Mode {
	if c.ObsMode == nil {
		return obs.ModeState
	}
	m, err := obs.ParseMode(*c.ObsMode)
	if err != nil {
		return obs.ModeState
	}
	return m
}

// GetRewardMode returns the reward_mode value or the default.
func (c *EnvConfig) GetRewardMode() sim.RewardMode {
	if c.RewardMode == nil {
		return sim.RewardSparse
	}
	m, err := sim.ParseRewardMode(*c.RewardMode)
	if err != nil {
		return sim.RewardSparse
	}
	return m
}

// GetSimFreq returns the sim_freq value or the default.
func (c *EnvConfig) GetSimFreq() int {
	if c.SimFreq == nil {
		return 500
	}
	return *c.SimFreq
}

// GetControlFreq returns the control_freq value or the default.
func (c *EnvConfig) GetControlFreq() int {
	if c.ControlFreq == nil {
		return 20
	}
	return *c.ControlFreq
}

// GetEnableShadow returns the enable_shadow value or the default.
func (c *EnvConfig) GetEnableShadow() bool {
	if c.EnableShadow == nil {
		return false
	}
	return *c.EnableShadow
}

// GetEpisodes returns the episodes value or the default.
func (c *EnvConfig) GetEpisodes() int {
	if c.Episodes == nil {
		return 10
	}
	return *c.Episodes
}

// GetMaxSteps returns the max_steps value or the default.
func (c *EnvConfig) GetMaxSteps() int {
	if c.MaxSteps == nil {
		return 200
	}
	return *c.MaxSteps
}

// GetRecordPath returns the record_path value; empty disables recording.
func (c *EnvConfig) GetRecordPath() string {
	if c.RecordPath == nil {
		return ""
	}
	return *c.RecordPath
}

// ToSimConfig converts the loaded file into the environment's
// construction config.
func (c *EnvConfig) ToSimConfig() sim.Config {
	return sim.Config{
		ObsMode:         c.GetObsMode(),
		RewardMode:      c.GetRewardMode(),
		SimFreq:         c.GetSimFreq(),
		ControlFreq:     c.GetControlFreq(),
		CameraOverrides: c.CameraOverrides,
		EnableShadow:    c.GetEnableShadow(),
		Seed:            c.Seed,
	}
}
