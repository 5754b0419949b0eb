package sim

import (
	"fmt"

	"github.com/arenaworks/simarena/internal/sim/obs"
)

// RewardMode selects how the per-step reward is computed.
type RewardMode int

const (
	// RewardSparse is the success indicator: 1 on a successful step,
	// 0 otherwise.
	RewardSparse RewardMode = iota
	// RewardDense delegates to the task's DenseReward hook.
	RewardDense
)

func (m RewardMode) String() string {
	switch m {
	case RewardSparse:
		return "sparse"
	case RewardDense:
		return "dense"
	default:
		return fmt.Sprintf("RewardMode(%d)", int(m))
	}
}

// ParseRewardMode maps a reward mode name from configuration to its enum
// value.
func ParseRewardMode(name string) (RewardMode, error) {
	switch name {
	case "sparse":
		return RewardSparse, nil
	case "dense":
		return RewardDense, nil
	default:
		return 0, &ConfigError{Field: "reward_mode", Detail: fmt.Sprintf("unknown reward mode %q", name)}
	}
}

// DefaultSeed seeds the main RNG when the configuration leaves the seed
// unset.
const DefaultSeed int64 = 2022

const (
	defaultSimFreq     = 500
	defaultControlFreq = 20
)

// Config carries the environment-level settings fixed at construction.
type Config struct {
	ObsMode    obs.Mode
	RewardMode RewardMode

	// SimFreq and ControlFreq are the physics and control frequencies
	// in Hz. Each control step runs SimFreq/ControlFreq physics
	// substeps (floor). Zero means the default (500 and 20).
	SimFreq     int
	ControlFreq int

	// CameraOverrides is merged onto the task's camera configs before
	// the first rig build. Keys are camera uuids (per-camera attribute
	// maps) or attribute names (globals).
	CameraOverrides map[string]any

	// EnableShadow turns on shadow mapping for directional lights.
	EnableShadow bool

	// Seed for the main RNG. Nil means DefaultSeed.
	Seed *int64
}

// DefaultConfig returns the stock configuration: flat state observations,
// sparse reward, 500 Hz physics at 20 Hz control.
func DefaultConfig() Config {
	return Config{
		ObsMode:     obs.ModeState,
		RewardMode:  RewardSparse,
		SimFreq:     defaultSimFreq,
		ControlFreq: defaultControlFreq,
	}
}

// validate fills defaults and computes the substep count. A non-divisible
// frequency pair floor-divides with an ops warning rather than failing.
func (c *Config) validate() (substeps int, err error) {
	if c.SimFreq == 0 {
		c.SimFreq = defaultSimFreq
	}
	if c.ControlFreq == 0 {
		c.ControlFreq = defaultControlFreq
	}
	if c.SimFreq < 0 || c.ControlFreq < 0 {
		return 0, &ConfigError{Field: "frequencies", Detail: fmt.Sprintf("negative frequency (sim=%d control=%d)", c.SimFreq, c.ControlFreq)}
	}
	if c.SimFreq < c.ControlFreq {
		return 0, &ConfigError{Field: "frequencies", Detail: fmt.Sprintf("sim frequency %d Hz below control frequency %d Hz", c.SimFreq, c.ControlFreq)}
	}
	if c.SimFreq%c.ControlFreq != 0 {
		Opsf("sim frequency %d Hz is not divisible by control frequency %d Hz; flooring to %d substeps per control step",
			c.SimFreq, c.ControlFreq, c.SimFreq/c.ControlFreq)
	}
	if c.RewardMode != RewardSparse && c.RewardMode != RewardDense {
		return 0, &ConfigError{Field: "reward_mode", Detail: fmt.Sprintf("unknown reward mode %d", int(c.RewardMode))}
	}
	return c.SimFreq / c.ControlFreq, nil
}
