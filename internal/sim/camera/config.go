package camera

import (
	"fmt"
	"math"

	"github.com/arenaworks/simarena/internal/sim/engine"
)

// Config describes one camera: identity, local pose, projection, an
// optional mount, and the requested channel set. Configs are merged from
// task defaults plus user overrides at construction and are immutable once
// the rig is built.
type Config struct {
	// UUID is the camera's unique key within a configuration set. It is
	// also the sensor name and the observation record key.
	UUID string

	// Pose is the local pose: relative to the mount actor for mounted
	// cameras, a world pose otherwise.
	Pose engine.Pose

	Width  int
	Height int
	FOVY   float64 // vertical field of view, radians
	Near   float64
	Far    float64

	// Mount resolution, checked in this order:
	//   MountArticulation + MountLink  mount on a named articulation link
	//   MountActor                     mount on a named free actor
	//   (none)                         world-fixed camera
	MountArticulation string
	MountLink         string
	MountActor        string

	// Channels is the requested channel set. Empty means Color+Position.
	Channels []engine.Channel
}

// ConfigError reports an invalid camera configuration or override.
type ConfigError struct {
	Camera string // empty for set-level errors
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Camera == "" {
		return "camera config: " + e.Detail
	}
	return fmt.Sprintf("camera config %q: %s", e.Camera, e.Detail)
}

func (c *Config) validate() error {
	if c.UUID == "" {
		return &ConfigError{Detail: "camera uuid must not be empty"}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return &ConfigError{Camera: c.UUID, Detail: fmt.Sprintf("invalid resolution %dx%d", c.Width, c.Height)}
	}
	if c.FOVY <= 0 || c.FOVY >= math.Pi {
		return &ConfigError{Camera: c.UUID, Detail: fmt.Sprintf("fov %g out of range (0, pi)", c.FOVY)}
	}
	if c.Near <= 0 || c.Far <= c.Near {
		return &ConfigError{Camera: c.UUID, Detail: fmt.Sprintf("bad clip planes near=%g far=%g", c.Near, c.Far)}
	}
	if c.MountLink != "" && c.MountArticulation == "" {
		return &ConfigError{Camera: c.UUID, Detail: "mount link given without mount articulation"}
	}
	return nil
}

func (c *Config) requestedChannels() []engine.Channel {
	if len(c.Channels) == 0 {
		return []engine.Channel{engine.ChannelColor, engine.ChannelPosition}
	}
	return c.Channels
}

func (c *Config) intrinsics() engine.CameraIntrinsics {
	return engine.CameraIntrinsics{
		Width:  c.Width,
		Height: c.Height,
		FOVY:   c.FOVY,
		Near:   c.Near,
		Far:    c.Far,
	}
}

// overrideAttrs is the closed set of attributes an override may touch.
var overrideAttrs = map[string]bool{
	"width":    true,
	"height":   true,
	"fov":      true,
	"near":     true,
	"far":      true,
	"channels": true,
}

// MergeConfigs applies an override set to base configs. Overrides keyed by
// a camera's uuid are per-camera maps; any other key is a global attribute
// applied to every camera, unless that camera has its own override for the
// same attribute (per-camera wins). Unknown attribute names anywhere in
// the override set are rejected before any mutation is applied.
//
// The base slice is not modified; the merged result preserves base order.
func MergeConfigs(base []Config, overrides map[string]any) ([]Config, error) {
	merged := make([]Config, len(base))
	copy(merged, base)

	byUUID := make(map[string]int, len(merged))
	for i, cfg := range merged {
		if _, dup := byUUID[cfg.UUID]; dup {
			return nil, &ConfigError{Detail: fmt.Sprintf("duplicate camera uuid %q", cfg.UUID)}
		}
		byUUID[cfg.UUID] = i
	}

	// Validate the whole override set up front so a bad key can never
	// leave the set half-applied.
	perCamera := make(map[string]map[string]any)
	global := make(map[string]any)
	for key, val := range overrides {
		if _, ok := byUUID[key]; ok {
			attrs, ok := val.(map[string]any)
			if !ok {
				return nil, &ConfigError{Camera: key, Detail: "per-camera override must be an attribute map"}
			}
			for attr := range attrs {
				if !overrideAttrs[attr] {
					return nil, &ConfigError{Camera: key, Detail: fmt.Sprintf("unknown camera attribute %q", attr)}
				}
			}
			perCamera[key] = attrs
			continue
		}
		if !overrideAttrs[key] {
			return nil, &ConfigError{Detail: fmt.Sprintf("unknown camera attribute %q", key)}
		}
		global[key] = val
	}

	for i := range merged {
		cam := perCamera[merged[i].UUID]
		for attr, val := range global {
			if cam != nil {
				if _, shadowed := cam[attr]; shadowed {
					continue
				}
			}
			if err := applyAttr(&merged[i], attr, val); err != nil {
				return nil, err
			}
		}
		for attr, val := range cam {
			if err := applyAttr(&merged[i], attr, val); err != nil {
				return nil, err
			}
		}
	}

	for i := range merged {
		if err := merged[i].validate(); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// applyAttr sets one attribute on a config. Numeric values accept both
// native Go numbers and JSON-decoded float64.
func applyAttr(cfg *Config, attr string, val any) error {
	badType := func() error {
		return &ConfigError{Camera: cfg.UUID, Detail: fmt.Sprintf("attribute %q: unsupported value type %T", attr, val)}
	}
	switch attr {
	case "width", "height":
		n, ok := asInt(val)
		if !ok {
			return badType()
		}
		if attr == "width" {
			cfg.Width = n
		} else {
			cfg.Height = n
		}
	case "fov", "near", "far":
		f, ok := asFloat(val)
		if !ok {
			return badType()
		}
		switch attr {
		case "fov":
			cfg.FOVY = f
		case "near":
			cfg.Near = f
		case "far":
			cfg.Far = f
		}
	case "channels":
		names, ok := asStringSlice(val)
		if !ok {
			return badType()
		}
		channels := make([]engine.Channel, 0, len(names))
		for _, name := range names {
			ch, err := ParseChannel(name)
			if err != nil {
				return &ConfigError{Camera: cfg.UUID, Detail: err.Error()}
			}
			channels = append(channels, ch)
		}
		cfg.Channels = channels
	default:
		return &ConfigError{Camera: cfg.UUID, Detail: fmt.Sprintf("unknown camera attribute %q", attr)}
	}
	return nil
}

func asFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func asInt(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

func asStringSlice(val any) ([]string, bool) {
	switch v := val.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
