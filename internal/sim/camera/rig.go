// Package camera binds camera configurations to live engine sensors.
//
// A Rig owns the runtime cameras for one scene generation: it resolves
// mounts, creates free or mounted sensors, and narrows each camera's
// channel set by renderer-backend capability. Rigs are destroyed and
// rebuilt on every reconfigure; they hold non-owning references into the
// scene and must never outlive it.
package camera

import (
	"fmt"

	"github.com/arenaworks/simarena/internal/sim/engine"
)

// LookupError reports a mount target that does not exist in the scene.
// Mount lookup failure is fatal, not a warning: a silently world-fixed
// camera that was meant to ride a gripper corrupts every observation.
type LookupError struct {
	Camera string
	Kind   string // "articulation", "link" or "actor"
	Name   string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("camera %q: mount %s %q not found", e.Camera, e.Kind, e.Name)
}

// Camera binds one Config to a live sensor handle plus the effective
// channel set narrowed by backend capability.
type Camera struct {
	cfg      Config
	sensor   engine.Sensor
	mount    engine.Actor // nil for world-fixed cameras
	channels []engine.Channel
}

func (c *Camera) Name() string          { return c.cfg.UUID }
func (c *Camera) Config() Config        { return c.cfg }
func (c *Camera) Sensor() engine.Sensor { return c.sensor }

// Channels returns the effective channel set: requested ∩ backend-supported.
func (c *Camera) Channels() []engine.Channel {
	out := make([]engine.Channel, len(c.channels))
	copy(out, c.channels)
	return out
}

// HasChannel reports whether ch survived capability narrowing.
func (c *Camera) HasChannel(ch engine.Channel) bool {
	for _, have := range c.channels {
		if have == ch {
			return true
		}
	}
	return false
}

// Rig is the full set of bound cameras for one scene generation.
type Rig struct {
	backend engine.Backend
	cameras []*Camera
	byName  map[string]*Camera
}

// BuildRig resolves mounts and creates a sensor for every config, in
// config order. Any mount lookup failure or sensor creation failure aborts
// the build; no partially built rig is returned.
func BuildRig(scene engine.Scene, backend engine.Backend, cfgs []Config) (*Rig, error) {
	rig := &Rig{
		backend: backend,
		byName:  make(map[string]*Camera, len(cfgs)),
	}
	for _, cfg := range cfgs {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		mount, err := resolveMount(scene, cfg)
		if err != nil {
			return nil, err
		}

		var sensor engine.Sensor
		if mount == nil {
			sensor, err = scene.AddCamera(cfg.UUID, cfg.Pose, cfg.intrinsics())
		} else {
			sensor, err = scene.AddMountedCamera(cfg.UUID, mount, cfg.Pose, cfg.intrinsics())
		}
		if err != nil {
			return nil, fmt.Errorf("create sensor %q: %w", cfg.UUID, err)
		}

		cam := &Camera{
			cfg:      cfg,
			sensor:   sensor,
			mount:    mount,
			channels: narrowChannels(cfg.requestedChannels(), backend),
		}
		rig.cameras = append(rig.cameras, cam)
		rig.byName[cfg.UUID] = cam
	}
	return rig, nil
}

// resolveMount finds the mount actor named by cfg, or nil for world-fixed
// cameras.
func resolveMount(scene engine.Scene, cfg Config) (engine.Actor, error) {
	if cfg.MountArticulation != "" {
		var art engine.Articulation
		for _, a := range scene.Articulations() {
			if a.Name() == cfg.MountArticulation {
				art = a
				break
			}
		}
		if art == nil {
			return nil, &LookupError{Camera: cfg.UUID, Kind: "articulation", Name: cfg.MountArticulation}
		}
		for _, link := range art.Links() {
			if link.Name() == cfg.MountLink {
				return link, nil
			}
		}
		return nil, &LookupError{Camera: cfg.UUID, Kind: "link", Name: cfg.MountLink}
	}
	if cfg.MountActor != "" {
		for _, a := range scene.Actors() {
			if a.Name() == cfg.MountActor {
				return a, nil
			}
		}
		return nil, &LookupError{Camera: cfg.UUID, Kind: "actor", Name: cfg.MountActor}
	}
	return nil, nil
}

// Cameras returns the rig's cameras in build order.
func (r *Rig) Cameras() []*Camera {
	out := make([]*Camera, len(r.cameras))
	copy(out, r.cameras)
	return out
}

// Get returns the camera with the given uuid, or nil.
func (r *Rig) Get(uuid string) *Camera {
	return r.byName[uuid]
}

func (r *Rig) Backend() engine.Backend { return r.backend }

// CaptureAll triggers capture on every bound sensor. Individual captures
// may overlap inside the engine, but the call is blocking: all sensors
// hold a fresh capture when it returns.
func (r *Rig) CaptureAll() {
	for _, cam := range r.cameras {
		cam.sensor.TakePicture()
	}
}
