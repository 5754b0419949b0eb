// Package sim implements the episodic simulation core: an episode
// controller driving an engine-agnostic scene through the
// seed/reset/step/close lifecycle, with deterministic two-level seeding,
// task extension hooks, pluggable observation assembly and flat-vector
// state serialization.
package sim

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/arenaworks/simarena/internal/sim/camera"
	"github.com/arenaworks/simarena/internal/sim/engine"
	"github.com/arenaworks/simarena/internal/sim/obs"
	"github.com/arenaworks/simarena/internal/sim/statecodec"
)

type lifecycle int

const (
	lifecycleConfigured lifecycle = iota
	lifecycleEpisodeActive
	lifecycleClosed
)

// Info is the auxiliary result of one control step.
type Info struct {
	ElapsedSteps int
	Success      bool
	// Extra carries task evaluation fields (distances, goal state).
	// Nil when the task reports none.
	Extra *obs.Record
}

// StepResult bundles the outcome of one control step.
type StepResult struct {
	Obs    obs.Value
	Reward float64
	Done   bool
	Info   Info
}

// ResetOptions controls a Reset call. The zero value draws the episode
// seed from the main RNG and reuses the existing scene.
type ResetOptions struct {
	// Seed fixes the episode seed instead of drawing it from the main
	// RNG. The main RNG is not consumed when set.
	Seed *int64
	// Reconfigure tears the scene down and rebuilds it before episode
	// initialization.
	Reconfigure bool
}

// Env is the episode controller. It owns one scene generation at a time
// and is not safe for concurrent use; all calls must come from a single
// goroutine, matching the engine scene contract.
type Env struct {
	cfg  Config
	eng  engine.Engine
	task TaskHooks

	mainRNG     *rand.Rand
	episodeRNG  *rand.Rand
	episodeSeed int64

	cameraCfgs []camera.Config
	substeps   int

	scene    engine.Scene
	agent    Agent
	rig      *camera.Rig
	pipeline *obs.Pipeline
	snapshot *statecodec.Snapshot
	viewer   engine.Viewer

	obsSpace     obs.Space
	elapsedSteps int
	state        lifecycle
}

// New builds an environment over eng and task, merges camera overrides,
// runs the first reconfiguring reset, and derives the observation space
// from the first observation. Any failure is fatal: no partially built
// environment is ever returned.
func New(eng engine.Engine, task TaskHooks, cfg Config) (*Env, error) {
	substeps, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	merged, err := camera.MergeConfigs(task.CameraConfigs(), cfg.CameraOverrides)
	if err != nil {
		return nil, err
	}

	env := &Env{
		cfg:        cfg,
		eng:        eng,
		task:       task,
		cameraCfgs: merged,
		substeps:   substeps,
	}
	if cfg.Seed != nil {
		env.Seed(*cfg.Seed)
	} else {
		env.Seed(DefaultSeed)
	}

	first, err := env.Reset(ResetOptions{Reconfigure: true})
	if err != nil {
		env.Close()
		return nil, err
	}
	space, err := obs.SpaceOf(first)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("derive observation space: %w", err)
	}
	env.obsSpace = space

	Diagf("environment ready: obs=%s reward=%s sim=%dHz control=%dHz substeps=%d cameras=%d",
		cfg.ObsMode, cfg.RewardMode, cfg.SimFreq, cfg.ControlFreq, substeps, len(merged))
	return env, nil
}

// Seed re-seeds the main RNG, which supplies episode seeds for resets
// that do not fix one. New calls it once at construction; calling it
// again mid-run is allowed but breaks the per-run determinism guarantee,
// since episode seeds drawn before and after come from different streams.
func (e *Env) Seed(seed int64) {
	e.mainRNG = rand.New(rand.NewSource(seed))
	Diagf("main RNG seeded with %d", seed)
}

// SeedRandom re-seeds the main RNG from fresh entropy and returns the
// drawn seed, so an unseeded run can still be reproduced afterwards by
// passing the reported value to Seed.
func (e *Env) SeedRandom() (int64, error) {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("draw seed: %w", err)
	}
	seed := int64(binary.LittleEndian.Uint64(b[:]) &^ (1 << 63))
	e.Seed(seed)
	return seed, nil
}

func (e *Env) setEpisodeRNG(seed int64) {
	e.episodeSeed = seed
	e.episodeRNG = rand.New(rand.NewSource(seed))
}

// Reset begins a new episode and returns its first observation. The
// episode RNG is seeded before and re-seeded after the optional
// reconfigure, so a fixed episode seed initializes identically whether or
// not the scene was rebuilt in between.
func (e *Env) Reset(opts ResetOptions) (obs.Value, error) {
	if e.state == lifecycleClosed {
		return nil, ErrClosed
	}

	if opts.Seed != nil {
		e.setEpisodeRNG(*opts.Seed)
	} else {
		e.setEpisodeRNG(e.mainRNG.Int63())
	}
	Diagf("reset: episode seed %d (reconfigure=%t)", e.episodeSeed, opts.Reconfigure)

	if opts.Reconfigure || e.scene == nil {
		if err := e.reconfigure(); err != nil {
			return nil, err
		}
	} else {
		e.clearSimState()
	}

	// Load hooks may consume the episode RNG during a reconfigure, so
	// the initialize hooks below start from a fresh stream either way.
	e.setEpisodeRNG(e.episodeSeed)

	if err := e.task.InitializeActors(e.episodeRNG); err != nil {
		return nil, fmt.Errorf("initialize actors: %w", err)
	}
	if err := e.task.InitializeArticulations(e.episodeRNG); err != nil {
		return nil, fmt.Errorf("initialize articulations: %w", err)
	}
	if err := e.task.InitializeAgent(e.episodeRNG); err != nil {
		return nil, fmt.Errorf("initialize agent: %w", err)
	}
	if err := e.task.InitializeTask(e.episodeRNG); err != nil {
		return nil, fmt.Errorf("initialize task: %w", err)
	}

	e.elapsedSteps = 0
	e.state = lifecycleEpisodeActive

	first, err := e.pipeline.Observe()
	if err != nil {
		return nil, fmt.Errorf("first observation: %w", err)
	}
	return first, nil
}

// reconfigure rebuilds the scene generation in a fixed order: scene,
// agent, actors, articulations, state snapshot, sensor rig, lighting,
// observation pipeline, viewer reattach. Every handle into the previous
// generation is invalidated.
func (e *Env) reconfigure() error {
	if e.scene != nil {
		e.scene.Destroy()
		e.scene, e.agent, e.rig, e.pipeline, e.snapshot = nil, nil, nil, nil, nil
	}

	scene, err := e.eng.CreateScene(engine.SceneConfig{
		Timestep: 1.0 / float64(e.cfg.SimFreq),
	})
	if err != nil {
		return fmt.Errorf("create scene: %w", err)
	}

	agent, err := e.task.LoadAgent(scene)
	if err != nil {
		scene.Destroy()
		return fmt.Errorf("load agent: %w", err)
	}
	if err := e.task.LoadActors(scene); err != nil {
		scene.Destroy()
		return fmt.Errorf("load actors: %w", err)
	}
	if err := e.task.LoadArticulations(scene); err != nil {
		scene.Destroy()
		return fmt.Errorf("load articulations: %w", err)
	}

	// The snapshot must see the final body topology but no sensors, so
	// it is captured here and never after.
	snapshot := statecodec.Capture(scene)

	rig, err := camera.BuildRig(scene, e.eng.Backend(), e.cameraCfgs)
	if err != nil {
		scene.Destroy()
		return err
	}

	e.task.SetupLighting(scene, e.cfg.EnableShadow)

	pipeline, err := obs.NewPipeline(e.cfg.ObsMode, scene, rig, agent, e.task.ExtraObs)
	if err != nil {
		scene.Destroy()
		return err
	}

	e.scene = scene
	e.agent = agent
	e.snapshot = snapshot
	e.rig = rig
	e.pipeline = pipeline
	if e.viewer != nil {
		e.viewer.SetScene(scene)
	}
	Tracef("reconfigured: %d actors, %d articulations, %d cameras",
		len(scene.Actors()), len(scene.Articulations()), len(rig.Cameras()))
	return nil
}

// clearSimState zeroes all dynamic velocities while preserving poses, so
// a non-reconfiguring reset starts from rest and initialize hooks only
// need to place bodies.
func (e *Env) clearSimState() {
	for _, actor := range e.scene.Actors() {
		if actor.Static() {
			continue
		}
		actor.SetVelocity(engine.Vec3{})
		actor.SetAngularVelocity(engine.Vec3{})
	}
	for _, art := range e.scene.Articulations() {
		art.SetRootVelocity(engine.Vec3{})
		art.SetRootAngularVelocity(engine.Vec3{})
		zeros := make([]float64, art.DOF())
		if err := art.SetJointVelocities(zeros); err != nil {
			Opsf("clear joint velocities for %q: %v", art.Name(), err)
		}
	}
}

// Step applies one control step: action decode, before-control-step hook,
// the fixed number of physics substeps each wrapped by the agent and task
// substep hooks, then observation, evaluation and reward.
func (e *Env) Step(action Action) (StepResult, error) {
	if e.state == lifecycleClosed {
		return StepResult{}, ErrClosed
	}
	if e.state != lifecycleEpisodeActive {
		return StepResult{}, fmt.Errorf("step before reset")
	}

	if err := e.applyAction(action); err != nil {
		return StepResult{}, err
	}

	e.task.BeforeControlStep()
	for i := 0; i < e.substeps; i++ {
		e.agent.BeforeSimStep()
		e.scene.Step()
		e.task.AfterSimStep()
	}
	e.elapsedSteps++

	observation, err := e.pipeline.Observe()
	if err != nil {
		return StepResult{}, fmt.Errorf("observe: %w", err)
	}

	eval, err := e.task.Evaluate()
	if err != nil {
		return StepResult{}, fmt.Errorf("evaluate: %w", err)
	}

	var reward float64
	switch e.cfg.RewardMode {
	case RewardSparse:
		if eval.Success {
			reward = 1
		}
	case RewardDense:
		reward, err = e.task.DenseReward(action)
		if err != nil {
			return StepResult{}, fmt.Errorf("dense reward: %w", err)
		}
	}

	Tracef("step %d: reward=%g success=%t", e.elapsedSteps, reward, eval.Success)
	return StepResult{
		Obs:    observation,
		Reward: reward,
		Done:   eval.Success,
		Info: Info{
			ElapsedSteps: e.elapsedSteps,
			Success:      eval.Success,
			Extra:        eval.Extra,
		},
	}, nil
}

// applyAction decodes and stages the action. A nil action steps the
// simulation without driving the agent.
func (e *Env) applyAction(action Action) error {
	switch a := action.(type) {
	case nil:
		return nil
	case RawAction:
		if err := e.agent.SetAction(a); err != nil {
			return &ActionTypeError{Detail: err.Error()}
		}
	case ModedAction:
		if a.Mode != e.agent.ControlMode() {
			if err := e.agent.SetControlMode(a.Mode); err != nil {
				return &ActionTypeError{Detail: err.Error()}
			}
			Diagf("control mode switched to %q", a.Mode)
		}
		if err := e.agent.SetAction(a.Payload); err != nil {
			return &ActionTypeError{Detail: err.Error()}
		}
	default:
		return &ActionTypeError{Detail: fmt.Sprintf("unknown action type %T", action)}
	}
	return nil
}

// GetState serializes the scene's kinematic state.
func (e *Env) GetState() ([]float64, error) {
	if e.state == lifecycleClosed {
		return nil, ErrClosed
	}
	return e.snapshot.Encode()
}

// SetState restores kinematic state produced by GetState against the
// same scene generation.
func (e *Env) SetState(vec []float64) error {
	if e.state == lifecycleClosed {
		return ErrClosed
	}
	return e.snapshot.Decode(vec)
}

// RenderRGB captures and returns the color image of the render camera
// (the rig camera named "render_camera", or the first rig camera when no
// camera carries that name).
func (e *Env) RenderRGB() (*obs.FloatImage, error) {
	if e.state == lifecycleClosed {
		return nil, ErrClosed
	}
	cam := e.rig.Get("render_camera")
	if cam == nil {
		cams := e.rig.Cameras()
		if len(cams) == 0 {
			return nil, fmt.Errorf("render: no cameras bound")
		}
		cam = cams[0]
	}
	e.scene.UpdateRender()
	sensor := cam.Sensor()
	sensor.TakePicture()
	data, err := sensor.FloatTexture(engine.ChannelColor)
	if err != nil {
		return nil, fmt.Errorf("render camera %q: %w", cam.Name(), err)
	}
	return &obs.FloatImage{
		Width:    sensor.Width(),
		Height:   sensor.Height(),
		Channels: 4,
		Data:     data,
	}, nil
}

// AttachViewer creates an interactive viewer (if the engine supports
// one) and points it at the current scene. The viewer survives
// reconfigures and is released by Close.
func (e *Env) AttachViewer() error {
	if e.state == lifecycleClosed {
		return ErrClosed
	}
	if e.viewer != nil {
		return nil
	}
	viewer, err := e.eng.CreateViewer()
	if err != nil {
		return fmt.Errorf("create viewer: %w", err)
	}
	viewer.SetScene(e.scene)
	e.viewer = viewer
	return nil
}

// Close releases the viewer and the scene. Idempotent; every other
// lifecycle call on a closed environment reports ErrClosed.
func (e *Env) Close() {
	if e.state == lifecycleClosed {
		return
	}
	if e.viewer != nil {
		e.viewer.Close()
		e.viewer = nil
	}
	if e.scene != nil {
		e.scene.Destroy()
		e.scene = nil
	}
	e.state = lifecycleClosed
	Diagf("environment closed")
}

// ObservationSpace describes the shape of every observation, derived
// from the first observation at construction and static for the life of
// the environment.
func (e *Env) ObservationSpace() obs.Space { return e.obsSpace }

// ActionSpace describes the agent's action vector under its current
// control mode. Switching control modes may change it.
func (e *Env) ActionSpace() *obs.BoxSpace {
	return &obs.BoxSpace{Shape: []int{e.agent.ActionDim()}, Dtype: obs.DtypeFloat64}
}

// Scene exposes the live scene for tasks and tools. Handles become
// invalid on reconfigure.
func (e *Env) Scene() engine.Scene { return e.scene }

// Agent exposes the live agent. Invalidated by reconfigure.
func (e *Env) Agent() Agent { return e.agent }

// EpisodeSeed reports the seed of the current episode.
func (e *Env) EpisodeSeed() int64 { return e.episodeSeed }

// ElapsedSteps reports control steps taken since the last reset.
func (e *Env) ElapsedSteps() int { return e.elapsedSteps }

// SubstepsPerControlStep reports the physics substep count per control
// step.
func (e *Env) SubstepsPerControlStep() int { return e.substeps }

// Config returns the construction-time configuration.
func (e *Env) Config() Config { return e.cfg }
