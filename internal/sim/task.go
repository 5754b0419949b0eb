package sim

import (
	"math/rand"

	"github.com/arenaworks/simarena/internal/sim/camera"
	"github.com/arenaworks/simarena/internal/sim/engine"
	"github.com/arenaworks/simarena/internal/sim/obs"
)

// EvalResult is the outcome of a task's per-step evaluation. Extra is
// surfaced verbatim in the step info; nil means no extra fields.
type EvalResult struct {
	Success bool
	Extra   *obs.Record
}

// TaskHooks is the capability surface a concrete task exposes to the
// episode controller. The load hooks run during reconfigure, the
// initialize hooks run on every reset (driven only by the episode RNG),
// and the remaining hooks run during stepping.
//
// Embed BaseTask to inherit no-op defaults for the optional hooks;
// LoadAgent is deliberately absent from BaseTask so a task without an
// agent fails to compile rather than at runtime.
type TaskHooks interface {
	// LoadAgent creates the task's agent inside the scene. Called once
	// per reconfigure, after scene creation and before actor loading.
	LoadAgent(scene engine.Scene) (Agent, error)
	// LoadActors populates the scene's free rigid actors.
	LoadActors(scene engine.Scene) error
	// LoadArticulations populates non-agent articulations.
	LoadArticulations(scene engine.Scene) error

	// CameraConfigs returns every camera the task wants bound,
	// agent-mounted ones included. The set is fixed at construction;
	// user overrides are merged on top before the first rig build.
	CameraConfigs() []camera.Config
	// SetupLighting configures scene lights after the sensor rig is
	// built.
	SetupLighting(scene engine.Scene, shadow bool)

	// InitializeActors, InitializeArticulations, InitializeAgent and
	// InitializeTask run on every reset, in that order. All randomness
	// must come from rng so a fixed episode seed reproduces the episode
	// exactly.
	InitializeActors(rng *rand.Rand) error
	InitializeArticulations(rng *rand.Rand) error
	InitializeAgent(rng *rand.Rand) error
	InitializeTask(rng *rand.Rand) error

	// ExtraObs contributes the task-specific branch of state
	// observations. Must return a fresh record on every call.
	ExtraObs() *obs.Record

	// Evaluate judges the current scene state. Called once per step.
	Evaluate() (EvalResult, error)
	// DenseReward computes the shaped per-step reward for the action
	// just applied. Only consulted under dense reward mode.
	DenseReward(action Action) (float64, error)

	// BeforeControlStep runs once per control step before any physics
	// substep; AfterSimStep runs after every physics substep.
	BeforeControlStep()
	AfterSimStep()
}

// BaseTask provides no-op defaults for every optional hook. Evaluate and
// DenseReward report UnimplementedHookError so a task that never defines
// them still works under observation-only use, and fails loudly the
// moment a reward or success signal is actually requested.
type BaseTask struct{}

func (BaseTask) LoadActors(engine.Scene) error        { return nil }
func (BaseTask) LoadArticulations(engine.Scene) error { return nil }

func (BaseTask) CameraConfigs() []camera.Config { return nil }

func (BaseTask) SetupLighting(scene engine.Scene, shadow bool) {
	scene.SetAmbientLight(engine.Vec3{0.3, 0.3, 0.3})
	scene.AddDirectionalLight(engine.Vec3{1, 1, -1}, engine.Vec3{1, 1, 1}, shadow)
	scene.AddDirectionalLight(engine.Vec3{0, 0, -1}, engine.Vec3{1, 1, 1}, false)
}

func (BaseTask) InitializeActors(*rand.Rand) error        { return nil }
func (BaseTask) InitializeArticulations(*rand.Rand) error { return nil }
func (BaseTask) InitializeAgent(*rand.Rand) error         { return nil }
func (BaseTask) InitializeTask(*rand.Rand) error          { return nil }

func (BaseTask) ExtraObs() *obs.Record { return obs.NewRecord() }

func (BaseTask) Evaluate() (EvalResult, error) {
	return EvalResult{}, &UnimplementedHookError{Hook: "Evaluate"}
}

func (BaseTask) DenseReward(Action) (float64, error) {
	return 0, &UnimplementedHookError{Hook: "DenseReward"}
}

func (BaseTask) BeforeControlStep() {}
func (BaseTask) AfterSimStep()      {}
