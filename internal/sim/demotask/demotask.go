// Package demotask provides a minimal reach task: a three-axis gantry
// agent must bring its tip within a small radius of a goal point sampled
// near a cube. It exercises every task hook and both joint control modes,
// and serves as the workload for tests and the rollout runner.
package demotask

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/arenaworks/simarena/internal/sim"
	"github.com/arenaworks/simarena/internal/sim/camera"
	"github.com/arenaworks/simarena/internal/sim/engine"
	"github.com/arenaworks/simarena/internal/sim/obs"
)

const (
	// ControlJointPosition drives joints toward target positions with a
	// proportional velocity controller.
	ControlJointPosition sim.ControlMode = "joint_position"
	// ControlJointVelocity applies the action directly as joint
	// velocities.
	ControlJointVelocity sim.ControlMode = "joint_velocity"
)

const (
	gantryName    = "gantry"
	cubeHalfSize  = 0.02
	successRadius = 0.025
	positionGain  = 20.0
)

// Task is the reach task. The zero value is ready to use; construct one
// per environment since hooks retain scene handles between calls.
type Task struct {
	sim.BaseTask

	agent *gantryAgent
	cube  engine.Actor
	goal  engine.Vec3
}

// New returns a fresh reach task.
func New() *Task {
	return &Task{}
}

func (t *Task) LoadAgent(scene engine.Scene) (sim.Agent, error) {
	art, err := scene.AddArticulation(engine.ArticulationConfig{
		Name:   gantryName,
		Pose:   engine.PoseIdentity(),
		Joints: []string{"x", "y", "z"},
	})
	if err != nil {
		return nil, err
	}
	t.agent = &gantryAgent{art: art, mode: ControlJointPosition}
	return t.agent, nil
}

func (t *Task) LoadActors(scene engine.Scene) error {
	if _, err := scene.AddActor(engine.ActorConfig{Name: "table", Static: true}); err != nil {
		return err
	}
	cube, err := scene.AddActor(engine.ActorConfig{
		Name: "cube",
		Pose: engine.Pose{P: engine.Vec3{0, 0, cubeHalfSize}, Q: engine.QuatIdentity()},
	})
	if err != nil {
		return err
	}
	t.cube = cube
	return nil
}

func (t *Task) CameraConfigs() []camera.Config {
	return []camera.Config{
		{
			UUID:   "base_camera",
			Pose:   engine.Pose{P: engine.Vec3{0, 0, 0.6}, Q: engine.QuatIdentity()},
			Width:  32,
			Height: 24,
			FOVY:   math.Pi / 2,
			Near:   0.01,
			Far:    10,
			Channels: []engine.Channel{
				engine.ChannelColor, engine.ChannelPosition, engine.ChannelSegmentation,
			},
		},
		{
			UUID:              "hand_camera",
			Pose:              engine.Pose{P: engine.Vec3{0, 0, -0.05}, Q: engine.QuatIdentity()},
			Width:             16,
			Height:            16,
			FOVY:              math.Pi / 2,
			Near:              0.01,
			Far:               10,
			MountArticulation: gantryName,
			MountLink:         gantryName + "/link_z",
		},
		{
			UUID:   "render_camera",
			Pose:   engine.Pose{P: engine.Vec3{0.5, 0.5, 0.5}, Q: engine.QuatIdentity()},
			Width:  64,
			Height: 48,
			FOVY:   1.0,
			Near:   0.01,
			Far:    10,
			Channels: []engine.Channel{
				engine.ChannelColor,
			},
		},
	}
}

// InitializeActors places the cube uniformly on the table surface.
func (t *Task) InitializeActors(rng *rand.Rand) error {
	x := rng.Float64()*0.4 - 0.2
	y := rng.Float64()*0.4 - 0.2
	t.cube.SetPose(engine.Pose{P: engine.Vec3{x, y, cubeHalfSize}, Q: engine.QuatIdentity()})
	t.cube.SetVelocity(engine.Vec3{})
	t.cube.SetAngularVelocity(engine.Vec3{})
	return nil
}

// InitializeAgent starts the gantry at a small random joint perturbation
// around home, at rest.
func (t *Task) InitializeAgent(rng *rand.Rand) error {
	q := make([]float64, t.agent.art.DOF())
	for i := range q {
		q[i] = rng.Float64()*0.04 - 0.02
	}
	if err := t.agent.art.SetJointPositions(q); err != nil {
		return err
	}
	if err := t.agent.art.SetJointVelocities(make([]float64, len(q))); err != nil {
		return err
	}
	t.agent.staged = nil
	return nil
}

// InitializeTask samples the goal just above the cube.
func (t *Task) InitializeTask(rng *rand.Rand) error {
	p := t.cube.Pose().P
	t.goal = engine.Vec3{
		p[0] + rng.Float64()*0.02 - 0.01,
		p[1] + rng.Float64()*0.02 - 0.01,
		p[2] + 0.05,
	}
	return nil
}

// Goal reports the current episode's goal point.
func (t *Task) Goal() engine.Vec3 { return t.goal }

func (t *Task) tcp() engine.Vec3 {
	links := t.agent.art.Links()
	return links[len(links)-1].Pose().P
}

func (t *Task) ExtraObs() *obs.Record {
	tcp := t.tcp()
	cube := t.cube.Pose().P
	return obs.NewRecord().
		Set("tcp_pos", obs.Floats{tcp[0], tcp[1], tcp[2]}).
		Set("cube_pos", obs.Floats{cube[0], cube[1], cube[2]}).
		Set("goal_pos", obs.Floats{t.goal[0], t.goal[1], t.goal[2]})
}

func (t *Task) Evaluate() (sim.EvalResult, error) {
	d := t.tcp().Sub(t.goal).Norm()
	return sim.EvalResult{
		Success: d < successRadius,
		Extra:   obs.NewRecord().Set("goal_dist", obs.Scalar(d)),
	}, nil
}

// DenseReward is the negative tip-to-goal distance.
func (t *Task) DenseReward(sim.Action) (float64, error) {
	return -t.tcp().Sub(t.goal).Norm(), nil
}

// gantryAgent drives the three prismatic joints. Actions are staged by
// SetAction and converted to joint velocities once per physics substep.
type gantryAgent struct {
	art    engine.Articulation
	mode   sim.ControlMode
	staged []float64
}

func (a *gantryAgent) Proprioception() *obs.Record {
	return obs.NewRecord().
		Set("qpos", obs.Floats(a.art.JointPositions())).
		Set("qvel", obs.Floats(a.art.JointVelocities()))
}

func (a *gantryAgent) KinematicIDs() []uint32 {
	links := a.art.Links()
	ids := make([]uint32, len(links))
	for i, link := range links {
		ids[i] = link.ID()
	}
	return ids
}

func (a *gantryAgent) ControlMode() sim.ControlMode { return a.mode }

func (a *gantryAgent) SetControlMode(mode sim.ControlMode) error {
	switch mode {
	case ControlJointPosition, ControlJointVelocity:
		a.mode = mode
		a.staged = nil
		return nil
	default:
		return fmt.Errorf("unknown control mode %q", mode)
	}
}

func (a *gantryAgent) SetAction(payload []float64) error {
	if len(payload) != a.ActionDim() {
		return fmt.Errorf("action length %d, want %d", len(payload), a.ActionDim())
	}
	a.staged = append(a.staged[:0], payload...)
	return nil
}

func (a *gantryAgent) ActionDim() int { return a.art.DOF() }

func (a *gantryAgent) BeforeSimStep() {
	if a.staged == nil {
		return
	}
	qv := make([]float64, a.art.DOF())
	switch a.mode {
	case ControlJointVelocity:
		copy(qv, a.staged)
	case ControlJointPosition:
		q := a.art.JointPositions()
		for i := range qv {
			qv[i] = positionGain * (a.staged[i] - q[i])
		}
	}
	if err := a.art.SetJointVelocities(qv); err != nil {
		sim.Opsf("gantry velocity command: %v", err)
	}
}
