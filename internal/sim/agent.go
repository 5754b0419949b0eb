package sim

import "github.com/arenaworks/simarena/internal/sim/obs"

// Agent is the consumed surface of the agent abstraction: proprioception,
// action application under a switchable control mode, kinematic body ids
// for segmentation masking, and a per-substep hook.
//
// Agents are created by the task's LoadAgent hook during reconfigure and
// hold non-owning references into the scene, so an agent instance never
// survives a reconfigure.
type Agent interface {
	// Proprioception reports the agent's internal state observation
	// (joint positions/velocities and similar).
	Proprioception() *obs.Record

	// KinematicIDs reports the engine body ids belonging to the agent,
	// used to derive robot segmentation masks.
	KinematicIDs() []uint32

	ControlMode() ControlMode
	// SetControlMode switches the action-interpretation scheme. The
	// action payload shape may change with the mode.
	SetControlMode(mode ControlMode) error

	// SetAction stages an action payload to be applied over the
	// following control step. The payload is interpreted under the
	// current control mode; a wrong payload shape is an error.
	SetAction(payload []float64) error

	// ActionDim is the payload length expected by the current control
	// mode.
	ActionDim() int

	// BeforeSimStep is invoked once per physics substep, before the
	// engine tick, to convert the staged action into engine commands.
	BeforeSimStep()
}
