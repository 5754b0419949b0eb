package sim

// ControlMode names the action-interpretation scheme currently active on
// the agent. Modes are defined by agents, not by this package; the
// environment only compares tags to decide whether to switch.
type ControlMode string

// Action is a step command. The set of implementations is closed:
//
//	nil           no-op step (simulate without applying an action)
//	RawAction     numeric vector applied under the current control mode
//	ModedAction   explicit control-mode tag plus payload; a differing tag
//	              switches the agent's control mode before application
type Action interface {
	isAction()
}

// RawAction is a flat action vector for the agent's current control mode.
type RawAction []float64

// ModedAction carries an explicit control-mode tag plus its payload.
type ModedAction struct {
	Mode    ControlMode
	Payload []float64
}

func (RawAction) isAction()   {}
func (ModedAction) isAction() {}
