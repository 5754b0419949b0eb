// Package statecodec serializes kinematic scene state to and from a flat
// vector with a fixed, snapshot-derived layout.
//
// The layout authority is a Snapshot captured once per reconfigure,
// immediately after actor and articulation creation. Live engine
// enumeration is never consulted again: if iteration order ever changed
// between encode and decode, segments would silently misalign and corrupt
// every recorded trajectory. Topology changes after capture are therefore
// detected and rejected, not tolerated.
package statecodec

import (
	"fmt"

	"github.com/arenaworks/simarena/internal/sim/engine"
)

// kinematicDim is the per-body segment width: position (3), orientation
// quaternion (4), linear velocity (3), angular velocity (3).
const kinematicDim = 13

// ShapeMismatchError reports a vector length that does not match the
// snapshot layout, or scene topology that changed after capture.
type ShapeMismatchError struct {
	Want   int
	Got    int
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("state shape mismatch: %s (want %d, got %d)", e.Reason, e.Want, e.Got)
	}
	return fmt.Sprintf("state shape mismatch: want %d values, got %d", e.Want, e.Got)
}

// Snapshot is the cached, order-stable enumeration of scene bodies. It
// holds non-owning references into one scene generation and must be
// recaptured (never patched) after a reconfigure.
type Snapshot struct {
	scene  engine.Scene
	actors []engine.Actor
	arts   []engine.Articulation
	dofs   []int
}

// Capture records the scene's actor and articulation handles in creation
// order. This ordering is the sole basis for encode/decode from here on.
func Capture(scene engine.Scene) *Snapshot {
	actors := scene.Actors()
	arts := scene.Articulations()
	dofs := make([]int, len(arts))
	for i, art := range arts {
		dofs[i] = art.DOF()
	}
	return &Snapshot{scene: scene, actors: actors, arts: arts, dofs: dofs}
}

// NumActors returns the number of captured rigid actors.
func (s *Snapshot) NumActors() int { return len(s.actors) }

// NumArticulations returns the number of captured articulations.
func (s *Snapshot) NumArticulations() int { return len(s.arts) }

// Len returns the state vector length implied by the snapshot:
// 13×|actors| + Σ(13 + 2×dof) over articulations.
func (s *Snapshot) Len() int {
	n := kinematicDim * len(s.actors)
	for _, dof := range s.dofs {
		n += kinematicDim + 2*dof
	}
	return n
}

// checkTopology verifies the live scene still matches the captured
// snapshot. Bodies added or removed after capture invalidate segment
// boundaries, which must surface as an error rather than a silently
// shifted layout.
func (s *Snapshot) checkTopology() error {
	if got := len(s.scene.Actors()); got != len(s.actors) {
		return &ShapeMismatchError{
			Want:   len(s.actors),
			Got:    got,
			Reason: "actor count changed since snapshot capture",
		}
	}
	liveArts := s.scene.Articulations()
	if got := len(liveArts); got != len(s.arts) {
		return &ShapeMismatchError{
			Want:   len(s.arts),
			Got:    got,
			Reason: "articulation count changed since snapshot capture",
		}
	}
	for i, art := range s.arts {
		if got := art.DOF(); got != s.dofs[i] {
			return &ShapeMismatchError{
				Want:   s.dofs[i],
				Got:    got,
				Reason: fmt.Sprintf("articulation %q DOF changed since snapshot capture", art.Name()),
			}
		}
	}
	return nil
}

// Encode serializes the scene's kinematic state: captured actors first
// (13-wide segments), then captured articulations (13-wide root segment
// plus a joint position/velocity pair per DOF).
func (s *Snapshot) Encode() ([]float64, error) {
	if err := s.checkTopology(); err != nil {
		return nil, err
	}
	out := make([]float64, 0, s.Len())
	for _, actor := range s.actors {
		out = appendBody(out, actor.Pose(), actor.Velocity(), actor.AngularVelocity())
	}
	for _, art := range s.arts {
		out = appendBody(out, art.RootPose(), art.RootVelocity(), art.RootAngularVelocity())
		out = append(out, art.JointPositions()...)
		out = append(out, art.JointVelocities()...)
	}
	return out, nil
}

// Decode applies a state vector produced by Encode, in the same fixed
// order and segment widths. It consumes exactly len(vec) values.
func (s *Snapshot) Decode(vec []float64) error {
	if err := s.checkTopology(); err != nil {
		return err
	}
	if len(vec) != s.Len() {
		return &ShapeMismatchError{Want: s.Len(), Got: len(vec)}
	}

	off := 0
	for _, actor := range s.actors {
		pose, vel, angVel := readBody(vec[off : off+kinematicDim])
		actor.SetPose(pose)
		actor.SetVelocity(vel)
		actor.SetAngularVelocity(angVel)
		off += kinematicDim
	}
	for i, art := range s.arts {
		pose, vel, angVel := readBody(vec[off : off+kinematicDim])
		art.SetRootPose(pose)
		art.SetRootVelocity(vel)
		art.SetRootAngularVelocity(angVel)
		off += kinematicDim

		dof := s.dofs[i]
		if err := art.SetJointPositions(vec[off : off+dof]); err != nil {
			return fmt.Errorf("decode articulation %q joint positions: %w", art.Name(), err)
		}
		off += dof
		if err := art.SetJointVelocities(vec[off : off+dof]); err != nil {
			return fmt.Errorf("decode articulation %q joint velocities: %w", art.Name(), err)
		}
		off += dof
	}
	return nil
}

func appendBody(out []float64, pose engine.Pose, vel, angVel engine.Vec3) []float64 {
	out = append(out, pose.P[0], pose.P[1], pose.P[2])
	out = append(out, pose.Q[0], pose.Q[1], pose.Q[2], pose.Q[3])
	out = append(out, vel[0], vel[1], vel[2])
	out = append(out, angVel[0], angVel[1], angVel[2])
	return out
}

func readBody(seg []float64) (engine.Pose, engine.Vec3, engine.Vec3) {
	pose := engine.Pose{
		P: engine.Vec3{seg[0], seg[1], seg[2]},
		Q: engine.Quat{seg[3], seg[4], seg[5], seg[6]},
	}
	vel := engine.Vec3{seg[7], seg[8], seg[9]}
	angVel := engine.Vec3{seg[10], seg[11], seg[12]}
	return pose, vel, angVel
}
