package statecodec

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arenaworks/simarena/internal/sim/engine"
	"github.com/arenaworks/simarena/internal/sim/engine/enginetest"
)

// buildScene creates two free actors and a 3-DOF articulation with
// non-trivial state.
func buildScene(t *testing.T) engine.Scene {
	t.Helper()
	eng := enginetest.New(engine.BackendRaster)
	scene, err := eng.CreateScene(engine.SceneConfig{Timestep: 0.01})
	if err != nil {
		t.Fatalf("CreateScene: %v", err)
	}

	a, err := scene.AddActor(engine.ActorConfig{
		Name: "cube",
		Pose: engine.Pose{P: engine.Vec3{1, 2, 3}, Q: engine.Quat{0.9, 0.1, -0.2, 0.3}.Normalize()},
	})
	if err != nil {
		t.Fatalf("AddActor: %v", err)
	}
	a.SetVelocity(engine.Vec3{0.1, 0.2, 0.3})
	a.SetAngularVelocity(engine.Vec3{-0.1, 0, 0.5})

	if _, err := scene.AddActor(engine.ActorConfig{Name: "table", Static: true}); err != nil {
		t.Fatalf("AddActor: %v", err)
	}

	art, err := scene.AddArticulation(engine.ArticulationConfig{Name: "arm", Joints: []string{"x", "y", "z"}})
	if err != nil {
		t.Fatalf("AddArticulation: %v", err)
	}
	if err := art.SetJointPositions([]float64{0.5, -0.25, 1.5}); err != nil {
		t.Fatalf("SetJointPositions: %v", err)
	}
	if err := art.SetJointVelocities([]float64{1, 2, 3}); err != nil {
		t.Fatalf("SetJointVelocities: %v", err)
	}
	return scene
}

func TestSnapshot_SegmentLaw(t *testing.T) {
	scene := buildScene(t)
	snap := Capture(scene)

	// 13×2 actors + (13 + 2×3) for the articulation.
	want := 13*2 + 13 + 2*3
	if snap.Len() != want {
		t.Errorf("Len() = %d, want %d", snap.Len(), want)
	}

	vec, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(vec) != want {
		t.Errorf("len(Encode()) = %d, want %d", len(vec), want)
	}
}

func TestRoundTrip_EncodeDecodeIsNoOp(t *testing.T) {
	scene := buildScene(t)
	snap := Capture(scene)

	before, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := snap.Decode(before); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	after, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode after decode: %v", err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("round trip changed state (-before +after):\n%s", diff)
	}
}

func TestDecode_RestoresMutatedState(t *testing.T) {
	scene := buildScene(t)
	snap := Capture(scene)

	saved, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Disturb everything, then restore.
	for i := 0; i < 50; i++ {
		scene.Step()
	}
	if err := snap.Decode(saved); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	restored, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if diff := cmp.Diff(saved, restored); diff != "" {
		t.Errorf("decode did not restore state (-saved +restored):\n%s", diff)
	}
}

func TestDecode_WrongLength(t *testing.T) {
	scene := buildScene(t)
	snap := Capture(scene)

	err := snap.Decode(make([]float64, snap.Len()-1))
	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected *ShapeMismatchError, got %v", err)
	}
}

func TestTopologyChange_AfterCaptureRaises(t *testing.T) {
	scene := buildScene(t)
	snap := Capture(scene)

	// Adding a body after capture invalidates segment boundaries.
	if _, err := scene.AddActor(engine.ActorConfig{Name: "intruder"}); err != nil {
		t.Fatalf("AddActor: %v", err)
	}

	var shapeErr *ShapeMismatchError
	if _, err := snap.Encode(); !errors.As(err, &shapeErr) {
		t.Errorf("Encode after topology change: expected *ShapeMismatchError, got %v", err)
	}
	if err := snap.Decode(make([]float64, snap.Len())); !errors.As(err, &shapeErr) {
		t.Errorf("Decode after topology change: expected *ShapeMismatchError, got %v", err)
	}
}

func TestCapture_OrderingIsStable(t *testing.T) {
	scene := buildScene(t)
	snap1 := Capture(scene)
	snap2 := Capture(scene)

	v1, err := snap1.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	v2, err := snap2.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if diff := cmp.Diff(v1, v2); diff != "" {
		t.Errorf("two captures of the same scene disagree (-v1 +v2):\n%s", diff)
	}
}
