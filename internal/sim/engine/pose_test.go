package engine

import (
	"math"
	"testing"
)

const poseEps = 1e-12

func vecApproxEqual(a, b Vec3, eps float64) bool {
	return math.Abs(a[0]-b[0]) < eps && math.Abs(a[1]-b[1]) < eps && math.Abs(a[2]-b[2]) < eps
}

func TestQuatRotate_Identity(t *testing.T) {
	v := Vec3{1, 2, 3}
	got := QuatIdentity().Rotate(v)
	if !vecApproxEqual(got, v, poseEps) {
		t.Errorf("identity rotation changed vector: %v -> %v", v, got)
	}
}

func TestQuatRotate_QuarterTurnZ(t *testing.T) {
	// 90° about +Z maps +X to +Y.
	s := math.Sqrt(0.5)
	q := Quat{s, 0, 0, s}
	got := q.Rotate(Vec3{1, 0, 0})
	if !vecApproxEqual(got, Vec3{0, 1, 0}, 1e-9) {
		t.Errorf("expected (0,1,0), got %v", got)
	}
}

func TestQuatNormalize_Zero(t *testing.T) {
	if got := (Quat{}).Normalize(); got != QuatIdentity() {
		t.Errorf("zero quaternion should normalize to identity, got %v", got)
	}
}

func TestPoseMulApply_Compose(t *testing.T) {
	s := math.Sqrt(0.5)
	a := Pose{P: Vec3{1, 0, 0}, Q: Quat{s, 0, 0, s}}
	b := Pose{P: Vec3{0, 2, 0}, Q: QuatIdentity()}
	v := Vec3{3, 0, 0}

	want := a.Apply(b.Apply(v))
	got := a.Mul(b).Apply(v)
	if !vecApproxEqual(got, want, 1e-9) {
		t.Errorf("composition mismatch: got %v, want %v", got, want)
	}
}

func TestPoseInv_RoundTrip(t *testing.T) {
	p := Pose{P: Vec3{0.3, -1.2, 2.5}, Q: Quat{0.9, 0.1, -0.2, 0.4}.Normalize()}
	v := Vec3{-0.5, 0.25, 1.75}

	got := p.Inv().Apply(p.Apply(v))
	if !vecApproxEqual(got, v, 1e-9) {
		t.Errorf("inverse round trip mismatch: got %v, want %v", got, v)
	}
}

func TestPoseMatrix_MatchesApply(t *testing.T) {
	p := Pose{P: Vec3{1, 2, 3}, Q: Quat{0.8, 0.2, 0.3, -0.1}.Normalize()}
	v := Vec3{0.7, -0.4, 0.9}

	m := p.Matrix()
	var got Vec3
	for i := 0; i < 3; i++ {
		got[i] = m[i*4]*v[0] + m[i*4+1]*v[1] + m[i*4+2]*v[2] + m[i*4+3]
	}
	want := p.Apply(v)
	if !vecApproxEqual(got, want, 1e-9) {
		t.Errorf("matrix apply mismatch: got %v, want %v", got, want)
	}
	// Bottom row must be homogeneous.
	if m[12] != 0 || m[13] != 0 || m[14] != 0 || m[15] != 1 {
		t.Errorf("bad bottom row: %v", m[12:16])
	}
}

func TestBackendColorOnly(t *testing.T) {
	if BackendRaster.ColorOnly() {
		t.Error("raster backend must support all channels")
	}
	if !BackendRayTrace.ColorOnly() {
		t.Error("raytrace backend must be color-only")
	}
}

func TestChannelString(t *testing.T) {
	cases := map[Channel]string{
		ChannelColor:        "Color",
		ChannelPosition:     "Position",
		ChannelSegmentation: "Segmentation",
	}
	for ch, want := range cases {
		if got := ch.String(); got != want {
			t.Errorf("Channel(%d).String() = %q, want %q", ch, got, want)
		}
	}
}
