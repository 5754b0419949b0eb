package engine

import "math"

// Vec3 is a 3-vector (x, y, z).
type Vec3 [3]float64

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Scale returns s·v.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{s * v[0], s * v[1], s * v[2]}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Quat is a unit quaternion in (w, x, y, z) order.
type Quat [4]float64

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat {
	return Quat{1, 0, 0, 0}
}

// Normalize returns q scaled to unit length. The zero quaternion
// normalizes to the identity.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n == 0 {
		return QuatIdentity()
	}
	return Quat{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// Mul returns the Hamilton product q·r (apply r, then q).
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		q[0]*r[0] - q[1]*r[1] - q[2]*r[2] - q[3]*r[3],
		q[0]*r[1] + q[1]*r[0] + q[2]*r[3] - q[3]*r[2],
		q[0]*r[2] - q[1]*r[3] + q[2]*r[0] + q[3]*r[1],
		q[0]*r[3] + q[1]*r[2] - q[2]*r[1] + q[3]*r[0],
	}
}

// Conj returns the conjugate (inverse for unit quaternions).
func (q Quat) Conj() Quat {
	return Quat{q[0], -q[1], -q[2], -q[3]}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v' = q * (0, v) * q⁻¹
	p := Quat{0, v[0], v[1], v[2]}
	r := q.Mul(p).Mul(q.Conj())
	return Vec3{r[1], r[2], r[3]}
}

// rotationMatrix returns the 3×3 rotation matrix entries of q, row-major.
func (q Quat) rotationMatrix() [9]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// Pose is a rigid transform: rotation Q followed by translation P.
type Pose struct {
	P Vec3
	Q Quat
}

// PoseIdentity returns the identity transform.
func PoseIdentity() Pose {
	return Pose{Q: QuatIdentity()}
}

// Mul composes transforms: (p.Mul(o)).Apply(v) == p.Apply(o.Apply(v)).
func (p Pose) Mul(o Pose) Pose {
	return Pose{
		P: p.P.Add(p.Q.Rotate(o.P)),
		Q: p.Q.Mul(o.Q).Normalize(),
	}
}

// Inv returns the inverse transform.
func (p Pose) Inv() Pose {
	qi := p.Q.Conj()
	return Pose{P: qi.Rotate(p.P).Scale(-1), Q: qi}
}

// Apply transforms the point v.
func (p Pose) Apply(v Vec3) Vec3 {
	return p.Q.Rotate(v).Add(p.P)
}

// Matrix returns the 4×4 homogeneous transform, row-major.
func (p Pose) Matrix() [16]float64 {
	r := p.Q.rotationMatrix()
	return [16]float64{
		r[0], r[1], r[2], p.P[0],
		r[3], r[4], r[5], p.P[1],
		r[6], r[7], r[8], p.P[2],
		0, 0, 0, 1,
	}
}
