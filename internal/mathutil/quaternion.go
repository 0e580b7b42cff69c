package mathutil

import "math"

// Quat represents a quaternion (x, y, z, w).
type Quat [4]float64

func QuatIdentity() Quat {
	return Quat{0, 0, 0, 1}
}

func (q Quat) W() float64 { return q[3] }

// Vec returns the imaginary part.
func (q Quat) Vec() Vec3 { return Vec3{q[0], q[1], q[2]} }

// EulerToQuat converts Euler XYZ (radians) to a quaternion.
func EulerToQuat(rx, ry, rz float64) Quat {
	cx, sx := math.Cos(rx*0.5), math.Sin(rx*0.5)
	cy, sy := math.Cos(ry*0.5), math.Sin(ry*0.5)
	cz, sz := math.Cos(rz*0.5), math.Sin(rz*0.5)

	return Quat{
		sx*cy*cz - cx*sy*sz, // x
		cx*sy*cz + sx*cy*sz, // y
		cx*cy*sz - sx*sy*cz, // z
		cx*cy*cz + sx*sy*sz, // w
	}
}

// QuatToMat3 converts a quaternion to a 3×3 rotation matrix.
func QuatToMat3(q Quat) Mat3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat3{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy),
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx),
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy),
	}
}

// QuatMul returns the Hamilton product a × b (apply b, then a).
func QuatMul(a, b Quat) Quat {
	ax, ay, az, aw := a[0], a[1], a[2], a[3]
	bx, by, bz, bw := b[0], b[1], b[2], b[3]
	return Quat{
		aw*bx + ax*bw + ay*bz - az*by,
		aw*by + ay*bw + az*bx - ax*bz,
		aw*bz + az*bw + ax*by - ay*bx,
		aw*bw - ax*bx - ay*by - az*bz,
	}
}

func (a Quat) Dot(b Quat) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
}

func (q Quat) Len() float64 {
	return math.Sqrt(q.Dot(q))
}

func (q Quat) Scale(s float64) Quat {
	return Quat{q[0] * s, q[1] * s, q[2] * s, q[3] * s}
}

func (a Quat) Add(b Quat) Quat {
	return Quat{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}

// Normalize returns the unit quaternion. A zero quaternion becomes (x=1, w=0).
func (q Quat) Normalize() Quat {
	l := q.Len()
	if l == 0 {
		return Quat{1, 0, 0, 0}
	}
	return q.Scale(1 / l)
}

func (q Quat) Conjugate() Quat {
	return Quat{-q[0], -q[1], -q[2], q[3]}
}

// Mat3ToQuat converts a rotation matrix to a quaternion. The matrix is normalized first.
func Mat3ToQuat(m Mat3) Quat {
	return mat3NormalizedToQuat(m.Normalized())
}

func mat3NormalizedToQuat(m Mat3) Quat {
	var w, x, y, z float64
	if m.cr(2, 2) < 0 {
		if m.cr(0, 0) > m.cr(1, 1) {
			trace := 1 + m.cr(0, 0) - m.cr(1, 1) - m.cr(2, 2)
			s := 2 * math.Sqrt(trace)
			if m.cr(1, 2) < m.cr(2, 1) {
				s = -s
			}
			x = 0.25 * s
			s = 1 / s
			w = (m.cr(1, 2) - m.cr(2, 1)) * s
			y = (m.cr(0, 1) + m.cr(1, 0)) * s
			z = (m.cr(2, 0) + m.cr(0, 2)) * s
			if trace == 1 && w == 0 && y == 0 && z == 0 {
				x = 1
			}
		} else {
			trace := 1 - m.cr(0, 0) + m.cr(1, 1) - m.cr(2, 2)
			s := 2 * math.Sqrt(trace)
			if m.cr(2, 0) < m.cr(0, 2) {
				s = -s
			}
			y = 0.25 * s
			s = 1 / s
			w = (m.cr(2, 0) - m.cr(0, 2)) * s
			x = (m.cr(0, 1) + m.cr(1, 0)) * s
			z = (m.cr(1, 2) + m.cr(2, 1)) * s
			if trace == 1 && w == 0 && x == 0 && z == 0 {
				y = 1
			}
		}
	} else {
		if m.cr(0, 0) < -m.cr(1, 1) {
			trace := 1 - m.cr(0, 0) - m.cr(1, 1) + m.cr(2, 2)
			s := 2 * math.Sqrt(trace)
			if m.cr(0, 1) < m.cr(1, 0) {
				s = -s
			}
			z = 0.25 * s
			s = 1 / s
			w = (m.cr(0, 1) - m.cr(1, 0)) * s
			x = (m.cr(2, 0) + m.cr(0, 2)) * s
			y = (m.cr(1, 2) + m.cr(2, 1)) * s
			if trace == 1 && w == 0 && x == 0 && y == 0 {
				z = 1
			}
		} else {
			trace := 1 + m.cr(0, 0) + m.cr(1, 1) + m.cr(2, 2)
			s := 2 * math.Sqrt(trace)
			w = 0.25 * s
			s = 1 / s
			x = (m.cr(1, 2) - m.cr(2, 1)) * s
			y = (m.cr(2, 0) - m.cr(0, 2)) * s
			z = (m.cr(0, 1) - m.cr(1, 0)) * s
		}
	}
	return Quat{x, y, z, w}.Normalize()
}

// AxisAngleToQuat builds a rotation quaternion. A zero axis gives identity.
func AxisAngleToQuat(axis Vec3, angle float64) Quat {
	n := axis.Normalize()
	if n.IsZero() {
		return QuatIdentity()
	}
	s := math.Sin(angle / 2)
	return Quat{n[0] * s, n[1] * s, n[2] * s, math.Cos(angle / 2)}
}

// QuatToAxisAngle returns the rotation axis and angle. A zero rotation
// reports the Y axis.
func QuatToAxisAngle(q Quat) (Vec3, float64) {
	ha := math.Acos(Clamp(q[3], -1, 1))
	si := math.Sin(ha)
	if math.Abs(si) < 0.0005 {
		si = 1
	}
	axis := Vec3{q[0] / si, q[1] / si, q[2] / si}
	if axis.IsZero() {
		axis = AxisY
	}
	return axis, 2 * ha
}

// QuatSlerp interpolates along the shortest arc.
func QuatSlerp(a, b Quat, t float64) Quat {
	cosom := a.Dot(b)
	if cosom < 0 {
		cosom = -cosom
		a = a.Scale(-1)
	}

	var w0, w1 float64
	if 1-cosom > 1e-4 {
		omega := math.Acos(cosom)
		sinom := math.Sin(omega)
		w0 = math.Sin((1-t)*omega) / sinom
		w1 = math.Sin(t*omega) / sinom
	} else {
		w0, w1 = 1-t, t
	}
	return a.Scale(w0).Add(b.Scale(w1))
}

// VecToQuat returns the rotation pointing the given track axis (0..5 for
// X, Y, Z, -X, -Y, -Z) along vec, keeping the up axis (0..2) as level as possible.
func VecToQuat(vec Vec3, axis, upflag int) Quat {
	const eps = 1e-4
	q := QuatIdentity()

	l := vec.Len()
	if l == 0 {
		return q
	}

	var tvec Vec3
	if axis > 2 {
		tvec = vec
		axis -= 3
	} else {
		tvec = vec.Neg()
	}

	var nor Vec3
	var co float64
	switch axis {
	case 0:
		nor = Vec3{0, -tvec[2], tvec[1]}
		if math.Abs(tvec[1])+math.Abs(tvec[2]) < eps {
			nor[1] = 1
		}
		co = tvec[0]
	case 1:
		nor = Vec3{tvec[2], 0, -tvec[0]}
		if math.Abs(tvec[0])+math.Abs(tvec[2]) < eps {
			nor[2] = 1
		}
		co = tvec[1]
	default:
		nor = Vec3{-tvec[1], tvec[0], 0}
		if math.Abs(tvec[0])+math.Abs(tvec[1]) < eps {
			nor[0] = 1
		}
		co = tvec[2]
	}
	co /= l

	q = AxisAngleToQuat(nor, math.Acos(Clamp(co, -1, 1)))

	if axis != upflag {
		fp := QuatToMat3(q).Axis(2)
		var angle float64
		switch axis {
		case 0:
			if upflag == 1 {
				angle = 0.5 * math.Atan2(fp[2], fp[1])
			} else {
				angle = -0.5 * math.Atan2(fp[1], fp[2])
			}
		case 1:
			if upflag == 0 {
				angle = -0.5 * math.Atan2(fp[2], fp[0])
			} else {
				angle = 0.5 * math.Atan2(fp[0], fp[2])
			}
		default:
			if upflag == 0 {
				angle = 0.5 * math.Atan2(-fp[1], -fp[0])
			} else {
				angle = -0.5 * math.Atan2(-fp[0], -fp[1])
			}
		}

		si := math.Sin(angle) / l
		q2 := Quat{tvec[0] * si, tvec[1] * si, tvec[2] * si, math.Cos(angle)}
		q = QuatMul(q2, q)
	}
	return q
}

// QuatApplyTrack rotates a path orientation (which points -Y forward, Z up)
// so that the given track axis (0..5) and up axis (0..2) follow it instead.
func QuatApplyTrack(q Quat, axis, upflag int) Quat {
	const s = math.Sqrt2 / 2
	// (x, y, z, w)
	table := [6]Quat{
		{0, -s, 0, s},
		{0.5, 0.5, 0.5, 0.5},
		{0, 0, s, s},
		{0, s, 0, s},
		{-0.5, -0.5, 0.5, 0.5},
		{s, s, 0, 0},
	}
	q = QuatMul(q, table[axis])

	if axis > 2 {
		axis -= 3
	}
	if upflag != (2-axis)>>1 {
		q2 := Quat{0, 0, 0, s}
		if axis == 1 {
			q2[axis] = s
		} else {
			q2[axis] = -s
		}
		q = QuatMul(q, q2)
	}
	return q
}

// QuatToMat4 converts a quaternion to a rotation-only 4×4 matrix.
func QuatToMat4(q Quat) Mat4 {
	return FromMat3Translation(QuatToMat3(q), Vec3{})
}
