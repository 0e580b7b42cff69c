package mathutil

import "math"

// RotX returns a 3×3 rotation matrix around the X axis. Angle in radians.
func RotX(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

// RotY returns a 3×3 rotation matrix around the Y axis.
func RotY(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}
}

// RotZ returns a 3×3 rotation matrix around the Z axis.
func RotZ(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// RotAxis returns the rotation around basis axis 0, 1 or 2.
func RotAxis(axis int, a float64) Mat3 {
	switch axis {
	case 0:
		return RotX(a)
	case 1:
		return RotY(a)
	default:
		return RotZ(a)
	}
}

// AxisAngleToMat3 builds a rotation around an arbitrary axis. A zero axis gives identity.
func AxisAngleToMat3(axis Vec3, angle float64) Mat3 {
	n := axis.Normalize()
	if n.IsZero() {
		return Mat3Identity()
	}
	return axisAngleNormalizedToMat3(n, angle)
}

func axisAngleNormalizedToMat3(n Vec3, angle float64) Mat3 {
	c, s := math.Cos(angle), math.Sin(angle)
	ico := 1 - c
	n0, n1, n2 := n[0], n[1], n[2]

	var m Mat3
	m.SetAxis(0, Vec3{n0*n0*ico + c, n0*n1*ico + n2*s, n0*n2*ico - n1*s})
	m.SetAxis(1, Vec3{n0*n1*ico - n2*s, n1*n1*ico + c, n1*n2*ico + n0*s})
	m.SetAxis(2, Vec3{n0*n2*ico + n1*s, n1*n2*ico - n0*s, n2*n2*ico + c})
	return m
}

// Mat3ToAxisAngle extracts a normalized axis and angle from a rotation matrix.
func Mat3ToAxisAngle(m Mat3) (Vec3, float64) {
	return QuatToAxisAngle(Mat3ToQuat(m))
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}

func Rad2Deg(r float64) float64 {
	return r * 180 / math.Pi
}

// VecRollToMat3 returns the bone rest rotation whose Y axis points along vec,
// twisted by roll radians around it.
func VecRollToMat3(vec Vec3, roll float64) Mat3 {
	const (
		safeThreshold = 6.1e-3
		critThreshold = 2.5e-4
	)
	nor := vec.Normalize()
	x, y, z := nor[0], nor[1], nor[2]

	// columns of the rotation taking +Y onto nor
	var b Mat3
	set := func(c, r int, v float64) { b[r*3+c] = v }

	theta := 1 + y
	thetaAlt := x*x + z*z
	if theta > safeThreshold || thetaAlt > critThreshold*critThreshold {
		set(0, 1, -x)
		set(1, 0, x)
		set(1, 1, y)
		set(1, 2, z)
		set(2, 1, -z)

		if theta <= safeThreshold {
			// near -Y: second order approximation of 1 + y
			theta = thetaAlt*0.5 + thetaAlt*thetaAlt*0.125
		}
		set(0, 0, 1-x*x/theta)
		set(2, 2, 1-z*z/theta)
		set(2, 0, -x*z/theta)
		set(0, 2, -x*z/theta)
	} else {
		b = Mat3Diag(-1, -1, 1)
	}

	return Mat3Mul(axisAngleNormalizedToMat3(nor, roll), b)
}
