package scene

import "rig-solver/internal/mathutil"

// RotMode selects how a Transform stores its rotation. Positive values are
// Euler orders and share numbering with mathutil.RotOrder.
type RotMode int

const (
	RotModeAxisAngle RotMode = -1
	RotModeQuat      RotMode = 0
	RotModeXYZ       RotMode = RotMode(mathutil.EulerXYZ)
	RotModeXZY       RotMode = RotMode(mathutil.EulerXZY)
	RotModeYXZ       RotMode = RotMode(mathutil.EulerYXZ)
	RotModeYZX       RotMode = RotMode(mathutil.EulerYZX)
	RotModeZXY       RotMode = RotMode(mathutil.EulerZXY)
	RotModeZYX       RotMode = RotMode(mathutil.EulerZYX)
)

// EulerOrder returns the Euler order to decompose with. Quaternion and
// axis-angle modes use XYZ.
func (m RotMode) EulerOrder() mathutil.RotOrder {
	if m > 0 {
		return mathutil.RotOrder(m)
	}
	return mathutil.EulerXYZ
}

// Transform is the loc/rot/scale property set shared by objects and pose channels.
type Transform struct {
	Loc      mathutil.Vec3
	Rot      mathutil.Vec3 // Euler, radians
	Quat     mathutil.Quat
	RotAxis  mathutil.Vec3
	RotAngle float64
	RotMode  RotMode
	Scale    mathutil.Vec3
}

// IdentityTransform is the rest transform: unit scale, identity rotation.
func IdentityTransform() Transform {
	return Transform{
		Quat:    mathutil.QuatIdentity(),
		RotAxis: mathutil.AxisY,
		RotMode: RotModeXYZ,
		Scale:   mathutil.Vec3{1, 1, 1},
	}
}

// RotMat3 returns the rotation for the active rotation mode.
func (t Transform) RotMat3() mathutil.Mat3 {
	switch {
	case t.RotMode > 0:
		return mathutil.EulOToMat3(t.Rot, t.RotMode.EulerOrder())
	case t.RotMode == RotModeAxisAngle:
		return mathutil.AxisAngleToMat3(t.RotAxis, t.RotAngle)
	default:
		return mathutil.QuatToMat3(t.Quat.Normalize())
	}
}

// Matrix composes translation × rotation × scale.
func (t Transform) Matrix() mathutil.Mat4 {
	return mathutil.LocRotSizeToMat4(t.Loc, t.RotMat3(), t.Scale)
}

// SetFromMat4 decomposes m into the transform properties. With useCompat the
// Euler solution closest to the current rotation is picked.
func (t *Transform) SetFromMat4(m mathutil.Mat4, useCompat bool) {
	loc, rot, size := m.LocRotSize()
	t.Loc = loc
	t.Scale = size
	t.setRotation(rot, useCompat)
}

func (t *Transform) setRotation(rot mathutil.Mat3, useCompat bool) {
	switch {
	case t.RotMode > 0:
		order := t.RotMode.EulerOrder()
		if useCompat {
			t.Rot = mathutil.Mat3ToCompatibleEulO(rot, t.Rot, order)
		} else {
			t.Rot = mathutil.Mat3ToEulO(rot, order)
		}
	case t.RotMode == RotModeAxisAngle:
		t.RotAxis, t.RotAngle = mathutil.Mat3ToAxisAngle(rot)
	default:
		q := mathutil.Mat3ToQuat(rot)
		if useCompat && q.Dot(t.Quat) < 0 {
			q = q.Scale(-1)
		}
		t.Quat = q
	}
}
