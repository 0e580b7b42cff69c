package mathutil

import "math"

// RotOrder selects the axis order of an Euler rotation.
// Values below EulerXYZ (quaternion and axis-angle rotation modes) are
// treated as XYZ.
type RotOrder int

const (
	EulerXYZ RotOrder = iota + 1
	EulerXZY
	EulerYXZ
	EulerYZX
	EulerZXY
	EulerZYX
)

type rotOrderInfo struct {
	axis   [3]int
	parity bool
}

var rotOrders = [...]rotOrderInfo{
	{[3]int{0, 1, 2}, false},
	{[3]int{0, 2, 1}, true},
	{[3]int{1, 0, 2}, true},
	{[3]int{1, 2, 0}, false},
	{[3]int{2, 0, 1}, false},
	{[3]int{2, 1, 0}, true},
}

func (o RotOrder) info() rotOrderInfo {
	if o < EulerXYZ || o > EulerZYX {
		return rotOrders[0]
	}
	return rotOrders[o-EulerXYZ]
}

var rotOrderNames = [...]string{"XYZ", "XZY", "YXZ", "YZX", "ZXY", "ZYX"}

func (o RotOrder) String() string {
	if o < EulerXYZ || o > EulerZYX {
		return "XYZ"
	}
	return rotOrderNames[o-EulerXYZ]
}

// ParseRotOrder maps "XYZ".."ZYX" to a RotOrder.
func ParseRotOrder(s string) (RotOrder, bool) {
	for i, n := range rotOrderNames {
		if n == s {
			return RotOrder(i) + EulerXYZ, true
		}
	}
	return EulerXYZ, false
}

// EulOToMat3 converts Euler angles (radians) in the given order to a rotation matrix.
func EulOToMat3(e Vec3, order RotOrder) Mat3 {
	r := order.info()
	i, j, k := r.axis[0], r.axis[1], r.axis[2]

	ti, tj, th := e[i], e[j], e[k]
	if r.parity {
		ti, tj, th = -ti, -tj, -th
	}
	ci, cj, ch := math.Cos(ti), math.Cos(tj), math.Cos(th)
	si, sj, sh := math.Sin(ti), math.Sin(tj), math.Sin(th)
	cc, cs := ci*ch, ci*sh
	sc, ss := si*ch, si*sh

	var m Mat3
	set := func(c, row int, v float64) { m[row*3+c] = v }
	set(i, i, cj*ch)
	set(j, i, sj*sc-cs)
	set(k, i, sj*cc+ss)
	set(i, j, cj*sh)
	set(j, j, sj*ss+cc)
	set(k, j, sj*cs-sc)
	set(i, k, -sj)
	set(j, k, cj*si)
	set(k, k, cj*ci)
	return m
}

// mat3NormalizedToEulO2 returns both Euler solutions of a rotation matrix.
func mat3NormalizedToEulO2(m Mat3, order RotOrder) (Vec3, Vec3) {
	r := order.info()
	i, j, k := r.axis[0], r.axis[1], r.axis[2]

	var e1, e2 Vec3
	cy := math.Hypot(m.cr(i, i), m.cr(i, j))
	if cy > 16*flt32Epsilon {
		e1[i] = math.Atan2(m.cr(j, k), m.cr(k, k))
		e1[j] = math.Atan2(-m.cr(i, k), cy)
		e1[k] = math.Atan2(m.cr(i, j), m.cr(i, i))

		e2[i] = math.Atan2(-m.cr(j, k), -m.cr(k, k))
		e2[j] = math.Atan2(-m.cr(i, k), -cy)
		e2[k] = math.Atan2(-m.cr(i, j), -m.cr(i, i))
	} else {
		e1[i] = math.Atan2(-m.cr(k, j), m.cr(j, j))
		e1[j] = math.Atan2(-m.cr(i, k), cy)
		e1[k] = 0
		e2 = e1
	}
	if r.parity {
		e1, e2 = e1.Neg(), e2.Neg()
	}
	return e1, e2
}

// Mat3ToEulO converts a rotation matrix to Euler angles, picking the solution
// with the smallest total magnitude. The matrix is normalized first.
func Mat3ToEulO(m Mat3, order RotOrder) Vec3 {
	e1, e2 := mat3NormalizedToEulO2(m.Normalized(), order)
	if e1.ManhattanLen() > e2.ManhattanLen() {
		return e2
	}
	return e1
}

// CompatibleEul adjusts eul by whole turns so it lies close to old.
func CompatibleEul(eul, old Vec3) Vec3 {
	const piThresh = 5.1
	const pi2 = 2 * math.Pi

	var d Vec3
	for i := 0; i < 3; i++ {
		d[i] = eul[i] - old[i]
		if d[i] > piThresh {
			eul[i] -= math.Floor(d[i]/pi2+0.5) * pi2
			d[i] = eul[i] - old[i]
		} else if d[i] < -piThresh {
			eul[i] += math.Floor(-d[i]/pi2+0.5) * pi2
			d[i] = eul[i] - old[i]
		}
	}

	// one axis beyond 180 degrees while the other two are small
	for i := 0; i < 3; i++ {
		a, b := (i+1)%3, (i+2)%3
		if math.Abs(d[i]) > 3.2 && math.Abs(d[a]) < 1.6 && math.Abs(d[b]) < 1.6 {
			if d[i] > 0 {
				eul[i] -= pi2
			} else {
				eul[i] += pi2
			}
		}
	}
	return eul
}

// Mat3ToCompatibleEulO converts a rotation matrix to the Euler solution
// closest to old.
func Mat3ToCompatibleEulO(m Mat3, old Vec3, order RotOrder) Vec3 {
	e1, e2 := mat3NormalizedToEulO2(m.Normalized(), order)
	e1 = CompatibleEul(e1, old)
	e2 = CompatibleEul(e2, old)
	if e1.Sub(old).ManhattanLen() > e2.Sub(old).ManhattanLen() {
		return e2
	}
	return e1
}

// EulOToQuat converts Euler angles in the given order to a quaternion.
func EulOToQuat(e Vec3, order RotOrder) Quat {
	r := order.info()
	i, j, k := r.axis[0], r.axis[1], r.axis[2]

	ti := e[i] * 0.5
	tj := e[j] * 0.5
	if r.parity {
		tj = -tj
	}
	th := e[k] * 0.5

	ci, cj, ch := math.Cos(ti), math.Cos(tj), math.Cos(th)
	si, sj, sh := math.Sin(ti), math.Sin(tj), math.Sin(th)
	cc, cs := ci*ch, ci*sh
	sc, ss := si*ch, si*sh

	var a Vec3
	a[i] = cj*sc - sj*cs
	a[j] = cj*ss + sj*cc
	a[k] = cj*cs - sj*sc

	q := Quat{a[0], a[1], a[2], cj*cc + sj*ss}
	if r.parity {
		q[j] = -q[j]
	}
	return q
}

func QuatToEulO(q Quat, order RotOrder) Vec3 {
	return Mat3ToEulO(QuatToMat3(q), order)
}

// RotateEulO applies an extra rotation around one basis axis after beul.
func RotateEulO(beul Vec3, order RotOrder, axis int, angle float64) Vec3 {
	var e Vec3
	e[axis] = angle
	tot := Mat3Mul(EulOToMat3(beul, order), EulOToMat3(e, order))
	return Mat3ToEulO(tot, order)
}

// AddEulEulO composes two Euler rotations: b is applied after a.
func AddEulEulO(a, b Vec3, order RotOrder) Vec3 {
	q := QuatMul(EulOToQuat(b, order), EulOToQuat(a, order))
	return QuatToEulO(q, order)
}
