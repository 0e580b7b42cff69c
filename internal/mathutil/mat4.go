package mathutil

import "math"

// Mat4 is a 4×4 affine matrix stored row-major. Columns 0..2 are the local
// axes, column 3 is the translation.
type Mat4 [16]float64

func Mat4Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mat4Translation returns a pure translation matrix.
func Mat4Translation(t Vec3) Mat4 {
	m := Mat4Identity()
	m.SetTranslation(t)
	return m
}

// Mat4Mul returns a × b.
func Mat4Mul(a, b Mat4) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// Mat4MulSeries multiplies left to right.
func Mat4MulSeries(ms ...Mat4) Mat4 {
	r := Mat4Identity()
	for _, m := range ms {
		r = Mat4Mul(r, m)
	}
	return r
}

// MulPoint transforms a 3D point (w=1) by the 4×4 matrix.
func (m Mat4) MulPoint(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2] + m[3],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2] + m[7],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2] + m[11],
	}
}

// MulDir transforms a direction (w=0).
func (m Mat4) MulDir(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2],
	}
}

// FromMat3Translation builds a 4×4 affine matrix from a 3×3 rotation and translation.
func FromMat3Translation(r Mat3, t Vec3) Mat4 {
	return Mat4{
		r[0], r[1], r[2], t[0],
		r[3], r[4], r[5], t[1],
		r[6], r[7], r[8], t[2],
		0, 0, 0, 1,
	}
}

// Mat3 returns the upper-left 3×3 block.
func (m Mat4) Mat3() Mat3 {
	return Mat3{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	}
}

// WithMat3 replaces the upper-left 3×3 block.
func (m Mat4) WithMat3(r Mat3) Mat4 {
	m[0], m[1], m[2] = r[0], r[1], r[2]
	m[4], m[5], m[6] = r[3], r[4], r[5]
	m[8], m[9], m[10] = r[6], r[7], r[8]
	return m
}

func (m Mat4) Axis(i int) Vec3 {
	return Vec3{m[i], m[4+i], m[8+i]}
}

func (m *Mat4) SetAxis(i int, v Vec3) {
	m[i], m[4+i], m[8+i] = v[0], v[1], v[2]
}

func (m Mat4) Translation() Vec3 {
	return Vec3{m[3], m[7], m[11]}
}

func (m *Mat4) SetTranslation(t Vec3) {
	m[3], m[7], m[11] = t[0], t[1], t[2]
}

// IsIdentity checks if the matrix is approximately identity.
func (m Mat4) IsIdentity() bool {
	id := Mat4Identity()
	for i := 0; i < 16; i++ {
		d := m[i] - id[i]
		if d > 1e-8 || d < -1e-8 {
			return false
		}
	}
	return true
}

func (m Mat4) Transpose() Mat4 {
	var t Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			t[c*4+r] = m[r*4+c]
		}
	}
	return t
}

func (m Mat4) Det() float64 {
	inv := m.adjugate()
	return m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
}

// Det3 is the determinant of the 3×3 block, the signed volume scale.
func (m Mat4) Det3() float64 {
	return m.Mat3().Det()
}

func (m Mat4) IsNegative() bool {
	return m.Det3() < 0
}

// InverseOK returns the inverse and whether m was invertible.
func (m Mat4) InverseOK() (Mat4, bool) {
	inv := m.adjugate()
	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if det == 0 {
		return Mat4Identity(), false
	}
	d := 1 / det
	for i := range inv {
		inv[i] *= d
	}
	return inv, true
}

// Inverse returns the inverse, or identity for a singular matrix.
func (m Mat4) Inverse() Mat4 {
	inv, _ := m.InverseOK()
	return inv
}

func (m Mat4) adjugate() Mat4 {
	var inv Mat4
	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] + m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] - m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] + m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] - m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] - m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] + m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] - m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] + m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] + m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] - m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] + m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] - m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] - m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] + m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] - m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] + m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]
	return inv
}

func (a Mat4) Add(b Mat4) Mat4 {
	for i := range a {
		a[i] += b[i]
	}
	return a
}

// ScaleBy multiplies every element, including the homogeneous row.
func (m Mat4) ScaleBy(s float64) Mat4 {
	for i := range m {
		m[i] *= s
	}
	return m
}

// Size returns the length of each axis.
func (m Mat4) Size() Vec3 {
	return m.Mat3().Size()
}

// SizeFixShear returns axis lengths rescaled so their product matches the
// matrix volume, ignoring the contribution of shear.
func (m Mat4) SizeFixShear() Vec3 {
	size := m.Size()
	vol := size[0] * size[1] * size[2]
	if vol != 0 {
		size = size.Scale(math.Cbrt(math.Abs(m.Det3() / vol)))
	}
	return size
}

// Normalized returns m with unit-length axes and the original lengths.
func (m Mat4) Normalized() (Mat4, Vec3) {
	size := m.Size()
	return m.WithMat3(m.Mat3().Normalized()), size
}

// Rescale multiplies each axis by the matching component of s.
func (m Mat4) Rescale(s Vec3) Mat4 {
	for i := 0; i < 3; i++ {
		m.SetAxis(i, m.Axis(i).Scale(s[i]))
	}
	return m
}

func (m Mat4) Orthogonalize(axis int) Mat4 {
	return m.WithMat3(m.Mat3().Orthogonalize(axis))
}

func (m Mat4) OrthogonalizeStable(axis int, normalize bool) Mat4 {
	return m.WithMat3(m.Mat3().OrthogonalizeStable(axis, normalize))
}

// LocRotSize decomposes m into translation, normalized rotation and scale.
func (m Mat4) LocRotSize() (Vec3, Mat3, Vec3) {
	rot, size := m.Mat3().RotSize()
	return m.Translation(), rot, size
}

// LocQuatSize decomposes m into translation, rotation quaternion and scale.
func (m Mat4) LocQuatSize() (Vec3, Quat, Vec3) {
	loc, rot, size := m.LocRotSize()
	return loc, mat3NormalizedToQuat(rot), size
}

// LocRotSizeToMat4 composes translation × rotation × scale.
func LocRotSizeToMat4(loc Vec3, rot Mat3, size Vec3) Mat4 {
	return FromMat3Translation(Mat3Mul(rot, Mat3Diag(size[0], size[1], size[2])), loc)
}

// LocEulOSizeToMat4 composes translation, Euler rotation and scale.
func LocEulOSizeToMat4(loc, eul Vec3, size Vec3, order RotOrder) Mat4 {
	return LocRotSizeToMat4(loc, EulOToMat3(eul, order), size)
}

// ToEulO converts the rotation part to Euler angles.
func (m Mat4) ToEulO(order RotOrder) Vec3 {
	return Mat3ToEulO(m.Mat3(), order)
}

func (m Mat4) ToCompatibleEulO(old Vec3, order RotOrder) Vec3 {
	return Mat3ToCompatibleEulO(m.Mat3(), old, order)
}

// Mat4Interp blends translation linearly and the 3×3 part with polar
// decomposition, so rotation is slerped and stretch interpolated linearly.
func Mat4Interp(a, b Mat4, t float64) Mat4 {
	loc := a.Translation().Lerp(b.Translation(), t)
	return FromMat3Translation(Mat3Interp(a.Mat3(), b.Mat3(), t), loc)
}

// Mat4MulAlignedScale multiplies a × b as if scale were applied on aligned
// axes: locations chain normally, rotations compose and scales multiply
// per axis, so no shear is introduced.
func Mat4MulAlignedScale(a, b Mat4) Mat4 {
	_, rotA, sizeA := a.LocRotSize()
	locB, rotB, sizeB := b.LocRotSize()
	loc := a.MulPoint(locB)
	return LocRotSizeToMat4(loc, Mat3Mul(rotA, rotB), sizeA.Mul(sizeB))
}

// Mat4MulSplitChannels composes a and b with every channel handled
// independently: locations add, rotations compose and scales multiply.
func Mat4MulSplitChannels(a, b Mat4) Mat4 {
	locA, rotA, sizeA := a.LocRotSize()
	locB, rotB, sizeB := b.LocRotSize()
	return LocRotSizeToMat4(locA.Add(locB), Mat3Mul(rotA, rotB), sizeA.Mul(sizeB))
}

// IsOrthonormal reports whether the 3×3 block is a pure rotation or reflection.
func (m Mat4) IsOrthonormal() bool {
	return m.Mat3().IsOrthonormal()
}

// ApproxEqual compares element-wise within eps.
func (m Mat4) ApproxEqual(o Mat4, eps float64) bool {
	for i := range m {
		if math.Abs(m[i]-o[i]) > eps {
			return false
		}
	}
	return true
}
