package mathutil

import "math"

// Mat3 is a 3×3 matrix stored row-major: [r0c0, r0c1, r0c2, r1c0, ...].
// Value type for zero heap allocation. Column i is the i-th local axis.
type Mat3 [9]float64

func Mat3Identity() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

func Mat3Diag(x, y, z float64) Mat3 {
	return Mat3{x, 0, 0, 0, y, 0, 0, 0, z}
}

// Mat3FromAxes builds a matrix whose columns are x, y and z.
func Mat3FromAxes(x, y, z Vec3) Mat3 {
	return Mat3{
		x[0], y[0], z[0],
		x[1], y[1], z[1],
		x[2], y[2], z[2],
	}
}

// Mat3Mul returns a × b.
func Mat3Mul(a, b Mat3) Mat3 {
	var m Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r*3+c] = a[r*3+0]*b[0*3+c] + a[r*3+1]*b[1*3+c] + a[r*3+2]*b[2*3+c]
		}
	}
	return m
}

// MulVec3 returns M × v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// Axis returns column i.
func (m Mat3) Axis(i int) Vec3 {
	return Vec3{m[i], m[3+i], m[6+i]}
}

func (m *Mat3) SetAxis(i int, v Vec3) {
	m[i], m[3+i], m[6+i] = v[0], v[1], v[2]
}

// cr reads column c, row r.
func (m Mat3) cr(c, r int) float64 {
	return m[r*3+c]
}

func (m Mat3) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

func (m Mat3) Inverse() Mat3 {
	d := m.Det()
	if d == 0 {
		return Mat3Identity()
	}
	invD := 1.0 / d
	return Mat3{
		(m[4]*m[8] - m[5]*m[7]) * invD,
		(m[2]*m[7] - m[1]*m[8]) * invD,
		(m[1]*m[5] - m[2]*m[4]) * invD,
		(m[5]*m[6] - m[3]*m[8]) * invD,
		(m[0]*m[8] - m[2]*m[6]) * invD,
		(m[2]*m[3] - m[0]*m[5]) * invD,
		(m[3]*m[7] - m[4]*m[6]) * invD,
		(m[1]*m[6] - m[0]*m[7]) * invD,
		(m[0]*m[4] - m[1]*m[3]) * invD,
	}
}

func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

func (m Mat3) ScaleBy(s float64) Mat3 {
	for i := range m {
		m[i] *= s
	}
	return m
}

func (a Mat3) Add(b Mat3) Mat3 {
	for i := range a {
		a[i] += b[i]
	}
	return a
}

// Size returns the length of each axis.
func (m Mat3) Size() Vec3 {
	return Vec3{m.Axis(0).Len(), m.Axis(1).Len(), m.Axis(2).Len()}
}

// Normalized returns the matrix with unit-length axes. Zero axes stay zero.
func (m Mat3) Normalized() Mat3 {
	for i := 0; i < 3; i++ {
		m.SetAxis(i, m.Axis(i).Normalize())
	}
	return m
}

func (m Mat3) IsNegative() bool {
	return m.Det() < 0
}

// IsOrthonormal reports whether the axes are unit length and mutually perpendicular.
func (m Mat3) IsOrthonormal() bool {
	const eps = 1.5e-5
	for i := 0; i < 3; i++ {
		a := m.Axis(i)
		for j := i + 1; j < 3; j++ {
			if math.Abs(a.Dot(m.Axis(j))) > eps {
				return false
			}
		}
		if math.Abs(a.LenSq()-1) > eps {
			return false
		}
	}
	return true
}

// RotSize splits m into a normalized rotation and per-axis scale.
// Negative matrices get a negated rotation and negated scale.
func (m Mat3) RotSize() (Mat3, Vec3) {
	rot := m.Normalized()
	size := m.Size()
	if m.IsNegative() {
		rot = rot.ScaleBy(-1)
		size = size.Neg()
	}
	return rot, size
}

// Mat3Lerp interpolates element-wise.
func Mat3Lerp(a, b Mat3, t float64) Mat3 {
	var m Mat3
	for i := range m {
		m[i] = a[i] + (b[i]-a[i])*t
	}
	return m
}

// PolarDecompose factors m = U × P with U orthogonal and P symmetric.
func (m Mat3) PolarDecompose() (u, p Mat3) {
	if math.Abs(m.Det()) < 1e-12 {
		u = m.Normalized()
		u = orthonormalFallback(u)
		return u, Mat3Mul(u.Transpose(), m)
	}
	u = m
	for i := 0; i < 32; i++ {
		next := Mat3Lerp(u, u.Inverse().Transpose(), 0.5)
		var diff float64
		for k := range next {
			diff += math.Abs(next[k] - u[k])
		}
		u = next
		if diff < 1e-12 {
			break
		}
	}
	return u, Mat3Mul(u.Transpose(), m)
}

// orthonormalFallback rebuilds a right-handed frame from the first usable axes of a
// degenerate matrix.
func orthonormalFallback(m Mat3) Mat3 {
	x, y := m.Axis(0), m.Axis(1)
	if x.IsZero() {
		x = Vec3{1, 0, 0}
		if math.Abs(y.Dot(x)) > 0.99 {
			x = Vec3{0, 0, 1}
		}
	}
	z := x.Cross(y).Normalize()
	if z.IsZero() {
		z = x.Cross(OrthoVec(x)).Normalize()
	}
	y = z.Cross(x).Normalize()
	return Mat3FromAxes(x.Normalize(), y, z)
}

// Mat3Interp interpolates rotation with quaternion slerp and the remaining
// stretch linearly.
func Mat3Interp(a, b Mat3, t float64) Mat3 {
	ua, pa := a.PolarDecompose()
	ub, pb := b.PolarDecompose()
	// quaternions cannot represent an axis flip
	if ua.Det() < 0 {
		ua, pa = ua.ScaleBy(-1), pa.ScaleBy(-1)
	}
	if ub.Det() < 0 {
		ub, pb = ub.ScaleBy(-1), pb.ScaleBy(-1)
	}
	q := QuatSlerp(Mat3ToQuat(ua), Mat3ToQuat(ub), t)
	return Mat3Mul(QuatToMat3(q), Mat3Lerp(pa, pb, t))
}

// OrthoVec returns a vector perpendicular to v.
func OrthoVec(v Vec3) Vec3 {
	ax, ay, az := math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])
	switch {
	case ax <= ay && ax <= az:
		return Vec3{0, -v[2], v[1]}
	case ay <= az:
		return Vec3{-v[2], 0, v[0]}
	default:
		return Vec3{-v[1], v[0], 0}
	}
}

// orthogonalizeStable makes v2 and v3 orthogonal to v1 by plane projection and
// then to each other, splitting the correction evenly between them. The
// determinant sign is preserved.
func orthogonalizeStable(v1, v2, v3 *Vec3, normalize bool) {
	if l := v1.LenSq(); l > 0 {
		*v2 = v2.Sub(v1.Scale(v2.Dot(*v1) / l))
		*v3 = v3.Sub(v1.Scale(v3.Dot(*v1) / l))
		if normalize {
			*v1 = v1.Scale(1 / math.Sqrt(l))
		}
	}

	n2, len2 := v2.NormalizeLen()
	n3, len3 := v3.NormalizeLen()
	cosAngle := n2.Dot(n3)
	absCos := math.Abs(cosAngle)

	if absCos > 1e-4 && absCos < 1-flt32Epsilon {
		angle := math.Acos(cosAngle)
		target := angle + (math.Pi/2-angle)/2

		n2 = n2.Sub(n3.Scale(cosAngle))
		n2 = n2.Scale(math.Sin(target) / n2.Len())
		n2 = n2.Add(n3.Scale(math.Cos(target)))

		n3 = n2.Cross(n3).Cross(n2).Normalize()

		if !normalize {
			fac := math.Sqrt(math.Sin(angle))
			*v2 = n2.Scale(len2 * fac)
			*v3 = n3.Scale(len3 * fac)
		}
	}
	if normalize {
		*v2, *v3 = n2, n3
	}
}

// OrthogonalizeStable removes shear around the given primary axis.
func (m Mat3) OrthogonalizeStable(axis int, normalize bool) Mat3 {
	x, y, z := m.Axis(0), m.Axis(1), m.Axis(2)
	switch axis {
	case 0:
		orthogonalizeStable(&x, &y, &z, normalize)
	case 1:
		orthogonalizeStable(&y, &x, &z, normalize)
	case 2:
		orthogonalizeStable(&z, &x, &y, normalize)
	}
	return Mat3FromAxes(x, y, z)
}

// Orthogonalize rebuilds the frame from the primary axis with cross products,
// keeping per-axis lengths. The result is always right-handed.
func (m Mat3) Orthogonalize(axis int) Mat3 {
	size := m.Size()
	x, y, z := m.Axis(0), m.Axis(1), m.Axis(2)

	usable := func(p, s Vec3) bool {
		n := s.Normalize()
		return !n.IsZero() && math.Abs(p.Dot(n)) < 1-1e-6
	}

	switch axis {
	case 0:
		x = x.Normalize()
		switch {
		case usable(x, y):
			z = x.Cross(y).Normalize()
			y = z.Cross(x)
		case usable(x, z):
			y = z.Cross(x).Normalize()
			z = x.Cross(y)
		default:
			z = x.Cross(Vec3{x[1], x[2], x[0]}).Normalize()
			y = z.Cross(x)
		}
	case 1:
		y = y.Normalize()
		switch {
		case usable(y, x):
			z = x.Cross(y).Normalize()
			x = y.Cross(z)
		case usable(y, z):
			x = y.Cross(z).Normalize()
			z = x.Cross(y)
		default:
			x = y.Cross(Vec3{y[1], y[2], y[0]}).Normalize()
			z = x.Cross(y)
		}
	case 2:
		z = z.Normalize()
		switch {
		case usable(z, x):
			y = z.Cross(x).Normalize()
			x = y.Cross(z)
		case usable(z, y):
			x = y.Cross(z).Normalize()
			y = z.Cross(x)
		default:
			y = z.Cross(Vec3{z[1], z[2], z[0]}).Normalize()
			x = y.Cross(z)
		}
	}

	return Mat3FromAxes(x.Scale(size[0]), y.Scale(size[1]), z.Scale(size[2]))
}
