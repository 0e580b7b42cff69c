package mathutil

import "math"

// Vec3 is a 3-component vector (value type, stack-allocated).
type Vec3 [3]float64

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Mul multiplies component-wise.
func (a Vec3) Mul(b Vec3) Vec3 {
	return Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func (v Vec3) Neg() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

func (a Vec3) Dot(b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func (v Vec3) LenSq() float64 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func (a Vec3) Dist(b Vec3) float64 {
	return a.Sub(b).Len()
}

func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return Vec3{}
	}
	return Vec3{v[0] / l, v[1] / l, v[2] / l}
}

// NormalizeLen normalizes v and also returns its original length.
// A near-zero vector yields the zero vector and length 0.
func (v Vec3) NormalizeLen() (Vec3, float64) {
	l := v.Len()
	if l < 1e-12 {
		return Vec3{}, 0
	}
	return Vec3{v[0] / l, v[1] / l, v[2] / l}, l
}

func (v Vec3) IsZero() bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

// Lerp interpolates linearly from a (t=0) to b (t=1).
func (a Vec3) Lerp(b Vec3, t float64) Vec3 {
	s := 1 - t
	return Vec3{s*a[0] + t*b[0], s*a[1] + t*b[1], s*a[2] + t*b[2]}
}

// Project returns the projection of v onto dir.
func (v Vec3) Project(dir Vec3) Vec3 {
	d := dir.LenSq()
	if d == 0 {
		return Vec3{}
	}
	return dir.Scale(v.Dot(dir) / d)
}

// Angle returns the angle between two vectors in radians.
func (a Vec3) Angle(b Vec3) float64 {
	an, bn := a.Normalize(), b.Normalize()
	// acos loses precision near the poles; use the half-chord form
	if an.Dot(bn) >= 0 {
		return 2 * math.Asin(math.Min(1, an.Sub(bn).Len()/2))
	}
	return math.Pi - 2*math.Asin(math.Min(1, an.Neg().Sub(bn).Len()/2))
}

// ManhattanLen is the sum of absolute components.
func (v Vec3) ManhattanLen() float64 {
	return math.Abs(v[0]) + math.Abs(v[1]) + math.Abs(v[2])
}

func (v Vec3) F32() [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}
