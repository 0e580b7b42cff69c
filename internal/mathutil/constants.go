package mathutil

import "math"

// flt32Epsilon keeps single-precision thresholds for degenerate-case tests so
// rigs authored against float32 tools switch branches at the same points.
const flt32Epsilon = 1.1920928955078125e-07

// Basis vectors, indexable by axis number.
var (
	AxisX = Vec3{1, 0, 0}
	AxisY = Vec3{0, 1, 0}
	AxisZ = Vec3{0, 0, 1}

	Basis = [3]Vec3{AxisX, AxisY, AxisZ}
)

// AngleWrap maps an angle in radians into [-π, π).
func AngleWrap(a float64) float64 {
	b := a/(2*math.Pi) + 0.5
	return (b - math.Floor(b) - 0.5) * 2 * math.Pi
}

// AngleDist returns the shortest angular distance between two angles in degrees (0–180).
func AngleDist(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	if d < 0 {
		d += 360
	}
	if d > 180 {
		return 360 - d
	}
	return d
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// SafeDiv returns a/b, or 0 when b is zero.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
