// Package viewmatrix builds the orbit camera used for rig previews and
// projects world points into raster space.
package viewmatrix

import (
	"math"

	"rig-solver/internal/mathutil"
)

// DefaultFOV is the vertical field of view, in degrees, of perspective
// previews.
const DefaultFOV = 35.0

// Orbit returns the view rotation of a camera circling the world Z axis.
// Yaw 0 looks along +Y from the front; positive pitch looks down. Rows of the
// result are the view's right, up and toward-viewer axes, so larger view z is
// closer to the camera.
func Orbit(yawDeg, pitchDeg float64) mathutil.Mat3 {
	yaw := mathutil.AngleWrap(mathutil.Deg2Rad(yawDeg))
	pitch := mathutil.Deg2Rad(mathutil.Clamp(pitchDeg, -89, 89))

	eye := mathutil.Vec3{
		math.Cos(pitch) * math.Sin(yaw),
		-math.Cos(pitch) * math.Cos(yaw),
		math.Sin(pitch),
	}
	right := mathutil.Vec3{0, 0, 1}.Cross(eye).Normalize()
	up := eye.Cross(right)
	return mathutil.Mat3FromAxes(right, up, eye).Transpose()
}

// View maps world points to pixel coordinates of a square raster.
type View struct {
	R      mathutil.Mat3
	Center [3]float64 // view-space centre of the framed points
	Scale  float64    // pixels per world unit
	Size   int

	// Perspective, when set, shrinks points with distance from a camera
	// placed so the framed extent fills FOV.
	Perspective bool
	FOV         float64

	span    float64
	zCenter float64
	camDist float64
}

// Fit frames points inside a size×size raster, leaving margin pixels on each
// side. Degenerate extents are padded so a single point still frames.
func Fit(R mathutil.Mat3, points []mathutil.Vec3, size, margin int) *View {
	v := &View{R: R, Size: size, FOV: DefaultFOV}
	if len(points) == 0 {
		v.Scale, v.span = 1, 1
		return v
	}

	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, p := range points {
		t := R.MulVec3(p)
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], t[k])
			hi[k] = math.Max(hi[k], t[k])
		}
	}
	for k := 0; k < 3; k++ {
		v.Center[k] = (lo[k] + hi[k]) / 2
	}
	span := math.Max(hi[0]-lo[0], hi[1]-lo[1])
	if span < 0.001 {
		span = 1
	}
	usable := size - 2*margin
	if usable < 1 {
		usable = size
	}
	v.Scale = float64(usable) / span
	v.span = span

	v.zCenter = v.Center[2]
	halfFOV := mathutil.Deg2Rad(v.FOV) / 2
	v.camDist = (span/2)/math.Tan(halfFOV) + (hi[2]-lo[2])/2
	return v
}

// Span returns the framed extent in world units.
func (v *View) Span() float64 { return v.span }

// Point projects one world point.
func (v *View) Point(p mathutil.Vec3) (x, y, z float64) {
	t := v.R.MulVec3(p)
	if v.Perspective && v.camDist > 0 {
		depth := math.Max(v.camDist-(t[2]-v.zCenter), 0.1)
		f := v.camDist / depth
		t[0] = (t[0]-v.Center[0])*f + v.Center[0]
		t[1] = (t[1]-v.Center[1])*f + v.Center[1]
	}
	half := float64(v.Size) / 2
	return (t[0]-v.Center[0])*v.Scale + half, -(t[1]-v.Center[1])*v.Scale + half, t[2]
}

// ProjectVertices projects points into pixel x, pixel y and view depth.
func ProjectVertices(points []mathutil.Vec3, v *View) (px, py, pz []float64) {
	px = make([]float64, len(points))
	py = make([]float64, len(points))
	pz = make([]float64, len(points))
	for i, p := range points {
		px[i], py[i], pz[i] = v.Point(p)
	}
	return px, py, pz
}
