package scene

import (
	"sort"

	"rig-solver/internal/mathutil"
)

// Marker is a track position on one clip frame, normalized to 0..1.
type Marker struct {
	Frame    int
	Pos      [2]float64
	Disabled bool
}

// Track is a 2D feature track with an optional reconstructed 3D bundle.
type Track struct {
	Name      string
	Markers   []Marker // sorted by frame
	Offset    [2]float64
	HasBundle bool
	Bundle    mathutil.Vec3
}

// markerIndex returns the marker on frame, or the closest one before it.
// Frames before the first marker use the first marker.
func (t *Track) markerIndex(frame int) int {
	if len(t.Markers) == 0 {
		return -1
	}
	i := sort.Search(len(t.Markers), func(i int) bool { return t.Markers[i].Frame > frame }) - 1
	if i < 0 {
		i = 0
	}
	return i
}

// Marker returns the marker in effect on frame.
func (t *Track) Marker(frame int) (Marker, bool) {
	i := t.markerIndex(frame)
	if i < 0 {
		return Marker{}, false
	}
	return t.Markers[i], true
}

// SubframePosition interpolates the marker position between consecutive
// frames and adds the track offset.
func (t *Track) SubframePosition(frame float64) ([2]float64, bool) {
	i := t.markerIndex(int(frame))
	if i < 0 {
		return [2]float64{}, false
	}
	m := t.Markers[i]
	pos := m.Pos
	if i < len(t.Markers)-1 {
		next := t.Markers[i+1]
		if next.Frame == m.Frame+1 {
			fac := (frame - float64(int(frame))) / float64(next.Frame-m.Frame)
			pos[0] = mathutil.Lerp(m.Pos[0], next.Pos[0], fac)
			pos[1] = mathutil.Lerp(m.Pos[1], next.Pos[1], fac)
		}
	}
	pos[0] += t.Offset[0]
	pos[1] += t.Offset[1]
	return pos, true
}

// ReconstructedCamera is a solved camera pose.
type ReconstructedCamera struct {
	Frame int
	Mat   mathutil.Mat4
}

// TrackingObject groups tracks solved together: the camera itself or one
// moving object.
type TrackingObject struct {
	Name     string
	IsCamera bool
	Scale    float64 // applied to object reconstructions
	Tracks   []*Track
	Cameras  []ReconstructedCamera // sorted by frame
}

// Track finds a track by name.
func (o *TrackingObject) Track(name string) *Track {
	for _, t := range o.Tracks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// ReconstructedMatrix returns the solved camera pose at frame, interpolating
// between neighbouring solutions. Without any solution it is identity.
func (o *TrackingObject) ReconstructedMatrix(frame float64) mathutil.Mat4 {
	n := len(o.Cameras)
	if n == 0 {
		return mathutil.Mat4Identity()
	}
	a := sort.Search(n, func(i int) bool { return float64(o.Cameras[i].Frame) > frame }) - 1
	if a < 0 {
		a = 0
	}

	var mat mathutil.Mat4
	if ca := o.Cameras[a]; float64(ca.Frame) != frame && a < n-1 && frame > float64(ca.Frame) {
		cb := o.Cameras[a+1]
		t := (frame - float64(ca.Frame)) / float64(cb.Frame-ca.Frame)
		mat = mathutil.Mat4Interp(ca.Mat, cb.Mat, t)
	} else {
		mat = ca.Mat
	}

	if !o.IsCamera && o.Scale != 0 {
		mat = mathutil.Mat4Mul(mat, mathutil.LocRotSizeToMat4(mathutil.Vec3{}, mathutil.Mat3Identity(), mathutil.Vec3{o.Scale, o.Scale, o.Scale}))
	}
	return mat
}

// Intrinsics describes the tracking camera with polynomial radial distortion.
type Intrinsics struct {
	Focal          float64    // pixels
	PrincipalPoint [2]float64 // pixels
	K1, K2, K3     float64
}

// Undistort maps a distorted pixel position to its undistorted position.
func (in Intrinsics) Undistort(co [2]float64) [2]float64 {
	if in.Focal == 0 {
		return co
	}
	xd := (co[0] - in.PrincipalPoint[0]) / in.Focal
	yd := (co[1] - in.PrincipalPoint[1]) / in.Focal

	// invert xd = xu * (1 + k1 r² + k2 r⁴ + k3 r⁶) by fixed-point iteration
	xu, yu := xd, yd
	for i := 0; i < 20; i++ {
		r2 := xu*xu + yu*yu
		f := 1 + r2*(in.K1+r2*(in.K2+r2*in.K3))
		if f == 0 {
			break
		}
		xu, yu = xd/f, yd/f
	}
	return [2]float64{xu*in.Focal + in.PrincipalPoint[0], yu*in.Focal + in.PrincipalPoint[1]}
}

// MovieClip is footage with its motion tracking solution.
type MovieClip struct {
	Name       string
	Width      int
	Height     int
	AspectX    float64
	AspectY    float64
	StartFrame int
	Camera     Intrinsics
	Objects    []*TrackingObject
}

func (c *MovieClip) IDName() string { return c.Name }

// CameraObject returns the tracking object of the camera solve.
func (c *MovieClip) CameraObject() *TrackingObject {
	for _, o := range c.Objects {
		if o.IsCamera {
			return o
		}
	}
	return nil
}

// Object finds a tracking object by name.
func (c *MovieClip) Object(name string) *TrackingObject {
	for _, o := range c.Objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// RemapSceneToClipFrame converts a scene frame to the clip's frame numbering.
func (c *MovieClip) RemapSceneToClipFrame(frame float64) float64 {
	return frame - float64(c.StartFrame) + 1
}

// Aspect returns the display pixel aspect, defaulting to square pixels.
func (c *MovieClip) Aspect() (float64, float64) {
	ax, ay := c.AspectX, c.AspectY
	if ax == 0 {
		ax = 1
	}
	if ay == 0 {
		ay = 1
	}
	return ax, ay
}
