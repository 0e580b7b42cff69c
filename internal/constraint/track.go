package constraint

import (
	"math"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// TrackToFlag holds Track To options.
type TrackToFlag uint32

// TrackToTargetZ uses the target's Z axis as up instead of world Z.
const TrackToTargetZ TrackToFlag = 1

var trackToFlagNames = []string{"target_z"}

func (f TrackToFlag) MarshalYAML() (any, error)          { return marshalFlags(f, trackToFlagNames) }
func (f *TrackToFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, trackToFlagNames) }

// TrackToData points one axis at the target keeping another axis up.
type TrackToData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	TrackAxis TrackAxis   `yaml:"track_axis"`
	UpAxis    Axis        `yaml:"up_axis"`
	Flag      TrackToFlag `yaml:"flag"`
}

func (d *TrackToData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type trackToType struct {
	typeBase
	singleTarget
}

func (trackToType) NewData() any {
	return &TrackToData{TrackAxis: TrackNegZ, UpAxis: AxisY}
}

func (trackToType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*TrackToData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	ct := targets[0]

	size := cob.Matrix.Size()
	cob.Matrix = cob.Matrix.WithMat3(mathutil.Mat3Diag(size[0], size[1], size[2]))

	// the target's Z is passed as up for compatibility with old files
	vec := cob.Matrix.Translation().Sub(ct.Matrix.Translation())
	track := int(mathutil.Clamp(float64(d.TrackAxis), 0, 5))
	up := int(mathutil.Clamp(float64(d.UpAxis), 0, 2))
	totmat := vecToMat(vec, ct.Matrix.Axis(2), track, up, d.Flag&TrackToTargetZ != 0)

	cob.Matrix = cob.Matrix.WithMat3(mathutil.Mat3Mul(totmat, cob.Matrix.Mat3()))
}

// basisCross is the sign of the third axis of the frame built from axes n
// and m.
func basisCross(n, m int) float64 {
	switch n - m {
	case 1, -2:
		return 1
	case -1, 2:
		return -1
	}
	return 0
}

// vecToMat builds a rotation whose track axis points against vec (along it
// for the negative axes) and whose up axis is the projection of the world or
// target up vector. Equal axes give identity.
func vecToMat(vec, targetUp mathutil.Vec3, axis, up int, useTargetUp bool) mathutil.Mat3 {
	n := vec.Normalize()
	if n.IsZero() {
		n = mathutil.AxisZ
	}
	if axis > 2 {
		axis -= 3
	} else {
		n = n.Neg()
	}

	u := mathutil.AxisZ
	if useTargetUp {
		u = targetUp
	}

	// project without assuming n is unit length; near degenerate inputs
	// drift otherwise
	proj := u.Sub(u.Project(n)).Normalize()
	if proj.IsZero() {
		proj = mathutil.AxisY
	}
	right := proj.Cross(n).Normalize()

	if axis == up {
		return mathutil.Mat3Identity()
	}
	var m mathutil.Mat3
	m.SetAxis(3-axis-up, right.Scale(basisCross(axis, up)))
	m.SetAxis(up, proj)
	m.SetAxis(axis, n)
	return m
}

// LockedTrackData points one axis at the target while rotating only about
// the locked axis.
type LockedTrackData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	TrackAxis TrackAxis `yaml:"track_axis"`
	LockAxis  Axis      `yaml:"lock_axis"`
}

func (d *LockedTrackData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type lockedTrackType struct {
	typeBase
	singleTarget
}

func (lockedTrackType) NewData() any {
	return &LockedTrackData{TrackAxis: TrackY, LockAxis: AxisZ}
}

func (lockedTrackType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*LockedTrackData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	ct := targets[0]

	vec := ct.Matrix.Translation().Sub(cob.Matrix.Translation())
	totmat := lockTrackMat(cob.Matrix.Mat3(), vec, d.TrackAxis, d.LockAxis)

	// keep the heading: express the new frame relative to the current one
	tmp := cob.Matrix.Mat3().Normalized()
	totmat = mathutil.Mat3Mul(totmat, tmp.Inverse())
	if totmat.Det() == 0 {
		totmat = mathutil.Mat3Identity()
	}
	cob.Matrix = cob.Matrix.WithMat3(mathutil.Mat3Mul(totmat, cob.Matrix.Mat3()))
}

// lockTrackMat keeps the lock axis of own, turns the track axis towards the
// part of vec perpendicular to it and completes a right handed frame.
func lockTrackMat(own mathutil.Mat3, vec mathutil.Vec3, track TrackAxis, lock Axis) mathutil.Mat3 {
	l := int(lock)
	t := track.Index()
	if l < 0 || l > 2 || track < TrackX || track > TrackNegZ || t == l {
		return mathutil.Mat3Identity()
	}
	k := 3 - l - t

	lockAxis := own.Axis(l)
	trackAxis := vec.Sub(vec.Project(lockAxis)).Normalize()
	if track.Negative() {
		trackAxis = trackAxis.Neg()
	}

	var m mathutil.Mat3
	m.SetAxis(l, lockAxis.Normalize())
	m.SetAxis(t, trackAxis)
	m.SetAxis(k, m.Axis((k+1)%3).Cross(m.Axis((k+2)%3)))
	return m
}

// DampedTrackData points one axis at the target with the smallest rotation.
type DampedTrackData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	TrackAxis TrackAxis `yaml:"track_axis"`
}

func (d *DampedTrackData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type dampedTrackType struct {
	typeBase
	singleTarget
}

func (dampedTrackType) NewData() any {
	return &DampedTrackData{TrackAxis: TrackY}
}

func (dampedTrackType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*DampedTrackData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	tarvec := targets[0].Matrix.Translation().Sub(cob.Matrix.Translation())
	cob.Matrix = dampTrack(cob.Matrix, tarvec, d.TrackAxis)
}

// dampTrack rotates m by the smallest rotation taking its axis onto tarvec.
// Location is kept. Opposite vectors turn half way round a neighbouring axis.
func dampTrack(m mathutil.Mat4, tarvec mathutil.Vec3, axis TrackAxis) mathutil.Mat4 {
	if axis < TrackX || axis > TrackNegZ {
		return m
	}
	tarvec = tarvec.Normalize()
	if tarvec.IsZero() {
		return m
	}

	obvec := m.MulDir(axis.Vec()).Normalize()
	if obvec.IsZero() {
		obvec = axis.Vec()
	}

	raxis := obvec.Cross(tarvec)
	rangle := math.Acos(mathutil.Clamp(obvec.Dot(tarvec), -1, 1))

	raxis, norm := raxis.NormalizeLen()
	switch {
	case norm < fltEpsilon:
		if math.Abs(rangle) < math.Pi-0.01 {
			return m
		}
		rangle = math.Pi
		tmp := m.MulDir(((axis + 1) % 6).Vec())
		raxis = obvec.Cross(tmp).Normalize()
		if raxis.IsZero() {
			return m
		}
	case norm < 0.1:
		// asin is better conditioned than acos near 0 and pi
		if rangle > math.Pi/2 {
			rangle = math.Pi - math.Asin(norm)
		} else {
			rangle = math.Asin(norm)
		}
	}

	rmat := mathutil.AxisAngleToMat3(raxis, rangle)
	return m.WithMat3(mathutil.Mat3Mul(rmat, m.Mat3()))
}
