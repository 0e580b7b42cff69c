package constraint

import (
	"math"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// StretchVolume is how Stretch To compensates the side axes.
type StretchVolume int

const (
	StretchVolumeXZ StretchVolume = iota
	StretchVolumeX
	StretchVolumeZ
	StretchVolumeNone
)

var stretchVolumeNames = []string{"volume_xz", "volume_x", "volume_z", "no_volume"}

func (m StretchVolume) MarshalYAML() (any, error) { return marshalEnum(m, stretchVolumeNames) }
func (m *StretchVolume) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalEnum(n, m, stretchVolumeNames)
}

// StretchPlane picks the rotation method of Stretch To.
type StretchPlane int

const (
	// StretchPlaneX keeps the X axis in the plane of old X and the new Y.
	StretchPlaneX StretchPlane = iota
	// StretchSwingY turns Y with damped track math.
	StretchSwingY
	StretchPlaneZ
)

var stretchPlaneNames = []string{"plane_x", "swing_y", "plane_z"}

func (p StretchPlane) MarshalYAML() (any, error) { return marshalEnum(p, stretchPlaneNames) }
func (p *StretchPlane) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalEnum(n, p, stretchPlaneNames)
}

// StretchFlag holds Stretch To options.
type StretchFlag uint32

const (
	StretchUseBulgeMin StretchFlag = 1 << iota
	StretchUseBulgeMax
)

var stretchFlagNames = []string{"use_bulge_min", "use_bulge_max"}

func (f StretchFlag) MarshalYAML() (any, error)          { return marshalFlags(f, stretchFlagNames) }
func (f *StretchFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, stretchFlagNames) }

// StretchToData points Y at the target and scales it to reach. RestLength
// of 0 is replaced by the current distance on the first solve.
type StretchToData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	VolMode     StretchVolume `yaml:"volume"`
	Plane       StretchPlane  `yaml:"keep_axis"`
	RestLength  float64       `yaml:"rest_length"`
	Bulge       float64       `yaml:"bulge"`
	BulgeMin    float64       `yaml:"bulge_min"`
	BulgeMax    float64       `yaml:"bulge_max"`
	BulgeSmooth float64       `yaml:"bulge_smooth"`
	Flag        StretchFlag   `yaml:"flag"`
}

func (d *StretchToData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

// ResetLength makes the next solve store the current distance.
func (d *StretchToData) ResetLength() { d.RestLength = 0 }

type stretchToType struct {
	typeBase
	singleTarget
}

func (stretchToType) NewData() any {
	return &StretchToData{Plane: StretchSwingY, Bulge: 1, BulgeMin: 1, BulgeMax: 1}
}

func (stretchToType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*StretchToData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	ct := targets[0]

	// the plane modes remove shear as a side effect already
	if d.Plane == StretchSwingY {
		cob.Matrix = cob.Matrix.OrthogonalizeStable(1, false)
	}

	var size mathutil.Vec3
	cob.Matrix, size = cob.Matrix.Normalized()
	xx := cob.Matrix.Axis(0)
	zz := cob.Matrix.Axis(2)

	vec, dist := ct.Matrix.Translation().Sub(cob.Matrix.Translation()).NormalizeLen()
	// only the Y scale counts so scaling the owner keeps its length
	dist = mathutil.SafeDiv(dist, size[1])

	if d.RestLength == 0 {
		d.RestLength = dist
		rest := dist
		cob.writeback(c, func(orig *Constraint) {
			if od, ok := orig.Data.(*StretchToData); ok {
				od.RestLength = rest
			}
		})
	}

	var scale mathutil.Vec3
	scale[1] = mathutil.SafeDiv(dist, d.RestLength)
	bulge := d.bulge(dist)

	switch d.VolMode {
	case StretchVolumeXZ:
		scale[0] = math.Sqrt(bulge)
		scale[2] = scale[0]
	case StretchVolumeX:
		scale[0], scale[2] = bulge, 1
	case StretchVolumeZ:
		scale[0], scale[2] = 1, bulge
	case StretchVolumeNone:
		scale[0], scale[2] = 1, 1
	default:
		return
	}
	size = size.Mul(scale)

	switch d.Plane {
	case StretchSwingY:
		cob.Matrix = dampTrack(cob.Matrix, vec, TrackY)
	case StretchPlaneX:
		orth := xx.Cross(vec).Normalize()
		cob.Matrix.SetAxis(1, vec)
		cob.Matrix.SetAxis(2, orth)
		cob.Matrix.SetAxis(0, vec.Cross(orth).Normalize())
	case StretchPlaneZ:
		orth := zz.Cross(vec).Normalize()
		cob.Matrix.SetAxis(1, vec)
		cob.Matrix.SetAxis(0, orth.Neg())
		cob.Matrix.SetAxis(2, vec.Cross(orth).Normalize())
	}
	cob.Matrix = cob.Matrix.Rescale(size)
}

// bulge is the side scale for a stretch to dist, softly limited by the
// bulge bounds when they are enabled.
func (d *StretchToData) bulge(dist float64) float64 {
	if dist == 0 {
		return 1
	}
	bulge := math.Pow(d.RestLength/dist, d.Bulge)

	if bulge > 1 && d.Flag&StretchUseBulgeMax != 0 {
		bmax := math.Max(d.BulgeMax, 1)
		hard := math.Min(bulge, bmax)
		rng := bmax - 1
		fac := 0.0
		if rng > 0 {
			fac = 1 / rng
		}
		soft := 1 + rng*math.Atan((bulge-1)*fac)/(math.Pi/2)
		bulge = mathutil.Lerp(hard, soft, d.BulgeSmooth)
	}
	if bulge < 1 && d.Flag&StretchUseBulgeMin != 0 {
		bmin := mathutil.Clamp(d.BulgeMin, 0, 1)
		hard := math.Max(bulge, bmin)
		rng := 1 - bmin
		fac := 0.0
		if rng > 0 {
			fac = 1 / rng
		}
		soft := 1 - rng*math.Atan((1-bulge)*fac)/(math.Pi/2)
		bulge = mathutil.Lerp(hard, soft, d.BulgeSmooth)
	}
	return bulge
}
