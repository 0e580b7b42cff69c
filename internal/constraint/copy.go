package constraint

import (
	"math"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// CopyFlag selects the copied axes of the Copy Location/Rotation/Scale
// constraints. Not every bit applies to every type.
type CopyFlag uint32

const (
	CopyX CopyFlag = 1 << iota
	CopyY
	CopyZ
	CopyInvertX
	CopyInvertY
	CopyInvertZ
	// CopyOffset adds the owner's own value on top.
	CopyOffset
	// CopyMultiply makes the scale offset multiplicative.
	CopyMultiply
	// CopyUniform copies one averaged scale factor to all axes.
	CopyUniform

	CopyXYZ = CopyX | CopyY | CopyZ
)

var copyFlagNames = []string{"x", "y", "z", "invert_x", "invert_y", "invert_z", "offset", "multiply", "uniform"}

func (f CopyFlag) MarshalYAML() (any, error)          { return marshalFlags(f, copyFlagNames) }
func (f *CopyFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, copyFlagNames) }

// CopyLocationData copies the target location.
type CopyLocationData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`
	Flag      CopyFlag      `yaml:"flag"`
}

func (d *CopyLocationData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type copyLocationType struct {
	typeBase
	singleTarget
}

func (copyLocationType) NewData() any { return &CopyLocationData{Flag: CopyXYZ} }

func (copyLocationType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*CopyLocationData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	var offset mathutil.Vec3
	if d.Flag&CopyOffset != 0 {
		offset = cob.Matrix.Translation()
	}

	loc := cob.Matrix.Translation()
	tar := targets[0].Matrix.Translation()
	for i := 0; i < 3; i++ {
		if d.Flag&(CopyX<<i) == 0 {
			continue
		}
		loc[i] = tar[i]
		if d.Flag&(CopyInvertX<<i) != 0 {
			loc[i] = -loc[i]
		}
		loc[i] += offset[i]
	}
	cob.Matrix.SetTranslation(loc)
}

// RotationMix is how Copy Rotation combines the copied and own rotation.
type RotationMix int

const (
	RotMixReplace RotationMix = iota
	RotMixAdd
	RotMixBefore
	RotMixAfter
	// RotMixOffset is the legacy per-axis offset.
	RotMixOffset
)

var rotationMixNames = []string{"replace", "add", "before", "after", "offset"}

func (m RotationMix) MarshalYAML() (any, error)          { return marshalEnum(m, rotationMixNames) }
func (m *RotationMix) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, m, rotationMixNames) }

// CopyRotationData copies the target rotation per Euler axis.
type CopyRotationData struct {
	Tar        *scene.Object `yaml:"-"`
	Subtarget  string        `yaml:"subtarget,omitempty"`
	Flag       CopyFlag      `yaml:"flag"`
	EulerOrder EulerOrder    `yaml:"euler_order"`
	MixMode    RotationMix   `yaml:"mix_mode"`
}

func (d *CopyRotationData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type copyRotationType struct {
	typeBase
	singleTarget
}

func (copyRotationType) NewData() any { return &CopyRotationData{Flag: CopyXYZ} }

func (copyRotationType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*CopyRotationData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	ct := targets[0]

	loc, oldrot, size := cob.Matrix.LocRotSize()
	order := d.EulerOrder.resolve(cob.RotOrder)

	// both rotations in the same order so they can be made compatible
	obeul := cob.Matrix.ToEulO(order)
	mat := ct.Matrix.OrthogonalizeStable(1, true)
	eul := mat.ToCompatibleEulO(obeul, order)

	var defeul mathutil.Vec3
	legacyOffset := false
	switch d.MixMode {
	case RotMixOffset:
		legacyOffset = true
		defeul = obeul
	case RotMixReplace:
		defeul = obeul
	}

	for i := 0; i < 3; i++ {
		if d.Flag&(CopyX<<i) == 0 {
			eul[i] = defeul[i]
			continue
		}
		if legacyOffset {
			eul = mathutil.RotateEulO(eul, order, i, obeul[i])
		}
		if d.Flag&(CopyInvertX<<i) != 0 {
			eul[i] = -eul[i]
		}
	}

	if d.MixMode == RotMixAdd {
		eul = eul.Add(obeul)
	}
	eul = mathutil.CompatibleEul(eul, obeul)
	newrot := mathutil.EulOToMat3(eul, order)

	switch d.MixMode {
	case RotMixBefore:
		newrot = mathutil.Mat3Mul(newrot, oldrot)
	case RotMixAfter:
		newrot = mathutil.Mat3Mul(oldrot, newrot)
	}
	cob.Matrix = mathutil.LocRotSizeToMat4(loc, newrot, size)
}

// CopyScaleData copies the target scale, optionally raised to Power.
type CopyScaleData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`
	Flag      CopyFlag      `yaml:"flag"`
	Power     float64       `yaml:"power"`
}

func (d *CopyScaleData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type copyScaleType struct {
	typeBase
	singleTarget
}

func (copyScaleType) NewData() any {
	return &CopyScaleData{Flag: CopyXYZ | CopyMultiply, Power: 1}
}

func (copyScaleType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*CopyScaleData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	ct := targets[0]
	obsize := cob.Matrix.Size()

	var size mathutil.Vec3
	if d.Flag&CopyUniform != 0 {
		total := 1.0
		if d.Flag&CopyXYZ == CopyXYZ {
			total = math.Abs(ct.Matrix.Det3())
		} else {
			tsize := ct.Matrix.Size()
			for i := 0; i < 3; i++ {
				if d.Flag&(CopyX<<i) != 0 {
					total *= tsize[i]
				}
			}
		}
		s := math.Cbrt(total)
		size = mathutil.Vec3{s, s, s}
	} else {
		size = ct.Matrix.Size()
	}

	for i := range size {
		size[i] = math.Pow(size[i], d.Power)
	}

	if d.Flag&CopyOffset != 0 {
		if d.Flag&CopyMultiply != 0 {
			size = size.Mul(obsize)
		} else {
			// additive offset kept for old rigs
			size = size.Add(obsize).Sub(mathutil.Vec3{1, 1, 1})
		}
	}

	for i := 0; i < 3; i++ {
		if d.Flag&(CopyX<<i|CopyUniform) != 0 && obsize[i] != 0 {
			cob.Matrix.SetAxis(i, cob.Matrix.Axis(i).Scale(size[i]/obsize[i]))
		}
	}
}

// TransformMix is how Copy Transforms combines the target and owner matrices.
type TransformMix int

const (
	TransMixReplace TransformMix = iota
	TransMixBefore
	TransMixAfter
	TransMixBeforeFull
	TransMixAfterFull
	TransMixBeforeSplit
	TransMixAfterSplit
)

var transformMixNames = []string{"replace", "before", "after", "before_full", "after_full", "before_split", "after_split"}

func (m TransformMix) MarshalYAML() (any, error)          { return marshalEnum(m, transformMixNames) }
func (m *TransformMix) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, m, transformMixNames) }

// mix combines target and owner matrices. The plain Before/After modes
// emulate Aligned inherit scale.
func (m TransformMix) mix(target, own mathutil.Mat4) mathutil.Mat4 {
	switch m {
	case TransMixBeforeFull:
		return mathutil.Mat4Mul(target, own)
	case TransMixAfterFull:
		return mathutil.Mat4Mul(own, target)
	case TransMixBefore:
		return mathutil.Mat4MulAlignedScale(target, own)
	case TransMixAfter:
		return mathutil.Mat4MulAlignedScale(own, target)
	case TransMixBeforeSplit:
		return mathutil.Mat4MulSplitChannels(target, own)
	case TransMixAfterSplit:
		return mathutil.Mat4MulSplitChannels(own, target)
	}
	return target
}

// CopyTransformsData copies the whole target matrix.
type CopyTransformsData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`
	MixMode   TransformMix  `yaml:"mix_mode"`
	// RemoveTargetShear orthogonalizes the target first, keeping its Y axis.
	RemoveTargetShear bool `yaml:"remove_target_shear"`
}

func (d *CopyTransformsData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type copyTransformsType struct {
	typeBase
	singleTarget
}

func (copyTransformsType) NewData() any { return &CopyTransformsData{} }

func (copyTransformsType) TargetMatrix(cob *EvalContext, c *Constraint, ct *Target, _ float64) bool {
	return fullBBoneTargetMatrix(cob, c, ct)
}

func (copyTransformsType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*CopyTransformsData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	target := targets[0].Matrix
	if d.RemoveTargetShear {
		target = target.OrthogonalizeStable(1, false)
	}
	cob.Matrix = d.MixMode.mix(target, cob.Matrix)
}

// VolumeMode picks how Maintain Volume measures the volume.
type VolumeMode int

const (
	VolumeStrict VolumeMode = iota
	VolumeUniform
	VolumeSingleAxis
)

var volumeModeNames = []string{"strict", "uniform", "single_axis"}

func (m VolumeMode) MarshalYAML() (any, error)          { return marshalEnum(m, volumeModeNames) }
func (m *VolumeMode) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, m, volumeModeNames) }

// MaintainVolumeData rescales the two other axes so the volume stays fixed
// while FreeAxis scales.
type MaintainVolumeData struct {
	FreeAxis Axis       `yaml:"free_axis"`
	Mode     VolumeMode `yaml:"mode"`
	Volume   float64    `yaml:"volume"`
}

type maintainVolumeType struct{ typeBase }

func (maintainVolumeType) NewData() any {
	return &MaintainVolumeData{FreeAxis: AxisY, Volume: 1}
}

func (maintainVolumeType) Evaluate(c *Constraint, cob *EvalContext, _ []*Target) {
	d := c.Data.(*MaintainVolumeData)
	if d.FreeAxis < AxisX || d.FreeAxis > AxisZ {
		return
	}
	obsize := cob.Matrix.Size()
	free := int(d.FreeAxis)

	total := 1.0
	switch d.Mode {
	case VolumeStrict:
		total = obsize[0] * obsize[1] * obsize[2]
	case VolumeUniform:
		total = obsize[free] * obsize[free] * obsize[free]
	case VolumeSingleAxis:
		total = obsize[free]
	}

	fac := 1.0
	if total != 0 {
		fac = math.Sqrt(d.Volume / total)
	}
	for i := 0; i < 3; i++ {
		if i != free {
			cob.Matrix.SetAxis(i, cob.Matrix.Axis(i).Scale(fac))
		}
	}
}
