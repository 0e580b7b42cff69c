package constraint

import (
	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// ActionChannel is the target transform component that drives the action.
// The numbering keeps the rotation, scale and location groups 10 apart.
type ActionChannel int

const (
	ActionRotX ActionChannel = iota
	ActionRotY
	ActionRotZ
)

const (
	ActionScaleX ActionChannel = iota + 10
	ActionScaleY
	ActionScaleZ
)

const (
	ActionLocX ActionChannel = iota + 20
	ActionLocY
	ActionLocZ
)

var actionChannelNames = []string{
	"rot_x", "rot_y", "rot_z", "", "", "", "", "", "", "",
	"scale_x", "scale_y", "scale_z", "", "", "", "", "", "", "",
	"loc_x", "loc_y", "loc_z",
}

func (a ActionChannel) MarshalYAML() (any, error) { return marshalEnum(a, actionChannelNames) }
func (a *ActionChannel) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalEnum(n, a, actionChannelNames)
}

// ActionMix is how the action pose combines with the owner matrix.
type ActionMix int

const (
	ActionMixAfter ActionMix = iota
	ActionMixBefore
	ActionMixAfterFull
	ActionMixBeforeFull
	ActionMixAfterSplit
	ActionMixBeforeSplit
	ActionMixReplace
)

var actionMixNames = []string{"after", "before", "after_full", "before_full", "after_split", "before_split", "replace"}

func (m ActionMix) MarshalYAML() (any, error)          { return marshalEnum(m, actionMixNames) }
func (m *ActionMix) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, m, actionMixNames) }

func (m ActionMix) mix(action, own mathutil.Mat4) mathutil.Mat4 {
	switch m {
	case ActionMixReplace:
		return action
	case ActionMixBeforeFull:
		return mathutil.Mat4Mul(action, own)
	case ActionMixAfterFull:
		return mathutil.Mat4Mul(own, action)
	case ActionMixBefore:
		return mathutil.Mat4MulAlignedScale(action, own)
	case ActionMixBeforeSplit:
		return mathutil.Mat4MulSplitChannels(action, own)
	case ActionMixAfterSplit:
		return mathutil.Mat4MulSplitChannels(own, action)
	}
	return mathutil.Mat4MulAlignedScale(own, action)
}

// ActionFlag holds Action constraint options.
type ActionFlag uint32

const (
	// ActionBoneUseObject evaluates the object channels for bone owners.
	ActionBoneUseObject ActionFlag = 1 << iota
	// ActionUseEvalTime drives the action from EvalTime instead of a target.
	ActionUseEvalTime
)

var actionFlagNames = []string{"use_object_action", "use_eval_time"}

func (f ActionFlag) MarshalYAML() (any, error)          { return marshalFlags(f, actionFlagNames) }
func (f *ActionFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, actionFlagNames) }

// ActionData plays an action on the owner, at a frame picked by where a
// target channel sits in [Min, Max] or by EvalTime.
type ActionData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`
	Act       *scene.Action `yaml:"-"`

	Channel  ActionChannel `yaml:"channel"`
	Start    float64       `yaml:"frame_start"`
	End      float64       `yaml:"frame_end"`
	Min      float64       `yaml:"min"`
	Max      float64       `yaml:"max"`
	EvalTime float64       `yaml:"eval_time"`
	Flag     ActionFlag    `yaml:"flag"`
	MixMode  ActionMix     `yaml:"mix_mode"`
}

func (d *ActionData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type actionType struct {
	typeBase
	singleTarget
}

func (actionType) NewData() any {
	return &ActionData{Channel: ActionLocX, MixMode: ActionMixAfter}
}

func (actionType) LoopIDs(c *Constraint, fn IDFunc) {
	d := c.Data.(*ActionData)
	fn(c, objectRef("target", &d.Tar), false)
	fn(c, actionRef("action", &d.Act), true)
}

func (actionType) TargetMatrix(cob *EvalContext, c *Constraint, ct *Target, _ float64) bool {
	d := c.Data.(*ActionData)
	ct.Matrix = identity()
	if d.Act == nil {
		return false
	}

	var s float64
	if d.Flag&ActionUseEvalTime != 0 {
		s = d.EvalTime
	} else {
		if !ct.Valid() {
			return false
		}
		tmp := targetToMat4(cob, ct.Tar, ct.Subtarget, SpaceWorld, ct.Space, c.Flag, c.HeadTail)
		s = actionFactor(tmp, d.Channel, d.Min, d.Max)
	}
	s = mathutil.Clamp(s, 0, 1)
	frame := s*(d.End-d.Start) + d.Start

	switch {
	case cob.Ob != nil && (cob.Type == OwnerObject || d.Flag&ActionBoneUseObject != 0):
		work := scene.NewObject("", scene.ObjectEmpty)
		work.RotMode = cob.Ob.RotMode
		d.Act.EvalObject(work, frame)
		ct.Matrix = work.LocalMatrix()
	case cob.Type == OwnerBone && cob.PChan != nil:
		tchan := &scene.PoseChannel{Name: cob.PChan.Name, Transform: scene.IdentityTransform()}
		tchan.RotMode = cob.PChan.RotMode
		d.Act.EvalPoseChannel(tchan, frame)
		ct.Matrix = tchan.LocalMatrix()
	default:
		Logger().Warn("action constraint: unknown owner type", "constraint", c.Name, "owner", int(cob.Type))
		return false
	}
	return true
}

// actionFactor maps the target channel into 0..1 over [min, max]. A zero
// range gives 0.
func actionFactor(m mathutil.Mat4, ch ActionChannel, min, max float64) float64 {
	var vec mathutil.Vec3
	var axis int
	switch {
	case ch < 10:
		vec = m.ToEulO(mathutil.EulerXYZ)
		for i := range vec {
			vec[i] = mathutil.Rad2Deg(vec[i])
		}
		axis = int(ch)
	case ch < 20:
		vec = m.Size()
		axis = int(ch) - 10
	default:
		vec = m.Translation()
		axis = int(ch) - 20
	}

	rng := max - min
	if rng == 0 || axis < 0 || axis > 2 {
		return 0
	}
	return (vec[axis] - min) / rng
}

func (actionType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*ActionData)
	if len(targets) == 0 {
		return
	}
	ct := targets[0]
	if !ct.Valid() && d.Flag&ActionUseEvalTime == 0 {
		return
	}
	cob.Matrix = d.MixMode.mix(ct.Matrix, cob.Matrix)
}
