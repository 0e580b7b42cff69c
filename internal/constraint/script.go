package constraint

import (
	"rig-solver/internal/scene"
)

// ScriptData hands the solve to a ScriptEngine. Text holds the script body;
// Props are passed through untouched.
type ScriptData struct {
	Text    *scene.Text    `yaml:"-"`
	Targets []*Target      `yaml:"targets"`
	Props   map[string]any `yaml:"props,omitempty"`
}

// AddTarget appends a target to the persistent list.
func (d *ScriptData) AddTarget(tar *scene.Object, sub string) *Target {
	ct := &Target{Tar: tar, Subtarget: sub, Matrix: identity()}
	classifyTarget(ct)
	d.Targets = append(d.Targets, ct)
	return ct
}

type scriptType struct{ typeBase }

func (scriptType) NewData() any { return &ScriptData{} }

func (scriptType) Targets(c *Constraint) []*Target {
	d := c.Data.(*ScriptData)
	out := make([]*Target, len(d.Targets))
	copy(out, d.Targets)
	return out
}

func (scriptType) LoopIDs(c *Constraint, fn IDFunc) {
	d := c.Data.(*ScriptData)
	for i, ct := range d.Targets {
		fn(c, objectRef(indexedField("targets", i), &ct.Tar), false)
	}
	fn(c, textRef("text", &d.Text), false)
}

func (scriptType) CopyData(dst, src *Constraint) {
	s := src.Data.(*ScriptData)
	d := dst.Data.(*ScriptData)
	d.Targets = make([]*Target, len(s.Targets))
	for i, ct := range s.Targets {
		cp := *ct
		d.Targets[i] = &cp
	}
	if s.Props != nil {
		d.Props = make(map[string]any, len(s.Props))
		for k, v := range s.Props {
			d.Props[k] = v
		}
	}
}

func (scriptType) FreeData(c *Constraint) {
	d := c.Data.(*ScriptData)
	d.Targets = nil
	d.Props = nil
}

func (scriptType) TargetMatrix(cob *EvalContext, c *Constraint, ct *Target, _ float64) bool {
	if !ct.Valid() {
		ct.Matrix = identity()
		return false
	}
	ct.Matrix = targetToMat4(cob, ct.Tar, ct.Subtarget, SpaceWorld, ct.Space, 0, 0)
	if cob.Scripts != nil {
		cob.Scripts.Target(c.Data.(*ScriptData), ct)
	}
	return true
}

func (scriptType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	if cob.Scripts == nil {
		return
	}
	cob.Scripts.Exec(c.Data.(*ScriptData), cob, targets)
}
