package scene

import (
	"fmt"
	"sort"
)

// Interpolation between two keyframes.
type Interpolation int

const (
	InterpLinear Interpolation = iota
	InterpConstant
)

// Keyframe is one key of an animation channel.
type Keyframe struct {
	Frame float64
	Value float64
}

// Channel animates one component of a transform property.
type Channel struct {
	Bone     string // empty for object channels
	Property string // location, rotation_euler, rotation_quaternion, rotation_axis_angle, scale
	Index    int
	Interp   Interpolation
	Keys     []Keyframe // sorted by frame
}

// Eval returns the channel value at frame, holding the end values outside
// the key range.
func (c *Channel) Eval(frame float64) float64 {
	n := len(c.Keys)
	switch {
	case n == 0:
		return 0
	case frame <= c.Keys[0].Frame:
		return c.Keys[0].Value
	case frame >= c.Keys[n-1].Frame:
		return c.Keys[n-1].Value
	}
	i := sort.Search(n, func(i int) bool { return c.Keys[i].Frame > frame }) - 1
	a, b := c.Keys[i], c.Keys[i+1]
	if c.Interp == InterpConstant || b.Frame == a.Frame {
		return a.Value
	}
	t := (frame - a.Frame) / (b.Frame - a.Frame)
	return a.Value + (b.Value-a.Value)*t
}

// Action is a named set of animation channels.
type Action struct {
	Name     string
	Channels []Channel
}

func (a *Action) IDName() string { return a.Name }

// Validate checks property names and component indices.
func (a *Action) Validate() error {
	for _, c := range a.Channels {
		max, ok := propertySize[c.Property]
		if !ok {
			return fmt.Errorf("scene: action %s: unknown property %q", a.Name, c.Property)
		}
		if c.Index < 0 || c.Index >= max {
			return fmt.Errorf("scene: action %s: %s index %d out of range", a.Name, c.Property, c.Index)
		}
		for i := 1; i < len(c.Keys); i++ {
			if c.Keys[i].Frame < c.Keys[i-1].Frame {
				return fmt.Errorf("scene: action %s: %s keys not sorted", a.Name, c.Property)
			}
		}
	}
	return nil
}

var propertySize = map[string]int{
	"location":            3,
	"rotation_euler":      3,
	"rotation_quaternion": 4,
	"rotation_axis_angle": 4,
	"scale":               3,
}

// EvalObject writes the object channels at frame into ob's transform.
func (a *Action) EvalObject(ob *Object, frame float64) {
	a.evalInto("", &ob.Transform, frame)
}

// EvalPoseChannel writes the channels of pchan's bone at frame into its transform.
func (a *Action) EvalPoseChannel(pchan *PoseChannel, frame float64) {
	a.evalInto(pchan.Name, &pchan.Transform, frame)
}

func (a *Action) evalInto(bone string, t *Transform, frame float64) {
	for i := range a.Channels {
		c := &a.Channels[i]
		if c.Bone != bone {
			continue
		}
		v := c.Eval(frame)
		switch c.Property {
		case "location":
			t.Loc[c.Index] = v
		case "rotation_euler":
			t.Rot[c.Index] = v
		case "rotation_quaternion":
			// stored w first, like the authoring tools
			t.Quat[(c.Index+3)%4] = v
		case "rotation_axis_angle":
			if c.Index == 0 {
				t.RotAngle = v
			} else {
				t.RotAxis[c.Index-1] = v
			}
		case "scale":
			t.Scale[c.Index] = v
		}
	}
}
