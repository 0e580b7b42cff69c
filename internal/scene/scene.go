package scene

import "fmt"

// Render holds the output frame settings that affect camera fitting.
type Render struct {
	SizeX, SizeY     int
	AspectX, AspectY float64
}

// Aspect returns the display aspect (width over height), or 1 when unset.
func (r Render) Aspect() float64 {
	w := float64(r.SizeX) * r.AspectX
	h := float64(r.SizeY) * r.AspectY
	if w == 0 || h == 0 {
		return 1
	}
	return w / h
}

// Scene is the set of datablocks a rig evaluates over.
type Scene struct {
	Name   string
	Frame  float64
	FPS    float64
	Render Render

	Camera *Object
	Clip   *MovieClip

	Objects    []*Object
	Actions    []*Action
	Clips      []*MovieClip
	CacheFiles []*CacheFile
	Texts      []*Text
}

// New returns an empty scene at frame 1, 24 fps, 1920×1080.
func New(name string) *Scene {
	return &Scene{
		Name:   name,
		Frame:  1,
		FPS:    24,
		Render: Render{SizeX: 1920, SizeY: 1080, AspectX: 1, AspectY: 1},
	}
}

// Object finds an object by name.
func (s *Scene) Object(name string) *Object {
	for _, ob := range s.Objects {
		if ob.Name == name {
			return ob
		}
	}
	return nil
}

func (s *Scene) Action(name string) *Action {
	for _, a := range s.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

func (s *Scene) MovieClip(name string) *MovieClip {
	for _, c := range s.Clips {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *Scene) CacheFile(name string) *CacheFile {
	for _, c := range s.CacheFiles {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *Scene) Text(name string) *Text {
	for _, t := range s.Texts {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// AddObject appends ob, rejecting duplicate names.
func (s *Scene) AddObject(ob *Object) error {
	if s.Object(ob.Name) != nil {
		return fmt.Errorf("scene: duplicate object %q", ob.Name)
	}
	s.Objects = append(s.Objects, ob)
	return nil
}

// Clone copies the object graph so it can be evaluated without touching s.
// Datablocks other than objects are shared. The returned map takes original
// objects to their copies.
func (s *Scene) Clone() (*Scene, map[*Object]*Object) {
	c := *s
	remap := make(map[*Object]*Object, len(s.Objects))
	c.Objects = make([]*Object, len(s.Objects))
	for i, ob := range s.Objects {
		c.Objects[i] = ob.Clone()
		remap[ob] = c.Objects[i]
	}
	for _, ob := range c.Objects {
		if ob.Parent != nil {
			ob.Parent = remap[ob.Parent]
		}
	}
	if s.Camera != nil {
		c.Camera = remap[s.Camera]
	}
	return &c, remap
}
