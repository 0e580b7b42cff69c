package rigfile

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"rig-solver/internal/constraint"
	"rig-solver/internal/mathutil"
	"rig-solver/internal/rig"
	"rig-solver/internal/scene"
	"rig-solver/internal/skeleton"
)

// Build turns a parsed document into a rig. baseDir resolves relative cache
// file paths.
func Build(doc *Document, baseDir string) (*rig.Rig, error) {
	sc := scene.New(doc.Scene.Name)
	if doc.Scene.Frame != 0 {
		sc.Frame = doc.Scene.Frame
	}
	if doc.Scene.FPS > 0 {
		sc.FPS = doc.Scene.FPS
	}
	if doc.Scene.SizeX > 0 && doc.Scene.SizeY > 0 {
		sc.Render.SizeX, sc.Render.SizeY = doc.Scene.SizeX, doc.Scene.SizeY
	}

	for _, td := range doc.Texts {
		sc.Texts = append(sc.Texts, &scene.Text{Name: td.Name, Body: td.Body})
	}
	for _, ad := range doc.Actions {
		act, err := buildAction(ad)
		if err != nil {
			return nil, err
		}
		sc.Actions = append(sc.Actions, act)
	}
	for _, cd := range doc.Clips {
		sc.Clips = append(sc.Clips, buildClip(cd))
	}
	for _, cd := range doc.CacheFiles {
		sc.CacheFiles = append(sc.CacheFiles, buildCacheFile(cd, baseDir))
	}

	for _, od := range doc.Objects {
		ob, err := buildObject(od)
		if err != nil {
			return nil, err
		}
		if err := sc.AddObject(ob); err != nil {
			return nil, fmt.Errorf("rigfile: %w", err)
		}
	}

	r := rig.New(sc)
	for _, od := range doc.Objects {
		if err := link(r, od); err != nil {
			return nil, err
		}
	}

	if name := doc.Scene.Camera; name != "" {
		if sc.Camera = sc.Object(name); sc.Camera == nil {
			return nil, fmt.Errorf("%w: scene camera %q", ErrUnresolved, name)
		}
	}
	if name := doc.Scene.Clip; name != "" {
		if sc.Clip = sc.MovieClip(name); sc.Clip == nil {
			return nil, fmt.Errorf("%w: scene clip %q", ErrUnresolved, name)
		}
	}
	return r, nil
}

// link resolves the name references of one object: parent, action and the
// constraint stacks.
func link(r *rig.Rig, od ObjectDoc) error {
	sc := r.Scene
	ob := sc.Object(od.Name)

	if od.Parent != "" {
		par := sc.Object(od.Parent)
		if par == nil || par == ob {
			return fmt.Errorf("%w: object %s: parent %q", ErrUnresolved, od.Name, od.Parent)
		}
		ob.Parent = par
		if od.ParentBone != "" {
			if par.Pose == nil || par.Pose.Channel(od.ParentBone) == nil {
				return fmt.Errorf("%w: object %s: parent bone %q", ErrUnresolved, od.Name, od.ParentBone)
			}
			ob.ParentBone = od.ParentBone
		}
	}

	if od.Action != "" {
		act := sc.Action(od.Action)
		if act == nil {
			return fmt.Errorf("%w: object %s: action %q", ErrUnresolved, od.Name, od.Action)
		}
		r.Animation[od.Name] = act
	}

	if len(od.Constraints) > 0 {
		st := r.StacksFor(od.Name)
		l, err := buildStack(sc, od.Constraints, nil)
		if err != nil {
			return fmt.Errorf("rigfile: object %s: %w", od.Name, err)
		}
		st.Object = l
	}

	for bone, pd := range od.Pose {
		if len(pd.Constraints) == 0 {
			continue
		}
		pchan := ob.Pose.Channel(bone)
		l, err := buildStack(sc, pd.Constraints, pchan)
		if err != nil {
			return fmt.Errorf("rigfile: object %s: bone %s: %w", od.Name, bone, err)
		}
		r.SetBoneStack(od.Name, bone, l)
	}
	return nil
}

func buildStack(sc *scene.Scene, docs []ConstraintDoc, pchan *scene.PoseChannel) (constraint.List, error) {
	var l constraint.List
	var active *constraint.Constraint
	for i, cd := range docs {
		typ, ok := constraint.ParseType(cd.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, cd.Type)
		}
		var c *constraint.Constraint
		if pchan != nil {
			c = constraint.AddForPose(&l, pchan, cd.Name, typ)
		} else {
			c = constraint.AddForObject(&l, cd.Name, typ)
		}
		if err := applyConstraintDoc(sc, c, cd); err != nil {
			return nil, fmt.Errorf("constraint %d (%s): %w", i, c.Name, err)
		}
		if cd.Active {
			active = c
		}
	}
	if active != nil {
		l.SetActive(active)
	}
	constraint.AfterRead(l, false)
	return l, nil
}

func applyConstraintDoc(sc *scene.Scene, c *constraint.Constraint, cd ConstraintDoc) error {
	if cd.Influence != nil {
		c.Enforce = *cd.Influence
	}
	if cd.Mute {
		c.Flag |= constraint.FlagOff
	}
	if cd.BBoneShape {
		c.Flag |= constraint.FlagBBoneShape
	}
	c.HeadTail = cd.HeadTail
	c.SpaceSubtarget = cd.SpaceSubtarget

	var err error
	if cd.OwnerSpace != "" {
		if c.OwnSpace, err = constraint.ParseSpace(cd.OwnerSpace); err != nil {
			return err
		}
	}
	if cd.TargetSpace != "" {
		if c.TarSpace, err = constraint.ParseSpace(cd.TargetSpace); err != nil {
			return err
		}
	}

	if cd.Settings.Kind != 0 && c.Data != nil {
		if err := cd.Settings.Decode(c.Data); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}

	refs := make(map[string]string, len(cd.Refs)+1)
	for k, v := range cd.Refs {
		refs[k] = v
	}
	if cd.SpaceObject != "" {
		refs["space_object"] = cd.SpaceObject
	}

	var missing error
	constraint.IDLoop(constraint.List{c}, func(_ *constraint.Constraint, ref constraint.IDRef, _ bool) {
		name, ok := refs[ref.Field()]
		if !ok {
			return
		}
		delete(refs, ref.Field())
		id := lookupID(sc, ref.Kind(), name)
		if id == nil {
			if missing == nil {
				missing = fmt.Errorf("%w: %s %q", ErrUnresolved, ref.Kind(), name)
			}
			return
		}
		ref.Set(id)
	})
	if missing != nil {
		return missing
	}
	for field := range refs {
		return fmt.Errorf("%w: no reference field %q on %s", ErrUnresolved, field, c.Type.Key())
	}
	return nil
}

// lookupID finds a datablock by kind and name. Typed nils are never
// returned.
func lookupID(sc *scene.Scene, kind constraint.IDKind, name string) scene.ID {
	switch kind {
	case constraint.IDObject:
		if ob := sc.Object(name); ob != nil {
			return ob
		}
	case constraint.IDAction:
		if act := sc.Action(name); act != nil {
			return act
		}
	case constraint.IDMovieClip:
		if clip := sc.MovieClip(name); clip != nil {
			return clip
		}
	case constraint.IDCacheFile:
		if cf := sc.CacheFile(name); cf != nil {
			return cf
		}
	case constraint.IDText:
		if t := sc.Text(name); t != nil {
			return t
		}
	}
	return nil
}

var rotModes = map[string]scene.RotMode{
	"quaternion": scene.RotModeQuat,
	"axis_angle": scene.RotModeAxisAngle,
	"xyz":        scene.RotModeXYZ,
	"xzy":        scene.RotModeXZY,
	"yxz":        scene.RotModeYXZ,
	"yzx":        scene.RotModeYZX,
	"zxy":        scene.RotModeZXY,
	"zyx":        scene.RotModeZYX,
}

func applyTransform(t *scene.Transform, td TransformDoc) {
	if td.Location != nil {
		t.Loc = *td.Location
	}
	if td.Rotation != nil {
		t.Rot = *td.Rotation
	}
	if q := td.Quaternion; q != nil {
		t.Quat = mathutil.Quat{q[1], q[2], q[3], q[0]}
		t.RotMode = scene.RotModeQuat
	}
	if aa := td.AxisAngle; aa != nil {
		t.RotAngle = aa[0]
		t.RotAxis = mathutil.Vec3{aa[1], aa[2], aa[3]}
		t.RotMode = scene.RotModeAxisAngle
	}
	if mode, ok := rotModes[td.RotationMode]; ok {
		t.RotMode = mode
	}
	if td.Scale != nil {
		t.Scale = *td.Scale
	}
}

func objectType(od ObjectDoc) (scene.ObjectType, error) {
	if od.Type != "" {
		return scene.ParseObjectType(od.Type)
	}
	switch {
	case len(od.Bones) > 0:
		return scene.ObjectArmature, nil
	case od.Mesh != nil:
		return scene.ObjectMesh, nil
	case od.Curve != nil:
		return scene.ObjectCurve, nil
	case od.Lattice != nil:
		return scene.ObjectLattice, nil
	case od.Camera != nil:
		return scene.ObjectCamera, nil
	}
	return scene.ObjectEmpty, nil
}

func buildObject(od ObjectDoc) (*scene.Object, error) {
	typ, err := objectType(od)
	if err != nil {
		return nil, fmt.Errorf("rigfile: object %s: %w", od.Name, err)
	}
	if len(od.Pose) > 0 && typ != scene.ObjectArmature {
		return nil, fmt.Errorf("%w: object %s: pose on a %s", ErrInvalid, od.Name, typ)
	}
	ob := scene.NewObject(od.Name, typ)
	applyTransform(&ob.Transform, od.TransformDoc)
	if od.ParentInverse != nil {
		ob.ParentInv = *od.ParentInverse
	}

	switch typ {
	case scene.ObjectMesh:
		if od.Mesh == nil {
			return nil, fmt.Errorf("%w: object %s: mesh data missing", ErrInvalid, od.Name)
		}
		if ob.Mesh, err = buildMesh(od.Name, *od.Mesh); err != nil {
			return nil, fmt.Errorf("rigfile: object %s: %w", od.Name, err)
		}
	case scene.ObjectCurve:
		if od.Curve == nil {
			return nil, fmt.Errorf("%w: object %s: curve data missing", ErrInvalid, od.Name)
		}
		ob.Curve = buildCurve(od.Name, *od.Curve)
	case scene.ObjectLattice:
		if od.Lattice == nil {
			return nil, fmt.Errorf("%w: object %s: lattice data missing", ErrInvalid, od.Name)
		}
		ob.Lattice = &scene.Lattice{Name: od.Name, Points: od.Lattice.Points, Groups: od.Lattice.Groups}
	case scene.ObjectCamera:
		ob.Camera = buildCamera(od.Name, od.Camera)
	case scene.ObjectArmature:
		if err := buildArmature(ob, od); err != nil {
			return nil, err
		}
	}
	return ob, nil
}

func buildMesh(name string, md MeshDoc) (*scene.Mesh, error) {
	var me *scene.Mesh
	switch md.Primitive {
	case "cube":
		size := md.Size
		if size == 0 {
			size = 2
		}
		me = scene.Cube(name, size/2)
	case "plane", "grid":
		size := md.Size
		if size == 0 {
			size = 2
		}
		n := 1
		if md.Primitive == "grid" {
			n = md.Subdivisions
			if n <= 0 {
				n = 10
			}
		}
		me = scene.Grid(name, size, n)
	default:
		for i, f := range md.Faces {
			for _, vi := range f {
				if vi < 0 || vi >= len(md.Verts) {
					return nil, fmt.Errorf("%w: mesh face %d: vertex %d out of range", ErrInvalid, i, vi)
				}
			}
		}
		me = &scene.Mesh{Name: name, Verts: md.Verts, Tris: md.Faces}
	}
	me.Smooth = md.Smooth
	for g, weights := range md.Groups {
		if len(weights) != len(me.Verts) {
			return nil, fmt.Errorf("%w: vertex group %s: %d weights for %d vertices", ErrInvalid, g, len(weights), len(me.Verts))
		}
	}
	if len(md.Groups) > 0 {
		me.Groups = md.Groups
	}
	return me, nil
}

func buildCurve(name string, cd CurveDoc) *scene.Curve {
	cu := &scene.Curve{
		Name:      name,
		Cyclic:    cd.Cyclic,
		PathClamp: cd.PathClamp,
		CTime:     cd.EvalTime,
		PathLen:   cd.PathLen,
	}
	if cu.PathLen == 0 {
		cu.PathLen = 100
	}
	for _, p := range cd.Points {
		radius := p.Radius
		if radius == 0 {
			radius = 1
		}
		cu.Points = append(cu.Points, scene.CurvePoint{Co: p.Co, Tilt: p.Tilt, Radius: radius})
	}
	return cu
}

func buildCamera(name string, cd *CameraDoc) *scene.Camera {
	cam := scene.DefaultCamera(name)
	if cd == nil {
		return cam
	}
	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	set(&cam.Lens, cd.Lens)
	set(&cam.SensorX, cd.SensorX)
	set(&cam.OrthoScale, cd.OrthoScale)
	set(&cam.ClipStart, cd.ClipStart)
	set(&cam.ClipEnd, cd.ClipEnd)
	cam.Ortho = cd.Ortho
	cam.ShiftX, cam.ShiftY = cd.ShiftX, cd.ShiftY
	return cam
}

func buildArmature(ob *scene.Object, od ObjectDoc) error {
	bones := make([]*scene.Bone, len(od.Bones))
	byName := make(map[string]*scene.Bone, len(od.Bones))
	for i, bd := range od.Bones {
		inherit, err := scene.ParseInheritScale(bd.InheritScale)
		if err != nil {
			return fmt.Errorf("rigfile: object %s: bone %s: %w", od.Name, bd.Name, err)
		}
		b := &scene.Bone{
			Name:         bd.Name,
			ArmHead:      bd.Head,
			ArmTail:      bd.Tail,
			Roll:         bd.Roll,
			InheritScale: inherit,
			Segments:     bd.Segments,
			RadHead:      bd.HeadRadius,
			RadTail:      bd.TailRadius,
			Dist:         bd.EnvelopeRadius,
		}
		if bd.Connected {
			b.Flag |= scene.BoneConnected
		}
		if bd.Hinge {
			b.Flag |= scene.BoneHinge
		}
		if bd.NoLocalLoc {
			b.Flag |= scene.BoneNoLocalLocation
		}
		if bd.MultEnvelope {
			b.Flag |= scene.BoneMultVGEnv
		}
		if _, dup := byName[b.Name]; dup {
			return fmt.Errorf("%w: object %s: duplicate bone %s", ErrInvalid, od.Name, b.Name)
		}
		bones[i] = b
		byName[b.Name] = b
	}
	for i, bd := range od.Bones {
		if bd.Parent == "" {
			continue
		}
		p := byName[bd.Parent]
		if p == nil {
			return fmt.Errorf("%w: object %s: bone %s: parent %q", ErrUnresolved, od.Name, bd.Name, bd.Parent)
		}
		bones[i].Parent = p
	}

	ob.Armature = scene.NewArmature(od.Name, bones)
	if err := skeleton.BuildRest(ob.Armature); err != nil {
		return fmt.Errorf("rigfile: %w", err)
	}
	ob.Pose = scene.NewPose(ob.Armature)

	for bone, pd := range od.Pose {
		pchan := ob.Pose.Channel(bone)
		if pchan == nil {
			return fmt.Errorf("%w: object %s: pose bone %q", ErrUnresolved, od.Name, bone)
		}
		applyTransform(&pchan.Transform, pd.TransformDoc)
	}
	return nil
}

func buildAction(ad ActionDoc) (*scene.Action, error) {
	act := &scene.Action{Name: ad.Name}
	for _, chd := range ad.Channels {
		ch := scene.Channel{Bone: chd.Bone, Property: chd.Property, Index: chd.Index}
		if chd.Interpolation == "constant" {
			ch.Interp = scene.InterpConstant
		}
		for _, k := range chd.Keys {
			ch.Keys = append(ch.Keys, scene.Keyframe{Frame: k[0], Value: k[1]})
		}
		act.Channels = append(act.Channels, ch)
	}
	if err := act.Validate(); err != nil {
		return nil, fmt.Errorf("rigfile: %w", err)
	}
	return act, nil
}

func buildClip(cd ClipDoc) *scene.MovieClip {
	clip := &scene.MovieClip{
		Name:       cd.Name,
		Width:      cd.Width,
		Height:     cd.Height,
		AspectX:    cd.AspectX,
		AspectY:    cd.AspectY,
		StartFrame: cd.StartFrame,
		Camera: scene.Intrinsics{
			Focal:          cd.Focal,
			PrincipalPoint: cd.Principal,
			K1:             cd.K[0],
			K2:             cd.K[1],
			K3:             cd.K[2],
		},
	}
	if clip.StartFrame == 0 {
		clip.StartFrame = 1
	}
	for _, od := range cd.Objects {
		tob := &scene.TrackingObject{Name: od.Name, IsCamera: od.IsCamera, Scale: od.Scale}
		for _, td := range od.Tracks {
			tr := &scene.Track{Name: td.Name, Offset: td.Offset}
			for _, md := range td.Markers {
				tr.Markers = append(tr.Markers, scene.Marker{Frame: md.Frame, Pos: md.Pos, Disabled: md.Disabled})
			}
			if td.Bundle != nil {
				tr.HasBundle = true
				tr.Bundle = *td.Bundle
			}
			tob.Tracks = append(tob.Tracks, tr)
		}
		for _, cam := range od.Cameras {
			tob.Cameras = append(tob.Cameras, scene.ReconstructedCamera{Frame: cam.Frame, Mat: cam.Matrix})
		}
		clip.Objects = append(clip.Objects, tob)
	}
	return clip
}

func buildCacheFile(cd CacheFileDoc, baseDir string) *scene.CacheFile {
	cf := &scene.CacheFile{
		Name:          cd.Name,
		Filepath:      cd.Filepath,
		Scale:         cd.Scale,
		FrameOffset:   cd.FrameOffset,
		OverrideFrame: cd.OverrideFrame,
		Frame:         cd.Frame,
		IsSequence:    cd.IsSequence,
	}
	paths := cd.Paths
	if len(paths) == 0 && cd.Filepath != "" {
		var err error
		if paths, err = readCacheSamples(cd.Filepath, baseDir); err != nil {
			// the constraint treats an unreadable archive as absent
			constraint.Logger().Warn("rigfile: cache file unreadable", "name", cd.Name, "path", cd.Filepath, "err", err)
		}
	}
	if len(paths) > 0 {
		cf.Paths = make(map[string][]scene.CacheSample, len(paths))
		for p, samples := range paths {
			out := make([]scene.CacheSample, len(samples))
			for i, s := range samples {
				out[i] = scene.CacheSample{Time: s.Time, Mat: s.Matrix}
			}
			slices.SortStableFunc(out, func(a, b scene.CacheSample) int { return cmp.Compare(a.Time, b.Time) })
			cf.Paths[p] = out
		}
	}
	return cf
}

// readCacheSamples reads a sample table ({path: [{time, matrix}]}) stored
// next to the rig.
func readCacheSamples(path, baseDir string) (map[string][]CacheSampleDoc, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string][]CacheSampleDoc
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}
