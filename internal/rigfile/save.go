package rigfile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"rig-solver/internal/constraint"
	"rig-solver/internal/mathutil"
	"rig-solver/internal/rig"
	"rig-solver/internal/scene"
)

// Save writes r to path in the format its extension names. Baked
// write-backs (set-inverse matrices, rest lengths) are saved with it.
func Save(path string, r *rig.Rig) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	doc, err := Encode(r)
	if err != nil {
		return err
	}
	data, err := Marshal(doc, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("rigfile: write %s: %w", path, err)
	}
	return nil
}

// Marshal encodes doc. JSON and TOML are produced from the YAML form.
func Marshal(doc *Document, format Format) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("rigfile: encode: %w", err)
	}
	if format == FormatYAML {
		return data, nil
	}

	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("rigfile: encode: %w", err)
	}
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(generic, "", "  ")
	case FormatTOML:
		data, err = toml.Marshal(generic)
	default:
		return nil, fmt.Errorf("rigfile: unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("rigfile: encode %s: %w", format, err)
	}
	return data, nil
}

// Encode builds the document form of r.
func Encode(r *rig.Rig) (*Document, error) {
	var doc *Document
	var err error
	r.View(func(sc *scene.Scene, stacks map[string]*rig.Stacks) {
		doc, err = encode(sc, stacks, r.Animation)
	})
	return doc, err
}

func encode(sc *scene.Scene, stacks map[string]*rig.Stacks, anim map[string]*scene.Action) (*Document, error) {
	doc := &Document{Scene: SceneDoc{
		Name:  sc.Name,
		Frame: sc.Frame,
		FPS:   sc.FPS,
		SizeX: sc.Render.SizeX,
		SizeY: sc.Render.SizeY,
	}}
	if sc.Camera != nil {
		doc.Scene.Camera = sc.Camera.Name
	}
	if sc.Clip != nil {
		doc.Scene.Clip = sc.Clip.Name
	}

	for _, t := range sc.Texts {
		doc.Texts = append(doc.Texts, TextDoc{Name: t.Name, Body: t.Body})
	}
	for _, act := range sc.Actions {
		doc.Actions = append(doc.Actions, encodeAction(act))
	}
	for _, clip := range sc.Clips {
		doc.Clips = append(doc.Clips, encodeClip(clip))
	}
	for _, cf := range sc.CacheFiles {
		doc.CacheFiles = append(doc.CacheFiles, encodeCacheFile(cf))
	}

	for _, ob := range sc.Objects {
		od, err := encodeObject(ob, stacks[ob.Name])
		if err != nil {
			return nil, fmt.Errorf("rigfile: object %s: %w", ob.Name, err)
		}
		if act := anim[ob.Name]; act != nil {
			od.Action = act.Name
		}
		doc.Objects = append(doc.Objects, od)
	}
	return doc, nil
}

func encodeTransform(t scene.Transform) TransformDoc {
	var td TransformDoc
	if t.Loc != (mathutil.Vec3{}) {
		loc := t.Loc
		td.Location = &loc
	}
	switch t.RotMode {
	case scene.RotModeQuat:
		q := [4]float64{t.Quat.W(), t.Quat[0], t.Quat[1], t.Quat[2]}
		td.Quaternion = &q
	case scene.RotModeAxisAngle:
		aa := [4]float64{t.RotAngle, t.RotAxis[0], t.RotAxis[1], t.RotAxis[2]}
		td.AxisAngle = &aa
	default:
		if t.Rot != (mathutil.Vec3{}) {
			rot := t.Rot
			td.Rotation = &rot
		}
		if t.RotMode != scene.RotModeXYZ {
			for name, mode := range rotModes {
				if mode == t.RotMode {
					td.RotationMode = name
				}
			}
		}
	}
	if t.Scale != (mathutil.Vec3{1, 1, 1}) {
		s := t.Scale
		td.Scale = &s
	}
	return td
}

func encodeObject(ob *scene.Object, st *rig.Stacks) (ObjectDoc, error) {
	od := ObjectDoc{
		Name:         ob.Name,
		Type:         ob.Type.String(),
		TransformDoc: encodeTransform(ob.Transform),
	}
	if ob.Parent != nil {
		od.Parent = ob.Parent.Name
		od.ParentBone = ob.ParentBone
	}
	if ob.ParentInv != mathutil.Mat4Identity() {
		inv := ob.ParentInv
		od.ParentInverse = &inv
	}

	if me := ob.Mesh; me != nil {
		od.Mesh = &MeshDoc{Verts: me.Verts, Faces: me.Tris, Smooth: me.Smooth, Groups: me.Groups}
	}
	if cu := ob.Curve; cu != nil {
		cd := &CurveDoc{Cyclic: cu.Cyclic, PathClamp: cu.PathClamp, EvalTime: cu.CTime, PathLen: cu.PathLen}
		for _, p := range cu.Points {
			cd.Points = append(cd.Points, CurvePointDoc{Co: p.Co, Tilt: p.Tilt, Radius: p.Radius})
		}
		od.Curve = cd
	}
	if lt := ob.Lattice; lt != nil {
		od.Lattice = &LatticeDoc{Points: lt.Points, Groups: lt.Groups}
	}
	if cam := ob.Camera; cam != nil {
		od.Camera = &CameraDoc{
			Lens:       cam.Lens,
			SensorX:    cam.SensorX,
			Ortho:      cam.Ortho,
			OrthoScale: cam.OrthoScale,
			ShiftX:     cam.ShiftX,
			ShiftY:     cam.ShiftY,
			ClipStart:  cam.ClipStart,
			ClipEnd:    cam.ClipEnd,
		}
	}
	if arm := ob.Armature; arm != nil {
		for _, b := range arm.Bones {
			od.Bones = append(od.Bones, encodeBone(b))
		}
	}

	if st == nil {
		return od, nil
	}
	var err error
	if od.Constraints, err = encodeStack(st.Object); err != nil {
		return od, err
	}
	if ob.Pose != nil {
		for _, pc := range ob.Pose.Channels {
			pd := PoseDoc{TransformDoc: encodeTransform(pc.Transform)}
			if pd.Constraints, err = encodeStack(st.Bones[pc.Name]); err != nil {
				return od, fmt.Errorf("bone %s: %w", pc.Name, err)
			}
			if pd.Constraints == nil && pd.TransformDoc == (TransformDoc{}) {
				continue
			}
			if od.Pose == nil {
				od.Pose = make(map[string]PoseDoc)
			}
			od.Pose[pc.Name] = pd
		}
	}
	return od, nil
}

func encodeBone(b *scene.Bone) BoneDoc {
	bd := BoneDoc{
		Name:           b.Name,
		Head:           b.ArmHead,
		Tail:           b.ArmTail,
		Roll:           b.Roll,
		Connected:      b.Flag&scene.BoneConnected != 0,
		Hinge:          b.Flag&scene.BoneHinge != 0,
		NoLocalLoc:     b.Flag&scene.BoneNoLocalLocation != 0,
		MultEnvelope:   b.Flag&scene.BoneMultVGEnv != 0,
		HeadRadius:     b.RadHead,
		TailRadius:     b.RadTail,
		EnvelopeRadius: b.Dist,
	}
	if b.Segments > 1 {
		bd.Segments = b.Segments
	}
	if b.InheritScale != scene.InheritScaleFull {
		bd.InheritScale = b.InheritScale.String()
	}
	if b.Parent != nil {
		bd.Parent = b.Parent.Name
	}
	return bd
}

func encodeStack(l constraint.List) ([]ConstraintDoc, error) {
	var out []ConstraintDoc
	for _, c := range l {
		if c.TypeInfo() == nil {
			continue
		}
		cd := ConstraintDoc{
			Type:           c.Type.Key(),
			Name:           c.Name,
			Mute:           c.Flag&constraint.FlagOff != 0,
			Active:         c.Flag&constraint.FlagActive != 0,
			SpaceSubtarget: c.SpaceSubtarget,
			HeadTail:       c.HeadTail,
			BBoneShape:     c.Flag&constraint.FlagBBoneShape != 0,
		}
		if c.Enforce != 1 {
			inf := c.Enforce
			cd.Influence = &inf
		}
		if c.OwnSpace != constraint.SpaceWorld {
			cd.OwnerSpace = c.OwnSpace.String()
		}
		if c.TarSpace != constraint.SpaceWorld {
			cd.TargetSpace = c.TarSpace.String()
		}
		if c.Data != nil {
			if err := cd.Settings.Encode(c.Data); err != nil {
				return nil, fmt.Errorf("constraint %s: settings: %w", c.Name, err)
			}
		}
		constraint.IDLoop(constraint.List{c}, func(_ *constraint.Constraint, ref constraint.IDRef, _ bool) {
			id := ref.Get()
			if id == nil {
				return
			}
			if ref.Field() == "space_object" {
				cd.SpaceObject = id.IDName()
				return
			}
			if cd.Refs == nil {
				cd.Refs = make(map[string]string)
			}
			cd.Refs[ref.Field()] = id.IDName()
		})
		out = append(out, cd)
	}
	return out, nil
}

func encodeAction(act *scene.Action) ActionDoc {
	ad := ActionDoc{Name: act.Name}
	for _, ch := range act.Channels {
		cd := ChannelDoc{Bone: ch.Bone, Property: ch.Property, Index: ch.Index}
		if ch.Interp == scene.InterpConstant {
			cd.Interpolation = "constant"
		}
		for _, k := range ch.Keys {
			cd.Keys = append(cd.Keys, [2]float64{k.Frame, k.Value})
		}
		ad.Channels = append(ad.Channels, cd)
	}
	return ad
}

func encodeClip(clip *scene.MovieClip) ClipDoc {
	cd := ClipDoc{
		Name:       clip.Name,
		Width:      clip.Width,
		Height:     clip.Height,
		AspectX:    clip.AspectX,
		AspectY:    clip.AspectY,
		StartFrame: clip.StartFrame,
		Focal:      clip.Camera.Focal,
		Principal:  clip.Camera.PrincipalPoint,
		K:          [3]float64{clip.Camera.K1, clip.Camera.K2, clip.Camera.K3},
	}
	for _, tob := range clip.Objects {
		od := TrackingObjectDoc{Name: tob.Name, IsCamera: tob.IsCamera, Scale: tob.Scale}
		for _, tr := range tob.Tracks {
			td := TrackDoc{Name: tr.Name, Offset: tr.Offset}
			for _, m := range tr.Markers {
				td.Markers = append(td.Markers, MarkerDoc{Frame: m.Frame, Pos: m.Pos, Disabled: m.Disabled})
			}
			if tr.HasBundle {
				b := tr.Bundle
				td.Bundle = &b
			}
			od.Tracks = append(od.Tracks, td)
		}
		for _, cam := range tob.Cameras {
			od.Cameras = append(od.Cameras, ReconstructedCamDoc{Frame: cam.Frame, Matrix: cam.Mat})
		}
		cd.Objects = append(cd.Objects, od)
	}
	return cd
}

func encodeCacheFile(cf *scene.CacheFile) CacheFileDoc {
	cd := CacheFileDoc{
		Name:          cf.Name,
		Filepath:      cf.Filepath,
		Scale:         cf.Scale,
		FrameOffset:   cf.FrameOffset,
		OverrideFrame: cf.OverrideFrame,
		Frame:         cf.Frame,
		IsSequence:    cf.IsSequence,
	}
	if len(cf.Paths) > 0 {
		cd.Paths = make(map[string][]CacheSampleDoc, len(cf.Paths))
		for p, samples := range cf.Paths {
			out := make([]CacheSampleDoc, len(samples))
			for i, s := range samples {
				out[i] = CacheSampleDoc{Time: s.Time, Matrix: s.Mat}
			}
			cd.Paths[p] = out
		}
	}
	return cd
}
