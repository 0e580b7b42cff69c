package constraint

import (
	"math"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// ClipFlag holds the options shared by the motion tracking constraints.
type ClipFlag uint32

const (
	// ClipActive uses the scene's clip instead of the constraint's own.
	ClipActive ClipFlag = 1 << iota
	// ClipUse3DPosition places the owner at the track's reconstructed bundle.
	ClipUse3DPosition
	// ClipUndistort undistorts the 2D marker before reprojecting it.
	ClipUndistort
	// ClipSetInverse makes Object Solver store a fresh inverse on the next solve.
	ClipSetInverse
)

var clipFlagNames = []string{"use_active_clip", "use_3d_position", "use_undistorted_position", "set_inverse_pending"}

func (f ClipFlag) MarshalYAML() (any, error)          { return marshalFlags(f, clipFlagNames) }
func (f *ClipFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, clipFlagNames) }

// FrameMethod is how a clip of another aspect is fitted into the render frame.
type FrameMethod int

const (
	FrameStretch FrameMethod = iota
	FrameFit
	FrameCrop
)

var frameMethodNames = []string{"stretch", "fit", "crop"}

func (m FrameMethod) MarshalYAML() (any, error)          { return marshalEnum(m, frameMethodNames) }
func (m *FrameMethod) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, m, frameMethodNames) }

func activeClip(cob *EvalContext, own *scene.MovieClip, flag ClipFlag) *scene.MovieClip {
	if flag&ClipActive != 0 {
		if cob.Scene == nil {
			return nil
		}
		return cob.Scene.Clip
	}
	return own
}

func sceneCamera(cob *EvalContext, own *scene.Object) *scene.Object {
	if own != nil {
		return own
	}
	if cob.Scene == nil {
		return nil
	}
	return cob.Scene.Camera
}

// FollowTrackData moves the owner to follow a motion track.
type FollowTrackData struct {
	Clip    *scene.MovieClip `yaml:"-"`
	Camera  *scene.Object    `yaml:"-"`
	DepthOb *scene.Object    `yaml:"-"`

	Track string `yaml:"track"`
	// Object names the tracking object; empty is the camera solve.
	Object      string      `yaml:"object,omitempty"`
	Flag        ClipFlag    `yaml:"flag"`
	FrameMethod FrameMethod `yaml:"frame_method"`
}

type followTrackType struct{ typeBase }

func (followTrackType) NewData() any { return &FollowTrackData{Flag: ClipActive} }

func (followTrackType) LoopIDs(c *Constraint, fn IDFunc) {
	d := c.Data.(*FollowTrackData)
	fn(c, clipRef("clip", &d.Clip), true)
	fn(c, objectRef("camera", &d.Camera), false)
	fn(c, objectRef("depth_object", &d.DepthOb), false)
}

// followTrack is the resolved state of one Follow Track solve.
type followTrack struct {
	data      *FollowTrackData
	clip      *scene.MovieClip
	camera    *scene.Object
	tracking  *scene.TrackingObject
	track     *scene.Track
	clipFrame float64
}

func newFollowTrack(d *FollowTrackData, cob *EvalContext) (*followTrack, bool) {
	ft := &followTrack{data: d}
	ft.clip = activeClip(cob, d.Clip, d.Flag)
	ft.camera = sceneCamera(cob, d.Camera)
	if ft.clip == nil || ft.camera == nil {
		return nil, false
	}
	if d.Object != "" {
		ft.tracking = ft.clip.Object(d.Object)
	} else {
		ft.tracking = ft.clip.CameraObject()
	}
	if ft.tracking == nil {
		return nil, false
	}
	ft.track = ft.tracking.Track(d.Track)
	if ft.track == nil {
		return nil, false
	}
	ft.clipFrame = ft.clip.RemapSceneToClipFrame(cob.frame())
	return ft, true
}

func (followTrackType) Evaluate(c *Constraint, cob *EvalContext, _ []*Target) {
	d := c.Data.(*FollowTrackData)
	ft, ok := newFollowTrack(d, cob)
	if !ok {
		return
	}
	if d.Flag&ClipUse3DPosition != 0 {
		ft.evaluate3D(cob)
		return
	}
	ft.evaluate2D(cob)
}

func (ft *followTrack) evaluate3D(cob *EvalContext) {
	if !ft.track.HasBundle {
		return
	}
	obmat := cob.Matrix
	if !ft.tracking.IsCamera {
		recon := ft.tracking.ReconstructedMatrix(ft.clipFrame)
		cob.Matrix = mathutil.Mat4MulSeries(obmat, ft.camera.ObMat, recon.Inverse())
	} else {
		cob.Matrix = mathutil.Mat4Mul(obmat, ft.camera.WhereIsMat4())
	}
	cob.Matrix = mathutil.Mat4Mul(cob.Matrix, mathutil.Mat4Translation(ft.track.Bundle))
}

// viewplaneDistance is the owner's depth along the camera's Z axis.
func (ft *followTrack) viewplaneDistance(cob *EvalContext) float64 {
	cammat := ft.camera.WhereIsMat4()
	axis := cammat.MulDir(mathutil.AxisZ)
	vec := cob.Matrix.Translation().Sub(cammat.Translation())
	return vec.Project(axis).Len()
}

func (ft *followTrack) undistort(w, h float64, pos [2]float64) [2]float64 {
	if ft.data.Flag&ClipUndistort == 0 {
		return pos
	}
	px := ft.clip.Camera.Undistort([2]float64{pos[0] * w, pos[1] * h})
	return [2]float64{px[0] / w, px[1] / h}
}

// fitFrame adjusts pos for a clip whose aspect differs from the render.
func (ft *followTrack) fitFrame(sc *scene.Scene, w, h float64, pos [2]float64) [2]float64 {
	if ft.data.FrameMethod == FrameStretch || sc == nil {
		return pos
	}
	ax, ay := ft.clip.Aspect()
	aspSrc := (w * ax) / (h * ay)
	aspDst := sc.Render.Aspect()
	if math.Abs(aspSrc-aspDst) < fltEpsilon {
		return pos
	}

	if (aspSrc > aspDst) == (ft.data.FrameMethod == FrameCrop) {
		div := aspSrc / aspDst
		cent := w / 2
		pos[0] = ((pos[0]*w-cent)*div + cent) / w
	} else {
		div := aspDst / aspSrc
		cent := h / 2
		pos[1] = ((pos[1]*h-cent)*div + cent) / h
	}
	return pos
}

func (ft *followTrack) evaluate2D(cob *EvalContext) {
	aspect := 1.0
	if cob.Scene != nil {
		aspect = cob.Scene.Render.Aspect()
	}

	depth := ft.viewplaneDistance(cob)
	if depth < fltEpsilon {
		return
	}
	if ft.clip.Width == 0 || ft.clip.Height == 0 {
		return
	}
	w, h := float64(ft.clip.Width), float64(ft.clip.Height)

	pos, ok := ft.track.SubframePosition(ft.clipFrame)
	if !ok {
		return
	}
	pos = ft.undistort(w, h, pos)
	pos = ft.fitFrame(cob.Scene, w, h, pos)

	cam := ft.camera.Camera
	if cam == nil {
		cam = scene.DefaultCamera("")
	}

	var vec mathutil.Vec3
	if cam.Ortho {
		vec = mathutil.Vec3{
			cam.OrthoScale * (pos[0] - 0.5 + cam.ShiftX),
			cam.OrthoScale * (pos[1] - 0.5 + cam.ShiftY),
			-depth,
		}
	} else {
		d := depth * cam.SensorX / (2 * cam.Lens)
		vec = mathutil.Vec3{
			d * (2*(pos[0]+cam.ShiftX) - 1),
			d * (2*(pos[1]+cam.ShiftY) - 1),
			-depth,
		}
	}
	if aspect > 1 {
		vec[1] /= aspect
	} else {
		vec[0] *= aspect
	}

	disp := ft.camera.ObMat.MulPoint(vec)

	// take the camera rotation so Z lines up with the view
	rmat := ft.camera.ObMat
	rmat.SetTranslation(mathutil.Vec3{})
	cob.Matrix = mathutil.Mat4Mul(cob.Matrix, rmat)
	cob.Matrix.SetTranslation(disp)

	ft.projectToDepthObject(cob)
}

// projectToDepthObject moves the owner onto the depth object's surface
// along the ray from the camera.
func (ft *followTrack) projectToDepthObject(cob *EvalContext) {
	depthOb := ft.data.DepthOb
	if depthOb == nil || depthOb.Mesh == nil {
		return
	}
	imat := depthOb.ObMat.Inverse()
	start := imat.MulPoint(ft.camera.ObMat.Translation())
	end := imat.MulPoint(cob.Matrix.Translation())
	dir := end.Sub(start).Normalize()

	if hit, ok := depthOb.Mesh.BVH().RayCast(start, dir, math.MaxFloat32); ok {
		cob.Matrix.SetTranslation(depthOb.ObMat.MulPoint(hit.Co))
	}
}

// CameraSolverData moves the owner along the solved camera path.
type CameraSolverData struct {
	Clip *scene.MovieClip `yaml:"-"`
	Flag ClipFlag         `yaml:"flag"`
}

type cameraSolverType struct{ typeBase }

func (cameraSolverType) NewData() any { return &CameraSolverData{Flag: ClipActive} }

func (cameraSolverType) LoopIDs(c *Constraint, fn IDFunc) {
	d := c.Data.(*CameraSolverData)
	fn(c, clipRef("clip", &d.Clip), true)
}

func (cameraSolverType) Evaluate(c *Constraint, cob *EvalContext, _ []*Target) {
	d := c.Data.(*CameraSolverData)
	clip := activeClip(cob, d.Clip, d.Flag)
	if clip == nil {
		return
	}
	tracking := clip.CameraObject()
	if tracking == nil {
		return
	}
	mat := tracking.ReconstructedMatrix(clip.RemapSceneToClipFrame(cob.frame()))
	cob.Matrix = mathutil.Mat4Mul(cob.Matrix, mat)
}

// ObjectSolverData moves the owner along the solved path of a tracking
// object, relative to the camera.
type ObjectSolverData struct {
	Clip   *scene.MovieClip `yaml:"-"`
	Camera *scene.Object    `yaml:"-"`

	Object string        `yaml:"object"`
	Flag   ClipFlag      `yaml:"flag"`
	InvMat mathutil.Mat4 `yaml:"inverse,flow"`
}

// SetInverse asks the next solve to store the inverse of the current
// camera relation.
func (d *ObjectSolverData) SetInverse() { d.Flag |= ClipSetInverse }

// ClearInverse resets the stored inverse.
func (d *ObjectSolverData) ClearInverse() { d.InvMat = identity() }

type objectSolverType struct{ typeBase }

func (objectSolverType) NewData() any {
	return &ObjectSolverData{Flag: ClipActive, InvMat: identity()}
}

func (objectSolverType) LoopIDs(c *Constraint, fn IDFunc) {
	d := c.Data.(*ObjectSolverData)
	fn(c, clipRef("clip", &d.Clip), false)
	fn(c, objectRef("camera", &d.Camera), false)
}

func (objectSolverType) Evaluate(c *Constraint, cob *EvalContext, _ []*Target) {
	d := c.Data.(*ObjectSolverData)
	camob := sceneCamera(cob, d.Camera)
	clip := activeClip(cob, d.Clip, d.Flag)
	if camob == nil || clip == nil {
		return
	}
	tracking := clip.Object(d.Object)
	if tracking == nil {
		return
	}

	mat := tracking.ReconstructedMatrix(clip.RemapSceneToClipFrame(cob.frame()))
	parmat := mathutil.Mat4Mul(camob.ObMat, mat.Inverse())
	obmat := cob.Matrix

	if d.Flag&ClipSetInverse != 0 {
		d.InvMat = parmat.Inverse()
		d.Flag &^= ClipSetInverse

		inv := d.InvMat
		cob.writeback(c, func(orig *Constraint) {
			if od, ok := orig.Data.(*ObjectSolverData); ok {
				od.InvMat = inv
				od.Flag &^= ClipSetInverse
			}
		})
	}

	cob.Matrix = mathutil.Mat4MulSeries(parmat, d.InvMat, obmat)
}
