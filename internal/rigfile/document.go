// Package rigfile reads and writes rig documents: a scene, its datablocks and
// the constraint stacks of its objects and bones. YAML is the canonical form;
// JSON and TOML documents carry the same fields.
package rigfile

import (
	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
)

// Document is the top level of a rig file.
type Document struct {
	Scene      SceneDoc       `yaml:"scene"`
	Objects    []ObjectDoc    `yaml:"objects" validate:"dive"`
	Actions    []ActionDoc    `yaml:"actions,omitempty" validate:"dive"`
	Clips      []ClipDoc      `yaml:"clips,omitempty" validate:"dive"`
	CacheFiles []CacheFileDoc `yaml:"cache_files,omitempty" validate:"dive"`
	Texts      []TextDoc      `yaml:"texts,omitempty" validate:"dive"`
}

// SceneDoc holds the scene settings.
type SceneDoc struct {
	Name   string  `yaml:"name"`
	Frame  float64 `yaml:"frame,omitempty"`
	FPS    float64 `yaml:"fps,omitempty" validate:"gte=0"`
	Camera string  `yaml:"camera,omitempty"`
	Clip   string  `yaml:"clip,omitempty"`
	SizeX  int     `yaml:"resolution_x,omitempty" validate:"gte=0"`
	SizeY  int     `yaml:"resolution_y,omitempty" validate:"gte=0"`
}

// TransformDoc is a loc/rot/scale property set.
type TransformDoc struct {
	Location     *mathutil.Vec3 `yaml:"location,omitempty,flow"`
	Rotation     *mathutil.Vec3 `yaml:"rotation_euler,omitempty,flow"`
	Quaternion   *[4]float64    `yaml:"rotation_quaternion,omitempty,flow"` // w, x, y, z
	AxisAngle    *[4]float64    `yaml:"rotation_axis_angle,omitempty,flow"` // angle, x, y, z
	RotationMode string         `yaml:"rotation_mode,omitempty" validate:"omitempty,oneof=xyz xzy yxz yzx zxy zyx quaternion axis_angle"`
	Scale        *mathutil.Vec3 `yaml:"scale,omitempty,flow"`
}

// ObjectDoc is one object with its type data and stacks.
type ObjectDoc struct {
	Name       string `yaml:"name" validate:"required"`
	Type       string `yaml:"type,omitempty" validate:"omitempty,oneof=empty mesh curve lattice armature camera"`
	Parent     string `yaml:"parent,omitempty"`
	ParentBone string `yaml:"parent_bone,omitempty"`
	// ParentInverse is row-major.
	ParentInverse *mathutil.Mat4 `yaml:"parent_inverse,omitempty,flow"`

	TransformDoc `yaml:",inline"`

	Action string `yaml:"action,omitempty"`

	Mesh    *MeshDoc    `yaml:"mesh,omitempty"`
	Curve   *CurveDoc   `yaml:"curve,omitempty"`
	Lattice *LatticeDoc `yaml:"lattice,omitempty"`
	Camera  *CameraDoc  `yaml:"camera,omitempty"`
	Bones   []BoneDoc   `yaml:"bones,omitempty" validate:"dive"`

	Constraints []ConstraintDoc `yaml:"constraints,omitempty" validate:"dive"`
	// Pose maps bone names to their pose transform and stack.
	Pose map[string]PoseDoc `yaml:"pose,omitempty" validate:"dive"`
}

// PoseDoc is the pose of one bone.
type PoseDoc struct {
	TransformDoc `yaml:",inline"`
	Constraints  []ConstraintDoc `yaml:"constraints,omitempty" validate:"dive"`
}

// BoneDoc is one rest bone in armature space.
type BoneDoc struct {
	Name           string        `yaml:"name" validate:"required"`
	Parent         string        `yaml:"parent,omitempty"`
	Head           mathutil.Vec3 `yaml:"head,flow"`
	Tail           mathutil.Vec3 `yaml:"tail,flow"`
	Roll           float64       `yaml:"roll,omitempty"`
	Connected      bool          `yaml:"use_connect,omitempty"`
	Hinge          bool          `yaml:"use_hinge,omitempty"`
	NoLocalLoc     bool          `yaml:"no_local_location,omitempty"`
	MultEnvelope   bool          `yaml:"use_envelope_multiply,omitempty"`
	InheritScale   string        `yaml:"inherit_scale,omitempty"`
	Segments       int           `yaml:"bbone_segments,omitempty" validate:"gte=0,lte=32"`
	HeadRadius     float64       `yaml:"head_radius,omitempty"`
	TailRadius     float64       `yaml:"tail_radius,omitempty"`
	EnvelopeRadius float64       `yaml:"envelope_distance,omitempty"`
}

// MeshDoc is either inline geometry or a primitive.
type MeshDoc struct {
	Primitive string  `yaml:"primitive,omitempty" validate:"omitempty,oneof=cube plane grid"`
	Size      float64 `yaml:"size,omitempty" validate:"gte=0"`
	// Subdivisions is the grid resolution per side.
	Subdivisions int `yaml:"subdivisions,omitempty" validate:"gte=0"`

	Verts  []mathutil.Vec3      `yaml:"vertices,omitempty,flow"`
	Faces  [][3]int             `yaml:"faces,omitempty,flow"`
	Smooth bool                 `yaml:"smooth,omitempty"`
	Groups map[string][]float64 `yaml:"vertex_groups,omitempty"`
}

// CurveDoc is a poly path.
type CurveDoc struct {
	Points    []CurvePointDoc `yaml:"points" validate:"min=1"`
	Cyclic    bool            `yaml:"cyclic,omitempty"`
	PathClamp bool            `yaml:"use_path_clamp,omitempty"`
	EvalTime  float64         `yaml:"eval_time,omitempty"`
	PathLen   float64         `yaml:"path_duration,omitempty"`
}

// CurvePointDoc is one curve vertex.
type CurvePointDoc struct {
	Co     mathutil.Vec3 `yaml:"co,flow"`
	Tilt   float64       `yaml:"tilt,omitempty"`
	Radius float64       `yaml:"radius,omitempty"`
}

// LatticeDoc holds evaluated lattice points.
type LatticeDoc struct {
	Points []mathutil.Vec3      `yaml:"points,flow"`
	Groups map[string][]float64 `yaml:"vertex_groups,omitempty"`
}

// CameraDoc holds projection settings; zero values take the stock camera.
type CameraDoc struct {
	Lens       float64 `yaml:"lens,omitempty" validate:"gte=0"`
	SensorX    float64 `yaml:"sensor_width,omitempty" validate:"gte=0"`
	Ortho      bool    `yaml:"ortho,omitempty"`
	OrthoScale float64 `yaml:"ortho_scale,omitempty" validate:"gte=0"`
	ShiftX     float64 `yaml:"shift_x,omitempty"`
	ShiftY     float64 `yaml:"shift_y,omitempty"`
	ClipStart  float64 `yaml:"clip_start,omitempty" validate:"gte=0"`
	ClipEnd    float64 `yaml:"clip_end,omitempty" validate:"gte=0"`
}

// ActionDoc is a named set of channels.
type ActionDoc struct {
	Name     string       `yaml:"name" validate:"required"`
	Channels []ChannelDoc `yaml:"channels" validate:"dive"`
}

// ChannelDoc animates one component; keys are [frame, value] pairs.
type ChannelDoc struct {
	Bone          string       `yaml:"bone,omitempty"`
	Property      string       `yaml:"property" validate:"required"`
	Index         int          `yaml:"index" validate:"gte=0"`
	Interpolation string       `yaml:"interpolation,omitempty" validate:"omitempty,oneof=linear constant"`
	Keys          [][2]float64 `yaml:"keys,flow" validate:"min=1"`
}

// ClipDoc is a movie clip with its tracking data.
type ClipDoc struct {
	Name       string              `yaml:"name" validate:"required"`
	Width      int                 `yaml:"width" validate:"gt=0"`
	Height     int                 `yaml:"height" validate:"gt=0"`
	AspectX    float64             `yaml:"aspect_x,omitempty"`
	AspectY    float64             `yaml:"aspect_y,omitempty"`
	StartFrame int                 `yaml:"frame_start,omitempty"`
	Focal      float64             `yaml:"focal_length,omitempty"`
	Principal  [2]float64          `yaml:"principal_point,omitempty,flow"`
	K          [3]float64          `yaml:"distortion,omitempty,flow"`
	Objects    []TrackingObjectDoc `yaml:"objects" validate:"dive"`
}

// TrackingObjectDoc is the camera or one tracked object of a clip.
type TrackingObjectDoc struct {
	Name     string                `yaml:"name" validate:"required"`
	IsCamera bool                  `yaml:"is_camera,omitempty"`
	Scale    float64               `yaml:"scale,omitempty"`
	Tracks   []TrackDoc            `yaml:"tracks,omitempty" validate:"dive"`
	Cameras  []ReconstructedCamDoc `yaml:"reconstruction,omitempty"`
}

// TrackDoc is a 2D track.
type TrackDoc struct {
	Name    string         `yaml:"name" validate:"required"`
	Markers []MarkerDoc    `yaml:"markers"`
	Offset  [2]float64     `yaml:"offset,omitempty,flow"`
	Bundle  *mathutil.Vec3 `yaml:"bundle,omitempty,flow"`
}

// MarkerDoc is one marker in normalized clip coordinates.
type MarkerDoc struct {
	Frame    int        `yaml:"frame"`
	Pos      [2]float64 `yaml:"co,flow"`
	Disabled bool       `yaml:"mute,omitempty"`
}

// ReconstructedCamDoc is a solved camera pose.
type ReconstructedCamDoc struct {
	Frame  int           `yaml:"frame"`
	Matrix mathutil.Mat4 `yaml:"matrix,flow"`
}

// CacheFileDoc is a transform archive. Samples are inline or, when Paths is
// empty, read from Filepath.
type CacheFileDoc struct {
	Name          string                      `yaml:"name" validate:"required"`
	Filepath      string                      `yaml:"filepath,omitempty"`
	Scale         float64                     `yaml:"scale,omitempty"`
	FrameOffset   float64                     `yaml:"frame_offset,omitempty"`
	OverrideFrame bool                        `yaml:"override_frame,omitempty"`
	Frame         float64                     `yaml:"frame,omitempty"`
	IsSequence    bool                        `yaml:"is_sequence,omitempty"`
	Paths         map[string][]CacheSampleDoc `yaml:"paths,omitempty"`
}

// CacheSampleDoc is one baked transform.
type CacheSampleDoc struct {
	Time   float64       `yaml:"time"`
	Matrix mathutil.Mat4 `yaml:"matrix,flow"`
}

// TextDoc is a script text block.
type TextDoc struct {
	Name string `yaml:"name" validate:"required"`
	Body string `yaml:"body"`
}

// ConstraintDoc is one constraint. Refs maps ID reference fields (target,
// pole_target, action, clip, targets[0] ...) to datablock names; Settings
// holds the type payload.
type ConstraintDoc struct {
	Type      string   `yaml:"type" validate:"required"`
	Name      string   `yaml:"name,omitempty"`
	Influence *float64 `yaml:"influence,omitempty"`
	Mute      bool     `yaml:"mute,omitempty"`
	Active    bool     `yaml:"active,omitempty"`

	OwnerSpace     string  `yaml:"owner_space,omitempty"`
	TargetSpace    string  `yaml:"target_space,omitempty"`
	SpaceObject    string  `yaml:"space_object,omitempty"`
	SpaceSubtarget string  `yaml:"space_subtarget,omitempty"`
	HeadTail       float64 `yaml:"head_tail,omitempty" validate:"gte=0,lte=1"`
	BBoneShape     bool    `yaml:"use_bbone_shape,omitempty"`

	Refs     map[string]string `yaml:"refs,omitempty"`
	Settings yaml.Node         `yaml:"settings,omitempty"`
}
