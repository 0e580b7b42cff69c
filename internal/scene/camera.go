package scene

// Camera holds the projection settings of a camera object.
type Camera struct {
	Name       string
	Lens       float64 // focal length, mm
	SensorX    float64 // sensor width, mm
	Ortho      bool
	OrthoScale float64
	ShiftX     float64
	ShiftY     float64
	ClipStart  float64
	ClipEnd    float64
}

// DefaultCamera matches a stock 50mm camera.
func DefaultCamera(name string) *Camera {
	return &Camera{
		Name:       name,
		Lens:       50,
		SensorX:    36,
		OrthoScale: 6,
		ClipStart:  0.1,
		ClipEnd:    100,
	}
}
