package batch

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"

	"rig-solver/internal/postprocess"
	"rig-solver/internal/raster"
	"rig-solver/internal/rig"
	"rig-solver/internal/texture"
)

// Preview renders solved frames to WebP files. It is safe for concurrent
// use once configured.
type Preview struct {
	OutputDir   string
	Size        int
	Supersample int
	Yaw, Pitch  float64
	Perspective bool
	Labels      bool

	// Plates supplies background plates; nil leaves the background
	// transparent.
	Plates texture.Resolver
}

// FrameName returns the file name of a frame's preview.
func FrameName(frame float64) string {
	if frame == math.Trunc(frame) {
		return fmt.Sprintf("frame_%04d.webp", int(frame))
	}
	return fmt.Sprintf("frame_%07.2f.webp", frame)
}

// Image renders f at the output size.
func (p *Preview) Image(f *rig.Frame) *image.NRGBA {
	ss := max(p.Supersample, 1)
	opts := raster.Options{
		Size:        p.Size,
		Supersample: ss,
		Yaw:         p.Yaw,
		Pitch:       p.Pitch,
		Perspective: p.Perspective,
	}
	if p.Plates != nil && f != nil {
		opts.Plate = p.Plates.ResolveFrame(int(math.Round(f.Number)))
	}

	img, markers := raster.RenderFrame(f, opts)
	img = postprocess.Downsample(img, ss)

	if p.Labels && f != nil {
		for _, m := range markers {
			postprocess.Label(img, int(m.X)/ss+4, int(m.Y)/ss-4, m.Name)
		}
		caption := fmt.Sprintf("frame %g", f.Number)
		if f.Scene != nil && f.Scene.Name != "" {
			caption = f.Scene.Name + "  " + caption
		}
		postprocess.Caption(img, caption)
	}
	return img
}

// Render draws f into OutputDir and returns the file name.
func (p *Preview) Render(f *rig.Frame) (string, error) {
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	name := FrameName(f.Number)
	out, err := os.Create(filepath.Join(p.OutputDir, name))
	if err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	defer out.Close()

	if err := nativewebp.Encode(out, p.Image(f), nil); err != nil {
		return "", fmt.Errorf("preview: webp encode: %w", err)
	}
	return name, out.Close()
}
