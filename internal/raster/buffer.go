package raster

import (
	"image"
	"math"
)

// FrameBuffer holds the render target as flat slices.
type FrameBuffer struct {
	Width  int
	Height int
	Color  []uint8   // RGBA interleaved, len = W*H*4
	ZBuf   []float64 // depth per pixel, -inf when empty
}

// NewFrameBuffer allocates a transparent color buffer and an empty z-buffer.
func NewFrameBuffer(w, h int) *FrameBuffer {
	n := w * h
	zbuf := make([]float64, n)
	for i := range zbuf {
		zbuf[i] = math.Inf(-1)
	}
	return &FrameBuffer{
		Width:  w,
		Height: h,
		Color:  make([]uint8, n*4),
		ZBuf:   zbuf,
	}
}

// FillPlate stretches plate over the whole buffer with bilinear sampling.
// Depth is left empty so geometry always draws over the plate.
func (fb *FrameBuffer) FillPlate(plate *image.NRGBA) {
	if plate == nil || plate.Rect.Dx() == 0 || plate.Rect.Dy() == 0 {
		return
	}
	invW := 1 / float64(fb.Width)
	invH := 1 / float64(fb.Height)
	for y := 0; y < fb.Height; y++ {
		v := (float64(y) + 0.5) * invH
		row := y * fb.Width * 4
		for x := 0; x < fb.Width; x++ {
			u := (float64(x) + 0.5) * invW
			r, g, b, _ := SampleTexture(plate, u, v)
			i := row + x*4
			fb.Color[i], fb.Color[i+1], fb.Color[i+2], fb.Color[i+3] = r, g, b, 255
		}
	}
}

// Image copies the color buffer into a new NRGBA image.
func (fb *FrameBuffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	copy(img.Pix, fb.Color)
	return img
}
