package postprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDownsample_Solid(t *testing.T) {
	red := color.NRGBA{R: 220, A: 255}
	out := Downsample(filled(8, 6, red), 2)
	require.Equal(t, image.Rect(0, 0, 4, 3), out.Bounds())
	c := out.NRGBAAt(1, 1)
	assert.InDelta(t, 220, int(c.R), 1)
	assert.Equal(t, uint8(255), c.A)
}

func TestDownsample_NoDarkFringe(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	out := Downsample(img, 2)
	for x := 0; x < out.Bounds().Dx(); x++ {
		c := out.NRGBAAt(x, 1)
		if c.A > 32 {
			assert.GreaterOrEqual(t, c.R, uint8(240), "column %d", x)
		}
	}
	assert.Zero(t, out.NRGBAAt(7, 1).A)
}

func TestDownsample_FactorOne(t *testing.T) {
	img := filled(3, 3, color.NRGBA{A: 255})
	assert.Same(t, img, Downsample(img, 1))
}

func TestLabel_DrawsInk(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	Caption(img, "ob")

	var ink, shadow int
	for i := 0; i < len(img.Pix); i += 4 {
		switch {
		case img.Pix[i] == 240 && img.Pix[i+3] == 255:
			ink++
		case img.Pix[i] == 16 && img.Pix[i+3] == 255:
			shadow++
		}
	}
	assert.Greater(t, ink, 5)
	assert.Greater(t, shadow, 0)
}

func TestLabel_ClipsAtEdge(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	assert.NotPanics(t, func() { Label(img, 6, 9, "clipped text") })
}

func TestLabelWidth(t *testing.T) {
	assert.Equal(t, 21, LabelWidth("abc"))
}
