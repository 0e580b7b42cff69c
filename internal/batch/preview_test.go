package batch

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig-solver/internal/texture"
)

func TestFrameName(t *testing.T) {
	assert.Equal(t, "frame_0012.webp", FrameName(12))
	assert.Equal(t, "frame_0012.50.webp", FrameName(12.5))
}

func TestPreview_RendersWebP(t *testing.T) {
	dir := t.TempDir()
	p := &Preview{OutputDir: filepath.Join(dir, "out"), Size: 32, Supersample: 2, Yaw: 45, Pitch: 30, Labels: true}

	res, err := Run(context.Background(), Config{
		Rig:     slideRig(t),
		Frames:  []float64{3},
		Workers: 1,
		Render:  p.Render,
	})
	require.NoError(t, err)
	require.True(t, res[0].Success, res[0].Error)
	assert.Equal(t, "frame_0003.webp", res[0].Image)

	raw, err := os.ReadFile(filepath.Join(p.OutputDir, res[0].Image))
	require.NoError(t, err)
	require.Greater(t, len(raw), 12)
	assert.Equal(t, "RIFF", string(raw[:4]))
	assert.Equal(t, "WEBP", string(raw[8:12]))
}

func TestPreview_ImageUsesPlate(t *testing.T) {
	plate := filepath.Join(t.TempDir(), "plate.png")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 30, 60, 90, 255
	}
	f, err := os.Create(plate)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	idx, err := texture.BuildIndex(plate)
	require.NoError(t, err)

	r := slideRig(t)
	frame, err := r.Evaluate(context.Background(), 1)
	require.NoError(t, err)

	p := &Preview{Size: 24, Supersample: 2, Plates: texture.NewCache(idx)}
	out := p.Image(frame)
	require.Equal(t, image.Rect(0, 0, 24, 24), out.Bounds())
	c := out.NRGBAAt(0, 23)
	assert.Equal(t, uint8(255), c.A)
	assert.InDelta(t, 30, int(c.R), 2)
	assert.InDelta(t, 90, int(c.B), 2)
}
