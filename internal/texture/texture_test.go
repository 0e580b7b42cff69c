package texture

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadPlate_PNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.png")
	writePNG(t, path, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	img, err := LoadPlate(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, img.NRGBAAt(1, 1))
}

func TestLoadPlate_JPEGIsOpaque(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.JPG")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	require.NoError(t, f.Close())

	img, err := LoadPlate(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), img.NRGBAAt(3, 3).A)
}

func TestLoadPlate_TGA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 200, 40, 10, 255
	}
	src.SetNRGBA(2, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	path := filepath.Join(t.TempDir(), "bg.tga")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tga.Encode(f, src))
	require.NoError(t, f.Close())

	img, err := LoadPlate(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, color.NRGBA{R: 200, G: 40, B: 10, A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, img.NRGBAAt(2, 1))
}

// PNG data behind a .tga name goes to the TGA decoder and fails there.
func TestLoadPlate_DecoderFollowsExtension(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "bg.png"), color.NRGBA{R: 5, A: 255})
	raw, err := os.ReadFile(filepath.Join(dir, "bg.png"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bg.tga"), raw, 0o644))

	_, err = LoadPlate(filepath.Join(dir, "bg.tga"))
	assert.ErrorContains(t, err, "decode")

	img, err := LoadPlate(filepath.Join(dir, "bg.png"))
	require.NoError(t, err)
	assert.Equal(t, uint8(5), img.NRGBAAt(0, 0).R)
}

func TestLoadPlate_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadPlate(filepath.Join(dir, "bg.bmp"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = LoadPlate(filepath.Join(dir, "missing.png"))
	assert.ErrorContains(t, err, "read")

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o644))
	_, err = LoadPlate(bad)
	assert.ErrorContains(t, err, "decode")
}

func TestIsPlate(t *testing.T) {
	assert.True(t, IsPlate("a/b/plate.TGA"))
	assert.True(t, IsPlate("plate.jpeg"))
	assert.False(t, IsPlate("plate.webp"))
}

func TestIndex_Sequence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writePNG(t, filepath.Join(dir, "plate_0001.png"), color.NRGBA{A: 255})
	writePNG(t, filepath.Join(dir, "sub", "plate_0005.png"), color.NRGBA{A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	idx, err := BuildIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []int{1, 5}, idx.Frames())

	p, ok := idx.ResolveFrame(3)
	require.True(t, ok)
	assert.Equal(t, "plate_0001.png", filepath.Base(p))

	p, ok = idx.ResolveFrame(9)
	require.True(t, ok)
	assert.Equal(t, "plate_0005.png", filepath.Base(p))

	_, ok = idx.ResolveFrame(0)
	assert.False(t, ok)

	p, ok = idx.ResolvePath(`renders\PLATE_0005.jpg`)
	require.True(t, ok)
	assert.Equal(t, "plate_0005.png", filepath.Base(p))
}

func TestIndex_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	writePNG(t, path, color.NRGBA{A: 255})

	idx, err := BuildIndex(path)
	require.NoError(t, err)
	for _, frame := range []int{-4, 1, 250} {
		p, ok := idx.ResolveFrame(frame)
		require.True(t, ok)
		assert.Equal(t, path, p)
	}

	_, err = BuildIndex(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCache_LoadsOnce(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "plate_1.png"), color.NRGBA{R: 1, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plate_2.png"), []byte("junk"), 0o644))

	idx, err := BuildIndex(dir)
	require.NoError(t, err)
	c := NewCache(idx)

	a := c.ResolveFrame(1)
	require.NotNil(t, a)
	assert.Same(t, a, c.Resolve("plate_1"))
	assert.Nil(t, c.ResolveFrame(2), "undecodable plates resolve to nil")
	assert.Nil(t, c.Resolve("other"))
	assert.Equal(t, 2, c.Len())
}
