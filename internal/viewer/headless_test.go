package viewer

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundus-viewer/internal/fundus"
	"fundus-viewer/pkg/colorutil"
)

func decodePNG(t *testing.T, data []byte) *image.RGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
			for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
				rgba.Set(x, y, img.At(x, y))
			}
		}
	}
	return rgba
}

func TestRenderFitsToViewport(t *testing.T) {
	img := loaded("wide", 200, 100, colorutil.Red)
	img.SetZoom(4)

	data, err := Render(img, RenderOptions{Width: 100, Height: 100}, nil, zerolog.Nop())
	require.NoError(t, err)

	out := decodePNG(t, data)
	assert.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())
	assert.Equal(t, colorutil.Red, out.RGBAAt(50, 50))
	assert.Equal(t, colorutil.Black, out.RGBAAt(50, 5), "letterbox")
	assert.InDelta(t, 0.5, img.ZoomLevel(), 1e-12)
}

func TestRenderFlattenKeepsBaseResolution(t *testing.T) {
	img := loaded("flat", 30, 20, colorutil.Red)
	img.SetSegmentation(solid(15, 10, colorutil.White))

	data, err := Render(img, RenderOptions{Flatten: true, Grayscale: true}, nil, zerolog.Nop())
	require.NoError(t, err)

	out := decodePNG(t, data)
	assert.Equal(t, image.Rect(0, 0, 30, 20), out.Bounds())
	px := out.RGBAAt(29, 19)
	assert.Greater(t, px.G, uint8(250), "segmentation drawn over the grayscale base")
	assert.Greater(t, px.B, uint8(250))
	assert.True(t, img.Grayscale())
}

func TestRenderAppliesWindowLevel(t *testing.T) {
	img := loaded("wl", 10, 10, colorutil.White)

	_, err := Render(img, RenderOptions{Width: 10, Height: 10, Window: 0.5, Level: 0.25}, nil, zerolog.Nop())
	require.NoError(t, err)

	w, l := img.WindowLevel()
	assert.Equal(t, 0.5, w)
	assert.Equal(t, 0.25, l)
}

func TestRenderErrors(t *testing.T) {
	_, err := Render(nil, RenderOptions{Width: 1, Height: 1}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = Render(fundus.New("pending"), RenderOptions{Width: 1, Height: 1}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = Render(loaded("x", 4, 4, colorutil.Red), RenderOptions{}, nil, zerolog.Nop())
	assert.Error(t, err)
}
