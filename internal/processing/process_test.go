package processing

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"fundus-viewer/internal/fundus"
)

func TestBuildLUTIdentityAtDefaults(t *testing.T) {
	lut := BuildLUT(fundus.DefaultWindow, fundus.DefaultLevel)
	for i := range lut {
		assert.Equal(t, uint8(i), lut[i], "entry %d", i)
	}
}

func TestBuildLUTNarrowWindow(t *testing.T) {
	lut := BuildLUT(0.5, 0.5)

	assert.Equal(t, uint8(0), lut[0])
	assert.Equal(t, uint8(0), lut[63])
	assert.Equal(t, uint8(255), lut[192])
	assert.Equal(t, uint8(255), lut[255])
	assert.InDelta(t, 128, int(lut[128]), 2)
}

func TestBuildLUTCollapsedWindowIsStep(t *testing.T) {
	lut := BuildLUT(0, 0.5)
	assert.Equal(t, uint8(0), lut[100])
	assert.Equal(t, uint8(255), lut[200])
}

func TestWindowLevelProcess(t *testing.T) {
	img := fundus.New("x")
	pix := image.NewRGBA(image.Rect(0, 0, 2, 1))
	pix.SetRGBA(0, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	pix.SetRGBA(1, 0, color.RGBA{R: 10, G: 20, B: 30, A: 128})

	WindowLevel{}.Process(img, pix)
	assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, pix.RGBAAt(0, 0))
	assert.Equal(t, uint8(128), pix.RGBAAt(1, 0).A, "alpha untouched")

	img.SetGrayscale(true)
	WindowLevel{}.Process(img, pix)
	got := pix.RGBAAt(0, 0)
	assert.Equal(t, got.R, got.G)
	assert.Equal(t, got.G, got.B)
}

func TestWindowLevelKeepsPremultipliedInvariant(t *testing.T) {
	img := fundus.New("x")
	img.SetWindowLevel(0.5, 0.5)
	pix := image.NewRGBA(image.Rect(0, 0, 2, 1))
	// Straight color about (199, 40, 120) at half alpha.
	pix.SetRGBA(0, 0, color.RGBA{R: 100, G: 20, B: 60, A: 128})

	WindowLevel{}.Process(img, pix)

	got := pix.RGBAAt(0, 0)
	assert.Equal(t, uint8(128), got.R, "bright channel saturates at alpha")
	assert.Equal(t, uint8(0), got.G)
	assert.LessOrEqual(t, got.B, got.A)
	assert.Equal(t, uint8(128), got.A)
	assert.Equal(t, color.RGBA{}, pix.RGBAAt(1, 0), "transparent pixels stay empty")
}

func TestWindowLevelNilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		WindowLevel{}.Process(nil, image.NewRGBA(image.Rect(0, 0, 1, 1)))
		WindowLevel{}.Process(fundus.New("x"), nil)
	})
}

func TestChainRunsInOrder(t *testing.T) {
	var order []int
	c := Chain{
		ProcessorFunc(func(*fundus.Image, *image.RGBA) { order = append(order, 1) }),
		ProcessorFunc(func(*fundus.Image, *image.RGBA) { order = append(order, 2) }),
	}
	c.Process(fundus.New("x"), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	assert.Equal(t, []int{1, 2}, order)
}

func TestAutoWindowLevel(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 100, 1))
	for x := 0; x < 100; x++ {
		// black border pixels are ignored
		if x < 20 {
			continue
		}
		m.SetGray(x, 0, color.Gray{Y: uint8(51 + (x-20)*2)})
	}

	window, level, ok := AutoWindowLevel(m, 0, 1)
	assert.True(t, ok)
	assert.InDelta(t, (51.0+209.0)/2/255, level, 0.01)
	assert.InDelta(t, (209.0-51.0)/255, window, 0.01)
}

func TestAutoWindowLevelRejectsFlatImages(t *testing.T) {
	_, _, ok := AutoWindowLevel(image.NewGray(image.Rect(0, 0, 10, 10)), 0.01, 0.99)
	assert.False(t, ok)

	_, _, ok = AutoWindowLevel(nil, 0.01, 0.99)
	assert.False(t, ok)

	_, _, ok = AutoWindowLevel(image.NewGray(image.Rect(0, 0, 2, 2)), 0.5, 0.5)
	assert.False(t, ok)
}
