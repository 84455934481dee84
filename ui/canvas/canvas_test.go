package canvas

import (
	"image"
	"image/color"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundus-viewer/internal/fundus"
	"fundus-viewer/internal/viewer"
	"fundus-viewer/pkg/geometry"
)

func newCanvas(t *testing.T, w, h float32) (*FundusCanvas, *viewer.Viewer) {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)

	v := viewer.New(nil, zerolog.Nop())
	c := New(v)
	win := test.NewWindow(c)
	t.Cleanup(win.Close)
	c.Resize(fyne.NewSize(w, h))
	return c, v
}

func base(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func loadedImage(name string, w, h int) *fundus.Image {
	img := fundus.New(name)
	img.SetBase(base(w, h))
	return img
}

func mouse(x, y float32, b desktop.MouseButton) *desktop.MouseEvent {
	return &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Button: b}
}

func drag(x, y float32) *fyne.DragEvent {
	return &fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}}
}

func touch(x, y float32) *mobile.TouchEvent {
	return &mobile.TouchEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}}
}

func TestResizeSizesViewport(t *testing.T) {
	_, v := newCanvas(t, 200, 100)

	w, h := v.ViewportSize()
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
	require.NotNil(t, v.Screen())
	assert.Equal(t, image.Rect(0, 0, 200, 100), v.Screen().Bounds())
}

func TestDrawBeforeFirstComposite(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()
	c := New(viewer.New(nil, zerolog.Nop()))

	out := c.draw(8, 6)
	assert.Equal(t, image.Rect(0, 0, 8, 6), out.Bounds())
	r, g, b, alpha := out.At(3, 3).RGBA()
	assert.Equal(t, [4]uint32{0, 0, 0, 0xffff}, [4]uint32{r, g, b, alpha})
}

func TestLoadingPlaceholder(t *testing.T) {
	c, v := newCanvas(t, 100, 100)
	var seen []*fundus.Image
	c.OnImageSet(func(img *fundus.Image) { seen = append(seen, img) })

	img := fundus.New("slow.png")
	v.SetImage(img)
	assert.True(t, c.Loading())

	img.SetBase(base(50, 50))
	assert.False(t, c.Loading())
	assert.Equal(t, []*fundus.Image{img}, seen)

	v.SetImage(nil)
	assert.False(t, c.Loading())
}

func TestMouseDragPans(t *testing.T) {
	c, v := newCanvas(t, 100, 100)
	img := loadedImage("pan", 100, 100)
	v.SetImage(img)

	c.MouseDown(mouse(10, 10, desktop.MouseButtonPrimary))
	c.Dragged(drag(30, 15))
	assert.Equal(t, geometry.NewPoint2D(20, 5), img.Offset())

	c.DragEnd()
	c.MouseMoved(mouse(0, 0, 0))
	assert.Equal(t, geometry.NewPoint2D(20, 5), img.Offset(), "released after drag")
}

func TestSecondaryButtonMovePans(t *testing.T) {
	c, v := newCanvas(t, 100, 100)
	img := loadedImage("pan", 100, 100)
	v.SetImage(img)
	v.SetTool(viewer.ToolBrush)

	c.MouseDown(mouse(50, 50, desktop.MouseButtonSecondary))
	c.MouseMoved(mouse(40, 50, desktop.MouseButtonSecondary))
	c.MouseUp(mouse(40, 50, desktop.MouseButtonSecondary))

	assert.Equal(t, geometry.NewPoint2D(-10, 0), img.Offset())
	assert.Equal(t, [3]bool{}, v.Pointer().Buttons)
}

func TestScrollZooms(t *testing.T) {
	c, v := newCanvas(t, 100, 100)
	img := loadedImage("zoom", 100, 100)
	v.SetImage(img)

	c.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, 1)})
	assert.InDelta(t, 1.1, img.ZoomLevel(), 1e-9)

	c.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, -1)})
	assert.InDelta(t, 1.0, img.ZoomLevel(), 1e-9)

	c.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(1, 0)})
	assert.InDelta(t, 1.0, img.ZoomLevel(), 1e-9)
}

func TestTypedRuneRunsBinding(t *testing.T) {
	c, v := newCanvas(t, 100, 100)
	img := loadedImage("gray", 10, 10)
	v.SetImage(img)

	c.TypedRune('g')
	assert.True(t, img.Grayscale())
	c.TypedRune('2')
	assert.Equal(t, viewer.ToolBrush, v.Tool())
	c.TypedRune('#')
	assert.True(t, img.Grayscale())
}

func TestTouchDragPans(t *testing.T) {
	c, v := newCanvas(t, 100, 100)
	t0 := time.Unix(1000, 0)
	c.now = func() time.Time { return t0 }
	v.SetTouchEnabled(true)
	img := loadedImage("touch", 100, 100)
	img.SetZoom(2)
	v.SetImage(img)

	c.TouchDown(touch(10, 10))
	c.Dragged(drag(30, 10))
	c.Dragged(drag(50, 30))
	c.TouchUp(touch(50, 30))

	assert.Equal(t, geometry.NewPoint2D(20, 10), img.Offset())
	assert.False(t, c.touching)
}

func TestTouchIgnoredWithoutCapability(t *testing.T) {
	c, v := newCanvas(t, 100, 100)
	img := loadedImage("touch", 100, 100)
	v.SetImage(img)

	c.TouchDown(touch(10, 10))
	c.Dragged(drag(30, 10))
	c.TouchUp(touch(30, 10))

	assert.Equal(t, geometry.Point2D{}, img.Offset())
}

func TestLongPressRequestsContextMenu(t *testing.T) {
	c, v := newCanvas(t, 100, 100)
	v.SetTouchEnabled(true)
	v.SetImage(loadedImage("menu", 10, 10))

	var at []geometry.Point2D
	v.OnContextMenu(func(pos geometry.Point2D) { at = append(at, pos) })

	c.TappedSecondary(&fyne.PointEvent{Position: fyne.NewPos(12, 34)})
	assert.Equal(t, []geometry.Point2D{geometry.NewPoint2D(12, 34)}, at)
}

func TestRendererObjects(t *testing.T) {
	c, _ := newCanvas(t, 100, 100)
	r := test.WidgetRenderer(c)
	assert.Len(t, r.Objects(), 2)
	assert.Equal(t, fyne.NewSize(320, 240), r.MinSize())
}

func TestRedrawPublishesScreen(t *testing.T) {
	c, v := newCanvas(t, 40, 30)
	v.SetImage(loadedImage("draw", 40, 30))

	out := c.draw(40, 30)
	assert.Same(t, v.Screen(), out)
	assert.Equal(t, color.RGBA{A: 0xff}, v.Screen().RGBAAt(20, 15))
}
