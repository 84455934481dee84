// Package canvas binds the viewer core to a fyne widget: it paints the
// composited screen surface and forwards mouse, touch, wheel and keyboard
// input.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"time"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/widget"

	"fundus-viewer/internal/fundus"
	"fundus-viewer/internal/gesture"
	"fundus-viewer/internal/viewer"
	"fundus-viewer/pkg/geometry"
)

// Fyne has no multi-touch ids, so every touch is the same finger.
const touchID = 0

// FundusCanvas displays the viewer's screen surface and routes input to it.
type FundusCanvas struct {
	widget.BaseWidget

	viewer     *viewer.Viewer
	raster     *fynecanvas.Raster
	loading    *widget.Label
	recognizer *gesture.Recognizer
	touching   bool
	now        func() time.Time

	onImageSet func(img *fundus.Image)
}

var (
	_ fyne.Widget            = (*FundusCanvas)(nil)
	_ desktop.Mouseable      = (*FundusCanvas)(nil)
	_ desktop.Hoverable      = (*FundusCanvas)(nil)
	_ fyne.Draggable         = (*FundusCanvas)(nil)
	_ fyne.Scrollable        = (*FundusCanvas)(nil)
	_ fyne.Focusable         = (*FundusCanvas)(nil)
	_ fyne.Tappable          = (*FundusCanvas)(nil)
	_ fyne.SecondaryTappable = (*FundusCanvas)(nil)
	_ mobile.Touchable       = (*FundusCanvas)(nil)
)

// New creates a canvas for v. It installs v's redraw and image-set hooks;
// use OnImageSet on the canvas instead of on v.
func New(v *viewer.Viewer) *FundusCanvas {
	c := &FundusCanvas{
		viewer:     v,
		loading:    widget.NewLabel("Loading..."),
		recognizer: gesture.NewRecognizer(),
		now:        time.Now,
	}
	c.loading.Alignment = fyne.TextAlignCenter
	c.loading.Hide()

	c.raster = fynecanvas.NewRaster(c.draw)
	c.raster.ScaleMode = fynecanvas.ImageScalePixels

	v.OnRedraw(c.Refresh)
	v.OnImageSet(c.imageSet)

	c.ExtendBaseWidget(c)
	return c
}

// Viewer returns the viewer core driven by this canvas.
func (c *FundusCanvas) Viewer() *viewer.Viewer {
	return c.viewer
}

// OnImageSet sets a callback run whenever the viewer's active image changes.
func (c *FundusCanvas) OnImageSet(callback func(img *fundus.Image)) {
	c.onImageSet = callback
}

// Loading reports whether the placeholder for an undecoded image is shown.
func (c *FundusCanvas) Loading() bool {
	return c.loading.Visible()
}

func (c *FundusCanvas) imageSet(img *fundus.Image) {
	c.syncLoading(img)
	if c.onImageSet != nil {
		c.onImageSet(img)
	}
}

func (c *FundusCanvas) syncLoading(img *fundus.Image) {
	if img != nil && !img.Loaded() {
		c.loading.Show()
	} else {
		c.loading.Hide()
	}
}

// draw returns the latest composite, or a blank surface before the first
// one exists.
func (c *FundusCanvas) draw(w, h int) image.Image {
	if screen := c.viewer.Screen(); screen != nil {
		return screen
	}
	blank := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(blank, blank.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return blank
}

// scale returns the device pixels per fyne unit for this widget.
func (c *FundusCanvas) scale() float32 {
	if app := fyne.CurrentApp(); app != nil {
		if cv := app.Driver().CanvasForObject(c); cv != nil {
			return cv.Scale()
		}
	}
	return 1
}

// toPixels converts a widget-relative position into screen pixels.
func (c *FundusCanvas) toPixels(pos fyne.Position) geometry.Point2D {
	s := c.scale()
	return geometry.NewPoint2D(float64(pos.X*s), float64(pos.Y*s))
}

func (c *FundusCanvas) layout(size fyne.Size) {
	s := c.scale()
	c.viewer.Resize(int(size.Width*s+0.5), int(size.Height*s+0.5))
}

// Refresh syncs the loading placeholder and repaints.
func (c *FundusCanvas) Refresh() {
	c.syncLoading(c.viewer.Image())
	c.BaseWidget.Refresh()
}

func mouseButton(b desktop.MouseButton) (viewer.Button, bool) {
	switch b {
	case desktop.MouseButtonPrimary:
		return viewer.ButtonPrimary, true
	case desktop.MouseButtonSecondary:
		return viewer.ButtonSecondary, true
	case desktop.MouseButtonTertiary:
		return viewer.ButtonTertiary, true
	}
	return 0, false
}

// MouseDown implements desktop.Mouseable.
func (c *FundusCanvas) MouseDown(ev *desktop.MouseEvent) {
	if b, ok := mouseButton(ev.Button); ok {
		c.viewer.MouseDown(b, c.toPixels(ev.Position))
	}
}

// MouseUp implements desktop.Mouseable.
func (c *FundusCanvas) MouseUp(ev *desktop.MouseEvent) {
	if b, ok := mouseButton(ev.Button); ok {
		c.viewer.MouseUp(b)
	}
}

// MouseIn implements desktop.Hoverable.
func (c *FundusCanvas) MouseIn(*desktop.MouseEvent) {}

// MouseMoved implements desktop.Hoverable. The desktop driver delivers
// moves with the secondary button held here rather than as drags.
func (c *FundusCanvas) MouseMoved(ev *desktop.MouseEvent) {
	c.viewer.MouseMove(c.toPixels(ev.Position))
}

// MouseOut implements desktop.Hoverable.
func (c *FundusCanvas) MouseOut() {}

// Dragged implements fyne.Draggable.
func (c *FundusCanvas) Dragged(ev *fyne.DragEvent) {
	pos := c.toPixels(ev.Position)
	if c.touching {
		c.dispatch(c.recognizer.Move(touchID, pos, c.now()))
		return
	}
	c.viewer.MouseMove(pos)
}

// DragEnd implements fyne.Draggable. Buttons are released here too, since
// the driver may deliver the mouse up outside the widget.
func (c *FundusCanvas) DragEnd() {
	if c.touching {
		return
	}
	c.viewer.MouseUp(viewer.ButtonPrimary)
}

// Scrolled implements fyne.Scrollable: the wheel zooms by the quick zoom
// factor.
func (c *FundusCanvas) Scrolled(ev *fyne.ScrollEvent) {
	step := c.viewer.QuickZoom()
	switch {
	case ev.Scrolled.DY > 0:
		c.viewer.ZoomSteps(step)
	case ev.Scrolled.DY < 0:
		c.viewer.ZoomSteps(-step)
	}
}

// Tapped implements fyne.Tappable by taking keyboard focus.
func (c *FundusCanvas) Tapped(*fyne.PointEvent) {
	if app := fyne.CurrentApp(); app != nil {
		if cv := app.Driver().CanvasForObject(c); cv != nil {
			cv.Focus(c)
		}
	}
}

// TappedSecondary implements fyne.SecondaryTappable. On touch devices
// fyne reports a long press this way.
func (c *FundusCanvas) TappedSecondary(ev *fyne.PointEvent) {
	c.viewer.GestureHold(c.toPixels(ev.Position))
}

// TouchDown implements mobile.Touchable.
func (c *FundusCanvas) TouchDown(ev *mobile.TouchEvent) {
	c.touching = true
	c.dispatch(c.recognizer.Down(touchID, c.toPixels(ev.Position), c.now()))
}

// TouchUp implements mobile.Touchable.
func (c *FundusCanvas) TouchUp(*mobile.TouchEvent) {
	c.dispatch(c.recognizer.Up(touchID, c.now()))
	c.touching = false
}

// TouchCancel implements mobile.Touchable.
func (c *FundusCanvas) TouchCancel(ev *mobile.TouchEvent) {
	c.TouchUp(ev)
}

func (c *FundusCanvas) dispatch(gestures []gesture.Gesture) {
	for _, g := range gestures {
		c.viewer.HandleGesture(g)
	}
}

// FocusGained implements fyne.Focusable.
func (c *FundusCanvas) FocusGained() {}

// FocusLost implements fyne.Focusable.
func (c *FundusCanvas) FocusLost() {}

// TypedRune implements fyne.Focusable by running the bound key action.
func (c *FundusCanvas) TypedRune(r rune) {
	c.viewer.KeyRune(r)
}

// TypedKey implements fyne.Focusable.
func (c *FundusCanvas) TypedKey(*fyne.KeyEvent) {}

// MinSize keeps the canvas usable inside a border layout.
func (c *FundusCanvas) MinSize() fyne.Size {
	return fyne.NewSize(320, 240)
}

// CreateRenderer implements fyne.Widget.
func (c *FundusCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &canvasRenderer{canvas: c}
}

type canvasRenderer struct {
	canvas *FundusCanvas
}

func (r *canvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
	r.canvas.raster.Move(fyne.NewPos(0, 0))

	label := r.canvas.loading.MinSize()
	r.canvas.loading.Resize(label)
	r.canvas.loading.Move(fyne.NewPos((size.Width-label.Width)/2, (size.Height-label.Height)/2))

	r.canvas.layout(size)
}

func (r *canvasRenderer) MinSize() fyne.Size {
	return r.canvas.MinSize()
}

func (r *canvasRenderer) Refresh() {
	r.canvas.loading.Refresh()
	r.canvas.raster.Refresh()
}

func (r *canvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster, r.canvas.loading}
}

func (r *canvasRenderer) Destroy() {}
