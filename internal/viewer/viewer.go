// Package viewer implements the fundus image canvas independent of any GUI
// toolkit: layer compositing, tool dispatch, input normalisation and the
// undoable image swap.
package viewer

import (
	"image"
	"image/color"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"fundus-viewer/internal/config"
	"fundus-viewer/internal/fundus"
	"fundus-viewer/internal/history"
	"fundus-viewer/internal/processing"
	"fundus-viewer/pkg/geometry"
)

// Viewer owns the off-screen layers for the active image and composites
// them onto a viewport-sized screen surface.
//
// Input and tool methods are meant to be called from a single UI goroutine.
// Model events may arrive from a loader goroutine, so the surfaces are
// guarded by mu.
type Viewer struct {
	cfg *config.Config
	log zerolog.Logger

	mu         sync.Mutex
	image      *fundus.Image
	cancel     func()
	processed  *image.RGBA // base after processing, base-image sized
	annotation *image.RGBA // freehand strokes, base-image sized
	screen     *image.RGBA // last composite, viewport sized
	viewW      int
	viewH      int
	paused     int
	processor  processing.Processor
	kernel     draw.Interpolator
	background color.RGBA

	tool    Tool
	pointer PointerState
	touch   bool
	history *history.History

	// Touch gesture state
	gestureZoom  float64
	gestureDelta geometry.Point2D

	onRedraw      func()
	onContextMenu func(pos geometry.Point2D)
	onImageSet    func(img *fundus.Image)
	onToolChange  func(tool Tool)
}

// New creates a Viewer with no image. A nil cfg uses the defaults.
func New(cfg *config.Config, logger zerolog.Logger) *Viewer {
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	return &Viewer{
		cfg:        cfg,
		log:        logger.With().Str("component", "viewer").Logger(),
		processor:  processing.WindowLevel{},
		kernel:     interpolator(cfg.Display.Interpolation),
		background: cfg.BackgroundColor(),
		tool:       ToolCursor,
	}
}

func interpolator(name string) draw.Interpolator {
	switch name {
	case config.InterpNearest:
		return draw.NearestNeighbor
	case config.InterpCatmullRom:
		return draw.CatmullRom
	default:
		return draw.ApproxBiLinear
	}
}

// SetProcessor replaces the processing applied to the base layer.
func (v *Viewer) SetProcessor(p processing.Processor) {
	v.mu.Lock()
	v.processor = p
	v.mu.Unlock()
	v.RefreshProcessedLayer()
	v.Redraw()
}

// SetHistory sets the history used by SwapImage and the undo/redo keys.
func (v *Viewer) SetHistory(h *history.History) {
	v.history = h
}

// SetTouchEnabled enables gesture handling. It should reflect whether the
// device has a touch screen.
func (v *Viewer) SetTouchEnabled(enabled bool) {
	v.touch = enabled
}

// OnRedraw sets a callback run after every composite.
func (v *Viewer) OnRedraw(callback func()) {
	v.mu.Lock()
	v.onRedraw = callback
	v.mu.Unlock()
}

// OnContextMenu sets a callback for long presses.
func (v *Viewer) OnContextMenu(callback func(pos geometry.Point2D)) {
	v.onContextMenu = callback
}

// OnImageSet sets a callback run whenever the active image changes.
func (v *Viewer) OnImageSet(callback func(img *fundus.Image)) {
	v.onImageSet = callback
}

// OnToolChange sets a callback run when the active tool changes.
func (v *Viewer) OnToolChange(callback func(tool Tool)) {
	v.onToolChange = callback
}

// Image returns the active image, or nil.
func (v *Viewer) Image() *fundus.Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.image
}

// SetImage makes img the active image. A nil img clears the view.
func (v *Viewer) SetImage(img *fundus.Image) {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.image = img
	v.mu.Unlock()

	if img == nil {
		v.log.Debug().Msg("image cleared")
	} else {
		v.log.Debug().Str("image", img.Name).Bool("loaded", img.Loaded()).Msg("image set")
	}
	if v.onImageSet != nil {
		v.onImageSet(img)
	}
	if img == nil {
		v.Redraw()
		return
	}

	cancel := img.Subscribe(fundus.ListenerFunc(v.imageChanged))
	v.mu.Lock()
	if v.image == img {
		v.cancel = cancel
	} else {
		cancel()
	}
	v.mu.Unlock()

	if img.Loaded() {
		v.initialDraw()
	} else {
		v.Redraw()
	}
}

func (v *Viewer) imageChanged(img *fundus.Image, e fundus.Event) {
	if v.Image() != img {
		return
	}
	switch e {
	case fundus.EventBaseLoaded:
		v.log.Debug().Str("image", img.Name).Msg("base loaded")
		v.initialDraw()
	case fundus.EventDataChanged:
		v.RefreshProcessedLayer()
		v.Redraw()
	default:
		v.Redraw()
	}
}

// initialDraw sizes the layers to the base image, starts a blank
// annotation layer and composites. Strokes belong to the image they were
// drawn on, so they never carry over to the next one.
func (v *Viewer) initialDraw() {
	v.RefreshProcessedLayer()
	v.mu.Lock()
	v.clearAnnotation()
	v.mu.Unlock()
	v.Redraw()
}

// clearAnnotation erases the annotation layer. Caller holds mu.
func (v *Viewer) clearAnnotation() {
	if v.annotation != nil {
		draw.Draw(v.annotation, v.annotation.Bounds(), image.Transparent, image.Point{}, draw.Src)
	}
}

// ensureSurfaces reallocates the off-screen layers when the base size
// changes. Caller holds mu.
func (v *Viewer) ensureSurfaces(size image.Point) {
	if v.processed != nil && v.processed.Bounds().Size() == size {
		return
	}
	rect := image.Rectangle{Max: size}
	v.processed = image.NewRGBA(rect)
	v.annotation = image.NewRGBA(rect)
	v.log.Debug().Int("width", size.X).Int("height", size.Y).Msg("layers resized")
}

// Resize sets the viewport size in screen pixels.
func (v *Viewer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	v.mu.Lock()
	if v.viewW == width && v.viewH == height {
		v.mu.Unlock()
		return
	}
	v.viewW, v.viewH = width, height
	v.mu.Unlock()
	v.Redraw()
}

// ViewportSize returns the viewport size in screen pixels.
func (v *Viewer) ViewportSize() (width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewW, v.viewH
}

// Screen returns the most recent composite. The returned image is never
// modified after it is published.
func (v *Viewer) Screen() *image.RGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.screen
}

// pauseRedraws suspends Redraw until the returned function is called.
func (v *Viewer) pauseRedraws() (resume func()) {
	v.mu.Lock()
	v.paused++
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			v.paused--
			v.mu.Unlock()
		})
	}
}
