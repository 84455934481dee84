// Package fundus provides the fundus image model: pixel buffers, view state,
// display settings and change notification.
package fundus

import (
	"image"
	"math"
	"sync"

	"fundus-viewer/pkg/geometry"
)

// Default window/level leave intensities untouched.
const (
	DefaultWindow = 1.0
	DefaultLevel  = 0.5
)

// Display holds the per-layer visibility toggles.
type Display struct {
	ShowBase     bool
	ShowSegment  bool
	ShowAnnotate bool
}

// Image is a fundus photograph together with its view and display state.
// Every mutation emits exactly one Event after the lock is released.
type Image struct {
	mu sync.RWMutex

	Name string // Display name, usually the file base name
	Path string // Source file, if loaded from disk

	base         image.Image
	segmentation image.Image

	zoom      float64
	offset    geometry.Point2D
	window    float64
	level     float64
	display   Display
	grayscale bool

	nextID    int
	listeners []listenerEntry
}

type listenerEntry struct {
	id int
	l  Listener
}

// New creates an Image with no pixel data loaded yet.
func New(name string) *Image {
	return &Image{
		Name:   name,
		zoom:   1.0,
		window: DefaultWindow,
		level:  DefaultLevel,
		display: Display{
			ShowBase:     true,
			ShowSegment:  true,
			ShowAnnotate: true,
		},
	}
}

// Subscribe registers l for change notifications. The returned function
// removes the registration.
func (img *Image) Subscribe(l Listener) (cancel func()) {
	img.mu.Lock()
	img.nextID++
	id := img.nextID
	img.listeners = append(img.listeners, listenerEntry{id: id, l: l})
	img.mu.Unlock()

	return func() {
		img.mu.Lock()
		defer img.mu.Unlock()
		for i, e := range img.listeners {
			if e.id == id {
				img.listeners = append(img.listeners[:i], img.listeners[i+1:]...)
				return
			}
		}
	}
}

// emit notifies all listeners registered at the time of the call.
func (img *Image) emit(e Event) {
	img.mu.RLock()
	listeners := make([]Listener, len(img.listeners))
	for i, entry := range img.listeners {
		listeners[i] = entry.l
	}
	img.mu.RUnlock()

	for _, l := range listeners {
		l.ImageChanged(img, e)
	}
}

// Base returns the base pixel buffer, or nil while it is still loading.
func (img *Image) Base() image.Image {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.base
}

// Loaded reports whether the base pixel buffer is available.
func (img *Image) Loaded() bool {
	return img.Base() != nil
}

// SetBase installs the base pixel buffer and emits EventBaseLoaded.
func (img *Image) SetBase(base image.Image) {
	img.mu.Lock()
	img.base = base
	img.mu.Unlock()
	img.emit(EventBaseLoaded)
}

// Segmentation returns the segmentation buffer, or nil if there is none.
func (img *Image) Segmentation() image.Image {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.segmentation
}

// SetSegmentation installs the segmentation buffer and emits
// EventSegmentationLoaded. Its resolution may differ from the base image.
func (img *Image) SetSegmentation(seg image.Image) {
	img.mu.Lock()
	img.segmentation = seg
	img.mu.Unlock()
	img.emit(EventSegmentationLoaded)
}

// Size returns the base image dimensions, or a zero Size if not loaded.
func (img *Image) Size() geometry.Size {
	b := img.Base()
	if b == nil {
		return geometry.Size{}
	}
	return geometry.NewSize(float64(b.Bounds().Dx()), float64(b.Bounds().Dy()))
}

// ZoomLevel returns the current zoom level.
func (img *Image) ZoomLevel() float64 {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.zoom
}

// SetZoom sets the zoom level. Values that are not finite and positive are
// ignored.
func (img *Image) SetZoom(zoom float64) {
	if !(zoom > 0) || math.IsInf(zoom, 0) {
		return
	}
	img.mu.Lock()
	img.zoom = zoom
	img.mu.Unlock()
	img.emit(EventZoomChanged)
}

// Zoom multiplies the zoom level by factor.
func (img *Image) Zoom(factor float64) {
	img.SetZoom(img.ZoomLevel() * factor)
}

// Offset returns the pan offset in image pixels.
func (img *Image) Offset() geometry.Point2D {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.offset
}

// SetPosition sets the pan offset.
func (img *Image) SetPosition(x, y float64) {
	img.mu.Lock()
	img.offset = geometry.NewPoint2D(x, y)
	img.mu.Unlock()
	img.emit(EventPositionChanged)
}

// Move translates the pan offset.
func (img *Image) Move(dx, dy float64) {
	img.mu.Lock()
	img.offset = img.offset.Add(geometry.NewPoint2D(dx, dy))
	img.mu.Unlock()
	img.emit(EventPositionChanged)
}

// WindowLevel returns the current window and level.
func (img *Image) WindowLevel() (window, level float64) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.window, img.level
}

// SetWindowLevel updates the window/level used during processing.
func (img *Image) SetWindowLevel(window, level float64) {
	img.mu.Lock()
	img.window = window
	img.level = level
	img.mu.Unlock()
	img.emit(EventDataChanged)
}

// Display returns the layer visibility toggles.
func (img *Image) Display() Display {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.display
}

// ShowBase toggles the base layer.
func (img *Image) ShowBase(show bool) {
	img.setDisplay(func(d *Display) { d.ShowBase = show })
}

// ShowSegmented toggles the segmentation layer.
func (img *Image) ShowSegmented(show bool) {
	img.setDisplay(func(d *Display) { d.ShowSegment = show })
}

// ShowAnnotated toggles the annotation layer.
func (img *Image) ShowAnnotated(show bool) {
	img.setDisplay(func(d *Display) { d.ShowAnnotate = show })
}

func (img *Image) setDisplay(update func(d *Display)) {
	img.mu.Lock()
	update(&img.display)
	img.mu.Unlock()
	img.emit(EventDisplayChanged)
}

// Grayscale reports whether the image is rendered in grayscale.
func (img *Image) Grayscale() bool {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.grayscale
}

// SetGrayscale toggles grayscale rendering.
func (img *Image) SetGrayscale(gray bool) {
	img.mu.Lock()
	img.grayscale = gray
	img.mu.Unlock()
	img.emit(EventDataChanged)
}
