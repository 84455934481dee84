package viewer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"fundus-viewer/internal/fundus"
	"fundus-viewer/pkg/colorutil"
	"fundus-viewer/pkg/geometry"
)

// ErrNoImage is returned by export operations when no loaded image is active.
var ErrNoImage = errors.New("no image loaded")

// Printer sends a flattened PNG to a print target.
type Printer interface {
	Print(png []byte) error
}

// PrinterFunc adapts a function to the Printer interface.
type PrinterFunc func(png []byte) error

// Print calls f(png).
func (f PrinterFunc) Print(png []byte) error {
	return f(png)
}

// RefreshProcessedLayer copies the base image into the processed layer and
// runs the processor over it.
func (v *Viewer) RefreshProcessedLayer() {
	v.mu.Lock()
	defer v.mu.Unlock()

	img := v.image
	if img == nil {
		return
	}
	base := img.Base()
	if base == nil {
		return
	}

	v.ensureSurfaces(base.Bounds().Size())
	draw.Draw(v.processed, v.processed.Bounds(), base, base.Bounds().Min, draw.Src)
	if v.processor != nil {
		v.processor.Process(img, v.processed)
	}
}

// Redraw composites the active image onto a new screen surface.
//
// It does nothing while redraws are paused or while the base image is
// still loading. With no image the screen is filled with the background.
func (v *Viewer) Redraw() {
	v.mu.Lock()
	if v.paused > 0 || v.viewW <= 0 || v.viewH <= 0 {
		v.mu.Unlock()
		return
	}
	img := v.image
	if img != nil && !img.Loaded() {
		v.mu.Unlock()
		return
	}

	screen := image.NewRGBA(image.Rect(0, 0, v.viewW, v.viewH))
	draw.Draw(screen, screen.Bounds(), image.NewUniform(v.background), image.Point{}, draw.Src)
	if img != nil && v.processed != nil {
		v.composite(screen, img)
	}
	v.screen = screen
	hook := v.onRedraw
	v.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// composite draws base, annotation and segmentation in that order. Caller
// holds mu.
func (v *Viewer) composite(dst *image.RGBA, img *fundus.Image) {
	display := img.Display()
	base := baseTransform(img, v.viewW, v.viewH)

	if display.ShowBase {
		v.kernel.Transform(dst, base.Aff3(), v.processed, v.processed.Bounds(), draw.Over, nil)
	}
	if display.ShowAnnotate {
		v.kernel.Transform(dst, base.Aff3(), v.annotation, v.annotation.Bounds(), draw.Over, nil)
	}
	if display.ShowSegment {
		if seg, t, ok := segmentationTransform(img, v.viewW, v.viewH); ok {
			v.kernel.Transform(dst, t.Aff3(), seg, seg.Bounds(), draw.Over, nil)
		}
	}
}

// baseTransform places the base image so that the viewport center shows
// the image center shifted by the model offset.
func baseTransform(img *fundus.Image, viewW, viewH int) geometry.Transform {
	s := img.ZoomLevel()
	off := img.Offset()
	size := img.Size()
	return geometry.Transform{
		Scale: geometry.NewPoint2D(s, s),
		Offset: geometry.NewPoint2D(
			float64(viewW)/(2*s)+off.X-size.Width/2,
			float64(viewH)/(2*s)+off.Y-size.Height/2,
		),
	}
}

// segmentationTransform expresses the base placement in segmentation pixels.
func segmentationTransform(img *fundus.Image, viewW, viewH int) (image.Image, geometry.Transform, bool) {
	seg := img.Segmentation()
	if seg == nil {
		return nil, geometry.Transform{}, false
	}
	b := seg.Bounds()
	segSize := geometry.NewSize(float64(b.Dx()), float64(b.Dy()))
	baseSize := img.Size()
	if segSize.Empty() || baseSize.Empty() {
		return nil, geometry.Transform{}, false
	}
	return seg, baseTransform(img, viewW, viewH).Rescale(baseSize.Ratio(segSize)), true
}

// BaseTransform returns the mapping from base-image pixels to the screen.
// ok is false when no loaded image is active.
func (v *Viewer) BaseTransform() (t geometry.Transform, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.image == nil || !v.image.Loaded() {
		return geometry.Transform{}, false
	}
	return baseTransform(v.image, v.viewW, v.viewH), true
}

// SegmentationTransform returns the mapping from segmentation pixels to the
// screen. ok is false without a loaded image and segmentation.
func (v *Viewer) SegmentationTransform() (t geometry.Transform, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.image == nil || !v.image.Loaded() {
		return geometry.Transform{}, false
	}
	_, t, ok = segmentationTransform(v.image, v.viewW, v.viewH)
	return t, ok
}

// ScreenToImage maps a pointer position to base-image coordinates after
// removing the configured viewport origin.
func (v *Viewer) ScreenToImage(pos geometry.Point2D) (geometry.Point2D, bool) {
	t, ok := v.BaseTransform()
	if !ok {
		return geometry.Point2D{}, false
	}
	origin := geometry.NewPoint2D(v.cfg.Viewport.OriginX, v.cfg.Viewport.OriginY)
	return t.Invert(pos.Sub(origin)), true
}

// Export flattens the visible layers at base resolution and encodes them as
// PNG. The flattening happens in the processed layer, so callers must call
// RefreshProcessedLayer afterwards.
func (v *Viewer) Export() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	img := v.image
	if img == nil || !img.Loaded() || v.processed == nil {
		return nil, ErrNoImage
	}

	dst := v.processed
	display := img.Display()
	if !display.ShowBase {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(colorutil.Black), image.Point{}, draw.Src)
	}
	if display.ShowSegment {
		if seg := img.Segmentation(); seg != nil {
			v.kernel.Scale(dst, dst.Bounds(), seg, seg.Bounds(), draw.Over, nil)
		}
	}
	if display.ShowAnnotate {
		draw.Draw(dst, dst.Bounds(), v.annotation, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	v.log.Debug().Str("image", img.Name).Int("bytes", buf.Len()).Msg("exported")
	return buf.Bytes(), nil
}

// exportAndRestore runs Export and always restores the processed layer.
func (v *Viewer) exportAndRestore() ([]byte, error) {
	defer v.RefreshProcessedLayer()
	return v.Export()
}

// Download writes the flattened PNG to w.
func (v *Viewer) Download(w io.Writer) error {
	data, err := v.exportAndRestore()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// DataURL returns the flattened PNG as a data URL.
func (v *Viewer) DataURL() (string, error) {
	data, err := v.exportAndRestore()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Print sends the flattened PNG to p.
func (v *Viewer) Print(p Printer) error {
	data, err := v.exportAndRestore()
	if err != nil {
		return err
	}
	if err := p.Print(data); err != nil {
		return fmt.Errorf("print: %w", err)
	}
	return nil
}
