// Package processing applies display processing (window/level, grayscale)
// to the pixel buffer shown for a fundus image.
package processing

import (
	"image"

	"fundus-viewer/internal/fundus"
	"fundus-viewer/pkg/colorutil"
)

// minWindow keeps the window/level ramp finite when the window collapses.
const minWindow = 1.0 / 512

// Processor rewrites the processed layer's pixels in place according to
// the image's display settings.
type Processor interface {
	Process(img *fundus.Image, pix *image.RGBA)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(img *fundus.Image, pix *image.RGBA)

// Process calls f(img, pix).
func (f ProcessorFunc) Process(img *fundus.Image, pix *image.RGBA) {
	f(img, pix)
}

// WindowLevel maps every channel through a linear window/level ramp and
// optionally collapses color to luminance first.
type WindowLevel struct{}

// Process implements Processor.
func (WindowLevel) Process(img *fundus.Image, pix *image.RGBA) {
	if img == nil || pix == nil {
		return
	}
	window, level := img.WindowLevel()
	lut := BuildLUT(window, level)
	gray := img.Grayscale()

	b := pix.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := pix.Pix[pix.PixOffset(b.Min.X, y):pix.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			a := row[i+3]
			if a == 0 {
				continue
			}
			// The ramp works on straight color; pix is premultiplied.
			r, g, bl := unpremul(row[i], a), unpremul(row[i+1], a), unpremul(row[i+2], a)
			if gray {
				l := colorutil.Luminance(r, g, bl)
				r, g, bl = l, l, l
			}
			row[i] = premul(lut[r], a)
			row[i+1] = premul(lut[g], a)
			row[i+2] = premul(lut[bl], a)
		}
	}
}

func unpremul(c, a uint8) uint8 {
	if a == 0xff {
		return c
	}
	v := (uint32(c)*0xff + uint32(a)/2) / uint32(a)
	if v > 0xff {
		v = 0xff
	}
	return uint8(v)
}

func premul(c, a uint8) uint8 {
	if a == 0xff {
		return c
	}
	return uint8((uint32(c)*uint32(a) + 0x7f) / 0xff)
}

// BuildLUT returns the 8-bit lookup table for a window/level pair expressed
// in normalised intensity units: output is 0 at level-window/2 and 1 at
// level+window/2.
func BuildLUT(window, level float64) [256]uint8 {
	if window < minWindow {
		window = minWindow
	}
	lo := level - window/2

	var lut [256]uint8
	for i := range lut {
		v := (float64(i)/255 - lo) / window
		switch {
		case v <= 0:
			lut[i] = 0
		case v >= 1:
			lut[i] = 255
		default:
			lut[i] = uint8(v*255 + 0.5)
		}
	}
	return lut
}

// Chain runs processors in order.
type Chain []Processor

// Process implements Processor.
func (c Chain) Process(img *fundus.Image, pix *image.RGBA) {
	for _, p := range c {
		p.Process(img, pix)
	}
}
