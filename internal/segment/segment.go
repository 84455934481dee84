// Package segment generates vessel segmentation overlays for fundus images
// using OpenCV.
package segment

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// fovThreshold separates the circular field of view from the black border
// in the green channel.
const fovThreshold = 20

// Options tunes the segmentation pipeline.
type Options struct {
	Scale      float64    // output resolution relative to the input
	ClipLimit  float64    // CLAHE contrast limit
	TileSize   int        // CLAHE tile grid size
	KernelSize int        // black-hat structuring element diameter
	MinArea    float64    // fragments smaller than this are dropped
	Color      color.RGBA // premultiplied overlay color for vessel pixels
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Scale:      0.5,
		ClipLimit:  2.0,
		TileSize:   8,
		KernelSize: 15,
		MinArea:    30,
		Color:      color.RGBA{R: 192, G: 36, B: 36, A: 192},
	}
}

// Result is a segmentation overlay and its statistics.
type Result struct {
	Overlay  *image.RGBA // vessel pixels in Options.Color, transparent elsewhere
	Coverage float64     // fraction of output pixels marked as vessel
}

// Vessels segments the retinal vessel tree of img. The overlay is produced
// at Options.Scale times the input resolution.
func Vessels(img image.Image, opts Options) (*Result, error) {
	if img == nil {
		return nil, errors.New("no image to segment")
	}
	if opts.Scale <= 0 || opts.Scale > 1 {
		return nil, fmt.Errorf("scale %.3f out of range (0, 1]", opts.Scale)
	}
	if opts.KernelSize < 3 {
		return nil, fmt.Errorf("kernel size %d too small", opts.KernelSize)
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer src.Close()

	scaled := gocv.NewMat()
	defer scaled.Close()
	if opts.Scale < 1 {
		gocv.Resize(src, &scaled, image.Point{}, opts.Scale, opts.Scale, gocv.InterpolationArea)
	} else {
		src.CopyTo(&scaled)
	}

	// Vessels contrast best in the green channel.
	channels := gocv.Split(scaled)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()
	if len(channels) < 3 {
		return nil, fmt.Errorf("expected 3 channels, got %d", len(channels))
	}
	green := channels[1]

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe := gocv.NewCLAHEWithParams(opts.ClipLimit, image.Point{X: opts.TileSize, Y: opts.TileSize})
	defer clahe.Close()
	clahe.Apply(green, &enhanced)

	// Black-hat highlights thin dark structures narrower than the kernel.
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: opts.KernelSize, Y: opts.KernelSize})
	defer kernel.Close()
	blackhat := gocv.NewMat()
	defer blackhat.Close()
	gocv.MorphologyEx(enhanced, &blackhat, gocv.MorphBlackhat, kernel)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(blackhat, &mask, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	// Restrict to the field of view, shrunk so its rim is not detected.
	fov := gocv.NewMat()
	defer fov.Close()
	gocv.Threshold(green, &fov, fovThreshold, 255, gocv.ThresholdBinary)
	gocv.Erode(fov, &fov, kernel)
	gocv.BitwiseAnd(mask, fov, &mask)

	clean := removeSmallFragments(mask, opts.MinArea)
	defer clean.Close()

	overlay, count := maskToOverlay(clean, opts.Color)
	total := clean.Rows() * clean.Cols()
	coverage := 0.0
	if total > 0 {
		coverage = float64(count) / float64(total)
	}

	return &Result{Overlay: overlay, Coverage: coverage}, nil
}

// removeSmallFragments redraws only the connected regions of mask whose area
// is at least minArea.
func removeSmallFragments(mask gocv.Mat, minArea float64) gocv.Mat {
	clean := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), mask.Rows(), mask.Cols(), gocv.MatTypeCV8U)
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) >= minArea {
			gocv.DrawContours(&clean, contours, i, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
		}
	}
	return clean
}

// maskToOverlay paints col wherever mask is non-zero.
func maskToOverlay(mask gocv.Mat, col color.RGBA) (*image.RGBA, int) {
	w, h := mask.Cols(), mask.Rows()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	count := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.GetUCharAt(y, x) == 0 {
				continue
			}
			out.SetRGBA(x, y, col)
			count++
		}
	}
	return out, count
}
