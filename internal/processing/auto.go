package processing

import (
	"image"
	"image/draw"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fundus-viewer/pkg/colorutil"
)

// maxSamples caps the number of pixels inspected by AutoWindowLevel.
const maxSamples = 1 << 16

// AutoWindowLevel picks a window/level that stretches the lo..hi luminance
// quantiles of img across the full output range. Fundus photographs have a
// large black border, so fully black pixels are ignored.
func AutoWindowLevel(img image.Image, lo, hi float64) (window, level float64, ok bool) {
	if img == nil || lo >= hi {
		return 0, 0, false
	}

	rgba, isRGBA := img.(*image.RGBA)
	if !isRGBA {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	b := rgba.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0, 0, false
	}
	step := 1
	for total/step > maxSamples {
		step++
	}

	samples := make([]float64, 0, total/step+1)
	for i := 0; i < total; i += step {
		x := b.Min.X + i%b.Dx()
		y := b.Min.Y + i/b.Dx()
		o := rgba.PixOffset(x, y)
		l := colorutil.Luminance(rgba.Pix[o], rgba.Pix[o+1], rgba.Pix[o+2])
		if l == 0 {
			continue
		}
		samples = append(samples, float64(l)/255)
	}
	if len(samples) < 2 {
		return 0, 0, false
	}

	sort.Float64s(samples)
	qlo := stat.Quantile(lo, stat.Empirical, samples, nil)
	qhi := stat.Quantile(hi, stat.Empirical, samples, nil)
	if qhi <= qlo {
		return 0, 0, false
	}

	return qhi - qlo, (qhi + qlo) / 2, true
}
