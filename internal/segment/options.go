package segment

import (
	"image"

	"fundus-viewer/internal/config"
)

// FromConfig builds Options from the segmentation section of cfg.
func FromConfig(cfg *config.Config) Options {
	s := cfg.Segmentation
	return Options{
		Scale:      s.Scale,
		ClipLimit:  s.ClipLimit,
		TileSize:   s.TileSize,
		KernelSize: s.KernelSize,
		MinArea:    s.MinArea,
		Color:      cfg.SegmentationColor(),
	}
}

// Overlay returns a function producing only the overlay image, suitable as
// a session segmenter.
func Overlay(opts Options) func(image.Image) (image.Image, error) {
	return func(base image.Image) (image.Image, error) {
		res, err := Vessels(base, opts)
		if err != nil {
			return nil, err
		}
		return res.Overlay, nil
	}
}
