package viewer

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/rs/zerolog"

	"fundus-viewer/internal/config"
	"fundus-viewer/internal/fundus"
	"fundus-viewer/internal/processing"
)

// Quantiles used for automatic window/level.
const (
	AutoLow  = 0.01
	AutoHigh = 0.99
)

// RenderOptions controls a headless render.
type RenderOptions struct {
	Width, Height   int     // viewport size, ignored when Flatten is set
	Flatten         bool    // export all visible layers at base resolution
	Grayscale       bool
	Window, Level   float64 // applied when Window > 0
	AutoWindowLevel bool    // overrides Window and Level
}

// Render draws img without a window and returns it as PNG. By default the
// image is fitted to a Width x Height viewport; with Flatten the output is
// the same as Download.
func Render(img *fundus.Image, opts RenderOptions, cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	if img == nil || !img.Loaded() {
		return nil, ErrNoImage
	}
	if !opts.Flatten && (opts.Width <= 0 || opts.Height <= 0) {
		return nil, fmt.Errorf("viewport %dx%d: %w", opts.Width, opts.Height, errors.New("size must be positive"))
	}

	switch {
	case opts.AutoWindowLevel:
		if window, level, ok := processing.AutoWindowLevel(img.Base(), AutoLow, AutoHigh); ok {
			img.SetWindowLevel(window, level)
		}
	case opts.Window > 0:
		img.SetWindowLevel(opts.Window, opts.Level)
	}
	img.SetGrayscale(opts.Grayscale)

	v := New(cfg, logger)
	if opts.Flatten {
		v.SetImage(img)
		return v.exportAndRestore()
	}

	v.Resize(opts.Width, opts.Height)
	v.SetImage(img)
	v.FitToPage()

	var buf bytes.Buffer
	if err := png.Encode(&buf, v.Screen()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
