// Package config handles configuration loading and validation for the viewer.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"fundus-viewer/pkg/colorutil"
)

// Keybinding actions understood by the canvas.
const (
	ActionGrayscale        = "grayscale"
	ActionFit              = "fit"
	ActionZoomIn           = "zoom-in"
	ActionZoomOut          = "zoom-out"
	ActionToolCursor       = "tool-cursor"
	ActionToolBrush        = "tool-brush"
	ActionToolZoom         = "tool-zoom"
	ActionToolRange        = "tool-range"
	ActionClearAnnotations = "clear-annotations"
	ActionUndo             = "undo"
	ActionRedo             = "redo"
)

// Interpolation kernels for layer scaling.
const (
	InterpNearest    = "nearest"
	InterpBilinear   = "bilinear"
	InterpCatmullRom = "catmullrom"
)

// defaultKeybindings are merged under any user keybindings.
var defaultKeybindings = map[string]string{
	"g": ActionGrayscale,
	"f": ActionFit,
	"+": ActionZoomIn,
	"=": ActionZoomIn,
	"-": ActionZoomOut,
	"1": ActionToolCursor,
	"2": ActionToolBrush,
	"3": ActionToolZoom,
	"4": ActionToolRange,
}

// Config holds the application configuration.
type Config struct {
	Display      DisplayConfig      `yaml:"display"`
	Brush        BrushConfig        `yaml:"brush"`
	Viewport     ViewportConfig     `yaml:"viewport"`
	Tools        ToolsConfig        `yaml:"tools"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	History      HistoryConfig      `yaml:"history"`
	Keybindings  map[string]string  `yaml:"keybindings"`
}

// DisplayConfig controls how layers are composited.
type DisplayConfig struct {
	Background    string `yaml:"background"`
	Interpolation string `yaml:"interpolation"`
}

// BrushConfig controls annotation strokes.
type BrushConfig struct {
	Width float64 `yaml:"width"`
	Color string  `yaml:"color"`
}

// ViewportConfig locates the drawing surface relative to pointer coordinates.
// Pointer positions have OriginX/OriginY subtracted before they are mapped
// into image space.
type ViewportConfig struct {
	OriginX float64 `yaml:"origin_x"`
	OriginY float64 `yaml:"origin_y"`
}

// ToolsConfig scales pointer deltas for the drag tools.
type ToolsConfig struct {
	ZoomDragScale   float64 `yaml:"zoom_drag_scale"`   // pixels of drag per doubling
	WindowLevelStep float64 `yaml:"window_level_step"` // pixels of drag per unit window/level
	QuickZoom       float64 `yaml:"quick_zoom"`        // factor used by zoom buttons and keys
}

// SegmentationConfig tunes the vessel segmentation generator.
type SegmentationConfig struct {
	Scale      float64 `yaml:"scale"` // output resolution relative to the base image
	ClipLimit  float64 `yaml:"clip_limit"`
	TileSize   int     `yaml:"tile_size"`
	KernelSize int     `yaml:"kernel_size"` // black-hat structuring element diameter
	MinArea    float64 `yaml:"min_area"`    // smallest vessel fragment kept, in output pixels
	Color      string  `yaml:"color"`
}

// HistoryConfig bounds the undo history.
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Display: DisplayConfig{
			Background:    "#000000",
			Interpolation: InterpBilinear,
		},
		Brush: BrushConfig{
			Width: 5,
			Color: "#ffffff",
		},
		Tools: ToolsConfig{
			ZoomDragScale:   300,
			WindowLevelStep: 500,
			QuickZoom:       1.1,
		},
		Segmentation: SegmentationConfig{
			Scale:      0.5,
			ClipLimit:  2.0,
			TileSize:   8,
			KernelSize: 15,
			MinArea:    30,
			Color:      "#ff3030c0",
		},
		History: HistoryConfig{
			Limit: 50,
		},
		Keybindings: mergeKeybindings(defaultKeybindings, nil),
	}
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "fundus-viewer", "config.yaml")
}

// Load reads configuration from the given path.
// If path is empty or doesn't exist, returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Keybindings = nil

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.Keybindings = mergeKeybindings(defaultKeybindings, cfg.Keybindings)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Display.Background == "" {
		c.Display.Background = defaults.Display.Background
	}
	if c.Display.Interpolation == "" {
		c.Display.Interpolation = defaults.Display.Interpolation
	}
	if c.Brush.Width == 0 {
		c.Brush.Width = defaults.Brush.Width
	}
	if c.Brush.Color == "" {
		c.Brush.Color = defaults.Brush.Color
	}
	if c.Tools.ZoomDragScale == 0 {
		c.Tools.ZoomDragScale = defaults.Tools.ZoomDragScale
	}
	if c.Tools.WindowLevelStep == 0 {
		c.Tools.WindowLevelStep = defaults.Tools.WindowLevelStep
	}
	if c.Tools.QuickZoom == 0 {
		c.Tools.QuickZoom = defaults.Tools.QuickZoom
	}
	if c.Segmentation.Scale == 0 {
		c.Segmentation.Scale = defaults.Segmentation.Scale
	}
	if c.Segmentation.ClipLimit == 0 {
		c.Segmentation.ClipLimit = defaults.Segmentation.ClipLimit
	}
	if c.Segmentation.TileSize == 0 {
		c.Segmentation.TileSize = defaults.Segmentation.TileSize
	}
	if c.Segmentation.KernelSize == 0 {
		c.Segmentation.KernelSize = defaults.Segmentation.KernelSize
	}
	if c.Segmentation.Color == "" {
		c.Segmentation.Color = defaults.Segmentation.Color
	}
	if c.History.Limit == 0 {
		c.History.Limit = defaults.History.Limit
	}
}

// mergeKeybindings merges user keybindings into defaults.
// User keybindings override defaults for the same key.
func mergeKeybindings(defaults, user map[string]string) map[string]string {
	result := make(map[string]string, len(defaults)+len(user))
	for k, v := range defaults {
		result[k] = v
	}
	for k, v := range user {
		result[k] = v
	}
	return result
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if _, err := colorutil.ParseHex(c.Display.Background); err != nil {
		errs = append(errs, fmt.Errorf("display.background: %w", err))
	}
	switch c.Display.Interpolation {
	case InterpNearest, InterpBilinear, InterpCatmullRom:
	default:
		errs = append(errs, fmt.Errorf("display.interpolation: unknown kernel %q", c.Display.Interpolation))
	}

	if c.Brush.Width <= 0 {
		errs = append(errs, fmt.Errorf("brush.width must be positive"))
	}
	if _, err := colorutil.ParseHex(c.Brush.Color); err != nil {
		errs = append(errs, fmt.Errorf("brush.color: %w", err))
	}

	if c.Tools.ZoomDragScale <= 0 {
		errs = append(errs, fmt.Errorf("tools.zoom_drag_scale must be positive"))
	}
	if c.Tools.WindowLevelStep <= 0 {
		errs = append(errs, fmt.Errorf("tools.window_level_step must be positive"))
	}
	if c.Tools.QuickZoom <= 1 {
		errs = append(errs, fmt.Errorf("tools.quick_zoom must be greater than 1"))
	}

	if c.Segmentation.Scale <= 0 || c.Segmentation.Scale > 1 {
		errs = append(errs, fmt.Errorf("segmentation.scale must be in (0, 1]"))
	}
	if c.Segmentation.MinArea < 0 {
		errs = append(errs, fmt.Errorf("segmentation.min_area cannot be negative"))
	}
	if c.Segmentation.KernelSize < 3 {
		errs = append(errs, fmt.Errorf("segmentation.kernel_size must be at least 3"))
	}
	if _, err := colorutil.ParseHex(c.Segmentation.Color); err != nil {
		errs = append(errs, fmt.Errorf("segmentation.color: %w", err))
	}

	if c.History.Limit < 1 {
		errs = append(errs, fmt.Errorf("history.limit must be at least 1"))
	}

	for key, action := range c.Keybindings {
		if utf8.RuneCountInString(key) != 1 {
			errs = append(errs, fmt.Errorf("keybinding %q must be a single character", key))
		}
		if !isValidAction(action) {
			errs = append(errs, fmt.Errorf("keybinding %q has invalid action %q", key, action))
		}
	}

	return errors.Join(errs...)
}

// BackgroundColor returns the parsed display background.
func (c *Config) BackgroundColor() color.RGBA {
	col, _ := colorutil.ParseHex(c.Display.Background)
	return colorutil.Premultiply(col)
}

// BrushColor returns the parsed brush color.
func (c *Config) BrushColor() color.RGBA {
	col, _ := colorutil.ParseHex(c.Brush.Color)
	return colorutil.Premultiply(col)
}

// SegmentationColor returns the parsed segmentation overlay color.
func (c *Config) SegmentationColor() color.RGBA {
	col, _ := colorutil.ParseHex(c.Segmentation.Color)
	return colorutil.Premultiply(col)
}

// ActionFor returns the action bound to r, if any.
func (c *Config) ActionFor(r rune) (string, bool) {
	action, ok := c.Keybindings[string(r)]
	return action, ok
}

func isValidAction(action string) bool {
	switch action {
	case ActionGrayscale, ActionFit, ActionZoomIn, ActionZoomOut,
		ActionToolCursor, ActionToolBrush, ActionToolZoom, ActionToolRange,
		ActionClearAnnotations, ActionUndo, ActionRedo:
		return true
	default:
		return false
	}
}
