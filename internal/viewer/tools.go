package viewer

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"fundus-viewer/pkg/geometry"
)

// Tool is the interaction applied by primary-button drags.
type Tool int

const (
	ToolCursor Tool = iota // pan the image
	ToolBrush              // paint on the annotation layer
	ToolZoom               // vertical drag zooms
	ToolRange              // drag adjusts window (x) and level (y)
)

var toolNames = []string{"cursor", "brush", "zoom", "range"}

func (t Tool) String() string {
	if t < 0 || int(t) >= len(toolNames) {
		return "unknown"
	}
	return toolNames[t]
}

// ParseTool returns the tool with the given name.
func ParseTool(name string) (Tool, bool) {
	for i, n := range toolNames {
		if n == name {
			return Tool(i), true
		}
	}
	return ToolCursor, false
}

// Tool returns the active tool.
func (v *Viewer) Tool() Tool {
	return v.tool
}

// SetTool selects the active tool.
func (v *Viewer) SetTool(tool Tool) {
	if tool == v.tool {
		return
	}
	v.tool = tool
	v.log.Debug().Stringer("tool", tool).Msg("tool selected")
	if v.onToolChange != nil {
		v.onToolChange(tool)
	}
}

// Move applies the active tool for a pointer at pos that moved by delta,
// where delta is the previous position minus the current one.
func (v *Viewer) Move(pos, delta geometry.Point2D) {
	v.MoveWith(v.tool, pos, delta)
}

// MoveWith applies tool regardless of the active tool.
func (v *Viewer) MoveWith(tool Tool, pos, delta geometry.Point2D) {
	img := v.Image()
	if img == nil {
		return
	}

	switch tool {
	case ToolCursor:
		s := img.ZoomLevel()
		img.Move(-delta.X/s, -delta.Y/s)

	case ToolBrush:
		start, ok := v.ScreenToImage(pos)
		if !ok {
			return
		}
		end := start.Add(delta.Scale(1 / img.ZoomLevel()))
		v.stroke(start, end)

	case ToolZoom:
		img.Zoom(math.Pow(2, delta.Y/v.cfg.Tools.ZoomDragScale))

	case ToolRange:
		step := v.cfg.Tools.WindowLevelStep
		window, level := img.WindowLevel()
		img.SetWindowLevel(window+delta.X/step, level+delta.Y/step)
	}
}

// stroke paints a brush segment onto the annotation layer and redraws.
func (v *Viewer) stroke(from, to geometry.Point2D) {
	v.mu.Lock()
	if v.annotation == nil {
		v.mu.Unlock()
		return
	}
	drawLine(v.annotation, from, to, v.cfg.Brush.Width, v.cfg.BrushColor())
	v.mu.Unlock()
	v.Redraw()
}

// drawLine rasterises a butt-capped segment of the given width.
func drawLine(dst draw.Image, from, to geometry.Point2D, width float64, col color.RGBA) {
	length := from.Distance(to)
	if length == 0 || width <= 0 {
		return
	}
	// Unit normal scaled to half the width.
	n := geometry.NewPoint2D(from.Y-to.Y, to.X-from.X).Scale(width / 2 / length)
	quad := [4]geometry.Point2D{from.Add(n), to.Add(n), to.Sub(n), from.Sub(n)}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range quad {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	box := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
	clip := box.Intersect(dst.Bounds())
	if clip.Empty() {
		return
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	for i, p := range quad {
		x, y := float32(p.X-float64(box.Min.X)), float32(p.Y-float64(box.Min.Y))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()

	mask := image.NewAlpha(box)
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	draw.DrawMask(dst, clip, image.NewUniform(col), image.Point{}, mask, clip.Min, draw.Over)
}

// QuickZoom returns the zoom factor used by one wheel notch or zoom button.
func (v *Viewer) QuickZoom() float64 {
	return v.cfg.Tools.QuickZoom
}

// ZoomSteps zooms in by steps when positive and out by 1/|steps| when
// negative.
func (v *Viewer) ZoomSteps(steps float64) {
	img := v.Image()
	if img == nil {
		return
	}
	factor := math.Abs(steps)
	if steps < 0 {
		factor = 1 / factor
	}
	img.Zoom(factor)
}

// FitToPage centers the image and zooms so that it is inscribed in the
// viewport, with a single redraw.
func (v *Viewer) FitToPage() {
	img := v.Image()
	if img == nil || !img.Loaded() {
		return
	}
	size := img.Size()
	vw, vh := v.ViewportSize()
	if size.Empty() || vw <= 0 || vh <= 0 {
		return
	}
	s := math.Min(float64(vw)/size.Width, float64(vh)/size.Height)

	resume := v.pauseRedraws()
	img.SetPosition(0, 0)
	img.SetZoom(s)
	resume()

	v.Redraw()
}

// ClearAnnotations erases the annotation layer.
func (v *Viewer) ClearAnnotations() {
	v.mu.Lock()
	if v.annotation == nil {
		v.mu.Unlock()
		return
	}
	v.clearAnnotation()
	v.mu.Unlock()
	v.log.Debug().Msg("annotations cleared")
	v.Redraw()
}
