package viewer

import (
	"fundus-viewer/internal/config"
	"fundus-viewer/internal/gesture"
	"fundus-viewer/pkg/geometry"
)

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary   Button = iota // drives the active tool
	ButtonSecondary               // pans regardless of the active tool
	ButtonTertiary                // pans like secondary
)

// PointerState is the button and position state of the last pointer event.
type PointerState struct {
	Buttons [3]bool
	Pos     geometry.Point2D
}

// Pointer returns the current pointer state.
func (v *Viewer) Pointer() PointerState {
	return v.pointer
}

// MouseDown records a button press at pos.
func (v *Viewer) MouseDown(b Button, pos geometry.Point2D) {
	v.pointer.Pos = pos
	if b >= 0 && int(b) < len(v.pointer.Buttons) {
		v.pointer.Buttons[b] = true
	}
}

// MouseUp records a button release.
func (v *Viewer) MouseUp(b Button) {
	if b >= 0 && int(b) < len(v.pointer.Buttons) {
		v.pointer.Buttons[b] = false
	}
}

// MouseMove dispatches a pointer move to the tool selected by the held
// buttons.
func (v *Viewer) MouseMove(pos geometry.Point2D) {
	delta := v.pointer.Pos.Sub(pos)
	v.pointer.Pos = pos

	switch {
	case v.pointer.Buttons[ButtonPrimary]:
		v.Move(pos, delta)
	case v.pointer.Buttons[ButtonSecondary], v.pointer.Buttons[ButtonTertiary]:
		v.MoveWith(ToolCursor, pos, delta)
	}
}

// GestureStart begins a touch gesture.
func (v *Viewer) GestureStart() {
	img := v.Image()
	if !v.touch || img == nil {
		return
	}
	v.gestureZoom = img.ZoomLevel()
	v.gestureDelta = geometry.Point2D{}
}

// GestureDrag handles a drag whose cumulative movement since GestureStart
// is total.
func (v *Viewer) GestureDrag(pos, total geometry.Point2D) {
	if !v.touch || v.Image() == nil {
		return
	}
	delta := v.gestureDelta.Sub(total)
	v.gestureDelta = total
	v.Move(pos, delta)
}

// GestureTransform sets the zoom to the level at GestureStart times scale.
func (v *Viewer) GestureTransform(scale float64) {
	img := v.Image()
	if !v.touch || img == nil {
		return
	}
	img.SetZoom(v.gestureZoom * scale)
}

// GestureHold requests a context menu at pos.
func (v *Viewer) GestureHold(pos geometry.Point2D) {
	if !v.touch || v.Image() == nil {
		return
	}
	if v.onContextMenu != nil {
		v.onContextMenu(pos)
	}
}

// HandleGesture dispatches a recognised gesture.
func (v *Viewer) HandleGesture(g gesture.Gesture) {
	switch g.Kind {
	case gesture.KindTouch:
		v.GestureStart()
	case gesture.KindDrag:
		v.GestureDrag(g.Center, g.Delta)
	case gesture.KindTransform:
		v.GestureTransform(g.Scale)
	case gesture.KindHold:
		v.GestureHold(g.Center)
	}
}

// KeyRune runs the action bound to r. It reports whether r was bound.
func (v *Viewer) KeyRune(r rune) bool {
	action, ok := v.cfg.ActionFor(r)
	if !ok {
		return false
	}

	switch action {
	case config.ActionGrayscale:
		if img := v.Image(); img != nil {
			img.SetGrayscale(!img.Grayscale())
		}
	case config.ActionFit:
		v.FitToPage()
	case config.ActionZoomIn:
		v.ZoomSteps(v.cfg.Tools.QuickZoom)
	case config.ActionZoomOut:
		v.ZoomSteps(-v.cfg.Tools.QuickZoom)
	case config.ActionToolCursor:
		v.SetTool(ToolCursor)
	case config.ActionToolBrush:
		v.SetTool(ToolBrush)
	case config.ActionToolZoom:
		v.SetTool(ToolZoom)
	case config.ActionToolRange:
		v.SetTool(ToolRange)
	case config.ActionClearAnnotations:
		v.ClearAnnotations()
	case config.ActionUndo:
		if v.history != nil {
			v.history.Undo()
		}
	case config.ActionRedo:
		if v.history != nil {
			v.history.Redo()
		}
	}
	return true
}
