package viewer

import "fundus-viewer/internal/fundus"

// SetImageAction records a change of the active image.
type SetImageAction struct {
	viewer *Viewer
	prev   *fundus.Image
	next   *fundus.Image
}

// NewSetImageAction creates an action that switches v from prev to next.
func NewSetImageAction(v *Viewer, prev, next *fundus.Image) *SetImageAction {
	return &SetImageAction{viewer: v, prev: prev, next: next}
}

// Undo makes the previous image active again.
func (a *SetImageAction) Undo() {
	a.viewer.SetImage(a.prev)
}

// Redo makes the next image active.
func (a *SetImageAction) Redo() {
	a.viewer.SetImage(a.next)
}

// Description implements history.Action.
func (a *SetImageAction) Description() string {
	return "changing the active image"
}

// SwapImage makes next the active image, recording the change in the
// viewer's history when one is set.
func (v *Viewer) SwapImage(next *fundus.Image) {
	a := NewSetImageAction(v, v.Image(), next)
	if v.history == nil {
		a.Redo()
		return
	}
	v.history.Do(a)
}
