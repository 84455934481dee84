// Package history provides a bounded undo/redo stack of reversible actions.
package history

import "sync"

// Action is a reversible change. Undo and Redo must not record new history.
type Action interface {
	Undo()
	Redo()
	Description() string
}

// History records actions for undo and redo.
type History struct {
	mu     sync.Mutex
	done   []Action
	undone []Action
	limit  int

	onChange func()
}

// New creates a History that keeps at most limit actions. A limit below 1
// means unbounded.
func New(limit int) *History {
	return &History{limit: limit}
}

// OnChange sets a callback run after every change to the stacks.
func (h *History) OnChange(callback func()) {
	h.mu.Lock()
	h.onChange = callback
	h.mu.Unlock()
}

// Push records an action that has already been applied. Any redo entries
// are discarded.
func (h *History) Push(a Action) {
	h.mu.Lock()
	h.done = append(h.done, a)
	if h.limit > 0 && len(h.done) > h.limit {
		h.done = h.done[len(h.done)-h.limit:]
	}
	h.undone = nil
	h.mu.Unlock()
	h.changed()
}

// Do applies an action via Redo and records it.
func (h *History) Do(a Action) {
	a.Redo()
	h.Push(a)
}

// Undo reverts the most recent action. It reports false if there was none.
func (h *History) Undo() bool {
	h.mu.Lock()
	if len(h.done) == 0 {
		h.mu.Unlock()
		return false
	}
	a := h.done[len(h.done)-1]
	h.done = h.done[:len(h.done)-1]
	h.undone = append(h.undone, a)
	h.mu.Unlock()

	a.Undo()
	h.changed()
	return true
}

// Redo reapplies the most recently undone action. It reports false if there
// was none.
func (h *History) Redo() bool {
	h.mu.Lock()
	if len(h.undone) == 0 {
		h.mu.Unlock()
		return false
	}
	a := h.undone[len(h.undone)-1]
	h.undone = h.undone[:len(h.undone)-1]
	h.done = append(h.done, a)
	h.mu.Unlock()

	a.Redo()
	h.changed()
	return true
}

// CanUndo reports whether Undo would do anything.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.done) > 0
}

// CanRedo reports whether Redo would do anything.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undone) > 0
}

// UndoText describes the action Undo would revert, e.g. "Undo changing the
// active image". It is empty when there is nothing to undo.
func (h *History) UndoText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.done) == 0 {
		return ""
	}
	return "Undo " + h.done[len(h.done)-1].Description()
}

// RedoText describes the action Redo would reapply.
func (h *History) RedoText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undone) == 0 {
		return ""
	}
	return "Redo " + h.undone[len(h.undone)-1].Description()
}

// Clear drops all recorded actions.
func (h *History) Clear() {
	h.mu.Lock()
	h.done, h.undone = nil, nil
	h.mu.Unlock()
	h.changed()
}

func (h *History) changed() {
	h.mu.Lock()
	cb := h.onChange
	h.mu.Unlock()
	if cb != nil {
		cb()
	}
}
