// Package gesture recognises touch gestures (touch, drag, pinch, hold) from
// a stream of raw touch points.
package gesture

import (
	"time"

	"fundus-viewer/pkg/geometry"
)

// Defaults match common touch toolkits.
const (
	DefaultHoldDuration  = 500 * time.Millisecond
	DefaultHoldTolerance = 10.0
)

// Kind identifies a recognised gesture.
type Kind int

const (
	KindTouch     Kind = iota // first finger went down
	KindDrag                  // fingers moved; Delta is cumulative since touch
	KindTransform             // two fingers moved; Scale is relative to touch
	KindHold                  // single finger held still
	KindRelease               // last finger lifted
)

func (k Kind) String() string {
	switch k {
	case KindTouch:
		return "touch"
	case KindDrag:
		return "drag"
	case KindTransform:
		return "transform"
	case KindHold:
		return "hold"
	case KindRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Gesture is one recognised event.
type Gesture struct {
	Kind   Kind
	Center geometry.Point2D // centroid of active touches
	Delta  geometry.Point2D // cumulative movement of the centroid (drag)
	Scale  float64          // finger distance relative to gesture start (transform)
}

// Recognizer turns touch points into gestures. It is not safe for
// concurrent use.
type Recognizer struct {
	HoldDuration  time.Duration
	HoldTolerance float64

	points  map[int]geometry.Point2D
	order   []int // touch ids in arrival order
	started time.Time
	origin  geometry.Point2D // centroid at which Delta is zero
	delta   geometry.Point2D
	spread  float64 // finger distance when the pinch began
	moved   bool
	held    bool
}

// NewRecognizer creates a Recognizer with default thresholds.
func NewRecognizer() *Recognizer {
	return &Recognizer{
		HoldDuration:  DefaultHoldDuration,
		HoldTolerance: DefaultHoldTolerance,
		points:        make(map[int]geometry.Point2D),
	}
}

// Active returns the number of fingers currently down.
func (r *Recognizer) Active() int {
	return len(r.order)
}

// Down registers a new touch point.
func (r *Recognizer) Down(id int, pos geometry.Point2D, at time.Time) []Gesture {
	if _, ok := r.points[id]; ok {
		return r.Move(id, pos, at)
	}
	first := len(r.order) == 0
	r.points[id] = pos
	r.order = append(r.order, id)

	if first {
		r.started = at
		r.origin = pos
		r.delta = geometry.Point2D{}
		r.spread = 0
		r.moved = false
		r.held = false
		return []Gesture{{Kind: KindTouch, Center: pos, Scale: 1}}
	}

	r.rebase()
	if len(r.order) == 2 {
		r.spread = r.distance()
	}
	return nil
}

// Move updates an existing touch point.
func (r *Recognizer) Move(id int, pos geometry.Point2D, at time.Time) []Gesture {
	if _, ok := r.points[id]; !ok {
		return nil
	}
	r.points[id] = pos

	var out []Gesture
	if g, ok := r.checkHold(at); ok {
		out = append(out, g)
	}

	center := r.center()
	if len(r.order) >= 2 && r.spread > 0 {
		out = append(out, Gesture{Kind: KindTransform, Center: center, Delta: r.delta, Scale: r.distance() / r.spread})
		return out
	}

	r.delta = center.Sub(r.origin)
	if r.delta.Distance(geometry.Point2D{}) > r.HoldTolerance {
		r.moved = true
	}
	out = append(out, Gesture{Kind: KindDrag, Center: center, Delta: r.delta, Scale: 1})
	return out
}

// Up removes a touch point.
func (r *Recognizer) Up(id int, at time.Time) []Gesture {
	pos, ok := r.points[id]
	if !ok {
		return nil
	}
	delete(r.points, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if len(r.order) == 0 {
		return []Gesture{{Kind: KindRelease, Center: pos, Delta: r.delta, Scale: 1}}
	}
	r.rebase()
	if len(r.order) < 2 {
		r.spread = 0
	}
	return nil
}

// Poll reports a hold once a single finger has stayed within the tolerance
// for HoldDuration. Callers without a move stream call it from a timer.
func (r *Recognizer) Poll(at time.Time) []Gesture {
	if g, ok := r.checkHold(at); ok {
		return []Gesture{g}
	}
	return nil
}

func (r *Recognizer) checkHold(at time.Time) (Gesture, bool) {
	if r.held || r.moved || len(r.order) != 1 {
		return Gesture{}, false
	}
	if at.Sub(r.started) < r.HoldDuration {
		return Gesture{}, false
	}
	r.held = true
	return Gesture{Kind: KindHold, Center: r.center(), Delta: r.delta, Scale: 1}, true
}

// rebase keeps Delta continuous when the set of fingers changes.
func (r *Recognizer) rebase() {
	r.origin = r.center().Sub(r.delta)
}

func (r *Recognizer) center() geometry.Point2D {
	var c geometry.Point2D
	for _, id := range r.order {
		c = c.Add(r.points[id])
	}
	return c.Scale(1 / float64(len(r.order)))
}

func (r *Recognizer) distance() float64 {
	return r.points[r.order[0]].Distance(r.points[r.order[1]])
}
