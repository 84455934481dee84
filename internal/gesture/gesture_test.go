package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundus-viewer/pkg/geometry"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func pt(x, y float64) geometry.Point2D { return geometry.NewPoint2D(x, y) }

func kinds(gs []Gesture) []Kind {
	out := make([]Kind, len(gs))
	for i, g := range gs {
		out[i] = g.Kind
	}
	return out
}

func TestSingleFingerDrag(t *testing.T) {
	r := NewRecognizer()

	gs := r.Down(1, pt(100, 100), t0)
	require.Equal(t, []Kind{KindTouch}, kinds(gs))

	gs = r.Move(1, pt(110, 95), t0.Add(10*time.Millisecond))
	require.Equal(t, []Kind{KindDrag}, kinds(gs))
	assert.Equal(t, pt(10, -5), gs[0].Delta)

	gs = r.Move(1, pt(130, 90), t0.Add(20*time.Millisecond))
	assert.Equal(t, pt(30, -10), gs[0].Delta)

	gs = r.Up(1, t0.Add(30*time.Millisecond))
	require.Equal(t, []Kind{KindRelease}, kinds(gs))
	assert.Equal(t, 0, r.Active())
}

func TestPinchReportsScaleRelativeToStart(t *testing.T) {
	r := NewRecognizer()
	r.Down(1, pt(100, 100), t0)
	assert.Nil(t, r.Down(2, pt(200, 100), t0))

	gs := r.Move(2, pt(300, 100), t0.Add(time.Millisecond))
	require.Equal(t, []Kind{KindTransform}, kinds(gs))
	assert.InDelta(t, 2.0, gs[0].Scale, 1e-9)

	gs = r.Move(2, pt(150, 100), t0.Add(2*time.Millisecond))
	assert.InDelta(t, 0.5, gs[0].Scale, 1e-9)
}

func TestLiftingSecondFingerKeepsDragContinuous(t *testing.T) {
	r := NewRecognizer()
	r.Down(1, pt(0, 0), t0)
	r.Move(1, pt(20, 0), t0.Add(time.Millisecond))
	r.Down(2, pt(100, 0), t0.Add(2*time.Millisecond))
	r.Up(2, t0.Add(3*time.Millisecond))

	gs := r.Move(1, pt(25, 0), t0.Add(4*time.Millisecond))
	require.Equal(t, []Kind{KindDrag}, kinds(gs))
	assert.Equal(t, pt(25, 0), gs[0].Delta)
}

func TestHoldFiresOnceWhenStill(t *testing.T) {
	r := NewRecognizer()
	r.Down(1, pt(50, 50), t0)

	assert.Nil(t, r.Poll(t0.Add(100*time.Millisecond)))

	gs := r.Poll(t0.Add(600 * time.Millisecond))
	require.Equal(t, []Kind{KindHold}, kinds(gs))
	assert.Equal(t, pt(50, 50), gs[0].Center)

	assert.Nil(t, r.Poll(t0.Add(900*time.Millisecond)))

	gs = r.Move(1, pt(52, 51), t0.Add(time.Second))
	assert.Equal(t, []Kind{KindDrag}, kinds(gs))
}

func TestHoldDetectedOnLateMove(t *testing.T) {
	r := NewRecognizer()
	r.Down(1, pt(50, 50), t0)

	gs := r.Move(1, pt(51, 50), t0.Add(700*time.Millisecond))
	assert.Equal(t, []Kind{KindHold, KindDrag}, kinds(gs))
}

func TestNoHoldAfterMovement(t *testing.T) {
	r := NewRecognizer()
	r.Down(1, pt(0, 0), t0)
	r.Move(1, pt(40, 0), t0.Add(10*time.Millisecond))

	assert.Nil(t, r.Poll(t0.Add(time.Second)))
}

func TestUnknownIDsIgnored(t *testing.T) {
	r := NewRecognizer()
	assert.Nil(t, r.Move(9, pt(1, 1), t0))
	assert.Nil(t, r.Up(9, t0))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "transform", KindTransform.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
