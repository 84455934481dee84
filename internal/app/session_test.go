package app

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundus-viewer/internal/fundus"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

type eventLog struct {
	mu     sync.Mutex
	events []EventType
	data   []interface{}
}

func (l *eventLog) listen(s *Session, events ...EventType) {
	for _, e := range events {
		e := e
		s.On(e, func(data interface{}) {
			l.mu.Lock()
			l.events = append(l.events, e)
			l.data = append(l.data, data)
			l.mu.Unlock()
		})
	}
}

func (l *eventLog) snapshot() ([]EventType, []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]EventType(nil), l.events...), append([]interface{}(nil), l.data...)
}

func TestAddCloseAndFind(t *testing.T) {
	s := NewSession(zerolog.Nop())
	log := &eventLog{}
	log.listen(s, EventImageOpened, EventImageClosed)

	left := fundus.New("left.png")
	right := fundus.New("right.png")
	s.Add(left)
	s.Add(right)

	assert.Equal(t, []*fundus.Image{left, right}, s.Images())
	assert.Same(t, right, s.Find("right.png"))
	assert.Nil(t, s.Find("missing.png"))

	assert.True(t, s.Close(left))
	assert.False(t, s.Close(left))
	assert.Equal(t, []*fundus.Image{right}, s.Images())

	events, data := log.snapshot()
	assert.Equal(t, []EventType{EventImageOpened, EventImageOpened, EventImageClosed}, events)
	assert.Same(t, left, data[2])
}

func TestImagesReturnsCopy(t *testing.T) {
	s := NewSession(zerolog.Nop())
	s.Add(fundus.New("a.png"))

	images := s.Images()
	images[0] = nil
	assert.NotNil(t, s.Images()[0])
}

func TestOpenLoadsInBackground(t *testing.T) {
	dir := t.TempDir()
	base := writePNG(t, dir, "eye.png", 12, 8)
	seg := writePNG(t, dir, "eye-seg.png", 6, 4)

	s := NewSession(zerolog.Nop())
	img := s.Open(base, seg)

	require.NotNil(t, img)
	assert.Equal(t, "eye.png", img.Name)
	assert.Same(t, img, s.Find("eye.png"))
	assert.Eventually(t, func() bool {
		return img.Loaded() && img.Segmentation() != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 12.0, img.Size().Width)
}

func TestOpenReportsLoadFailure(t *testing.T) {
	s := NewSession(zerolog.Nop())
	log := &eventLog{}
	log.listen(s, EventLoadFailed)

	closed := &eventLog{}
	closed.listen(s, EventImageClosed)

	missing := filepath.Join(t.TempDir(), "missing.png")
	img := s.Open(missing, "")
	assert.NotNil(t, img)

	assert.Eventually(t, func() bool {
		events, _ := log.snapshot()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, img.Loaded())
	assert.Empty(t, s.Images())
	assert.False(t, s.Has(img))

	_, data := closed.snapshot()
	assert.Equal(t, []interface{}{img}, data, "closed before the failure is reported")

	_, data = log.snapshot()
	var loadErr *LoadError
	require.ErrorAs(t, data[0].(error), &loadErr)
	assert.Same(t, img, loadErr.Image)
	assert.Equal(t, missing, loadErr.Path)
	assert.True(t, loadErr.Base)
}

func TestOpenReportsUnsupportedSegmentation(t *testing.T) {
	dir := t.TempDir()
	base := writePNG(t, dir, "eye.png", 4, 4)

	s := NewSession(zerolog.Nop())
	log := &eventLog{}
	log.listen(s, EventLoadFailed)

	s.Open(base, filepath.Join(dir, "eye.bmp"))

	assert.Eventually(t, func() bool {
		_, data := log.snapshot()
		return len(data) == 1 && errors.Is(data[0].(error), fundus.ErrUnsupportedFormat)
	}, 2*time.Second, 10*time.Millisecond)

	_, data := log.snapshot()
	assert.False(t, data[0].(*LoadError).Base)
	assert.Len(t, s.Images(), 1, "a bad segmentation keeps the image open")
}

func TestSegment(t *testing.T) {
	s := NewSession(zerolog.Nop())
	log := &eventLog{}
	log.listen(s, EventSegmentationReady)

	img := fundus.New("eye.png")
	img.SetBase(image.NewRGBA(image.Rect(0, 0, 8, 8)))

	assert.ErrorIs(t, s.Segment(img), ErrNoSegmenter)
	assert.False(t, s.CanSegment())

	var got image.Image
	s.SetSegmenter(func(base image.Image) (image.Image, error) {
		got = base
		return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
	})
	assert.True(t, s.CanSegment())

	require.NoError(t, s.Segment(img))
	assert.Same(t, img.Base(), got)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Segmentation().Bounds())

	events, data := log.snapshot()
	assert.Equal(t, []EventType{EventSegmentationReady}, events)
	assert.Same(t, img, data[0])
}

func TestSegmentErrors(t *testing.T) {
	s := NewSession(zerolog.Nop())
	boom := errors.New("boom")
	s.SetSegmenter(func(image.Image) (image.Image, error) { return nil, boom })

	assert.ErrorIs(t, s.Segment(fundus.New("pending.png")), fundus.ErrNotLoaded)

	img := fundus.New("eye.png")
	img.SetBase(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	assert.ErrorIs(t, s.Segment(img), boom)
	assert.Nil(t, img.Segmentation())
}
