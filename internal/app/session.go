// Package app holds the application session: the set of opened fundus
// images, background loading and segmentation, and lifecycle helpers.
package app

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"fundus-viewer/internal/fundus"
)

// EventType identifies session events.
type EventType int

const (
	EventImageOpened       EventType = iota // data: *fundus.Image
	EventImageClosed                        // data: *fundus.Image
	EventLoadFailed                         // data: *LoadError
	EventSegmentationReady                  // data: *fundus.Image
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Segmenter produces a segmentation layer for a base image.
type Segmenter func(base image.Image) (image.Image, error)

// ErrNoSegmenter is returned by Segment when no segmenter is configured.
var ErrNoSegmenter = errors.New("segmentation not available")

// LoadError reports a file of an opened image that could not be decoded.
// When Base is set the image itself failed and has been closed.
type LoadError struct {
	Image *fundus.Image
	Path  string
	Base  bool
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", filepath.Base(e.Path), e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Session tracks the images opened in the viewer.
type Session struct {
	mu        sync.RWMutex
	images    []*fundus.Image
	segmenter Segmenter
	log       zerolog.Logger

	listeners map[EventType][]EventListener
}

// NewSession creates an empty session.
func NewSession(logger zerolog.Logger) *Session {
	return &Session{
		log:       logger.With().Str("component", "session").Logger(),
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetSegmenter installs the segmentation backend.
func (s *Session) SetSegmenter(fn Segmenter) {
	s.mu.Lock()
	s.segmenter = fn
	s.mu.Unlock()
}

// CanSegment reports whether a segmenter is configured.
func (s *Session) CanSegment() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.segmenter != nil
}

// Images returns the opened images in the order they were added.
func (s *Session) Images() []*fundus.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*fundus.Image, len(s.images))
	copy(out, s.images)
	return out
}

// Find returns the opened image with the given name.
func (s *Session) Find(name string) *fundus.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, img := range s.images {
		if img.Name == name {
			return img
		}
	}
	return nil
}

// Add registers an image with the session.
func (s *Session) Add(img *fundus.Image) {
	s.mu.Lock()
	s.images = append(s.images, img)
	s.mu.Unlock()
	s.opened(img)
}

func (s *Session) opened(img *fundus.Image) {
	s.log.Info().Str("image", img.Name).Msg("image opened")
	s.Emit(EventImageOpened, img)
}

// Has reports whether img is open in the session.
func (s *Session) Has(img *fundus.Image) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, open := range s.images {
		if open == img {
			return true
		}
	}
	return false
}

// Close removes an image from the session. It reports whether the image
// was open.
func (s *Session) Close(img *fundus.Image) bool {
	s.mu.Lock()
	found := false
	for i, open := range s.images {
		if open == img {
			s.images = append(s.images[:i], s.images[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.Emit(EventImageClosed, img)
	}
	return found
}

// Open starts loading the image at path and, if segPath is set, its
// segmentation. The returned image is registered immediately and becomes
// loaded once decoding finishes. Failures are reported as EventLoadFailed;
// an image whose base cannot be decoded is closed first.
func (s *Session) Open(path, segPath string) *fundus.Image {
	// Registered under the lock so a fast failure cannot close it first.
	s.mu.Lock()
	img := fundus.LoadAsync(path, s.baseFailed)
	s.images = append(s.images, img)
	s.mu.Unlock()
	s.opened(img)

	if segPath != "" {
		go func() {
			seg, err := fundus.Decode(segPath)
			if err != nil {
				s.loadFailed(&LoadError{Image: img, Path: segPath, Err: fmt.Errorf("segmentation: %w", err)})
				return
			}
			img.SetSegmentation(seg)
		}()
	}
	return img
}

func (s *Session) baseFailed(img *fundus.Image, err error) {
	s.Close(img)
	s.loadFailed(&LoadError{Image: img, Path: img.Path, Base: true, Err: err})
}

func (s *Session) loadFailed(err *LoadError) {
	s.log.Error().Err(err).Str("image", err.Image.Name).Bool("closed", err.Base).Msg("load failed")
	s.Emit(EventLoadFailed, err)
}

// Segment generates and attaches a segmentation layer for img. It blocks
// until the segmenter finishes.
func (s *Session) Segment(img *fundus.Image) error {
	s.mu.RLock()
	segmenter := s.segmenter
	s.mu.RUnlock()

	if segmenter == nil {
		return ErrNoSegmenter
	}
	base := img.Base()
	if base == nil {
		return fmt.Errorf("%s: %w", img.Name, fundus.ErrNotLoaded)
	}

	seg, err := segmenter(base)
	if err != nil {
		return fmt.Errorf("segment %s: %w", img.Name, err)
	}
	img.SetSegmentation(seg)
	s.log.Info().Str("image", img.Name).Msg("segmentation ready")
	s.Emit(EventSegmentationReady, img)
	return nil
}
