package fundus

// Event identifies what kind of change an Image went through. Events carry
// no payload; listeners re-read the state they care about.
type Event int

const (
	EventBaseLoaded         Event = iota // base pixel buffer became available
	EventSegmentationLoaded              // segmentation buffer became available
	EventPositionChanged                 // pan offset changed
	EventZoomChanged                     // zoom level changed
	EventDisplayChanged                  // layer visibility changed
	EventDataChanged                     // processing inputs changed (window/level, grayscale)
)

func (e Event) String() string {
	switch e {
	case EventBaseLoaded:
		return "base-loaded"
	case EventSegmentationLoaded:
		return "segmentation-loaded"
	case EventPositionChanged:
		return "position-changed"
	case EventZoomChanged:
		return "zoom-changed"
	case EventDisplayChanged:
		return "display-changed"
	case EventDataChanged:
		return "data-changed"
	default:
		return "unknown"
	}
}

// Listener receives change notifications from an Image.
type Listener interface {
	ImageChanged(img *Image, e Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(img *Image, e Event)

// ImageChanged calls f(img, e).
func (f ListenerFunc) ImageChanged(img *Image, e Event) {
	f(img, e)
}
