// Package session defines the stream session collaborator: a live video
// source, an input sink, and a finite ordered sequence of lifecycle
// events. The viewer owns exactly one session at a time and never
// restarts a terminated one by itself.
package session

import (
	"context"
	"image"
)

type EventType uint8

const (
	AppMetadata EventType = iota + 1
	StageStarting
	StageComplete
	StageFailed
	ConnectionComplete
	VideoTrackAvailable
	ConnectionTerminated
	SessionError
	DebugLine
	KeyboardToggle
)

func (t EventType) String() string {
	switch t {
	case AppMetadata:
		return "AppMetadata"
	case StageStarting:
		return "StageStarting"
	case StageComplete:
		return "StageComplete"
	case StageFailed:
		return "StageFailed"
	case ConnectionComplete:
		return "ConnectionComplete"
	case VideoTrackAvailable:
		return "VideoTrackAvailable"
	case ConnectionTerminated:
		return "ConnectionTerminated"
	case SessionError:
		return "SessionError"
	case DebugLine:
		return "DebugLine"
	case KeyboardToggle:
		return "KeyboardToggle"
	default:
		return "Unknown"
	}
}

// Event is a tagged union; only the fields of the matching variant are set.
type Event struct {
	T         EventType
	App       AppInfo
	Stage     string
	ErrorCode int
	Caps      Capabilities
	Track     Track
	Message   string
	Visible   bool // screen keyboard visibility requested by the remote side
}

type AppInfo struct {
	Id    string
	Title string
}

// Capabilities is the negotiated remote feature set published once the
// connection completes, so the UI can disable unsupported controls
// instead of letting them fail silently.
type Capabilities struct {
	Resolution    Resolution
	Touch         bool
	Pen           bool
	Gamepads      int
	HighResScroll bool
}

// Resolution is the true pixel size of the remote picture.
type Resolution struct{ W, H int }

func (r Resolution) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Resolution) Aspect() float64 {
	if r.H == 0 {
		return 0
	}
	return float64(r.W) / float64(r.H)
}

// Sink is the outbound channel for normalized input commands.
// Ordered and reliable; delivery guarantees are the transport's concern.
type Sink interface {
	Send(data []byte) error
}

// Track is a live source of decoded video frames.
type Track interface {
	Id() string
	// Read blocks until the next frame or ctx cancellation. Every
	// returned frame must be released by the caller exactly once.
	Read(ctx context.Context) (*Frame, error)
}

// Frame is one decoded picture. Frames are a release-tracked resource:
// holding one without releasing it is a leak, not a soft error.
type Frame struct {
	image.RGBA
	release func()
}

func NewFrame(img image.RGBA, release func()) *Frame {
	return &Frame{RGBA: img, release: release}
}

func (f *Frame) Size() (w, h int) { return f.Rect.Dx(), f.Rect.Dy() }

// Release returns the frame storage to its owner. Idempotent.
func (f *Frame) Release() {
	if f.release != nil {
		f.release()
		f.release = nil
	}
}

// Session is one active stream.
type Session interface {
	// Events yields lifecycle events in order; the channel closes when
	// the session is over.
	Events() <-chan Event
	// Input is the sink for outbound input commands.
	Input() Sink
	Close() error
}
