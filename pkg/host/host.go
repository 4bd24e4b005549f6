// Package host abstracts the presentation platform: window geometry,
// capture APIs (fullscreen, pointer lock, keyboard lock), the display
// refresh clock, and raw input events. Components receive a capability
// probe computed once at startup instead of poking at platform globals,
// so everything above this package is testable without a real window
// system.
package host

import (
	"errors"
	"time"
)

// Caps is the result of probing the platform once at startup.
type Caps struct {
	FrameProcessing    bool // frame-level track processing for the pump renderer
	Fullscreen         bool
	PointerLock        bool
	KeyboardLock       bool
	UnadjustedMovement bool // enhanced-precision pointer lock option
	Touch              bool
	Gamepads           bool
}

var (
	// ErrUnsupported is returned when the requested capture capability
	// is absent from the platform.
	ErrUnsupported = errors.New("capability unsupported")
	// ErrOptionUnsupported is returned when pointer lock itself works
	// but the unadjusted-movement option was rejected.
	ErrOptionUnsupported = errors.New("capture option unsupported")
	// ErrRejected is returned when the platform denies a capture
	// request, e.g. without a user gesture.
	ErrRejected = errors.New("capture request rejected")
)

type (
	// Rect is a rectangle in page coordinates.
	Rect struct{ X, Y, W, H float64 }
	// Size is a pixel dimension pair.
	Size struct{ W, H int }
)

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

type EventType uint8

const (
	KeyDown EventType = iota + 1
	KeyUp
	MouseMove
	MouseButton
	MouseWheel
	TouchStart
	TouchMove
	TouchEnd
	TouchCancel
	GamepadConnected
	GamepadDisconnected
	FullscreenChanged
	PointerLockChanged
	FocusLost
	Resized
	TextInput
)

// Event is a tagged union of everything the platform reports. Only the
// fields of the matching variant are meaningful.
type Event struct {
	T       EventType
	Key     Key
	Mouse   Mouse
	Wheel   Wheel
	Touch   Touch
	Gamepad byte   // pad index for connect/disconnect
	Text    string // composed text, UTF-8
}

type (
	Key struct {
		Code   uint32 // scan code
		Mod    uint16
		Repeat bool
	}
	Mouse struct {
		X, Y    float64 // page coordinates
		DX, DY  float64 // relative movement
		Button  byte
		Pressed bool
	}
	Wheel struct {
		DX, DY float64 // raw sub-step deltas
	}
	Touch struct {
		Id   byte
		X, Y float64 // page coordinates
	}
)

// GamepadState is a poll snapshot of one pad:
// a button bitmask, two sticks and two analog triggers.
type GamepadState struct {
	Buttons  uint32
	Axes     [4]int16
	Triggers [2]int16
}

// Standard button bit indices of the snapshot bitmask.
const (
	PadA = iota
	PadB
	PadX
	PadY
	PadBack
	PadGuide
	PadStart
	PadLeftStick
	PadRightStick
	PadLeftShoulder
	PadRightShoulder
	PadUp
	PadDown
	PadLeft
	PadRight
	PadButtons // count
)

// Host is the platform handle shared by all components.
type Host interface {
	Caps() Caps

	// Bounds reports the presentation surface placement in page
	// coordinates, bars included.
	Bounds() Rect

	IsFullscreen() bool
	HasPointerLock() bool

	// Capture requests are acknowledged asynchronously: a returned nil
	// only means the request was accepted, the state change arrives as
	// a FullscreenChanged/PointerLockChanged event.
	RequestFullscreen() error
	ExitFullscreen() error
	RequestPointerLock(unadjusted bool) error
	ExitPointerLock() error
	LockKeyboard() error
	UnlockKeyboard() error

	// Events delivers input and capture-state notifications in arrival order.
	Events() <-chan Event
	// Ticks is the display refresh signal.
	Ticks() <-chan time.Time
	// Gamepad polls the current snapshot of a connected pad.
	Gamepad(idx byte) (GamepadState, bool)
}
