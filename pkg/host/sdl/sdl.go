// Package sdl is the SDL2 presentation platform: window, capture APIs,
// input translation and the refresh clock. Everything above it talks to
// the host.Host contract only.
package sdl

import (
	"context"
	"sync"
	"time"

	"github.com/cloudview/cloudview/pkg/host"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	pollInterval = time.Second / 60
	// wheel events arrive in notches; the pipeline works in step units
	wheelNotch = 120
)

type Host struct {
	window *sdl.Window
	log    *logger.Logger

	events chan host.Event
	ticks  chan time.Time

	mu   sync.Mutex
	pads map[byte]*sdl.GameController

	// capture state as of the last poll, for change detection
	wasFullscreen bool
	wasLocked     bool
	kbGrabbed     bool
	quit          bool
}

func NewHost(title string, w, h int, log *logger.Logger) (*Host, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_GAMECONTROLLER); err != nil {
		return nil, err
	}
	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(w), int32(h),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_ALLOW_HIGHDPI)
	if err != nil {
		sdl.Quit()
		return nil, err
	}
	return &Host{
		window: window,
		log:    log,
		events: make(chan host.Event, 64),
		ticks:  make(chan time.Time, 1),
		pads:   make(map[byte]*sdl.GameController),
	}, nil
}

func (h *Host) Caps() host.Caps {
	return host.Caps{
		FrameProcessing: true,
		Fullscreen:      true,
		PointerLock:     true,
		KeyboardLock:    true,
		// SDL's relative mode has no acceleration toggle
		UnadjustedMovement: false,
		Touch:              true,
		Gamepads:           true,
	}
}

func (h *Host) Bounds() host.Rect {
	w, ht := h.window.GetSize()
	return host.Rect{W: float64(w), H: float64(ht)}
}

func (h *Host) IsFullscreen() bool {
	return h.window.GetFlags()&sdl.WINDOW_FULLSCREEN_DESKTOP != 0
}

func (h *Host) HasPointerLock() bool { return sdl.GetRelativeMouseMode() }

func (h *Host) RequestFullscreen() error {
	return h.window.SetFullscreen(sdl.WINDOW_FULLSCREEN_DESKTOP)
}

func (h *Host) ExitFullscreen() error { return h.window.SetFullscreen(0) }

func (h *Host) RequestPointerLock(unadjusted bool) error {
	if unadjusted {
		return host.ErrOptionUnsupported
	}
	return sdl.SetRelativeMouseMode(true)
}

func (h *Host) ExitPointerLock() error { return sdl.SetRelativeMouseMode(false) }

func (h *Host) LockKeyboard() error {
	if h.kbGrabbed {
		return nil
	}
	sdl.SetHint(sdl.HINT_GRAB_KEYBOARD, "1")
	h.window.SetGrab(true)
	h.kbGrabbed = true
	return nil
}

func (h *Host) UnlockKeyboard() error {
	if !h.kbGrabbed {
		return nil
	}
	h.window.SetGrab(false)
	sdl.SetHint(sdl.HINT_GRAB_KEYBOARD, "0")
	h.kbGrabbed = false
	return nil
}

func (h *Host) Events() <-chan host.Event { return h.events }
func (h *Host) Ticks() <-chan time.Time   { return h.ticks }

func (h *Host) Gamepad(idx byte) (host.GamepadState, bool) {
	h.mu.Lock()
	pad, ok := h.pads[idx]
	h.mu.Unlock()
	if !ok || !pad.Attached() {
		return host.GamepadState{}, false
	}
	var state host.GamepadState
	for bit := 0; bit < host.PadButtons; bit++ {
		if pad.Button(sdl.GameControllerButton(bit)) == sdl.PRESSED {
			state.Buttons |= 1 << bit
		}
	}
	for i := 0; i < len(state.Axes); i++ {
		state.Axes[i] = pad.Axis(sdl.GameControllerAxis(i))
	}
	state.Triggers[0] = pad.Axis(sdl.CONTROLLER_AXIS_TRIGGERLEFT)
	state.Triggers[1] = pad.Axis(sdl.CONTROLLER_AXIS_TRIGGERRIGHT)
	return state, true
}

// Run polls SDL on the calling goroutine until ctx ends. SDL wants its
// event loop on the thread that created the window, so the caller is
// expected to be the (wrapped) main one.
func (h *Host) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case now := <-ticker.C:
			for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
				h.translate(ev)
			}
			if h.quit {
				h.shutdown()
				return nil
			}
			h.detectCaptureFlips()
			select {
			case h.ticks <- now:
			default: // consumer mid-paint, skip the tick
			}
		}
	}
}

// detectCaptureFlips synthesizes change notifications: SDL has no
// dedicated events for fullscreen or relative-mode transitions, so the
// loop diffs live state against the previous poll.
func (h *Host) detectCaptureFlips() {
	if fs := h.IsFullscreen(); fs != h.wasFullscreen {
		h.wasFullscreen = fs
		h.emit(host.Event{T: host.FullscreenChanged})
	}
	if locked := h.HasPointerLock(); locked != h.wasLocked {
		h.wasLocked = locked
		h.emit(host.Event{T: host.PointerLockChanged})
	}
}

func (h *Host) translate(ev sdl.Event) {
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		h.quit = true
	case *sdl.KeyboardEvent:
		if e.Repeat != 0 {
			return
		}
		t := host.KeyDown
		if e.Type == sdl.KEYUP {
			t = host.KeyUp
		}
		h.emit(host.Event{T: t, Key: host.Key{
			Code: uint32(e.Keysym.Scancode),
			Mod:  translateMod(e.Keysym.Mod),
		}})
	case *sdl.MouseMotionEvent:
		h.emit(host.Event{T: host.MouseMove, Mouse: host.Mouse{
			X: float64(e.X), Y: float64(e.Y),
			DX: float64(e.XRel), DY: float64(e.YRel),
		}})
	case *sdl.MouseButtonEvent:
		h.emit(host.Event{T: host.MouseButton, Mouse: host.Mouse{
			X: float64(e.X), Y: float64(e.Y),
			Button:  translateButton(e.Button),
			Pressed: e.State == sdl.PRESSED,
		}})
	case *sdl.MouseWheelEvent:
		h.emit(host.Event{T: host.MouseWheel, Wheel: host.Wheel{
			DX: float64(e.X) * wheelNotch,
			DY: float64(e.Y) * wheelNotch,
		}})
	case *sdl.TextInputEvent:
		h.emit(host.Event{T: host.TextInput, Text: e.GetText()})
	case *sdl.TouchFingerEvent:
		h.translateTouch(e)
	case *sdl.ControllerDeviceEvent:
		h.translatePad(e)
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_FOCUS_LOST:
			h.emit(host.Event{T: host.FocusLost})
		case sdl.WINDOWEVENT_SIZE_CHANGED:
			h.emit(host.Event{T: host.Resized})
		}
	}
}

// translateTouch rescales SDL's normalized finger coordinates into
// window pixels, the coordinate space of every other pointer event.
func (h *Host) translateTouch(e *sdl.TouchFingerEvent) {
	var t host.EventType
	switch e.Type {
	case sdl.FINGERDOWN:
		t = host.TouchStart
	case sdl.FINGERMOTION:
		t = host.TouchMove
	case sdl.FINGERUP:
		t = host.TouchEnd
	default:
		t = host.TouchCancel
	}
	w, ht := h.window.GetSize()
	h.emit(host.Event{T: t, Touch: host.Touch{
		Id: byte(e.FingerID),
		X:  float64(e.X) * float64(w),
		Y:  float64(e.Y) * float64(ht),
	}})
}

func (h *Host) translatePad(e *sdl.ControllerDeviceEvent) {
	switch e.Type {
	case sdl.CONTROLLERDEVICEADDED:
		pad := sdl.GameControllerOpen(int(e.Which))
		if pad == nil {
			h.log.Error().Msgf("gamepad #%d open failed: %v", e.Which, sdl.GetError())
			return
		}
		idx := byte(e.Which)
		h.mu.Lock()
		h.pads[idx] = pad
		h.mu.Unlock()
		h.emit(host.Event{T: host.GamepadConnected, Gamepad: idx})
	case sdl.CONTROLLERDEVICEREMOVED:
		idx := byte(e.Which)
		h.mu.Lock()
		pad, ok := h.pads[idx]
		delete(h.pads, idx)
		h.mu.Unlock()
		if ok {
			pad.Close()
			h.emit(host.Event{T: host.GamepadDisconnected, Gamepad: idx})
		}
	}
}

func (h *Host) emit(ev host.Event) {
	select {
	case h.events <- ev:
	default:
		h.log.Warn().Msgf("event queue overflow, dropped %v", ev.T)
	}
}

func (h *Host) shutdown() {
	h.mu.Lock()
	for _, pad := range h.pads {
		pad.Close()
	}
	h.pads = map[byte]*sdl.GameController{}
	h.mu.Unlock()
	_ = h.window.Destroy()
	sdl.Quit()
}

func translateMod(mod uint16) (out uint16) {
	if mod&uint16(sdl.KMOD_CTRL) != 0 {
		out |= 1 << 0
	}
	if mod&uint16(sdl.KMOD_SHIFT) != 0 {
		out |= 1 << 1
	}
	if mod&uint16(sdl.KMOD_ALT) != 0 {
		out |= 1 << 2
	}
	if mod&uint16(sdl.KMOD_GUI) != 0 {
		out |= 1 << 3
	}
	return out
}

// translateButton maps SDL's 1-based buttons onto the usual 0-based
// left/middle/right order of the wire format.
func translateButton(b uint8) byte {
	switch b {
	case sdl.BUTTON_LEFT:
		return 0
	case sdl.BUTTON_MIDDLE:
		return 1
	case sdl.BUTTON_RIGHT:
		return 2
	default:
		return byte(b - 1)
	}
}
