package immersive

import (
	"errors"
	"testing"
	"time"

	"github.com/cloudview/cloudview/pkg/host"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/viewer/input"
)

// fakeHost acknowledges capture requests synchronously by flipping its
// own state; the test then feeds the matching change event by hand to
// mimic the platform's async notification.
type fakeHost struct {
	caps host.Caps

	fullscreen  bool
	pointerLock bool
	kbLocked    bool

	fsRequests     int
	plRequests     []bool // unadjusted flag per request
	rejectUnadjust bool
	rejectLock     error
}

func (f *fakeHost) Caps() host.Caps      { return f.caps }
func (f *fakeHost) Bounds() host.Rect    { return host.Rect{W: 800, H: 600} }
func (f *fakeHost) IsFullscreen() bool   { return f.fullscreen }
func (f *fakeHost) HasPointerLock() bool { return f.pointerLock }

func (f *fakeHost) RequestFullscreen() error {
	f.fsRequests++
	f.fullscreen = true
	return nil
}

func (f *fakeHost) ExitFullscreen() error {
	f.fullscreen = false
	return nil
}

func (f *fakeHost) RequestPointerLock(unadjusted bool) error {
	f.plRequests = append(f.plRequests, unadjusted)
	if f.rejectLock != nil {
		return f.rejectLock
	}
	if unadjusted && f.rejectUnadjust {
		return host.ErrOptionUnsupported
	}
	f.pointerLock = true
	return nil
}

func (f *fakeHost) ExitPointerLock() error {
	f.pointerLock = false
	return nil
}

func (f *fakeHost) LockKeyboard() error {
	f.kbLocked = true
	return nil
}

func (f *fakeHost) UnlockKeyboard() error {
	f.kbLocked = false
	return nil
}

func (f *fakeHost) Events() <-chan host.Event              { return nil }
func (f *fakeHost) Ticks() <-chan time.Time                { return nil }
func (f *fakeHost) Gamepad(byte) (host.GamepadState, bool) { return host.GamepadState{}, false }

var allCaps = host.Caps{Fullscreen: true, PointerLock: true, KeyboardLock: true, UnadjustedMovement: true}

func newController(h *fakeHost, mode input.MouseMode, cb Callbacks) (*Controller, *input.Holder) {
	holder := input.NewHolder(input.Config{Mouse: mode})
	return New(h, holder, cb, true, logger.Default()), holder
}

func TestFullscreenUnsupported(t *testing.T) {
	c, _ := newController(&fakeHost{}, input.MouseFollow, Callbacks{})
	if err := c.RequestFullscreen(); !errors.Is(err, ErrFullscreenUnsupported) {
		t.Errorf("RequestFullscreen() = %v, want %v", err, ErrFullscreenUnsupported)
	}
	if c.State() != Normal {
		t.Errorf("state = %v, want %v", c.State(), Normal)
	}
}

func TestFullscreenChainsPointerLockOnce(t *testing.T) {
	h := &fakeHost{caps: allCaps}
	c, _ := newController(h, input.MouseRelative, Callbacks{})

	if err := c.RequestFullscreen(); err != nil {
		t.Fatalf("RequestFullscreen() = %v", err)
	}
	if c.State() != FullscreenPending {
		t.Fatalf("state = %v, want %v", c.State(), FullscreenPending)
	}

	c.Handle(host.Event{T: host.FullscreenChanged})
	if got := len(h.plRequests); got != 1 {
		t.Fatalf("pointer lock requests after confirmed entry = %d, want exactly 1", got)
	}

	// a second confirmation must not re-chain
	c.Handle(host.Event{T: host.FullscreenChanged})
	if got := len(h.plRequests); got != 1 {
		t.Errorf("pointer lock requests after repeat notification = %d, want 1", got)
	}
}

func TestFullscreenDoesNotChainWhenNotRelative(t *testing.T) {
	h := &fakeHost{caps: allCaps}
	c, _ := newController(h, input.MouseFollow, Callbacks{})
	if err := c.RequestFullscreen(); err != nil {
		t.Fatalf("RequestFullscreen() = %v", err)
	}
	c.Handle(host.Event{T: host.FullscreenChanged})
	if len(h.plRequests) != 0 {
		t.Errorf("pointer lock requested with mouse mode follow")
	}
}

func TestPointerLockKeepsMouseMode(t *testing.T) {
	h := &fakeHost{caps: allCaps}
	c, holder := newController(h, input.MousePointAndDrag, Callbacks{})

	if err := c.RequestPointerLock(); err != nil {
		t.Fatalf("RequestPointerLock() = %v", err)
	}
	if got := holder.Load().Mouse; got != input.MousePointAndDrag {
		t.Errorf("mouse mode after lock request = %v, want unchanged", got)
	}
}

func TestPointerLockPlainFallback(t *testing.T) {
	h := &fakeHost{caps: allCaps, rejectUnadjust: true}
	c, _ := newController(h, input.MouseRelative, Callbacks{})

	if err := c.RequestPointerLock(); err != nil {
		t.Fatalf("RequestPointerLock() = %v", err)
	}
	if len(h.plRequests) != 2 || !h.plRequests[0] || h.plRequests[1] {
		t.Errorf("requests = %v, want unadjusted then plain", h.plRequests)
	}
}

func TestPointerLockRejectionPropagates(t *testing.T) {
	h := &fakeHost{caps: allCaps, rejectLock: host.ErrRejected}
	c, _ := newController(h, input.MouseRelative, Callbacks{})
	if err := c.RequestPointerLock(); !errors.Is(err, ErrCaptureRejected) {
		t.Errorf("RequestPointerLock() = %v, want %v", err, ErrCaptureRejected)
	}
}

func TestLockLossRestoresPreLockMode(t *testing.T) {
	h := &fakeHost{caps: allCaps}
	c, holder := newController(h, input.MouseFollow, Callbacks{})

	h.fullscreen = true
	if err := c.RequestPointerLock(); err != nil {
		t.Fatalf("RequestPointerLock() = %v", err)
	}
	c.Handle(host.Event{T: host.PointerLockChanged})

	// immersed sessions usually run relative
	holder.Store(input.Config{Mouse: input.MouseRelative})

	h.pointerLock = false
	c.Handle(host.Event{T: host.PointerLockChanged})
	if got := holder.Load().Mouse; got != input.MouseFollow {
		t.Errorf("mouse mode after lock loss = %v, want the pre-lock %v", got, input.MouseFollow)
	}
	if c.State() != FullscreenActive {
		t.Errorf("state = %v, want %v", c.State(), FullscreenActive)
	}
}

func TestExitFullscreenIdempotent(t *testing.T) {
	h := &fakeHost{caps: allCaps}
	c, _ := newController(h, input.MouseFollow, Callbacks{
		OnWarning: func(string) { t.Error("warning emitted on idle exit") },
	})
	if err := c.ExitFullscreen(); err != nil {
		t.Errorf("ExitFullscreen() while not fullscreen = %v, want nil", err)
	}
	if err := c.ExitFullscreen(); err != nil {
		t.Errorf("second ExitFullscreen() = %v, want nil", err)
	}
}

func TestFullyImmersedHidesChrome(t *testing.T) {
	h := &fakeHost{caps: allCaps}
	var chrome []bool
	var warnings int
	c, _ := newController(h, input.MouseRelative, Callbacks{
		OnChrome:  func(visible bool) { chrome = append(chrome, visible) },
		OnWarning: func(string) { warnings++ },
	})

	if err := c.RequestFullscreen(); err != nil {
		t.Fatalf("RequestFullscreen() = %v", err)
	}
	c.Handle(host.Event{T: host.FullscreenChanged})
	c.Handle(host.Event{T: host.PointerLockChanged})

	if c.Immersion() != Full {
		t.Fatalf("immersion = %v, want %v", c.Immersion(), Full)
	}
	if len(chrome) == 0 || chrome[len(chrome)-1] {
		t.Error("chrome still visible while fully immersed")
	}
	if !h.kbLocked {
		t.Error("keyboard not locked on fullscreen entry")
	}
	if warnings != 1 {
		t.Errorf("exit-gesture warnings = %d, want exactly 1", warnings)
	}

	// a full exit/re-enter must not warn again
	c.ExitPointerLock()
	c.ExitFullscreen()
	c.Handle(host.Event{T: host.PointerLockChanged})
	c.Handle(host.Event{T: host.FullscreenChanged})
	if last := chrome[len(chrome)-1]; !last {
		t.Error("chrome not restored after leaving immersion")
	}
	if err := c.RequestFullscreen(); err != nil {
		t.Fatalf("re-enter RequestFullscreen() = %v", err)
	}
	c.Handle(host.Event{T: host.FullscreenChanged})
	if warnings != 1 {
		t.Errorf("exit-gesture warnings after re-entry = %d, want still 1", warnings)
	}
}

func TestKeybindLatch(t *testing.T) {
	h := &fakeHost{caps: allCaps}
	c, _ := newController(h, input.MouseFollow, Callbacks{})

	chord := host.Key{Code: keyI, Mod: modCtrl | modShift}
	if !c.HandleKey(true, chord) {
		t.Fatal("arming chord not consumed")
	}
	// key repeats while held must not fire the toggle
	c.HandleKey(true, chord)
	c.HandleKey(true, chord)
	if h.fsRequests != 0 {
		t.Fatalf("fullscreen requests before Ctrl release = %d, want 0", h.fsRequests)
	}

	if !c.HandleKey(false, host.Key{Code: keyCtrlLeft}) {
		t.Fatal("Ctrl release not consumed")
	}
	if h.fsRequests != 1 {
		t.Fatalf("fullscreen requests = %d, want 1", h.fsRequests)
	}

	// mid-transition events are swallowed without re-triggering
	c.HandleKey(false, host.Key{Code: keyCtrlLeft})
	if h.fsRequests != 1 {
		t.Errorf("fullscreen requests after stray release = %d, want 1", h.fsRequests)
	}

	c.Handle(host.Event{T: host.FullscreenChanged})
	if c.latch != latchNone {
		t.Errorf("latch after transition = %d, want reset", c.latch)
	}
}

func TestKeybindDisabled(t *testing.T) {
	h := &fakeHost{caps: allCaps}
	holder := input.NewHolder(input.Config{Mouse: input.MouseFollow})
	c := New(h, holder, Callbacks{}, false, logger.Default())
	if c.HandleKey(true, host.Key{Code: keyI, Mod: modCtrl | modShift}) {
		t.Error("keybind consumed while disabled")
	}
}
