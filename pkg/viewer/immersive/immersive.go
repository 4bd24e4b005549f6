// Package immersive drives the combined fullscreen + pointer-lock
// (+ optional keyboard-lock) capture state. Requests are acknowledged
// asynchronously by the platform, so the controller never trusts a
// request: the authoritative state is re-derived from live capture
// status on every change notification.
package immersive

import (
	"errors"
	"fmt"

	"github.com/cloudview/cloudview/pkg/host"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/viewer/input"
)

var (
	ErrFullscreenUnsupported  = errors.New("fullscreen unsupported")
	ErrPointerLockUnsupported = errors.New("pointer lock unsupported")
	// ErrCaptureRejected wraps a platform denial of a capture request,
	// e.g. one made without a user gesture.
	ErrCaptureRejected = errors.New("capture request rejected")
)

// ExitGestureWarning is shown once per run, the first time keyboard
// lock engages and swallows the usual escape shortcuts.
const ExitGestureWarning = "Keyboard is captured. Hold Esc to leave fullscreen."

type State uint8

const (
	Normal State = iota
	FullscreenPending
	FullscreenActive
	PointerLockPending
	PointerLockActive
	Exiting
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case FullscreenPending:
		return "fullscreenPending"
	case FullscreenActive:
		return "fullscreenActive"
	case PointerLockPending:
		return "pointerLockPending"
	case PointerLockActive:
		return "pointerLockActive"
	case Exiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// Immersion is the externally visible capture level, always derived
// from live capture status and never stored.
type Immersion uint8

const (
	None Immersion = iota
	Fullscreen
	PointerLock
	Full
)

// latch states of the keybind sequence detector
type latch uint8

const (
	latchNone latch = iota
	latchWaitCtrl
	latchMaking
)

const (
	modCtrl  = 1 << 0
	modShift = 1 << 1
)

// USB HID scan codes of the keybind chord.
const (
	keyI         = 0x0c
	keyCtrlLeft  = 0xe0
	keyCtrlRight = 0xe4
)

// Callbacks are the hooks into the enclosing UI. All optional.
type Callbacks struct {
	// OnChrome hides (false) or restores (true) the surrounding UI.
	OnChrome func(visible bool)
	// OnWarning surfaces a non-fatal user-facing message.
	OnWarning func(msg string)
}

// Controller owns the capture state machine.
type Controller struct {
	host host.Host
	cfg  *input.Holder
	cb   Callbacks
	log  *logger.Logger

	state       State
	preLockMode input.MouseMode
	chainLock   bool // pointer lock queued for fullscreen confirmation
	kbLocked    bool
	warned      bool
	latch       latch
	keybind     bool
}

func New(h host.Host, cfg *input.Holder, cb Callbacks, keybind bool, log *logger.Logger) *Controller {
	return &Controller{host: h, cfg: cfg, cb: cb, keybind: keybind, log: log}
}

// Immersion derives the capture level from live platform status.
func (c *Controller) Immersion() Immersion {
	fs, pl := c.host.IsFullscreen(), c.host.HasPointerLock()
	switch {
	case fs && pl:
		return Full
	case fs:
		return Fullscreen
	case pl:
		return PointerLock
	default:
		return None
	}
}

func (c *Controller) State() State { return c.state }

// RequestFullscreen asks the platform for fullscreen. Already being
// fullscreen is a no-op. The state change arrives later as a
// FullscreenChanged event; keyboard lock and the pointer-lock chain
// run there, once the entry is confirmed.
func (c *Controller) RequestFullscreen() error {
	if c.host.IsFullscreen() {
		return nil
	}
	if !c.host.Caps().Fullscreen {
		return ErrFullscreenUnsupported
	}
	c.chainLock = c.cfg.Load().Mouse == input.MouseRelative
	if err := c.host.RequestFullscreen(); err != nil {
		c.chainLock = false
		return fmt.Errorf("%w: %v", ErrCaptureRejected, err)
	}
	c.state = FullscreenPending
	return nil
}

// RequestPointerLock records the pre-lock mouse mode for restoration,
// then tries the enhanced-precision request first and falls back to a
// plain one when only that option is rejected. It never forces the
// mouse mode to relative.
func (c *Controller) RequestPointerLock() error {
	if !c.host.Caps().PointerLock {
		return ErrPointerLockUnsupported
	}
	if !c.host.HasPointerLock() {
		c.preLockMode = c.cfg.Load().Mouse
	}
	err := c.host.RequestPointerLock(c.host.Caps().UnadjustedMovement)
	if errors.Is(err, host.ErrOptionUnsupported) {
		c.log.Debug().Msg("unadjusted movement rejected, retrying plain pointer lock")
		err = c.host.RequestPointerLock(false)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureRejected, err)
	}
	c.state = PointerLockPending
	return nil
}

// ExitFullscreen is best-effort and idempotent: when not fullscreen it
// has no effect and returns no error. Keyboard lock goes first.
func (c *Controller) ExitFullscreen() error {
	if !c.host.IsFullscreen() {
		return nil
	}
	c.releaseKeyboard()
	c.state = Exiting
	if err := c.host.ExitFullscreen(); err != nil {
		c.log.Debug().Err(err).Msg("fullscreen exit failed")
	}
	return nil
}

func (c *Controller) ExitPointerLock() error {
	if !c.host.HasPointerLock() {
		return nil
	}
	if err := c.host.ExitPointerLock(); err != nil {
		c.log.Debug().Err(err).Msg("pointer lock exit failed")
	}
	return nil
}

// Toggle flips between normal and fully immersed.
func (c *Controller) Toggle() error {
	if c.host.IsFullscreen() {
		c.ExitPointerLock()
		return c.ExitFullscreen()
	}
	return c.RequestFullscreen()
}

// Handle consumes capture-state notifications and re-derives the
// externally visible state. Everything else passes through untouched.
func (c *Controller) Handle(ev host.Event) {
	switch ev.T {
	case host.FullscreenChanged:
		c.fullscreenChanged()
	case host.PointerLockChanged:
		c.pointerLockChanged()
	default:
		return
	}
	if c.latch == latchMaking {
		c.latch = latchNone
	}
	c.recompute()
}

func (c *Controller) fullscreenChanged() {
	if !c.host.IsFullscreen() {
		c.releaseKeyboard()
		c.state = Normal
		return
	}
	c.state = FullscreenActive
	c.lockKeyboard()
	if c.chainLock {
		// exactly one chained attempt per fullscreen entry
		c.chainLock = false
		if err := c.RequestPointerLock(); err != nil {
			c.warn(err.Error())
		}
	}
}

func (c *Controller) pointerLockChanged() {
	if c.host.HasPointerLock() {
		c.state = PointerLockActive
		return
	}
	// lock lost while fullscreen persists, e.g. the exit gesture:
	// put the mouse mode back where the user had it
	if c.host.IsFullscreen() {
		c.state = FullscreenActive
		cfg := c.cfg.Load()
		if c.preLockMode != 0 && cfg.Mouse != c.preLockMode {
			cfg.Mouse = c.preLockMode
			c.cfg.Store(cfg)
		}
	} else {
		c.state = Normal
	}
}

func (c *Controller) recompute() {
	if c.cb.OnChrome != nil {
		c.cb.OnChrome(c.Immersion() != Full)
	}
}

// lockKeyboard is best-effort, absence of the capability is not an
// error. The first success shows the exit-gesture warning once per run.
func (c *Controller) lockKeyboard() {
	if c.kbLocked || !c.host.Caps().KeyboardLock {
		return
	}
	if err := c.host.LockKeyboard(); err != nil {
		c.log.Debug().Err(err).Msg("keyboard lock failed")
		return
	}
	c.kbLocked = true
	if !c.warned {
		c.warned = true
		c.warn(ExitGestureWarning)
	}
}

func (c *Controller) releaseKeyboard() {
	if !c.kbLocked {
		return
	}
	if err := c.host.UnlockKeyboard(); err != nil {
		c.log.Debug().Err(err).Msg("keyboard unlock failed")
	}
	c.kbLocked = false
}

func (c *Controller) warn(msg string) {
	if c.cb.OnWarning != nil {
		c.cb.OnWarning(msg)
	}
	c.log.Warn().Msg(msg)
}

// HandleKey runs the toggle keybind sequence detector: Ctrl+Shift+I
// held arms the latch, the following Ctrl release fires the toggle
// exactly once. Reports whether the event was consumed. The latch only
// moves forward until the transition completes, so key repeats cannot
// re-trigger it mid-flight.
func (c *Controller) HandleKey(pressed bool, key host.Key) bool {
	if !c.keybind {
		return false
	}
	switch c.latch {
	case latchNone:
		if pressed && key.Code == keyI && key.Mod&modCtrl != 0 && key.Mod&modShift != 0 {
			c.latch = latchWaitCtrl
			return true
		}
	case latchWaitCtrl:
		// the arming chord may repeat while held
		if pressed && key.Code == keyI {
			return true
		}
		if !pressed && (key.Code == keyCtrlLeft || key.Code == keyCtrlRight) {
			c.latch = latchMaking
			if err := c.Toggle(); err != nil {
				c.warn(err.Error())
				c.latch = latchNone
			}
			return true
		}
	case latchMaking:
		// swallowed until the capture transition lands
		return true
	}
	return false
}
