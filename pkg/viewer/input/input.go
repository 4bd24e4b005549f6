// Package input normalizes keyboard, mouse, touch and gamepad events
// into the wire commands of the remote input sink. One dispatch entry
// point per raw event plus a per-refresh Tick for the polled sources.
package input

import (
	"sync/atomic"

	"github.com/cloudview/cloudview/pkg/api"
	"github.com/cloudview/cloudview/pkg/config"
	"github.com/cloudview/cloudview/pkg/host"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/session"
	"github.com/cloudview/cloudview/pkg/viewer/screen"
)

type (
	MouseMode  uint8
	TouchMode  uint8
	ScrollMode uint8
)

const (
	MouseRelative MouseMode = iota + 1
	MouseFollow
	MousePointAndDrag
)

const (
	TouchDirect TouchMode = iota + 1
	TouchMouseRelative
	TouchPointAndDrag
)

const (
	ScrollNormal ScrollMode = iota + 1
	ScrollHighRes
)

// wheelStep is one platform scroll notch.
const wheelStep = 120

func ParseMouseMode(s string) MouseMode {
	switch s {
	case "relative":
		return MouseRelative
	case "pointAndDrag":
		return MousePointAndDrag
	default:
		return MouseFollow
	}
}

func ParseTouchMode(s string) TouchMode {
	switch s {
	case "mouseRelative":
		return TouchMouseRelative
	case "pointAndDrag":
		return TouchPointAndDrag
	default:
		return TouchDirect
	}
}

func ParseScrollMode(s string) ScrollMode {
	if s == "highres" {
		return ScrollHighRes
	}
	return ScrollNormal
}

// Config is the live input tuning. Whole-object replacement with
// last-writer-wins; readers observe it on the next event, never
// retroactively.
type Config struct {
	Mouse  MouseMode
	Touch  TouchMode
	Scroll ScrollMode
	SwapAB bool
	SwapXY bool
}

func FromConfig(c config.Input) Config {
	return Config{
		Mouse:  ParseMouseMode(c.MouseMode),
		Touch:  ParseTouchMode(c.TouchMode),
		Scroll: ParseScrollMode(c.ScrollMode),
		SwapAB: c.SwapAB,
		SwapXY: c.SwapXY,
	}
}

// Holder shares one Config between the UI writer and the per-event readers.
type Holder struct {
	v atomic.Pointer[Config]
}

func NewHolder(c Config) *Holder {
	h := Holder{}
	h.v.Store(&c)
	return &h
}

func (h *Holder) Load() Config   { return *h.v.Load() }
func (h *Holder) Store(c Config) { h.v.Store(&c) }

// Multiplexer folds every input source into the session sink.
type Multiplexer struct {
	cfg  *Holder
	log  *logger.Logger
	view func() host.Rect

	sink session.Sink
	caps session.Capabilities

	mouseHeld bool
	wheelX    accumulator
	wheelY    accumulator

	touches map[byte]pointer
	drag    touchDrag

	pads map[byte]*binding
}

type pointer struct{ x, y float64 }

func New(cfg *Holder, view func() host.Rect, log *logger.Logger) *Multiplexer {
	return &Multiplexer{
		cfg:     cfg,
		log:     log,
		view:    view,
		touches: make(map[byte]pointer),
		pads:    make(map[byte]*binding),
	}
}

// SetSink attaches (or with nil detaches) the outbound command sink.
func (m *Multiplexer) SetSink(s session.Sink) { m.sink = s }

// SetCapabilities installs the negotiated remote feature set, so
// commands the other side cannot consume are never put on the wire.
func (m *Multiplexer) SetCapabilities(c session.Capabilities) { m.caps = c }

// Handle consumes one raw event. Reports whether the event was captured
// so the host can suppress its default processing.
func (m *Multiplexer) Handle(ev host.Event) bool {
	if m.sink == nil {
		return false
	}
	cfg := m.cfg.Load()
	switch ev.T {
	case host.KeyDown:
		m.send(api.EncodeKey(ev.Key.Code, true, ev.Key.Mod))
	case host.KeyUp:
		m.send(api.EncodeKey(ev.Key.Code, false, ev.Key.Mod))
	case host.MouseMove:
		m.mouseMove(cfg, ev.Mouse)
	case host.MouseButton:
		m.mouseButton(cfg, ev.Mouse)
	case host.MouseWheel:
		m.wheel(cfg, ev.Wheel)
	case host.TouchStart, host.TouchMove, host.TouchEnd, host.TouchCancel:
		m.touch(cfg, ev.T, ev.Touch)
	case host.GamepadConnected:
		m.plug(ev.Gamepad)
	case host.GamepadDisconnected:
		m.unplug(cfg, ev.Gamepad)
	case host.TextInput:
		if ev.Text != "" {
			m.send(api.EncodeText(ev.Text))
		}
	default:
		return false
	}
	return true
}

// Tick runs the polled half of the pipeline on the display refresh:
// gamepad state diffing and the touch position re-emit.
func (m *Multiplexer) Tick(poll func(idx byte) (host.GamepadState, bool)) {
	if m.sink == nil {
		return
	}
	cfg := m.cfg.Load()
	m.pollPads(cfg, poll)
	m.touchTick(cfg)
}

func (m *Multiplexer) mouseMove(cfg Config, mouse host.Mouse) {
	switch cfg.Mouse {
	case MouseRelative:
		if mouse.DX != 0 || mouse.DY != 0 {
			m.send(api.EncodeMouseMove(clampInt16(mouse.DX), clampInt16(mouse.DY)))
		}
	case MousePointAndDrag:
		// the pointer only drives the remote cursor while dragging
		if !m.mouseHeld {
			return
		}
		fallthrough
	default:
		fx, fy := screen.Normalize(m.view(), mouse.X, mouse.Y)
		m.send(api.EncodeMousePos(fx, fy))
	}
}

func (m *Multiplexer) mouseButton(cfg Config, mouse host.Mouse) {
	m.mouseHeld = mouse.Pressed
	if cfg.Mouse == MousePointAndDrag && mouse.Pressed {
		// land the cursor before the press registers
		fx, fy := screen.Normalize(m.view(), mouse.X, mouse.Y)
		m.send(api.EncodeMousePos(fx, fy))
	}
	m.send(api.EncodeMouseButton(mouse.Button, mouse.Pressed))
}

func (m *Multiplexer) wheel(cfg Config, wheel host.Wheel) {
	if cfg.Scroll == ScrollHighRes && m.caps.HighResScroll {
		m.send(api.EncodeMouseWheel(clampInt16(wheel.DX), clampInt16(wheel.DY)))
		return
	}
	dx := m.wheelX.quantize(wheel.DX)
	dy := m.wheelY.quantize(wheel.DY)
	if dx != 0 || dy != 0 {
		m.send(api.EncodeMouseWheel(dx, dy))
	}
}

func (m *Multiplexer) send(data []byte) {
	if err := m.sink.Send(data); err != nil {
		m.log.Debug().Err(err).Msg("input send failed")
	}
}

// accumulator folds raw sub-step wheel deltas into whole platform
// notches. Leftovers carry over to the next event; a direction change
// discards them so a reversal is never eaten by stale credit.
type accumulator struct {
	acc float64
}

func (a *accumulator) quantize(d float64) int16 {
	if d == 0 {
		return 0
	}
	if (a.acc > 0) != (d > 0) {
		a.acc = 0
	}
	a.acc += d
	steps := int(a.acc / wheelStep)
	a.acc -= float64(steps * wheelStep)
	return clampInt16(float64(steps * wheelStep))
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
