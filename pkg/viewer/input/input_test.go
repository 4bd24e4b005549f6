package input

import (
	"encoding/binary"
	"testing"

	"github.com/cloudview/cloudview/pkg/api"
	"github.com/cloudview/cloudview/pkg/host"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/session"
)

type recordSink struct {
	sent [][]byte
}

func (s *recordSink) Send(data []byte) error {
	s.sent = append(s.sent, data)
	return nil
}

func (s *recordSink) reset() { s.sent = nil }

func (s *recordSink) ofType(t api.InputType) [][]byte {
	var out [][]byte
	for _, p := range s.sent {
		if len(p) > 0 && api.InputType(p[0]) == t {
			out = append(out, p)
		}
	}
	return out
}

func newMux(cfg Config, caps session.Capabilities) (*Multiplexer, *recordSink) {
	sink := &recordSink{}
	m := New(NewHolder(cfg), func() host.Rect { return host.Rect{W: 800, H: 600} }, logger.Default())
	m.SetSink(sink)
	m.SetCapabilities(caps)
	return m, sink
}

func TestGamepadDiffEmitsOnlyChanges(t *testing.T) {
	m, sink := newMux(Config{Mouse: MouseFollow}, session.Capabilities{Gamepads: 4})
	m.Handle(host.Event{T: host.GamepadConnected, Gamepad: 0})
	sink.reset()

	pressed := host.GamepadState{Buttons: 1 << 3}
	poll := func(byte) (host.GamepadState, bool) { return pressed, true }

	m.Tick(poll)
	events := sink.ofType(api.GamepadButton)
	if len(events) != 1 {
		t.Fatalf("button events after first poll = %d, want 1", len(events))
	}
	if p := events[0]; p[1] != 0 || p[2] != 3 || p[3] != 1 {
		t.Errorf("event = pad %d button %d pressed %d, want pad 0 button 3 pressed 1", p[1], p[2], p[3])
	}

	// identical second poll stays silent
	sink.reset()
	m.Tick(poll)
	if len(sink.sent) != 0 {
		t.Errorf("events after unchanged poll = %d, want 0", len(sink.sent))
	}
}

func TestGamepadDisconnectReleasesButtons(t *testing.T) {
	m, sink := newMux(Config{Mouse: MouseFollow}, session.Capabilities{Gamepads: 4})
	m.Handle(host.Event{T: host.GamepadConnected, Gamepad: 0})
	m.Tick(func(byte) (host.GamepadState, bool) { return host.GamepadState{Buttons: 1 << 3}, true })
	sink.reset()

	m.Handle(host.Event{T: host.GamepadDisconnected, Gamepad: 0})
	if len(sink.sent) != 2 {
		t.Fatalf("events on disconnect = %d, want release + unplug", len(sink.sent))
	}
	if p := sink.sent[0]; api.InputType(p[0]) != api.GamepadButton || p[2] != 3 || p[3] != 0 {
		t.Errorf("first event = %v, want synthetic release of button 3", p)
	}
	if p := sink.sent[1]; api.InputType(p[0]) != api.GamepadPlug || p[2] != 0 {
		t.Errorf("second event = %v, want unplug", p)
	}

	// binding is gone, later polls are ignored
	sink.reset()
	m.Tick(func(byte) (host.GamepadState, bool) { return host.GamepadState{Buttons: 1}, true })
	if len(sink.sent) != 0 {
		t.Errorf("events after disconnect = %d, want 0", len(sink.sent))
	}
}

func TestGamepadSwapAppliesAtTranslation(t *testing.T) {
	holder := NewHolder(Config{Mouse: MouseFollow})
	sink := &recordSink{}
	m := New(holder, func() host.Rect { return host.Rect{W: 800, H: 600} }, logger.Default())
	m.SetSink(sink)
	m.Handle(host.Event{T: host.GamepadConnected, Gamepad: 0})
	sink.reset()

	m.Tick(func(byte) (host.GamepadState, bool) { return host.GamepadState{Buttons: 1 << host.PadA}, true })
	if p := sink.ofType(api.GamepadButton)[0]; p[2] != host.PadA {
		t.Errorf("button without swap = %d, want %d", p[2], host.PadA)
	}

	// flipping the config mid-hold affects the very next emitted event
	holder.Store(Config{Mouse: MouseFollow, SwapAB: true})
	sink.reset()
	m.Tick(func(byte) (host.GamepadState, bool) { return host.GamepadState{}, true })
	if p := sink.ofType(api.GamepadButton)[0]; p[2] != host.PadB || p[3] != 0 {
		t.Errorf("release with swap = button %d pressed %d, want button %d released", p[2], p[3], host.PadB)
	}
}

func TestWheelNormalQuantizes(t *testing.T) {
	m, sink := newMux(Config{Mouse: MouseFollow, Scroll: ScrollNormal}, session.Capabilities{})

	m.Handle(host.Event{T: host.MouseWheel, Wheel: host.Wheel{DY: 50}})
	m.Handle(host.Event{T: host.MouseWheel, Wheel: host.Wheel{DY: 50}})
	if len(sink.sent) != 0 {
		t.Fatalf("events below one notch = %d, want 0", len(sink.sent))
	}
	m.Handle(host.Event{T: host.MouseWheel, Wheel: host.Wheel{DY: 30}})
	events := sink.ofType(api.MouseWheel)
	if len(events) != 1 {
		t.Fatalf("wheel events = %d, want 1", len(events))
	}
	if dy := int16(binary.BigEndian.Uint16(events[0][3:])); dy != wheelStep {
		t.Errorf("quantized dy = %d, want %d", dy, wheelStep)
	}

	// a direction change drops the leftover credit
	sink.reset()
	m.Handle(host.Event{T: host.MouseWheel, Wheel: host.Wheel{DY: -110}})
	if len(sink.sent) != 0 {
		t.Errorf("events after reversal below one notch = %d, want 0", len(sink.sent))
	}
	m.Handle(host.Event{T: host.MouseWheel, Wheel: host.Wheel{DY: -10}})
	events = sink.ofType(api.MouseWheel)
	if len(events) != 1 {
		t.Fatalf("wheel events after full reverse notch = %d, want 1", len(events))
	}
	if dy := int16(binary.BigEndian.Uint16(events[0][3:])); dy != -wheelStep {
		t.Errorf("quantized dy = %d, want %d", dy, -wheelStep)
	}
}

func TestWheelHighRes(t *testing.T) {
	m, sink := newMux(Config{Mouse: MouseFollow, Scroll: ScrollHighRes}, session.Capabilities{HighResScroll: true})
	m.Handle(host.Event{T: host.MouseWheel, Wheel: host.Wheel{DY: 7}})
	events := sink.ofType(api.MouseWheel)
	if len(events) != 1 {
		t.Fatalf("wheel events = %d, want 1", len(events))
	}
	if dy := int16(binary.BigEndian.Uint16(events[0][3:])); dy != 7 {
		t.Errorf("raw dy = %d, want 7", dy)
	}
}

func TestMouseModes(t *testing.T) {
	t.Run("relative sends deltas", func(t *testing.T) {
		m, sink := newMux(Config{Mouse: MouseRelative}, session.Capabilities{})
		m.Handle(host.Event{T: host.MouseMove, Mouse: host.Mouse{DX: 4, DY: -2}})
		events := sink.ofType(api.MouseMove)
		if len(events) != 1 {
			t.Fatalf("events = %d, want 1", len(events))
		}
		dx := int16(binary.BigEndian.Uint16(events[0][1:]))
		dy := int16(binary.BigEndian.Uint16(events[0][3:]))
		if dx != 4 || dy != -2 {
			t.Errorf("delta = (%d, %d), want (4, -2)", dx, dy)
		}
	})
	t.Run("follow sends positions", func(t *testing.T) {
		m, sink := newMux(Config{Mouse: MouseFollow}, session.Capabilities{})
		m.Handle(host.Event{T: host.MouseMove, Mouse: host.Mouse{X: 400, Y: 300}})
		if len(sink.ofType(api.MousePos)) != 1 {
			t.Fatalf("position events = %d, want 1", len(sink.ofType(api.MousePos)))
		}
	})
	t.Run("point and drag waits for the press", func(t *testing.T) {
		m, sink := newMux(Config{Mouse: MousePointAndDrag}, session.Capabilities{})
		m.Handle(host.Event{T: host.MouseMove, Mouse: host.Mouse{X: 400, Y: 300}})
		if len(sink.sent) != 0 {
			t.Fatalf("events before press = %d, want 0", len(sink.sent))
		}
		m.Handle(host.Event{T: host.MouseButton, Mouse: host.Mouse{X: 400, Y: 300, Button: 0, Pressed: true}})
		if got := len(sink.ofType(api.MousePos)); got != 1 {
			t.Errorf("position events on press = %d, want 1", got)
		}
		if got := len(sink.ofType(api.MouseButton)); got != 1 {
			t.Errorf("button events on press = %d, want 1", got)
		}
		sink.reset()
		m.Handle(host.Event{T: host.MouseMove, Mouse: host.Mouse{X: 410, Y: 310}})
		if got := len(sink.ofType(api.MousePos)); got != 1 {
			t.Errorf("position events while dragging = %d, want 1", got)
		}
	})
}

func TestTouchNeedsRemoteSupport(t *testing.T) {
	m, sink := newMux(Config{Mouse: MouseFollow, Touch: TouchDirect}, session.Capabilities{})
	m.Handle(host.Event{T: host.TouchStart, Touch: host.Touch{Id: 1, X: 100, Y: 100}})
	if len(sink.sent) != 0 {
		t.Errorf("touch events without remote touch support = %d, want 0", len(sink.sent))
	}
}

func TestTouchTickReemits(t *testing.T) {
	m, sink := newMux(Config{Mouse: MouseFollow, Touch: TouchDirect}, session.Capabilities{Touch: true})
	m.Handle(host.Event{T: host.TouchStart, Touch: host.Touch{Id: 1, X: 100, Y: 100}})
	sink.reset()

	// no new events, a held finger still feeds the remote side
	m.Tick(nil)
	events := sink.ofType(api.TouchPress)
	if len(events) != 1 {
		t.Fatalf("re-emitted touch events = %d, want 1", len(events))
	}
	if events[0][1] != api.TouchMoved || events[0][2] != 1 {
		t.Errorf("re-emit = kind %d id %d, want moved id 1", events[0][1], events[0][2])
	}

	m.Handle(host.Event{T: host.TouchEnd, Touch: host.Touch{Id: 1, X: 100, Y: 100}})
	sink.reset()
	m.Tick(nil)
	if len(sink.sent) != 0 {
		t.Errorf("re-emits after touch end = %d, want 0", len(sink.sent))
	}
}

func TestTouchPointAndDrag(t *testing.T) {
	m, sink := newMux(Config{Mouse: MouseFollow, Touch: TouchPointAndDrag}, session.Capabilities{})
	m.Handle(host.Event{T: host.TouchStart, Touch: host.Touch{Id: 1, X: 400, Y: 300}})
	if got := len(sink.ofType(api.MousePos)); got != 1 {
		t.Errorf("position events on touch start = %d, want 1", got)
	}
	buttons := sink.ofType(api.MouseButton)
	if len(buttons) != 1 || buttons[0][2] != 1 {
		t.Fatalf("button events on touch start = %v, want one press", buttons)
	}
	m.Handle(host.Event{T: host.TouchEnd, Touch: host.Touch{Id: 1, X: 400, Y: 300}})
	buttons = sink.ofType(api.MouseButton)
	if len(buttons) != 2 || buttons[1][2] != 0 {
		t.Fatalf("button events after touch end = %v, want press then release", buttons)
	}
}

func TestNoSinkNoCapture(t *testing.T) {
	m := New(NewHolder(Config{Mouse: MouseFollow}), func() host.Rect { return host.Rect{} }, logger.Default())
	if m.Handle(host.Event{T: host.KeyDown, Key: host.Key{Code: 4}}) {
		t.Error("event captured with no sink attached")
	}
}

func TestTextInputForwarded(t *testing.T) {
	m, sink := newMux(Config{Mouse: MouseFollow}, session.Capabilities{})
	m.Handle(host.Event{T: host.TextInput, Text: "héllo"})

	events := sink.ofType(api.TextInput)
	if len(events) != 1 {
		t.Fatalf("text events = %d, want 1", len(events))
	}
	if got := string(events[0][1:]); got != "héllo" {
		t.Errorf("text payload = %q, want %q", got, "héllo")
	}

	sink.reset()
	m.Handle(host.Event{T: host.TextInput})
	if len(sink.sent) != 0 {
		t.Errorf("events for empty text = %d, want 0", len(sink.sent))
	}
}
