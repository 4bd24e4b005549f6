package input

import (
	"github.com/cloudview/cloudview/pkg/api"
	"github.com/cloudview/cloudview/pkg/host"
	"github.com/cloudview/cloudview/pkg/viewer/screen"
)

// touchDrag tracks the finger that currently stands in for the mouse in
// the translated touch modes.
type touchDrag struct {
	active bool
	id     byte
	x, y   float64
}

// touch folds one raw touch event into the sink according to the touch
// mode: forwarded as-is, translated to relative mouse motion, or
// translated to an absolute point-and-drag gesture.
func (m *Multiplexer) touch(cfg Config, t host.EventType, touch host.Touch) {
	switch cfg.Touch {
	case TouchMouseRelative:
		m.touchAsRelativeMouse(t, touch)
	case TouchPointAndDrag:
		m.touchAsPointAndDrag(t, touch)
	default:
		m.touchDirect(t, touch)
	}

	switch t {
	case host.TouchStart, host.TouchMove:
		m.touches[touch.Id] = pointer{x: touch.X, y: touch.Y}
	default:
		delete(m.touches, touch.Id)
	}
}

func (m *Multiplexer) touchDirect(t host.EventType, touch host.Touch) {
	// the remote side has to understand touch for a 1:1 forward
	if !m.caps.Touch {
		return
	}
	fx, fy := screen.Normalize(m.view(), touch.X, touch.Y)
	m.send(api.EncodeTouch(touchKind(t), touch.Id, fx, fy))
}

func (m *Multiplexer) touchAsRelativeMouse(t host.EventType, touch host.Touch) {
	// only the first finger steers; extra fingers are ignored
	if m.drag.active && m.drag.id != touch.Id {
		return
	}
	switch t {
	case host.TouchStart:
		m.drag = touchDrag{active: true, id: touch.Id, x: touch.X, y: touch.Y}
	case host.TouchMove:
		if !m.drag.active {
			return
		}
		dx, dy := touch.X-m.drag.x, touch.Y-m.drag.y
		m.drag.x, m.drag.y = touch.X, touch.Y
		if dx != 0 || dy != 0 {
			m.send(api.EncodeMouseMove(clampInt16(dx), clampInt16(dy)))
		}
	case host.TouchEnd, host.TouchCancel:
		m.drag = touchDrag{}
	}
}

func (m *Multiplexer) touchAsPointAndDrag(t host.EventType, touch host.Touch) {
	if m.drag.active && m.drag.id != touch.Id {
		return
	}
	fx, fy := screen.Normalize(m.view(), touch.X, touch.Y)
	switch t {
	case host.TouchStart:
		m.drag = touchDrag{active: true, id: touch.Id, x: touch.X, y: touch.Y}
		m.send(api.EncodeMousePos(fx, fy))
		m.send(api.EncodeMouseButton(0, true))
	case host.TouchMove:
		if !m.drag.active {
			return
		}
		m.drag.x, m.drag.y = touch.X, touch.Y
		m.send(api.EncodeMousePos(fx, fy))
	case host.TouchEnd, host.TouchCancel:
		if m.drag.active {
			m.send(api.EncodeMouseButton(0, false))
		}
		m.drag = touchDrag{}
	}
}

// touchTick re-emits the latest known position of every live pointer,
// reconciling discrete touch events with the continuous polling model:
// a finger held still keeps feeding the remote side.
func (m *Multiplexer) touchTick(cfg Config) {
	switch cfg.Touch {
	case TouchDirect:
		if !m.caps.Touch {
			return
		}
		for id, p := range m.touches {
			fx, fy := screen.Normalize(m.view(), p.x, p.y)
			m.send(api.EncodeTouch(api.TouchMoved, id, fx, fy))
		}
	case TouchPointAndDrag:
		if m.drag.active {
			fx, fy := screen.Normalize(m.view(), m.drag.x, m.drag.y)
			m.send(api.EncodeMousePos(fx, fy))
		}
	}
}

func touchKind(t host.EventType) byte {
	switch t {
	case host.TouchStart:
		return api.TouchStart
	case host.TouchMove:
		return api.TouchMoved
	case host.TouchEnd:
		return api.TouchEnd
	default:
		return api.TouchCancel
	}
}
