package input

import (
	"github.com/cloudview/cloudview/pkg/api"
	"github.com/cloudview/cloudview/pkg/host"
)

// binding is the per-pad record kept from connect to disconnect. It
// stores raw snapshots only; inversion flags apply at translation time
// so a settings change never desyncs the diff.
type binding struct {
	pad  byte
	last host.GamepadState
}

func (m *Multiplexer) plug(pad byte) {
	if _, ok := m.pads[pad]; ok {
		return
	}
	m.pads[pad] = &binding{pad: pad}
	m.send(api.EncodeGamepadPlug(pad, true))
	m.log.Debug().Msgf("gamepad #%d connected", pad)
}

// unplug synthesizes releases for every still-pressed button before the
// binding goes away, so the remote side never keeps a stuck-down button.
func (m *Multiplexer) unplug(cfg Config, pad byte) {
	b, ok := m.pads[pad]
	if !ok {
		return
	}
	for bit := 0; bit < host.PadButtons; bit++ {
		if b.last.Buttons&(1<<bit) != 0 {
			m.send(api.EncodeGamepadButton(pad, translateButton(cfg, byte(bit)), false))
		}
	}
	delete(m.pads, pad)
	m.send(api.EncodeGamepadPlug(pad, false))
	m.log.Debug().Msgf("gamepad #%d disconnected", pad)
}

// pollPads diffs each connected pad against its last snapshot and
// forwards only what changed, keeping event volume bounded by actual
// activity rather than the poll rate.
func (m *Multiplexer) pollPads(cfg Config, poll func(idx byte) (host.GamepadState, bool)) {
	if poll == nil {
		return
	}
	for pad, b := range m.pads {
		state, ok := poll(pad)
		if !ok {
			continue
		}
		m.diffPad(cfg, b, state)
	}
}

func (m *Multiplexer) diffPad(cfg Config, b *binding, state host.GamepadState) {
	if changed := b.last.Buttons ^ state.Buttons; changed != 0 {
		for bit := 0; bit < host.PadButtons; bit++ {
			if changed&(1<<bit) == 0 {
				continue
			}
			pressed := state.Buttons&(1<<bit) != 0
			m.send(api.EncodeGamepadButton(b.pad, translateButton(cfg, byte(bit)), pressed))
		}
	}
	for i, v := range state.Axes {
		if v != b.last.Axes[i] {
			m.send(api.EncodeGamepadAxis(b.pad, byte(i), v))
		}
	}
	for i, v := range state.Triggers {
		if v != b.last.Triggers[i] {
			m.send(api.EncodeGamepadAxis(b.pad, byte(len(state.Axes)+i), v))
		}
	}
	b.last = state
}

func translateButton(cfg Config, button byte) byte {
	switch {
	case cfg.SwapAB && button == host.PadA:
		return host.PadB
	case cfg.SwapAB && button == host.PadB:
		return host.PadA
	case cfg.SwapXY && button == host.PadX:
		return host.PadY
	case cfg.SwapXY && button == host.PadY:
		return host.PadX
	}
	return button
}
