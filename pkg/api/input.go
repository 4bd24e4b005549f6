package api

import "encoding/binary"

// Input commands are packed into fixed binary payloads so the host can
// route them without a JSON pass. The first byte is the command type,
// multi-byte values are big-endian. Normalized coordinates are mapped
// onto the full uint16 range.

type InputType byte

const (
	KeyPress      InputType = iota + 1 // [T:1][KEY:4][P:1][MOD:2]
	MouseMove                          // [T:1][DX:2][DY:2]
	MousePos                           // [T:1][X:2][Y:2]
	MouseButton                        // [T:1][BTN:1][P:1]
	MouseWheel                         // [T:1][DX:2][DY:2]
	TouchPress                         // [T:1][EV:1][ID:1][X:2][Y:2]
	GamepadButton                      // [T:1][PAD:1][BTN:1][P:1]
	GamepadAxis                        // [T:1][PAD:1][AXIS:1][VAL:2]
	GamepadPlug                        // [T:1][PAD:1][P:1]
	TextInput                          // [T:1][UTF8:N]
)

// Touch event kinds carried in the EV byte of TouchPress.
const (
	TouchStart byte = iota + 1
	TouchMoved
	TouchEnd
	TouchCancel
)

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// norm maps a [0,1] value onto the full uint16 range.
func norm(v float64) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v * 0xffff)
}

func EncodeKey(code uint32, pressed bool, mod uint16) []byte {
	buf := make([]byte, 8)
	buf[0] = byte(KeyPress)
	binary.BigEndian.PutUint32(buf[1:], code)
	buf[5] = flag(pressed)
	binary.BigEndian.PutUint16(buf[6:], mod)
	return buf
}

func EncodeMouseMove(dx, dy int16) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(MouseMove)
	binary.BigEndian.PutUint16(buf[1:], uint16(dx))
	binary.BigEndian.PutUint16(buf[3:], uint16(dy))
	return buf
}

func EncodeMousePos(x, y float64) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(MousePos)
	binary.BigEndian.PutUint16(buf[1:], norm(x))
	binary.BigEndian.PutUint16(buf[3:], norm(y))
	return buf
}

func EncodeMouseButton(button byte, pressed bool) []byte {
	return []byte{byte(MouseButton), button, flag(pressed)}
}

func EncodeMouseWheel(dx, dy int16) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(MouseWheel)
	binary.BigEndian.PutUint16(buf[1:], uint16(dx))
	binary.BigEndian.PutUint16(buf[3:], uint16(dy))
	return buf
}

func EncodeTouch(ev byte, id byte, x, y float64) []byte {
	buf := make([]byte, 7)
	buf[0] = byte(TouchPress)
	buf[1] = ev
	buf[2] = id
	binary.BigEndian.PutUint16(buf[3:], norm(x))
	binary.BigEndian.PutUint16(buf[5:], norm(y))
	return buf
}

func EncodeGamepadButton(pad, button byte, pressed bool) []byte {
	return []byte{byte(GamepadButton), pad, button, flag(pressed)}
}

func EncodeGamepadAxis(pad, axis byte, value int16) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(GamepadAxis)
	buf[1] = pad
	buf[2] = axis
	binary.BigEndian.PutUint16(buf[3:], uint16(value))
	return buf
}

func EncodeGamepadPlug(pad byte, connected bool) []byte {
	return []byte{byte(GamepadPlug), pad, flag(connected)}
}

func EncodeText(text string) []byte {
	buf := make([]byte, 1+len(text))
	buf[0] = byte(TextInput)
	copy(buf[1:], text)
	return buf
}
