// Package api defines the wire protocol between the viewer and the
// streaming host.
//
// Signaling messages are JSON-encoded "packets" of the following structure:
//
//	id - (optional) a globally unique packet id;
//	 t - (required) one of the predefined unique packet types;
//	 p - (optional) packet payload with arbitrary data.
//
// Input commands travel on a separate ordered reliable channel as small
// binary payloads, see input.go.
package api

import (
	"fmt"

	"github.com/goccy/go-json"
)

type PT uint8

// Packet codes:
//
//	x - shared codes
//	1xx - stream codes
const (
	AppInfo       PT = 2
	SessionInit   PT = 4
	WebrtcOffer   PT = 100
	WebrtcAnswer  PT = 101
	WebrtcIce     PT = 102
	StageStatus   PT = 103
	SessionReady  PT = 104
	SessionClose  PT = 105
	StreamError   PT = 106
	KeyboardShow  PT = 107
	DebugLine     PT = 108
)

func (p PT) String() string {
	switch p {
	case AppInfo:
		return "AppInfo"
	case SessionInit:
		return "SessionInit"
	case WebrtcOffer:
		return "WebrtcOffer"
	case WebrtcAnswer:
		return "WebrtcAnswer"
	case WebrtcIce:
		return "WebrtcIce"
	case StageStatus:
		return "StageStatus"
	case SessionReady:
		return "SessionReady"
	case SessionClose:
		return "SessionClose"
	case StreamError:
		return "StreamError"
	case KeyboardShow:
		return "KeyboardShow"
	case DebugLine:
		return "DebugLine"
	default:
		return "Unknown"
	}
}

type In struct {
	Id      string          `json:"id,omitempty"`
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // 2-pass unmarshal
}

type Out struct {
	Id      string `json:"id,omitempty"`
	T       uint8  `json:"t"`
	Payload any    `json:"p,omitempty"`
}

var ErrMalformed = fmt.Errorf("malformed")

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// Signaling payloads.

type (
	AppInfoPayload struct {
		Id    string `json:"id"`
		Title string `json:"title"`
	}
	SessionInitPayload struct {
		Codec  string `json:"codec"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	StagePayload struct {
		Stage     string `json:"stage"`
		Complete  bool   `json:"complete,omitempty"`
		ErrorCode int    `json:"error_code,omitempty"`
	}
	ReadyPayload struct {
		Width         int  `json:"width"`
		Height        int  `json:"height"`
		Touch         bool `json:"touch"`
		Pen           bool `json:"pen"`
		Gamepads      int  `json:"gamepads"`
		HighResScroll bool `json:"highres_scroll"`
	}
	ClosePayload struct {
		ErrorCode int `json:"error_code"`
	}
	ErrorPayload struct {
		Message string `json:"message"`
	}
	KeyboardShowPayload struct {
		Visible bool `json:"visible"`
	}
)
