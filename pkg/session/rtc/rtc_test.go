package rtc

import (
	"testing"

	"github.com/cloudview/cloudview/pkg/api"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/session"
	"github.com/pion/webrtc/v3"
)

func TestStageEvent(t *testing.T) {
	tests := []struct {
		name string
		in   api.StagePayload
		want session.Event
	}{
		{
			name: "starting",
			in:   api.StagePayload{Stage: "ice"},
			want: session.Event{T: session.StageStarting, Stage: "ice"},
		},
		{
			name: "complete",
			in:   api.StagePayload{Stage: "ice", Complete: true},
			want: session.Event{T: session.StageComplete, Stage: "ice"},
		},
		{
			name: "failed",
			in:   api.StagePayload{Stage: "ice", ErrorCode: 42},
			want: session.Event{T: session.StageFailed, Stage: "ice", ErrorCode: 42},
		},
		{
			name: "failure wins over completion",
			in:   api.StagePayload{Stage: "ice", Complete: true, ErrorCode: 42},
			want: session.Event{T: session.StageFailed, Stage: "ice", ErrorCode: 42},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stageEvent(tt.in); got != tt.want {
				t.Errorf("stageEvent(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMalformedPayloadEmitsNothing(t *testing.T) {
	s := &Session{log: logger.Default(), events: make(chan session.Event, 4)}
	for _, pt := range []api.PT{api.AppInfo, api.StageStatus, api.SessionReady, api.KeyboardShow, api.DebugLine} {
		s.handlePacket(api.In{T: pt, Payload: []byte("{")})
	}
	select {
	case ev := <-s.events:
		t.Errorf("event %v emitted for a malformed payload", ev.T)
	default:
	}
}

func TestDataSinkBeforeOpen(t *testing.T) {
	var sink dataSink
	if err := sink.Send([]byte{1}); err != errNoDataChannel {
		t.Errorf("Send() before open = %v, want %v", err, errNoDataChannel)
	}
}

func TestBase64JsonRoundTrip(t *testing.T) {
	in := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	data, err := toBase64Json(in)
	if err != nil {
		t.Fatalf("toBase64Json() = %v", err)
	}
	var out webrtc.SessionDescription
	if err := fromBase64Json(data, &out); err != nil {
		t.Fatalf("fromBase64Json() = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
