// Package rtc implements the stream session over a WebRTC peer
// connection with websocket signaling: the host offers, the viewer
// answers, video arrives on a remote track and input leaves on an
// ordered reliable data channel.
package rtc

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/cloudview/cloudview/pkg/api"
	"github.com/cloudview/cloudview/pkg/com"
	"github.com/cloudview/cloudview/pkg/config"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/session"
	"github.com/goccy/go-json"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

var errNoDataChannel = errors.New("input channel is not open")

// Session is one WebRTC stream.
type Session struct {
	conf   config.Session
	client *com.Client
	peer   *webrtc.PeerConnection
	dec    Decoder
	log    *logger.Logger

	events chan session.Event
	input  *dataSink

	closed   atomic.Bool
	eventsMu sync.Mutex
	over     bool
}

// Dial connects to the signaling endpoint, sets the peer connection up
// and announces the session. Lifecycle events start flowing right away;
// the caller consumes them until the channel closes.
func Dial(ctx context.Context, conf config.ViewerConfig, dec Decoder, log *logger.Logger) (*Session, error) {
	address, err := url.Parse(conf.Session.SignalAddress)
	if err != nil {
		return nil, err
	}
	client, err := com.NewClient(*address, log)
	if err != nil {
		return nil, err
	}
	if dec == nil {
		dec = noopDecoder{}
	}

	s := &Session{
		conf:   conf.Session,
		client: client,
		dec:    dec,
		log:    log,
		events: make(chan session.Event, 32),
		input:  &dataSink{},
	}
	if err := s.setupPeer(conf); err != nil {
		client.Close()
		return nil, err
	}
	client.OnPacket(s.handlePacket)
	go client.Listen()
	go func() {
		// a dead signaling socket ends the session
		<-client.Wait()
		s.terminate(session.Event{T: session.ConnectionTerminated})
	}()

	if _, err := client.Call(api.SessionInit, api.SessionInitPayload{
		Codec:  conf.Presentation.Codec,
		Width:  conf.Presentation.Width,
		Height: conf.Presentation.Height,
	}); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// setupPeer builds the pion stack: default codecs and interceptors, a
// custom logger, and the input data channel.
func (s *Session) setupPeer(conf config.ViewerConfig) error {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return err
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return err
	}
	settings := webrtc.SettingEngine{LoggerFactory: logger.NewPionLogger(s.log, conf.Session.LogLevel)}
	pionAPI := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
		webrtc.WithSettingEngine(settings),
	)

	peerConf := webrtc.Configuration{}
	for _, server := range conf.Session.IceServers {
		peerConf.ICEServers = append(peerConf.ICEServers, webrtc.ICEServer{
			URLs:       []string{server.Urls},
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	peer, err := pionAPI.NewPeerConnection(peerConf)
	if err != nil {
		return err
	}
	s.peer = peer

	peer.OnICECandidate(func(ice *webrtc.ICECandidate) {
		if ice == nil {
			s.log.Debug().Msg("ICE gathering complete")
			return
		}
		candidate, err := toBase64Json(ice.ToJSON())
		if err != nil {
			s.log.Error().Err(err).Msg("ICE candidate encode failed")
			return
		}
		s.client.Notify(api.WebrtcIce, candidate)
	})
	peer.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		s.log.Debug().Msgf("got remote track %s (%s)", remote.ID(), remote.Codec().MimeType)
		s.emit(session.Event{T: session.VideoTrackAvailable, Track: newTrack(remote, s.dec, s.log)})
	})
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug().Msgf("peer connection state %s", state)
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			s.terminate(session.Event{T: session.ConnectionTerminated})
		}
	})

	// ordered reliable channel for outbound input commands
	channel, err := peer.CreateDataChannel("input", nil)
	if err != nil {
		return err
	}
	channel.OnOpen(func() { s.input.set(channel) })
	channel.OnClose(func() { s.input.set(nil) })
	return nil
}

func (s *Session) Events() <-chan session.Event { return s.events }
func (s *Session) Input() session.Sink          { return s.input }

func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.peer != nil {
		if err := s.peer.Close(); err != nil {
			s.log.Debug().Err(err).Msg("peer close failed")
		}
	}
	s.client.Close()
	s.terminate(session.Event{})
	return nil
}

// unwrap decodes a typed payload; a malformed one is reported and
// yields nil, never a dropped packet without a trace.
func unwrap[T any](s *Session, t api.PT, payload []byte) *T {
	p := api.Unwrap[T](payload)
	if p == nil {
		s.log.Debug().Msgf("malformed %v payload", t)
	}
	return p
}

func (s *Session) handlePacket(packet api.In) {
	switch packet.T {
	case api.AppInfo:
		if p := unwrap[api.AppInfoPayload](s, packet.T, packet.Payload); p != nil {
			s.emit(session.Event{T: session.AppMetadata, App: session.AppInfo{Id: p.Id, Title: p.Title}})
		}
	case api.WebrtcOffer:
		s.answer(packet.Payload)
	case api.WebrtcIce:
		s.addCandidate(packet.Payload)
	case api.StageStatus:
		if p := unwrap[api.StagePayload](s, packet.T, packet.Payload); p != nil {
			s.emit(stageEvent(*p))
		}
	case api.SessionReady:
		if p := unwrap[api.ReadyPayload](s, packet.T, packet.Payload); p != nil {
			s.emit(session.Event{T: session.ConnectionComplete, Caps: session.Capabilities{
				Resolution:    session.Resolution{W: p.Width, H: p.Height},
				Touch:         p.Touch,
				Pen:           p.Pen,
				Gamepads:      p.Gamepads,
				HighResScroll: p.HighResScroll,
			}})
		}
	case api.SessionClose:
		code := 0
		if p := unwrap[api.ClosePayload](s, packet.T, packet.Payload); p != nil {
			code = p.ErrorCode
		}
		s.terminate(session.Event{T: session.ConnectionTerminated, ErrorCode: code})
	case api.StreamError:
		if p := unwrap[api.ErrorPayload](s, packet.T, packet.Payload); p != nil {
			s.terminate(session.Event{T: session.SessionError, Message: p.Message})
		}
	case api.KeyboardShow:
		if p := unwrap[api.KeyboardShowPayload](s, packet.T, packet.Payload); p != nil {
			s.emit(session.Event{T: session.KeyboardToggle, Visible: p.Visible})
		}
	case api.DebugLine:
		var line string
		if err := json.Unmarshal(packet.Payload, &line); err != nil {
			s.log.Debug().Err(err).Msgf("malformed %v payload", packet.T)
			return
		}
		s.emit(session.Event{T: session.DebugLine, Message: line})
	default:
		s.log.Warn().Msgf("unknown packet %v", packet.T)
	}
}

func stageEvent(p api.StagePayload) session.Event {
	switch {
	case p.ErrorCode != 0:
		return session.Event{T: session.StageFailed, Stage: p.Stage, ErrorCode: p.ErrorCode}
	case p.Complete:
		return session.Event{T: session.StageComplete, Stage: p.Stage}
	default:
		return session.Event{T: session.StageStarting, Stage: p.Stage}
	}
}

// answer handles the host's offer: remote description in, local answer out.
func (s *Session) answer(payload []byte) {
	var sdp string
	if err := json.Unmarshal(payload, &sdp); err != nil {
		s.log.Error().Err(err).Msg("malformed offer")
		return
	}
	var offer webrtc.SessionDescription
	if err := fromBase64Json(sdp, &offer); err != nil {
		s.log.Error().Err(err).Msg("offer decode failed")
		return
	}
	if err := s.peer.SetRemoteDescription(offer); err != nil {
		s.log.Error().Err(err).Msg("remote description rejected")
		return
	}
	answer, err := s.peer.CreateAnswer(nil)
	if err != nil {
		s.log.Error().Err(err).Msg("answer failed")
		return
	}
	if err := s.peer.SetLocalDescription(answer); err != nil {
		s.log.Error().Err(err).Msg("local description rejected")
		return
	}
	out, err := toBase64Json(answer)
	if err != nil {
		s.log.Error().Err(err).Msg("answer encode failed")
		return
	}
	s.client.Notify(api.WebrtcAnswer, out)
}

func (s *Session) addCandidate(payload []byte) {
	var data string
	if err := json.Unmarshal(payload, &data); err != nil {
		s.log.Error().Err(err).Msg("malformed candidate")
		return
	}
	var candidate webrtc.ICECandidateInit
	if err := fromBase64Json(data, &candidate); err != nil {
		s.log.Error().Err(err).Msg("candidate decode failed")
		return
	}
	if err := s.peer.AddICECandidate(candidate); err != nil {
		s.log.Error().Err(err).Msg("candidate rejected")
	}
}

// emit queues a lifecycle event; a full queue drops with a log line
// rather than deadlocking the transport callbacks.
func (s *Session) emit(ev session.Event) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if s.over {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.log.Error().Msgf("event queue overflow, dropped %v", ev.T)
	}
}

// terminate emits a final event (when it has a type) and closes the
// event stream exactly once.
func (s *Session) terminate(ev session.Event) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if s.over {
		return
	}
	s.over = true
	if ev.T != 0 {
		select {
		case s.events <- ev:
		default:
		}
	}
	close(s.events)
}

// dataSink sends input commands over the data channel once it opens.
type dataSink struct {
	mu sync.Mutex
	ch *webrtc.DataChannel
}

func (d *dataSink) set(ch *webrtc.DataChannel) {
	d.mu.Lock()
	d.ch = ch
	d.mu.Unlock()
}

func (d *dataSink) Send(data []byte) error {
	d.mu.Lock()
	ch := d.ch
	d.mu.Unlock()
	if ch == nil {
		return errNoDataChannel
	}
	return ch.Send(data)
}

func toBase64Json(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func fromBase64Json(data string, obj any) error {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, obj)
}
