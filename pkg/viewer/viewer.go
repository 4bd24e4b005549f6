// Package viewer wires the stream presentation together: it owns the
// session, the frame pump, the coordinate math, the input multiplexer
// and the immersive-mode controller, and runs the single event loop
// that drives them all.
package viewer

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudview/cloudview/pkg/config"
	"github.com/cloudview/cloudview/pkg/host"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/session"
	"github.com/cloudview/cloudview/pkg/viewer/immersive"
	"github.com/cloudview/cloudview/pkg/viewer/input"
	"github.com/cloudview/cloudview/pkg/viewer/pump"
	"github.com/cloudview/cloudview/pkg/viewer/screen"
	"github.com/cloudview/cloudview/pkg/viewer/settings"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RendererNative = "native"
	RendererPump   = "pump"
)

// Dialer opens the stream session. Injected so the loop is testable
// without a live transport.
type Dialer func(ctx context.Context) (session.Session, error)

// Callbacks are the hooks into the enclosing UI surfaces. All optional.
type Callbacks struct {
	// OnStatus appends a line to the connection-status surface.
	OnStatus func(line string)
	// OnStatusOpen re-opens the connection-status surface so a failure
	// is visible.
	OnStatusOpen func()
	// OnCaps publishes the negotiated remote feature set, so the UI
	// disables what the other side cannot do.
	OnCaps func(session.Capabilities)
	// OnChrome hides or restores the surrounding UI.
	OnChrome func(visible bool)
	// OnWarning surfaces a non-fatal user-facing message.
	OnWarning func(msg string)
	// OnConfig reports a live input-config replacement.
	OnConfig func(input.Config)
	// OnScreenKeyboard relays a remote request to show or hide the
	// on-screen keyboard.
	OnScreenKeyboard func(visible bool)
}

// Viewer is the session orchestrator.
type Viewer struct {
	conf config.ViewerConfig
	host host.Host
	dial Dialer
	cb   Callbacks
	log  *logger.Logger

	cfg     *input.Holder
	surface pump.Surface
	pump    *pump.Pump
	mux     *input.Multiplexer
	imm     *immersive.Controller
	store   *settings.Store
	m       *metrics

	sess    session.Session
	app     session.AppInfo
	remote  session.Resolution
	usePump bool
}

func New(conf config.ViewerConfig, h host.Host, surface pump.Surface, dial Dialer, cb Callbacks, log *logger.Logger) (*Viewer, error) {
	return newViewer(conf, h, surface, dial, cb, prometheus.DefaultRegisterer, log)
}

func newViewer(conf config.ViewerConfig, h host.Host, surface pump.Surface, dial Dialer, cb Callbacks,
	reg prometheus.Registerer, log *logger.Logger) (*Viewer, error) {
	store, err := settings.NewStore(conf.Viewer.SettingsDir, settings.Defaults(conf), log)
	if err != nil {
		return nil, err
	}
	saved := store.Load()

	v := &Viewer{
		conf:    conf,
		host:    h,
		surface: surface,
		dial:    dial,
		cb:      cb,
		log:     log,
		store:   store,
		m:       newMetrics(reg),
	}
	v.cfg = input.NewHolder(input.Config{
		Mouse:  input.ParseMouseMode(saved.MouseMode),
		Touch:  input.ParseTouchMode(saved.TouchMode),
		Scroll: input.ParseScrollMode(saved.ScrollMode),
		SwapAB: saved.SwapAB,
		SwapXY: saved.SwapXY,
	})
	v.usePump = saved.Renderer == RendererPump
	v.pump = pump.New(h.Caps(), surface, saved.QueueDepth, log)
	v.mux = input.New(v.cfg, v.viewport, log)
	v.imm = immersive.New(h, v.cfg, immersive.Callbacks{
		OnChrome:  cb.OnChrome,
		OnWarning: cb.OnWarning,
	}, saved.ImmersiveKeybind, log)

	if err := store.Watch(v.applySettings); err != nil {
		log.Warn().Err(err).Msg("settings watch unavailable")
	}
	return v, nil
}

// viewport reports where the remote picture currently sits on the
// page, bars excluded.
func (v *Viewer) viewport() host.Rect {
	remote := v.remote
	if remote.Empty() {
		remote = session.Resolution{W: v.conf.Presentation.Width, H: v.conf.Presentation.Height}
	}
	return screen.Viewport(v.host.Bounds(), host.Size{W: remote.W, H: remote.H})
}

// Surface is the presentation surface both renderers draw onto.
func (v *Viewer) Surface() pump.Surface { return v.surface }

// Immersion reports the current capture level, derived live.
func (v *Viewer) Immersion() immersive.Immersion { return v.imm.Immersion() }

// InputConfig reports the live input tuning snapshot.
func (v *Viewer) InputConfig() input.Config { return v.cfg.Load() }

// App reports the remote application metadata, when known.
func (v *Viewer) App() session.AppInfo { return v.app }

// RequestImmersion enters fullscreen (and, per the mouse mode, pointer
// lock) on an explicit user action.
func (v *Viewer) RequestImmersion() error { return v.imm.RequestFullscreen() }

// SetInputConfig replaces the live input tuning; last writer wins,
// readers observe it on their next event.
func (v *Viewer) SetInputConfig(c input.Config) {
	v.cfg.Store(c)
	if v.cb.OnConfig != nil {
		v.cb.OnConfig(c)
	}
}

// Run opens one session and drives the event loop until the session
// ends or ctx is cancelled. A terminated session is not redialed.
func (v *Viewer) Run(ctx context.Context) error {
	sess, err := v.dial(ctx)
	if err != nil {
		v.statusOpen()
		return fmt.Errorf("session dial: %w", err)
	}
	v.sess = sess
	v.mux.SetSink(countingSink{sink: sess.Input(), m: v.m})
	v.status("connecting")
	defer v.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			if done := v.handleSession(ev); done {
				return nil
			}
		case ev := <-v.host.Events():
			v.handleHost(ev)
		case <-v.host.Ticks():
			v.tick()
		}
	}
}

func (v *Viewer) shutdown() {
	v.m.framesDropped.Add(float64(v.pump.Detach()))
	v.mux.SetSink(nil)
	v.store.Close()
	if v.sess != nil {
		if err := v.sess.Close(); err != nil {
			v.log.Debug().Err(err).Msg("session close failed")
		}
		v.sess = nil
	}
}

// handleSession reacts to one lifecycle event; reports whether the
// session is over.
func (v *Viewer) handleSession(ev session.Event) bool {
	switch ev.T {
	case session.AppMetadata:
		v.app = ev.App
		v.status(fmt.Sprintf("loading %s", ev.App.Title))
	case session.StageStarting:
		v.status(ev.Stage)
	case session.StageComplete:
		v.status(ev.Stage + " done")
	case session.StageFailed:
		v.status(fmt.Sprintf("%s failed (%d)", ev.Stage, ev.ErrorCode))
		v.statusOpen()
	case session.ConnectionComplete:
		if !ev.Caps.Resolution.Empty() {
			v.remote = ev.Caps.Resolution
		}
		v.mux.SetCapabilities(ev.Caps)
		if v.cb.OnCaps != nil {
			v.cb.OnCaps(ev.Caps)
		}
		v.status("connected")
	case session.VideoTrackAvailable:
		v.adoptTrack(ev.Track)
	case session.ConnectionTerminated:
		v.status(fmt.Sprintf("connection terminated (%d)", ev.ErrorCode))
		v.statusOpen()
		return true
	case session.SessionError:
		v.status("error: " + ev.Message)
		v.statusOpen()
		return true
	case session.DebugLine:
		v.log.Debug().Msg(ev.Message)
	case session.KeyboardToggle:
		if v.cb.OnScreenKeyboard != nil {
			v.cb.OnScreenKeyboard(ev.Visible)
		}
	}
	return false
}

// adoptTrack hands the video track to the pump when the pump renderer
// was selected for this session; the native renderer consumes the
// track on its own. An unsupported pump falls back to native.
func (v *Viewer) adoptTrack(track session.Track) {
	if !v.usePump {
		return
	}
	if err := v.pump.Attach(track); err != nil {
		if errors.Is(err, pump.ErrRendererUnsupported) {
			v.usePump = false
			v.warn("canvas renderer unavailable, using the native one")
			return
		}
		v.log.Error().Err(err).Msg("track attach failed")
	}
}

func (v *Viewer) handleHost(ev host.Event) {
	switch ev.T {
	case host.FullscreenChanged, host.PointerLockChanged:
		v.m.captureFlips.Inc()
		v.imm.Handle(ev)
	case host.KeyDown:
		if v.imm.HandleKey(true, ev.Key) {
			return
		}
		v.mux.Handle(ev)
	case host.KeyUp:
		if v.imm.HandleKey(false, ev.Key) {
			return
		}
		v.mux.Handle(ev)
	case host.FocusLost:
		v.log.Debug().Msg("window focus lost")
	case host.Resized:
		// bounds are queried live, nothing cached to refresh
	default:
		v.mux.Handle(ev)
	}
}

// tick runs the per-refresh work: paint the pending frame and poll the
// continuous input sources.
func (v *Viewer) tick() {
	if v.pump.Tick() {
		v.m.framesPainted.Inc()
	}
	v.mux.Tick(v.host.Gamepad)
}

// applySettings runs on the settings watcher when the blob changes on
// disk. Input tuning applies immediately; renderer and queue depth are
// per-session choices picked up on the next dial.
func (v *Viewer) applySettings(s settings.Settings) {
	c := input.Config{
		Mouse:  input.ParseMouseMode(s.MouseMode),
		Touch:  input.ParseTouchMode(s.TouchMode),
		Scroll: input.ParseScrollMode(s.ScrollMode),
		SwapAB: s.SwapAB,
		SwapXY: s.SwapXY,
	}
	v.SetInputConfig(c)
	v.log.Debug().Msgf("settings reloaded, renderer=%s", s.Renderer)
}

func (v *Viewer) status(line string) {
	v.log.Info().Msg(line)
	if v.cb.OnStatus != nil {
		v.cb.OnStatus(line)
	}
}

func (v *Viewer) statusOpen() {
	if v.cb.OnStatusOpen != nil {
		v.cb.OnStatusOpen()
	}
}

func (v *Viewer) warn(msg string) {
	v.log.Warn().Msg(msg)
	if v.cb.OnWarning != nil {
		v.cb.OnWarning(msg)
	}
}

// countingSink wraps the session input sink with the sent-commands counter.
type countingSink struct {
	sink session.Sink
	m    *metrics
}

func (s countingSink) Send(data []byte) error {
	s.m.inputSent.Inc()
	return s.sink.Send(data)
}
