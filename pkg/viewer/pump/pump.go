// Package pump implements the canvas frame renderer: a cooperative
// read-one/paint-one/release loop that keeps the remote aspect ratio
// with letterbox or pillarbox bars. It is used only when the native
// renderer is unavailable or explicitly disabled.
package pump

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/cloudview/cloudview/pkg/host"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/session"
	"golang.org/x/image/draw"
)

var (
	// ErrRendererUnsupported is returned when the platform lacks
	// frame-level track processing; the caller falls back to the
	// native renderer.
	ErrRendererUnsupported = errors.New("canvas renderer unsupported")
	// ErrStreamRead marks a frame source failure or premature end.
	ErrStreamRead = errors.New("stream read failed")
)

// Surface is a drawable pixel buffer placed somewhere on the page.
type Surface interface {
	// Resize adjusts the backing pixel buffer; implementations may
	// refuse and keep their own size.
	Resize(w, h int)
	Image() *image.RGBA
	// Bounds reports the on-page placement for coordinate mapping.
	Bounds() host.Rect
	// Present pushes the buffer to the screen.
	Present()
}

// Pump pulls decoded frames from a track and paints them on the
// surface, one frame in flight at a time. Reads pace themselves against
// paints instead of buffering without bound.
type Pump struct {
	caps    host.Caps
	surface Surface
	log     *logger.Logger

	mu     sync.Mutex
	track  session.Track
	cancel context.CancelFunc
	frames chan *session.Frame
	depth  int
}

func New(caps host.Caps, surface Surface, depth int, log *logger.Logger) *Pump {
	if depth < 1 {
		depth = 1
	}
	return &Pump{caps: caps, surface: surface, depth: depth, log: log}
}

// Attach wires a track into the pump. Re-attaching the same track is a
// no-op; a different track tears the previous pipeline down first.
func (p *Pump) Attach(track session.Track) error {
	if !p.caps.FrameProcessing {
		return ErrRendererUnsupported
	}
	p.mu.Lock()
	if p.track != nil && p.track.Id() == track.Id() {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	p.Detach()

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan *session.Frame, p.depth-1)
	p.mu.Lock()
	p.track = track
	p.cancel = cancel
	p.frames = frames
	p.mu.Unlock()
	go p.read(ctx, track, frames)
	return nil
}

// read pulls one frame at a time; handing it over blocks until a paint
// consumes it, so at most one frame is ever in flight per queue slot.
func (p *Pump) read(ctx context.Context, track session.Track, frames chan *session.Frame) {
	for {
		frame, err := track.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Debug().Err(fmt.Errorf("%w: %v", ErrStreamRead, err)).Msg("frame pump detached")
				p.Detach()
			}
			return
		}
		select {
		case frames <- frame:
		case <-ctx.Done():
			frame.Release()
			return
		}
	}
}

// Tick paints the pending frame, if any, on the display refresh signal.
// Reports whether a paint happened.
func (p *Pump) Tick() bool {
	p.mu.Lock()
	frames := p.frames
	p.mu.Unlock()
	if frames == nil {
		return false
	}
	select {
	case frame := <-frames:
		p.paint(frame)
		return true
	default:
		return false
	}
}

func (p *Pump) paint(frame *session.Frame) {
	defer frame.Release()
	fw, fh := frame.Size()
	if fw == 0 || fh == 0 {
		return
	}
	// match the buffer density to the source so CSS scaling can't blur it
	p.surface.Resize(fw, fh)
	dst := p.surface.Image()
	sw, sh := dst.Rect.Dx(), dst.Rect.Dy()
	r := FitRect(sw, sh, fw, fh)
	if r.Dx() == fw && r.Dy() == fh {
		draw.Draw(dst, r, &frame.RGBA, frame.Rect.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, r, &frame.RGBA, frame.Rect, draw.Src, nil)
	}
	p.surface.Present()
}

// Detach cancels the in-flight read, releases any pending frame and
// clears the track. Safe to call repeatedly; must run on every exit
// path because frames are a release-tracked resource. Reports how many
// pending frames were dropped unpainted.
func (p *Pump) Detach() (dropped int) {
	p.mu.Lock()
	cancel, frames := p.cancel, p.frames
	p.track = nil
	p.cancel = nil
	p.frames = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if frames != nil {
		for {
			select {
			case frame := <-frames:
				frame.Release()
				dropped++
			default:
				return dropped
			}
		}
	}
	return dropped
}

// Attached reports whether a track is currently wired in.
func (p *Pump) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track != nil
}

// FitRect computes the draw rectangle that fills the surface while
// keeping the frame aspect ratio: height-fill with centered pillarbox
// bars when the surface is wider, width-fill with letterbox bars
// otherwise.
func FitRect(sw, sh, fw, fh int) image.Rectangle {
	if sw <= 0 || sh <= 0 || fw <= 0 || fh <= 0 {
		return image.Rectangle{}
	}
	if sw*fh > fw*sh {
		// surface is wider than the frame
		w := sh * fw / fh
		x := (sw - w) / 2
		return image.Rect(x, 0, x+w, sh)
	}
	h := sw * fh / fw
	y := (sh - h) / 2
	return image.Rect(0, y, sw, y+h)
}
