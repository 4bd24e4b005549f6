package rtc

import (
	"context"
	"image"
	"net"
	"sync"
	"time"

	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/session"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

// readTick bounds a blocking RTP read so cancellation is observed.
const readTick = 250 * time.Millisecond

// Decoder turns RTP payloads into pictures. Returns nil without error
// while an access unit is still incomplete.
type Decoder interface {
	Decode(payload []byte) (*image.RGBA, error)
}

// noopDecoder drops every payload. Used when no decoder collaborator
// is wired in and the native renderer consumes the stream directly.
type noopDecoder struct{}

func (noopDecoder) Decode([]byte) (*image.RGBA, error) { return nil, nil }

// rtpSource is the slice of pion's TrackRemote the track needs.
type rtpSource interface {
	ID() string
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
	SetReadDeadline(t time.Time) error
}

// Track adapts a remote RTP track to the frame-pull contract. Frames
// come from a pool; the release hook puts them back, so a painted and
// released frame costs no allocation on the next decode.
type Track struct {
	src  rtpSource
	dec  Decoder
	pool sync.Pool
	log  *logger.Logger
}

func newTrack(src rtpSource, dec Decoder, log *logger.Logger) *Track {
	return &Track{src: src, dec: dec, log: log}
}

func (t *Track) Id() string { return t.src.ID() }

// Read blocks until the next decoded frame or ctx cancellation.
func (t *Track) Read(ctx context.Context) (*session.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_ = t.src.SetReadDeadline(time.Now().Add(readTick))
		packet, _, err := t.src.ReadRTP()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return nil, err
		}
		img, err := t.dec.Decode(packet.Payload)
		if err != nil {
			return nil, err
		}
		if img == nil {
			continue
		}
		return t.wrap(img), nil
	}
}

// wrap copies the decoded picture into a pooled buffer; decoders are
// free to reuse theirs on the next call.
func (t *Track) wrap(img *image.RGBA) *session.Frame {
	buf, _ := t.pool.Get().(*image.RGBA)
	if buf == nil || buf.Rect != img.Rect {
		buf = image.NewRGBA(img.Rect)
	}
	copy(buf.Pix, img.Pix)
	out := buf
	return session.NewFrame(*out, func() { t.pool.Put(out) })
}
