package rtc

import (
	"context"
	"image"
	"io"
	"testing"
	"time"

	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

type fakeSource struct {
	packets [][]byte
	err     error
}

func (f *fakeSource) ID() string { return "video-1" }

func (f *fakeSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(f.packets) == 0 {
		if f.err != nil {
			return nil, nil, f.err
		}
		return nil, nil, timeoutError{}
	}
	payload := f.packets[0]
	f.packets = f.packets[1:]
	return &rtp.Packet{Payload: payload}, nil, nil
}

func (f *fakeSource) SetReadDeadline(time.Time) error { return nil }

type timeoutError struct{}

func (timeoutError) Error() string   { return "deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// countDecoder emits a frame for every non-empty payload and skips
// empty ones, like a decoder waiting out a partial access unit.
type countDecoder struct {
	decodes int
}

func (d *countDecoder) Decode(payload []byte) (*image.RGBA, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	d.decodes++
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Pix[0] = payload[0]
	return img, nil
}

func TestTrackReadDecodes(t *testing.T) {
	src := &fakeSource{packets: [][]byte{{}, {0xaa}}}
	track := newTrack(src, &countDecoder{}, logger.Default())

	frame, err := track.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() = %v", err)
	}
	defer frame.Release()
	if w, h := frame.Size(); w != 4 || h != 2 {
		t.Errorf("frame size = %dx%d, want 4x2", w, h)
	}
	if frame.Pix[0] != 0xaa {
		t.Errorf("frame pixel = %#x, want the decoded 0xaa", frame.Pix[0])
	}
}

func TestTrackReusesReleasedFrames(t *testing.T) {
	src := &fakeSource{packets: [][]byte{{1}, {2}}}
	track := newTrack(src, &countDecoder{}, logger.Default())

	first, err := track.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() = %v", err)
	}
	buf := &first.Pix[0]
	first.Release()

	second, err := track.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() = %v", err)
	}
	defer second.Release()
	if &second.Pix[0] != buf {
		t.Error("released frame buffer not reused")
	}
	if second.Pix[0] != 2 {
		t.Errorf("reused frame pixel = %d, want the fresh decode", second.Pix[0])
	}
}

func TestTrackReadCancel(t *testing.T) {
	src := &fakeSource{} // only timeouts
	track := newTrack(src, &countDecoder{}, logger.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := track.Read(ctx); err != context.Canceled {
		t.Errorf("Read() = %v, want %v", err, context.Canceled)
	}
}

func TestTrackReadError(t *testing.T) {
	src := &fakeSource{err: io.EOF}
	track := newTrack(src, &countDecoder{}, logger.Default())
	if _, err := track.Read(context.Background()); err != io.EOF {
		t.Errorf("Read() = %v, want %v", err, io.EOF)
	}
}
