package sdl

import (
	"image"
	"unsafe"

	"github.com/cloudview/cloudview/pkg/host"
	"github.com/veandco/go-sdl2/sdl"
)

// Surface is the drawable pixel buffer of the window. The backing
// image tracks the stream's native resolution; presentation scales it
// onto whatever size the window currently has.
type Surface struct {
	host *Host
	img  *image.RGBA
}

func (h *Host) Surface() *Surface {
	w, ht := h.window.GetSize()
	return &Surface{host: h, img: image.NewRGBA(image.Rect(0, 0, int(w), int(ht)))}
}

func (s *Surface) Resize(w, h int) {
	if s.img.Rect.Dx() != w || s.img.Rect.Dy() != h {
		s.img = image.NewRGBA(image.Rect(0, 0, w, h))
	}
}

func (s *Surface) Image() *image.RGBA { return s.img }

func (s *Surface) Bounds() host.Rect { return s.host.Bounds() }

func (s *Surface) Present() {
	w, h := int32(s.img.Rect.Dx()), int32(s.img.Rect.Dy())
	if w == 0 || h == 0 {
		return
	}
	src, err := sdl.CreateRGBSurfaceWithFormatFrom(
		unsafe.Pointer(&s.img.Pix[0]), w, h, 32, w*4, sdl.PIXELFORMAT_ABGR8888)
	if err != nil {
		s.host.log.Error().Err(err).Msg("surface wrap failed")
		return
	}
	defer src.Free()
	dst, err := s.host.window.GetSurface()
	if err != nil {
		s.host.log.Error().Err(err).Msg("window surface unavailable")
		return
	}
	if err := src.BlitScaled(nil, dst, nil); err != nil {
		s.host.log.Error().Err(err).Msg("blit failed")
		return
	}
	if err := s.host.window.UpdateSurface(); err != nil {
		s.host.log.Error().Err(err).Msg("present failed")
	}
}
