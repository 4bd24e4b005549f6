// Package screen holds the viewport math: where the remote picture
// actually sits inside a differently-proportioned box, and how pointer
// coordinates map back into the stream space.
package screen

import "github.com/cloudview/cloudview/pkg/host"

// Viewport returns the sub-rectangle of box covered by the remote
// picture, compensating for the letterbox or pillarbox bars the
// renderer adds when the aspect ratios differ. The result is always
// contained in box and keeps the remote aspect ratio.
func Viewport(box host.Rect, remote host.Size) host.Rect {
	if box.Empty() || remote.W <= 0 || remote.H <= 0 {
		return host.Rect{}
	}
	boxAspect := box.W / box.H
	remoteAspect := float64(remote.W) / float64(remote.H)
	if boxAspect > remoteAspect {
		// pillarbox: bars left and right
		scale := box.H / float64(remote.H)
		w := float64(remote.W) * scale
		return host.Rect{X: box.X + (box.W-w)/2, Y: box.Y, W: w, H: box.H}
	}
	// letterbox: bars above and below
	scale := box.W / float64(remote.W)
	h := float64(remote.H) * scale
	return host.Rect{X: box.X, Y: box.Y + (box.H-h)/2, W: box.W, H: h}
}

// Normalize maps a page coordinate into [0,1]×[0,1] stream space
// relative to the viewport. Points over the bars clamp to the edge,
// they are never forwarded as out-of-range.
func Normalize(v host.Rect, x, y float64) (fx, fy float64) {
	if v.Empty() {
		return 0, 0
	}
	return clamp((x - v.X) / v.W), clamp((y - v.Y) / v.H)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
