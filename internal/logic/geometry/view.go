// Package geometry converts UI gestures into capture parameters.
package geometry

import "github.com/cjeanneret/CamGo/internal/logic/params"

// Size is a width/height pair in pixels (or points, for views).
type Size struct {
	Width  float64
	Height float64
}

// Valid reports whether both sides are positive.
func (s Size) Valid() bool { return s.Width > 0 && s.Height > 0 }

// Aspect returns width / height.
func (s Size) Aspect() float64 { return s.Width / s.Height }

// FillScale returns the scale at which frame covers view entirely
// (aspect-fill, the way the preview is drawn).
// Formula: scale = max(view_w / frame_w, view_h / frame_h)
func FillScale(view, frame Size) float64 {
	sx := view.Width / frame.Width
	sy := view.Height / frame.Height
	if sx > sy {
		return sx
	}
	return sy
}

// ViewToDevice maps a tap at (x, y) in view coordinates to a normalized
// device point of interest. The preview is drawn aspect-fill, so part of
// the frame is cropped on one axis; the crop is undone before normalizing.
//
// Formula (per axis):
//
//	offset = (frame * scale - view) / 2
//	device = (view_coord + offset) / (frame * scale)
//
// The result is clamped to [0,1]. Invalid sizes map to the center.
func ViewToDevice(view, frame Size, x, y float64) params.Point {
	if !view.Valid() || !frame.Valid() {
		return params.Point{X: 0.5, Y: 0.5}
	}
	scale := FillScale(view, frame)
	drawnW := frame.Width * scale
	drawnH := frame.Height * scale
	offX := (drawnW - view.Width) / 2
	offY := (drawnH - view.Height) / 2
	return params.Point{
		X: clamp01((x + offX) / drawnW),
		Y: clamp01((y + offY) / drawnH),
	}
}

// DeviceToView is the inverse of ViewToDevice, used to draw the focus
// reticle where the device is focusing.
func DeviceToView(view, frame Size, p params.Point) (x, y float64) {
	if !view.Valid() || !frame.Valid() {
		return view.Width / 2, view.Height / 2
	}
	scale := FillScale(view, frame)
	drawnW := frame.Width * scale
	drawnH := frame.Height * scale
	return p.X*drawnW - (drawnW-view.Width)/2, p.Y*drawnH - (drawnH-view.Height)/2
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
