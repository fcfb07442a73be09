// Package view owns the screen-space/model-space affine transform: a zoom
// factor and a pan offset. Screen = model*zoom + pan; ToModel applies the
// inverse so pointer events and stored positions live in the same space.
package view

import (
	"gonum.org/v1/gonum/spatial/r2"

	"topoviz/internal/layout"
)

const (
	MinZoom = 0.2
	MaxZoom = 3.0

	// Wheel deltas arrive in device units (typically around +-100 per
	// notch); the sensitivity scales them into zoom-factor space.
	ZoomSensitivity = 0.001

	// Delta applied per explicit zoom-in/zoom-out button press, chosen to
	// step the factor by 0.2.
	ButtonZoomDelta = 200
)

// Transform is process-local view state: it lives for the page's lifetime
// and only an explicit Reset returns it to the identity view. Not safe for
// concurrent use; the owning session serializes access.
type Transform struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
}

func New() Transform {
	return Transform{Zoom: 1}
}

// ZoomBy adjusts the factor by -delta*sensitivity, clamped to
// [MinZoom, MaxZoom]. Zoom is anchored at the transform origin, not the
// cursor.
func (t *Transform) ZoomBy(delta float64) {
	t.Zoom = clamp(t.Zoom-delta*ZoomSensitivity, MinZoom, MaxZoom)
}

// PanBy translates the view by a screen-space delta.
func (t *Transform) PanBy(dx, dy float64) {
	t.PanX += dx
	t.PanY += dy
}

// ToModel converts a screen-space point to model space.
func (t Transform) ToModel(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: (p.X - t.PanX) / t.Zoom,
		Y: (p.Y - t.PanY) / t.Zoom,
	}
}

// ToScreen converts a model-space point to screen space.
func (t Transform) ToScreen(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: p.X*t.Zoom + t.PanX,
		Y: p.Y*t.Zoom + t.PanY,
	}
}

func (t *Transform) Reset() {
	t.Zoom = 1
	t.PanX = 0
	t.PanY = 0
}

// FitTo frames all given positions inside a canvasWidth x canvasHeight
// screen with the given padding, clamped to the zoom bounds. With no
// positions it resets instead.
func (t *Transform) FitTo(positions map[int64]layout.Position, canvasWidth, canvasHeight, padding float64) {
	if len(positions) == 0 {
		t.Reset()
		return
	}

	first := true
	var minX, minY, maxX, maxY float64
	for _, p := range positions {
		if first {
			minX, maxX = p.X, p.X
			minY, maxY = p.Y, p.Y
			first = false
			continue
		}
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	w := maxX - minX
	h := maxY - minY
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}

	zx := (canvasWidth - 2*padding) / w
	zy := (canvasHeight - 2*padding) / h
	z := zx
	if zy < z {
		z = zy
	}
	t.Zoom = clamp(z, MinZoom, MaxZoom)
	t.PanX = canvasWidth/2 - (minX+w/2)*t.Zoom
	t.PanY = canvasHeight/2 - (minY+h/2)*t.Zoom
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
