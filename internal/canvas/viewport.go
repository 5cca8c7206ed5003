package canvas

import (
	"math"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

const (
	MinZoom  = 0.5
	MaxZoom  = 2.0
	ZoomStep = 0.1
)

// Viewport is the view transform between screen space and canvas space.
// Zoom is clamped to [MinZoom, MaxZoom]; Pan is unconstrained.
type Viewport struct {
	Zoom float64         `json:"zoom"`
	Pan  shared.Position `json:"pan"`
}

// NewViewport returns the identity transform.
func NewViewport() Viewport {
	return Viewport{Zoom: 1}
}

// ZoomIn raises zoom by one step.
func (v *Viewport) ZoomIn() { v.SetZoom(v.Zoom + ZoomStep) }

// ZoomOut lowers zoom by one step.
func (v *Viewport) ZoomOut() { v.SetZoom(v.Zoom - ZoomStep) }

// SetZoom clamps z into range. NaN is ignored.
func (v *Viewport) SetZoom(z float64) {
	if math.IsNaN(z) {
		return
	}
	v.Zoom = math.Max(MinZoom, math.Min(MaxZoom, z))
}

// PanBy translates the view.
func (v *Viewport) PanBy(delta shared.Position) {
	v.Pan = v.Pan.Add(delta)
}

// Reset restores zoom 1 and no pan.
func (v *Viewport) Reset() {
	*v = NewViewport()
}

// Percent is the zoom level as a rounded percentage.
func (v Viewport) Percent() int {
	return int(math.Round(v.Zoom * 100))
}

// ScreenToCanvas maps a screen point to canvas space. origin is the screen
// position of the canvas element's top-left corner.
func (v Viewport) ScreenToCanvas(p, origin shared.Position) shared.Position {
	return p.Sub(origin).Sub(v.Pan).Scale(1 / v.zoom())
}

// CanvasToScreen is the inverse of ScreenToCanvas.
func (v Viewport) CanvasToScreen(p, origin shared.Position) shared.Position {
	return p.Scale(v.zoom()).Add(v.Pan).Add(origin)
}

func (v Viewport) zoom() float64 {
	if v.Zoom == 0 {
		return 1
	}
	return v.Zoom
}
