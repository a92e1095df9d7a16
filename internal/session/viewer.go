package session

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/stereo"
)

// Viewer is the position of the point between the subject's eyes. Its
// distance to the screen is fixed for the session.
type Viewer struct {
	x, y float64
	z    float64
}

// NewViewer returns a viewer centred in front of the screen at distance z.
func NewViewer(z float64) Viewer { return Viewer{z: z} }

// Position returns the current viewer position.
func (v Viewer) Position() r3.Vec { return r3.Vec{X: v.x, Y: v.y, Z: v.z} }

// MoveX moves the viewer sideways and back to eye height 0.
func (v *Viewer) MoveX(x float64) { v.MoveXY(x, 0) }

// MoveXY moves the viewer in the plane parallel to the screen.
func (v *Viewer) MoveXY(x, y float64) {
	v.x, v.y = x, y
}

// PointerToScreen maps a pointer position in window pixels (origin top left)
// to screen coordinates in metres (origin centre, y up).
func PointerToScreen(screen stereo.Screen, px, py, width, height float64) (x, y float64) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	return screen.Width * (px/width - .5), screen.Height * (.5 - py/height)
}
