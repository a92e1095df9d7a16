// Package stereo computes per-eye view transforms for an off-axis stereo
// display and the crosstalk compensation that goes with them.
package stereo

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ZFocal is the model-space z of the physical screen.
const ZFocal = 0.0

// Eye identifies which image is being drawn.
type Eye int

const (
	Mono Eye = iota
	Left
	Right
	LeftSim
	RightSim
)

func (e Eye) String() string {
	switch e {
	case Mono:
		return "mono"
	case Left:
		return "left"
	case Right:
		return "right"
	case LeftSim:
		return "left-sim"
	case RightSim:
		return "right-sim"
	default:
		return fmt.Sprintf("Eye(%d)", int(e))
	}
}

// IsLeft reports whether e is drawn for the left eye.
func (e Eye) IsLeft() bool { return e == Left || e == LeftSim }

// IsRight reports whether e is drawn for the right eye.
func (e Eye) IsRight() bool { return e == Right || e == RightSim }

// Offset returns the lateral displacement of the eye from the viewer centre.
func (e Eye) Offset(separation float64) float64 {
	switch {
	case e.IsLeft():
		return -separation / 2
	case e.IsRight():
		return separation / 2
	default:
		return 0
	}
}

// ViewSet is the list of eyes rendered every frame.
type ViewSet int

const (
	// All draws one image for both eyes.
	All ViewSet = iota
	// Stereo draws left and right images side by side.
	Stereo
	// StereoSim draws both images full-window on top of each other.
	StereoSim
)

func (v ViewSet) String() string {
	switch v {
	case All:
		return "all"
	case Stereo:
		return "stereo"
	case StereoSim:
		return "stereo-sim"
	default:
		return fmt.Sprintf("ViewSet(%d)", int(v))
	}
}

// Eyes returns the eyes drawn for the view set in draw order.
func (v ViewSet) Eyes() []Eye {
	switch v {
	case Stereo:
		return []Eye{Left, Right}
	case StereoSim:
		return []Eye{LeftSim, RightSim}
	default:
		return []Eye{Mono}
	}
}

// Screen is the physical display geometry in metres. Objects are drawn
// between ZFar and ZNear.
type Screen struct {
	Width, Height float64
	ZNear, ZFar   float64
}

// View is the transform and intensity for drawing one eye.
type View struct {
	Eye       Eye
	Eyepoint  r3.Vec
	Matrix    *mat.Dense
	Intensity float64
}

// Rect is a viewport in window pixels, origin bottom left.
type Rect struct {
	X, Y, Width, Height int
}

// Viewport returns where eye is drawn in a width x height window: the left
// or right half for side-by-side stereo, the whole window otherwise.
func Viewport(eye Eye, width, height int) Rect {
	switch eye {
	case Left:
		return Rect{X: 0, Y: 0, Width: width / 2, Height: height}
	case Right:
		return Rect{X: width / 2, Y: 0, Width: width / 2, Height: height}
	default:
		return Rect{X: 0, Y: 0, Width: width, Height: height}
	}
}

// Projector holds the per-session stereo configuration.
type Projector struct {
	screen     Screen
	separation float64
	viewSet    ViewSet
	level      int
	active     Eye
}

// NewProjector returns a mono projector for the given screen and eye
// separation.
func NewProjector(screen Screen, eyeSeparation float64) *Projector {
	return &Projector{screen: screen, separation: eyeSeparation, viewSet: All}
}

// Screen returns the screen geometry.
func (p *Projector) Screen() Screen { return p.screen }

// ViewSet returns the eyes currently rendered.
func (p *Projector) ViewSet() ViewSet { return p.viewSet }

// SetViewSet selects the eyes to render.
func (p *Projector) SetViewSet(v ViewSet) { p.viewSet = v }

// ToggleStereo switches to the stereo pair (simulated if sim) when on is set
// or the display is mono, and back to mono otherwise.
func (p *Projector) ToggleStereo(on, sim bool) {
	if on || p.viewSet == All {
		if sim {
			p.viewSet = StereoSim
		} else {
			p.viewSet = Stereo
		}
		return
	}
	p.viewSet = All
}

// IntensityLevel returns the current left/right balance.
func (p *Projector) IntensityLevel() int { return p.level }

// SetIntensity sets the balance, clamped to [-9, 9].
func (p *Projector) SetIntensity(level int) {
	p.level = ClampIntensityLevel(level)
}

// AdjustIntensity shifts the balance by delta if the result stays within
// [-9, 9] and reports whether it did.
func (p *Projector) AdjustIntensity(delta int) bool {
	next := p.level + delta
	if next < MinIntensityLevel || next > MaxIntensityLevel {
		return false
	}
	p.level = next
	return true
}

// ActiveEye returns the eye of the most recent View call.
func (p *Projector) ActiveEye() Eye { return p.active }

// View computes the transform for eye with the viewer at viewer and marks
// eye as active.
func (p *Projector) View(eye Eye, viewer r3.Vec) View {
	p.active = eye
	x := viewer.X + eye.Offset(p.separation)
	z := viewer.Z
	return View{
		Eye:      eye,
		Eyepoint: r3.Vec{X: x, Y: viewer.Y, Z: z},
		Matrix: OffAxis(p.screen.Width, p.screen.Height,
			z-p.screen.ZNear, z-ZFocal, z-p.screen.ZFar,
			x, viewer.Y),
		Intensity: Intensity(eye, p.level),
	}
}

// Views computes the transforms for every eye of the current view set.
func (p *Projector) Views(viewer r3.Vec) []View {
	eyes := p.viewSet.Eyes()
	out := make([]View, 0, len(eyes))
	for _, eye := range eyes {
		out = append(out, p.View(eye, viewer))
	}
	return out
}
