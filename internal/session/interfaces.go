package session

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/conditions"
)

// ConditionProvider hands out the trials of an experiment and stores their
// results.
type ConditionProvider interface {
	Next() bool
	Trial() conditions.Trial
	ITrial() int
	NTrial() int
	AddData(conditions.Result)
	Results() []conditions.Record
}

// MotionPlatform is the sled, real or simulated.
type MotionPlatform interface {
	SendCommand(text string) error
	Goto(position float64) error
}

// PositionSource reports marker positions in its own time base.
type PositionSource interface {
	Time() float64
	GetPosition(t float64) ([]r3.Vec, bool)
}

// InputDevice is the output side of the button box. Button presses arrive
// as posted events.
type InputDevice interface {
	SetLeds([8]bool) error
}

// TrialLog receives ball positions while a trial runs.
type TrialLog interface {
	Open() error
	Record(elapsed float64, positions []r3.Vec) error
	Close() error
	IsOpen() bool
}

// Renderer draws a frame. The FrameState is reused between frames and must
// not be retained.
type Renderer interface {
	Render(*FrameState) error
}
