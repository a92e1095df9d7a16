package session

import (
	"fmt"

	"github.com/wilberth/SledBalls/internal/buttonbox"
)

// EventKind identifies an input event.
type EventKind int

const (
	EventConfirm EventKind = iota + 1
	EventScroll
	EventStartStop
	EventPause
	EventToggleStereo
	EventToggleStereoSim
	EventIntensity
	EventPointer
	EventForce
	EventQuit
)

func (k EventKind) String() string {
	switch k {
	case EventConfirm:
		return "confirm"
	case EventScroll:
		return "scroll"
	case EventStartStop:
		return "start-stop"
	case EventPause:
		return "pause"
	case EventToggleStereo:
		return "stereo"
	case EventToggleStereoSim:
		return "stereo-sim"
	case EventIntensity:
		return "intensity"
	case EventPointer:
		return "pointer"
	case EventForce:
		return "force"
	case EventQuit:
		return "quit"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is an input delivered to the controller between frames.
type Event struct {
	Kind EventKind
	// Delta is the step of scroll and intensity events.
	Delta int
	// X, Y, Width and Height are the pointer position and window size in
	// pixels of pointer events.
	X, Y, Width, Height float64
	// State is the target of force events.
	State State
}

func (e Event) String() string {
	switch e.Kind {
	case EventScroll, EventIntensity:
		return fmt.Sprintf("%v(%+d)", e.Kind, e.Delta)
	case EventPointer:
		return fmt.Sprintf("pointer(%.0f,%.0f)", e.X, e.Y)
	case EventForce:
		return fmt.Sprintf("force(%v)", e.State)
	default:
		return e.Kind.String()
	}
}

func ConfirmEvent() Event            { return Event{Kind: EventConfirm} }
func ScrollEvent(delta int) Event    { return Event{Kind: EventScroll, Delta: delta} }
func StartStopEvent() Event          { return Event{Kind: EventStartStop} }
func PauseEvent() Event              { return Event{Kind: EventPause} }
func IntensityEvent(delta int) Event { return Event{Kind: EventIntensity, Delta: delta} }
func QuitEvent() Event               { return Event{Kind: EventQuit} }

// ToggleStereoEvent switches between mono and the side-by-side (or, with
// sim, the simulated) stereo pair.
func ToggleStereoEvent(sim bool) Event {
	if sim {
		return Event{Kind: EventToggleStereoSim}
	}
	return Event{Kind: EventToggleStereo}
}

// ForceEvent moves the controller straight into s, skipping the entry
// conditions of the regular sequence.
func ForceEvent(s State) Event { return Event{Kind: EventForce, State: s} }

// PointerEvent reports the mouse at (x, y) in a width x height window.
func PointerEvent(x, y, width, height float64) Event {
	return Event{Kind: EventPointer, X: x, Y: y, Width: width, Height: height}
}

// ButtonEvent maps a button box press to its event.
func ButtonEvent(b buttonbox.Button) (Event, bool) {
	switch b {
	case buttonbox.Confirm:
		return ConfirmEvent(), true
	case buttonbox.ScrollDown:
		return ScrollEvent(-1), true
	case buttonbox.ScrollUp:
		return ScrollEvent(1), true
	case buttonbox.StartStop:
		return StartStopEvent(), true
	}
	return Event{}, false
}

// KeyEvent maps a line typed on the console to its event.
func KeyEvent(line string) (Event, bool) {
	switch line {
	case " ", "s":
		return StartStopEvent(), true
	case "c":
		return ConfirmEvent(), true
	case "+":
		return ScrollEvent(1), true
	case "-":
		return ScrollEvent(-1), true
	case "p":
		return PauseEvent(), true
	case "stereo":
		return ToggleStereoEvent(false), true
	case "sim":
		return ToggleStereoEvent(true), true
	case "<":
		return IntensityEvent(-1), true
	case ">":
		return IntensityEvent(1), true
	case "q":
		return QuitEvent(), true
	}
	return Event{}, false
}
