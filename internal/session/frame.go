package session

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/config"
	"github.com/wilberth/SledBalls/internal/monitoring"
	"github.com/wilberth/SledBalls/internal/stereo"
	"github.com/wilberth/SledBalls/internal/timeutil"
)

// FrameState is everything a renderer needs to draw one frame.
type FrameState struct {
	Frame  uint64
	State  State
	Paused bool
	Viewer r3.Vec
	Views  []stereo.View
	Balls  []r3.Vec
	Radius float64
	// Highlight marks the targets during Start and the chosen balls during
	// Response.
	Highlight []bool
	// Cursor is the ball under the response cursor, or -1.
	Cursor int
	Leds   [8]bool
}

// Frame advances the session to now: it handles queued events, fires due
// timers, moves the viewer, steps the balls, logs them and renders. A
// returned error is fatal for the session.
func (c *Controller) Frame(now time.Time) error {
	if !c.started {
		if err := c.Begin(now); err != nil {
			return err
		}
	}
	c.frameTime = now
	if err := c.drain(now); err != nil {
		return err
	}
	if err := c.nonFatal(c.sched.Fire(now)); err != nil {
		return err
	}

	c.track()

	dt := timeutil.Seconds(now.Sub(c.lastFrame))
	c.lastFrame = now
	c.sim.Step(dt)

	if c.state == Running && c.sim.MotionTrigger() {
		elapsed := timeutil.Seconds(now.Sub(c.trialStart))
		if err := c.log.Record(elapsed, c.sim.Positions()); err != nil {
			return fmt.Errorf("frame %d: %w", c.frame, err)
		}
	}

	leds := c.leds()
	if c.input != nil {
		if err := c.input.SetLeds(leds); err != nil {
			monitoring.Diagf("session %s: %v", c.id, err)
		}
	}

	fs := c.frameState(leds)
	if monitoring.TraceEnabled() {
		monitoring.Tracef("frame %d %v viewer=(%.3f,%.3f,%.3f) balls=%d", fs.Frame, fs.State, fs.Viewer.X, fs.Viewer.Y, fs.Viewer.Z, len(fs.Balls))
	}
	if c.renderer != nil {
		if err := c.renderer.Render(fs); err != nil {
			return fmt.Errorf("rendering frame %d: %w", c.frame, err)
		}
	}

	c.frame++
	c.publish()
	return nil
}

func (c *Controller) drain(now time.Time) error {
	for {
		select {
		case ev := <-c.events:
			if err := c.nonFatal(c.handle(ev, now)); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// nonFatal logs and swallows state errors.
func (c *Controller) nonFatal(err error) error {
	var se *StateError
	if errors.As(err, &se) {
		monitoring.Opsf("session %s: %v, staying in %v", c.id, err, c.state)
		return nil
	}
	return err
}

func (c *Controller) handle(ev Event, now time.Time) error {
	monitoring.Diagf("session %s: event %v in %v", c.id, ev, c.state)
	switch ev.Kind {
	case EventConfirm:
		if c.state != Response {
			return nil
		}
		c.collector.Confirm()
		if c.collector.Complete() {
			return c.enter(Home, now)
		}
	case EventScroll:
		c.collector.Scroll(ev.Delta)
	case EventStartStop:
		return c.startStop(now)
	case EventPause:
		if c.state != Sleep {
			c.sleepRequested = true
		}
	case EventToggleStereo:
		c.proj.ToggleStereo(false, false)
	case EventToggleStereoSim:
		c.proj.ToggleStereo(false, true)
	case EventIntensity:
		if !c.proj.AdjustIntensity(ev.Delta) {
			monitoring.Diagf("session %s: intensity level %d is at its limit", c.id, c.proj.IntensityLevel())
		}
	case EventPointer:
		if c.source() == nil {
			x, y := PointerToScreen(c.proj.Screen(), ev.X, ev.Y, ev.Width, ev.Height)
			c.viewer.MoveXY(x, y)
		}
	case EventForce:
		return c.Force(ev.State, now)
	case EventQuit:
		return ErrQuit
	default:
		monitoring.Diagf("session %s: ignoring event %v", c.id, ev)
	}
	return nil
}

// source returns the position source of the tracking mode, or nil when the
// viewer follows the pointer instead.
func (c *Controller) source() PositionSource {
	if c.pointer {
		return nil
	}
	switch c.mode {
	case config.TrackingVisual:
		return c.visual
	case config.TrackingCombined, config.TrackingVestibular:
		return c.tracker
	}
	return nil
}

// track moves the viewer to the position reported for the tracking mode.
func (c *Controller) track() {
	if c.pointer {
		return
	}
	var lead time.Duration
	switch c.mode {
	case config.TrackingVisual:
	case config.TrackingCombined, config.TrackingVestibular:
		lead = c.lead
	default:
		if !c.modeReported {
			monitoring.Opsf("session %s: tracking mode not recognized: %q", c.id, c.mode)
			c.modeReported = true
		}
		return
	}
	src := c.source()
	if src == nil {
		return
	}
	markers, ok := src.GetPosition(src.Time() + timeutil.Seconds(lead))
	if !ok || len(markers) == 0 {
		return
	}
	c.viewer.MoveXY(markers[0].X, markers[0].Y)
}

// leds opens both shutters for mono and alternates them every frame for
// stereo.
func (c *Controller) leds() [8]bool {
	var l [8]bool
	if c.proj.ViewSet() == stereo.All {
		l[0], l[1] = true, true
		return l
	}
	even := c.frame%2 == 0
	l[0], l[1] = even, !even
	return l
}

func (c *Controller) frameState(leds [8]bool) *FrameState {
	fs := &c.fs
	fs.Frame = c.frame
	fs.State = c.state
	fs.Paused = c.state == Sleep
	fs.Viewer = c.viewer.Position()
	fs.Views = c.proj.Views(fs.Viewer)
	fs.Balls = c.sim.Positions()
	fs.Radius = c.sim.Config().Radius
	fs.Leds = leds
	fs.Cursor = -1

	n := len(fs.Balls)
	if cap(fs.Highlight) < n {
		fs.Highlight = make([]bool, n)
	}
	fs.Highlight = fs.Highlight[:n]
	for i := range fs.Highlight {
		switch c.state {
		case Start:
			fs.Highlight[i] = c.sim.IsTarget(i)
		case Response:
			fs.Highlight[i] = c.collector.Chosen(i)
		default:
			fs.Highlight[i] = false
		}
	}
	if c.state == Response {
		fs.Cursor = c.collector.Cursor()
	}
	return fs
}
