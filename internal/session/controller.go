// Package session runs the trial state machine of a multiple object tracking
// experiment and drives the simulation, projection and logging once per
// display frame.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/balls"
	"github.com/wilberth/SledBalls/internal/conditions"
	"github.com/wilberth/SledBalls/internal/config"
	"github.com/wilberth/SledBalls/internal/monitoring"
	"github.com/wilberth/SledBalls/internal/response"
	"github.com/wilberth/SledBalls/internal/sled"
	"github.com/wilberth/SledBalls/internal/stereo"
	"github.com/wilberth/SledBalls/internal/timeutil"
)

// ErrQuit is returned by Frame after a quit event.
var ErrQuit = errors.New("quit requested")

const (
	defaultWaitDelay  = 3 * time.Second
	defaultStartDelay = 4 * time.Second
	eventQueueSize    = 64
)

// Options wires a Controller to its collaborators.
type Options struct {
	Clock      timeutil.Clock
	Simulator  *balls.Simulator
	Projector  *stereo.Projector
	Conditions ConditionProvider
	Log        TrialLog
	// LogPath is stored with every result as its trajectory file.
	LogPath string

	Platform MotionPlatform
	// Visual positions the viewer in visual tracking mode. If it also
	// accepts sled commands it is driven like the platform.
	Visual PositionSource
	// Tracker positions the viewer in combined and vestibular mode. When
	// the source of the mode is nil the viewer follows pointer events.
	Tracker      PositionSource
	TrackingMode string
	TrackerLead  time.Duration
	// Pointer turns tracking off: the viewer follows pointer events in
	// every tracking mode.
	Pointer bool

	Input    InputDevice
	Renderer Renderer

	ViewerDistance float64
	WaitDelay      time.Duration
	StartDelay     time.Duration
	// Running starts the first trial without waiting for a start/stop.
	Running bool
}

// Controller owns the session state. Except for Post, Snapshot and the
// admin routes, its methods must be called from a single goroutine.
type Controller struct {
	id         string
	clock      timeutil.Clock
	sim        *balls.Simulator
	proj       *stereo.Projector
	conditions ConditionProvider
	log        TrialLog
	logPath    string
	platform   MotionPlatform
	visual     PositionSource
	tracker    PositionSource
	mode       string
	lead       time.Duration
	pointer    bool
	input      InputDevice
	renderer   Renderer
	waitDelay  time.Duration
	startDelay time.Duration
	running    bool

	sched     Scheduler
	events    chan Event
	collector *response.Collector
	viewer    Viewer

	started        bool
	state          State
	trial          conditions.Trial
	exhausted      bool
	sleepRequested bool
	sinusoidOn     bool
	trialStart     time.Time
	lastFrame      time.Time
	frameTime      time.Time
	frame          uint64
	modeReported   bool
	results        []conditions.Record
	fs             FrameState

	dropped  atomic.Uint64
	snapshot atomic.Pointer[Snapshot]
}

// New returns a controller that has not yet entered its first state.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Simulator == nil:
		return nil, errors.New("session: simulator is required")
	case opts.Projector == nil:
		return nil, errors.New("session: projector is required")
	case opts.Conditions == nil:
		return nil, errors.New("session: condition provider is required")
	case opts.Log == nil:
		return nil, errors.New("session: trial log is required")
	}

	c := &Controller{
		id:         uuid.NewString(),
		clock:      opts.Clock,
		sim:        opts.Simulator,
		proj:       opts.Projector,
		conditions: opts.Conditions,
		log:        opts.Log,
		logPath:    opts.LogPath,
		platform:   opts.Platform,
		visual:     opts.Visual,
		tracker:    opts.Tracker,
		mode:       opts.TrackingMode,
		lead:       opts.TrackerLead,
		pointer:    opts.Pointer,
		input:      opts.Input,
		renderer:   opts.Renderer,
		waitDelay:  opts.WaitDelay,
		startDelay: opts.StartDelay,
		running:    opts.Running,
		events:     make(chan Event, eventQueueSize),
		collector:  response.NewCollector(0, nil),
		viewer:     NewViewer(opts.ViewerDistance),
	}
	if c.clock == nil {
		c.clock = timeutil.RealClock{}
	}
	if c.mode == "" {
		c.mode = config.TrackingVisual
	}
	if c.waitDelay <= 0 {
		c.waitDelay = defaultWaitDelay
	}
	if c.startDelay <= 0 {
		c.startDelay = defaultStartDelay
	}
	if c.viewer.z <= 0 {
		c.viewer = NewViewer(1.2)
	}
	c.publish()
	return c, nil
}

// ID returns the random id of this session.
func (c *Controller) ID() string { return c.id }

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Trial returns the trial being shown.
func (c *Controller) Trial() conditions.Trial { return c.trial }

// Viewer returns the viewer position.
func (c *Controller) Viewer() r3.Vec { return c.viewer.Position() }

// SleepRequested reports whether the session will sleep after the current
// trial.
func (c *Controller) SleepRequested() bool { return c.sleepRequested }

// Generation returns the scheduler generation; it changes on every state
// entry.
func (c *Controller) Generation() uint64 { return c.sched.Generation() }

// Collector returns the response collector of the current trial.
func (c *Controller) Collector() *response.Collector { return c.collector }

// Post queues an event for the next frame. It is safe for concurrent use and
// never blocks; it reports false if the queue was full and the event was
// dropped.
func (c *Controller) Post(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		c.dropped.Add(1)
		monitoring.Opsf("session %s: event queue full, dropping %v", c.id, ev)
		return false
	}
}

// Begin loads the first trial and enters Sleep, or Wait when the session was
// configured as running. Frame calls it if needed.
func (c *Controller) Begin(now time.Time) error {
	if c.started {
		return nil
	}
	c.started = true
	c.lastFrame = now
	c.frameTime = now
	monitoring.Opsf("session %s: %d trials, tracking mode %s", c.id, c.conditions.NTrial(), c.mode)

	if err := c.loadNextTrial(); err != nil {
		return err
	}
	first := Sleep
	if c.running && !c.exhausted {
		first = Wait
	}
	if err := c.enter(first, now); err != nil {
		return err
	}
	c.publish()
	return nil
}

func (c *Controller) loadNextTrial() error {
	if !c.conditions.Next() {
		c.exhausted = true
		c.sleepRequested = true
		monitoring.Opsf("session %s: all %d trials done", c.id, c.conditions.NTrial())
		return nil
	}
	c.trial = c.conditions.Trial()
	return c.resetBalls()
}

func (c *Controller) resetBalls() error {
	if err := c.sim.Reset(c.trial.NBalls, c.trial.NTargets, c.trial.SBalls); err != nil {
		return fmt.Errorf("trial %d: %w", c.conditions.ITrial(), err)
	}
	c.collector.Reset(c.trial.NBalls, c.sim.Targets())
	return nil
}

// enter performs the entry action of s. Delayed transitions are scheduled
// relative to now, which is the deadline of the timer that caused the entry.
func (c *Controller) enter(s State, now time.Time) error {
	if !s.Valid() {
		return &StateError{State: s}
	}
	prev := c.state
	c.sched.Bump()
	c.state = s
	monitoring.Diagf("session %s: %v -> %v, trial %d/%d", c.id, prev, s, c.conditions.ITrial()+1, c.conditions.NTrial())

	switch s {
	case Sleep:
		c.sleepRequested = false
		c.command(c.platform, sled.LightsOn)

	case Wait:
		c.command(c.platform, sled.LightsOff)
		c.sched.After(now.Add(c.waitDelay), func(now time.Time) error {
			return c.enter(Start, now)
		})

	case Start:
		c.sim.SetMotionTrigger(false)
		c.startSinusoid()
		if err := c.log.Close(); err != nil {
			return err
		}
		if err := c.log.Open(); err != nil {
			return err
		}
		c.sched.After(now.Add(c.startDelay), func(now time.Time) error {
			return c.enter(Running, now)
		})

	case Running:
		if !c.log.IsOpen() {
			if err := c.log.Open(); err != nil {
				return err
			}
		}
		c.sim.SetMotionTrigger(true)
		// Elapsed times are measured from the first recorded frame.
		c.trialStart = c.frameTime
		c.sched.After(now.Add(timeutil.FromSeconds(c.trial.LTrial)), func(now time.Time) error {
			return c.enter(Response, now)
		})

	case Response:
		c.sim.SetMotionTrigger(false)
		c.stopSinusoid()
		if err := c.log.Close(); err != nil {
			return err
		}
		c.collector.Reset(c.trial.NBalls, c.sim.Targets())
		c.collector.Enable(true)

	case Home:
		c.collector.Enable(false)
		result := conditions.Result{
			PCorrect:    c.collector.Score(),
			Response:    c.collector.Response(),
			TrajectFile: c.logPath,
		}
		c.conditions.AddData(result)
		c.results = c.conditions.Results()
		monitoring.Opsf("session %s: trial %d/%d pCorrect=%.3f response=%v targets=%v",
			c.id, c.conditions.ITrial()+1, c.conditions.NTrial(), result.PCorrect, result.Response, c.collector.Targets())

		if err := c.loadNextTrial(); err != nil {
			return err
		}
		if c.sleepRequested {
			return c.enter(Sleep, now)
		}
		return c.enter(Wait, now)
	}
	return nil
}

// Force enters s directly. An unknown state is reported as a *StateError
// and leaves the controller unchanged.
func (c *Controller) Force(s State, now time.Time) error {
	if !s.Valid() {
		return &StateError{State: s}
	}
	monitoring.Opsf("session %s: forcing %v from %v", c.id, s, c.state)
	if now.After(c.frameTime) {
		c.frameTime = now
	}
	return c.enter(s, now)
}

func (c *Controller) startStop(now time.Time) error {
	switch c.state {
	case Sleep:
		if c.exhausted {
			monitoring.Opsf("session %s: no trials left, not resuming", c.id)
			return nil
		}
		return c.enter(Wait, now)
	case Wait, Start, Running:
		return c.abort(now)
	default:
		c.sleepRequested = true
		return nil
	}
}

// abort stops the current trial and goes to sleep. The same trial is shown
// again after the next resume.
func (c *Controller) abort(now time.Time) error {
	monitoring.Opsf("session %s: trial %d aborted in %v", c.id, c.conditions.ITrial()+1, c.state)
	c.sim.SetMotionTrigger(false)
	c.stopSinusoid()
	if c.log.IsOpen() {
		if err := c.log.Close(); err != nil {
			return err
		}
	}
	if err := c.resetBalls(); err != nil {
		return err
	}
	return c.enter(Sleep, now)
}

// movesPlatform reports whether sinusoid commands go to the real platform.
// In visual mode only the simulated sled moves.
func (c *Controller) movesPlatform() bool {
	return c.mode != config.TrackingVisual
}

func (c *Controller) sinusoidTargets() []MotionPlatform {
	var out []MotionPlatform
	if c.movesPlatform() && c.platform != nil {
		out = append(out, c.platform)
	}
	if vp, ok := c.visual.(MotionPlatform); ok && vp != c.platform {
		out = append(out, vp)
	}
	return out
}

func (c *Controller) startSinusoid() {
	cmd := sled.SinusoidStart(c.trial.Amplitude, c.trial.Period)
	for _, p := range c.sinusoidTargets() {
		c.command(p, cmd)
	}
	c.sinusoidOn = true
}

func (c *Controller) stopSinusoid() {
	if !c.sinusoidOn {
		return
	}
	for _, p := range c.sinusoidTargets() {
		c.command(p, sled.SinusoidStop)
	}
	c.sinusoidOn = false
}

func (c *Controller) command(p MotionPlatform, text string) {
	if p == nil {
		return
	}
	if err := p.SendCommand(text); err != nil {
		monitoring.Opsf("session %s: sled command %q failed: %v", c.id, text, err)
	}
}

// Shutdown stops the sled, closes an open log block and turns the lights
// on.
func (c *Controller) Shutdown() error {
	c.sched.Bump()
	c.sim.SetMotionTrigger(false)
	c.stopSinusoid()
	var err error
	if c.log.IsOpen() {
		err = c.log.Close()
	}
	c.command(c.platform, sled.LightsOn)
	return err
}

// Run calls Frame on every tick of a ticker with the given interval until
// ctx is done, a quit event arrives or a frame fails.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	if err := c.Begin(c.clock.Now()); err != nil {
		return err
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.Shutdown()
		case now := <-ticker.C():
			err := c.Frame(now)
			if errors.Is(err, ErrQuit) {
				return c.Shutdown()
			}
			if err != nil {
				return errors.Join(err, c.Shutdown())
			}
		}
	}
}
