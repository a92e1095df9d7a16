package sled

import (
	"context"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/monitoring"
	"github.com/wilberth/SledBalls/internal/timeutil"
)

type motion int

const (
	still motion = iota
	moving
	oscillating
)

// Simulator stands in for a sled server. It is safe for concurrent use.
type Simulator struct {
	clock timeutil.Clock
	epoch time.Time

	mu        sync.Mutex
	lights    bool
	motion    motion
	base      float64 // position when the current motion started
	target    float64
	t0        float64
	duration  float64
	amplitude float64
	period    float64
}

// NewSimulator returns a simulated sled at rest at 0 with the lights on.
func NewSimulator(clock timeutil.Clock) *Simulator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Simulator{clock: clock, epoch: clock.Now(), lights: true}
}

// Connect is a no-op.
func (s *Simulator) Connect(ctx context.Context, address string) error { return nil }

// StartStream is a no-op.
func (s *Simulator) StartStream(ctx context.Context) error { return nil }

// StopStream is a no-op.
func (s *Simulator) StopStream() {}

// Close is a no-op.
func (s *Simulator) Close() error { return nil }

// Time returns seconds since the simulator was created.
func (s *Simulator) Time() float64 {
	return timeutil.Seconds(s.clock.Since(s.epoch))
}

// SendCommand interprets a sled command.
func (s *Simulator) SendCommand(text string) error {
	cmd, err := ParseCommand(text)
	if err != nil {
		return err
	}
	now := s.Time()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd.Name {
	case LightsOn:
		s.lights = true
	case LightsOff:
		s.lights = false
	case "Sinusoid Start":
		s.base = s.positionAt(now)
		s.motion = oscillating
		s.t0 = now
		s.amplitude, s.period = cmd.Args[0], cmd.Args[1]
	case SinusoidStop:
		s.hold(now)
	case "Goto":
		s.startMove(now, cmd.Args[0], cmd.Args[1])
	}
	monitoring.Tracef("sled simulator: %q at t=%.3f", text, now)
	return nil
}

// Goto moves the simulated sled to position in MoveTime seconds.
func (s *Simulator) Goto(position float64) error {
	now := s.Time()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startMove(now, position, MoveTime)
	return nil
}

// Warp puts the simulated sled at position immediately.
func (s *Simulator) Warp(position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motion = still
	s.base = position
}

// Lights reports whether the lights are on.
func (s *Simulator) Lights() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lights
}

// Position returns the sled position now.
func (s *Simulator) Position() float64 {
	now := s.Time()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionAt(now)
}

// GetPosition returns the sled position at simulator time t as a single
// marker.
func (s *Simulator) GetPosition(t float64) ([]r3.Vec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []r3.Vec{{X: s.positionAt(t)}}, true
}

func (s *Simulator) hold(now float64) {
	s.base = s.positionAt(now)
	s.motion = still
}

func (s *Simulator) startMove(now, target, duration float64) {
	s.base = s.positionAt(now)
	if duration <= 0 {
		s.base = target
		s.motion = still
		return
	}
	s.motion = moving
	s.t0 = now
	s.target = target
	s.duration = duration
}

// positionAt must be called with mu held.
func (s *Simulator) positionAt(t float64) float64 {
	switch s.motion {
	case oscillating:
		if s.period <= 0 {
			return s.base
		}
		return s.base + s.amplitude*math.Sin(2*math.Pi*(t-s.t0)/s.period)
	case moving:
		u := (t - s.t0) / s.duration
		if u >= 1 {
			return s.target
		}
		u = max(u, 0)
		// minimum jerk profile
		f := u * u * u * (10 - 15*u + 6*u*u)
		return s.base + (s.target-s.base)*f
	default:
		return s.base
	}
}
