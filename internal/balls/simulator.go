package balls

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrPlacement is returned when no non-overlapping placement was found
// within the configured number of attempts.
var ErrPlacement = errors.New("no non-overlapping ball placement found")

// Simulator owns the ball state of one session. It is not safe for
// concurrent use; the frame loop is its only caller.
type Simulator struct {
	cfg   Config
	src   rand.Source
	rng   *rand.Rand
	noise distuv.Normal

	balls   []Ball
	targets []int
	speed   float64
	trigger bool
}

// NewSimulator returns an empty simulator drawing from a PCG source seeded
// with seed. Call Reset before the first Step.
func NewSimulator(cfg Config, seed uint64) *Simulator {
	cfg = cfg.withDefaults()
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Simulator{
		cfg:   cfg,
		src:   src,
		rng:   rand.New(src),
		noise: distuv.Normal{Mu: 0, Sigma: cfg.Spring.Noise, Src: src},
	}
}

// Config returns the configuration in use.
func (s *Simulator) Config() Config { return s.cfg }

// Reset places nBalls balls, gives them velocities of magnitude speed and
// draws nTargets of them as targets. The motion trigger is cleared.
func (s *Simulator) Reset(nBalls, nTargets int, speed float64) error {
	if nBalls < 1 {
		return fmt.Errorf("need at least one ball, got %d", nBalls)
	}
	if nTargets < 0 || nTargets > nBalls {
		return fmt.Errorf("nTargets %d must be between 0 and nBalls %d", nTargets, nBalls)
	}
	if speed < 0 {
		return fmt.Errorf("speed must be non-negative, got %g", speed)
	}

	positions, err := s.place(nBalls)
	if err != nil {
		return err
	}

	s.balls = make([]Ball, nBalls)
	for i, p := range positions {
		s.balls[i] = Ball{Position: p, Velocity: r3.Scale(speed, SampleDirection(s.rng))}
	}
	s.targets = s.rng.Perm(nBalls)[:nTargets]
	s.speed = speed
	s.trigger = false
	return nil
}

// place draws a whole batch of positions uniformly within the walls and
// retries the batch until no two centres are closer than two radii.
func (s *Simulator) place(n int) ([]r3.Vec, error) {
	w := s.cfg.Walls
	ux := distuv.Uniform{Min: w.Min.X, Max: w.Max.X, Src: s.src}
	uy := distuv.Uniform{Min: w.Min.Y, Max: w.Max.Y, Src: s.src}
	uz := distuv.Uniform{Min: w.Min.Z, Max: w.Max.Z, Src: s.src}
	minDist := 2 * s.cfg.Radius

	positions := make([]r3.Vec, n)
	for attempt := 0; attempt < s.cfg.PlacementAttempts; attempt++ {
		for i := range positions {
			positions[i] = r3.Vec{X: ux.Rand(), Y: uy.Rand(), Z: uz.Rand()}
		}
		if separated(positions, minDist) {
			return positions, nil
		}
	}
	return nil, fmt.Errorf("%w: %d balls of radius %g after %d attempts", ErrPlacement, n, s.cfg.Radius, s.cfg.PlacementAttempts)
}

func separated(positions []r3.Vec, minDist float64) bool {
	for i := range positions {
		for j := i + 1; j < len(positions); j++ {
			if r3.Norm(r3.Sub(positions[i], positions[j])) < minDist {
				return false
			}
		}
	}
	return true
}

// SampleDirection returns a unit vector uniformly distributed on the sphere.
// The polar angle is drawn as arccos(2u-1), which gives equal density per
// unit of surface area.
func SampleDirection(rng *rand.Rand) r3.Vec {
	theta := 2 * math.Pi * rng.Float64()
	phi := math.Acos(2*rng.Float64() - 1)
	return r3.Vec{
		X: math.Cos(theta) * math.Sin(phi),
		Y: math.Sin(theta) * math.Sin(phi),
		Z: math.Cos(phi),
	}
}

// SetMotionTrigger enables or disables Step.
func (s *Simulator) SetMotionTrigger(on bool) { s.trigger = on }

// MotionTrigger reports whether Step mutates state.
func (s *Simulator) MotionTrigger() bool { return s.trigger }

// Step advances all balls by dt seconds. It is a no-op while the motion
// trigger is off.
func (s *Simulator) Step(dt float64) {
	if !s.trigger {
		return
	}
	switch s.cfg.Model {
	case VirtualSpring:
		s.stepSpring()
	default:
		s.stepLinear(dt)
	}
}

func (s *Simulator) stepLinear(dt float64) {
	dt = math.Max(0, math.Min(dt, s.cfg.MaxStep))
	w := s.cfg.Walls
	for i := range s.balls {
		b := &s.balls[i]
		b.Position = r3.Add(b.Position, r3.Scale(dt, b.Velocity))
		b.Position.X, b.Velocity.X = reflect(b.Position.X, b.Velocity.X, w.Min.X, w.Max.X)
		b.Position.Y, b.Velocity.Y = reflect(b.Position.Y, b.Velocity.Y, w.Min.Y, w.Max.Y)
		b.Position.Z, b.Velocity.Z = reflect(b.Position.Z, b.Velocity.Z, w.Min.Z, w.Max.Z)
	}
}

// reflect mirrors p into [lo, hi], flipping v on every bounce.
func reflect(p, v, lo, hi float64) (float64, float64) {
	if hi <= lo {
		return lo, 0
	}
	for p < lo || p > hi {
		if p < lo {
			p = 2*lo - p
		} else {
			p = 2*hi - p
		}
		v = -v
	}
	return p, v
}

// stepSpring applies v' = L*v + K*(0-p)*dt + sqrt(dt)*N(0, sigma) and
// p' = p + v' per axis, with the model's own fixed dt.
func (s *Simulator) stepSpring() {
	sp := s.cfg.Spring
	sq := math.Sqrt(sp.Step)
	for i := range s.balls {
		b := &s.balls[i]
		kick := r3.Vec{X: s.noise.Rand(), Y: s.noise.Rand(), Z: s.noise.Rand()}
		b.Velocity = r3.Add(
			r3.Add(r3.Scale(sp.Damping, b.Velocity), r3.Scale(-sp.Constant*sp.Step, b.Position)),
			r3.Scale(sq, kick),
		)
		b.Position = r3.Add(b.Position, b.Velocity)
	}
}

// Len returns the number of balls.
func (s *Simulator) Len() int { return len(s.balls) }

// Speed returns the speed the velocities were scaled to at the last Reset.
func (s *Simulator) Speed() float64 { return s.speed }

// Balls returns a copy of the ball state.
func (s *Simulator) Balls() []Ball {
	out := make([]Ball, len(s.balls))
	copy(out, s.balls)
	return out
}

// Positions returns a copy of the ball centres.
func (s *Simulator) Positions() []r3.Vec {
	out := make([]r3.Vec, len(s.balls))
	for i, b := range s.balls {
		out[i] = b.Position
	}
	return out
}

// Targets returns a copy of the target indices in draw order.
func (s *Simulator) Targets() []int {
	out := make([]int, len(s.targets))
	copy(out, s.targets)
	return out
}

// IsTarget reports whether ball i is a target.
func (s *Simulator) IsTarget(i int) bool {
	for _, t := range s.targets {
		if t == i {
			return true
		}
	}
	return false
}
