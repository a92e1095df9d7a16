// Package balls integrates the trajectories of the tracked objects.
//
// A Simulator owns the position and velocity of every ball and advances them
// once per frame under one of two motion models. Placement and target choice
// draw from a seeded source so a session is reproducible given its seed.
package balls

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Model selects the motion model used by Step.
type Model int

const (
	// ConstantVelocity moves balls in straight lines with elastic wall
	// reflection.
	ConstantVelocity Model = iota
	// VirtualSpring pulls balls towards the origin with a stochastic kick
	// every step. Walls are not enforced.
	VirtualSpring
)

func (m Model) String() string {
	switch m {
	case ConstantVelocity:
		return "constant_velocity"
	case VirtualSpring:
		return "virtual_spring"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// ParseModel converts a configuration name into a Model.
func ParseModel(name string) (Model, error) {
	switch name {
	case "constant_velocity", "constant", "cv":
		return ConstantVelocity, nil
	case "virtual_spring", "spring":
		return VirtualSpring, nil
	default:
		return 0, fmt.Errorf("unknown motion model %q", name)
	}
}

// Ball is the kinematic state of one object. Units are m and m/s.
type Ball struct {
	Position r3.Vec
	Velocity r3.Vec
}

// Walls bound the volume in which ball centres may lie.
type Walls struct {
	Min, Max r3.Vec
}

// NewWalls returns the centre bounds for balls of the given radius inside a
// screen of width x height, between the far and near planes.
func NewWalls(width, height, zNear, zFar, radius float64) Walls {
	return Walls{
		Min: r3.Vec{X: -width/2 + radius, Y: -height/2 + radius, Z: zFar + radius},
		Max: r3.Vec{X: width/2 - radius, Y: height/2 - radius, Z: zNear - radius},
	}
}

// Contains reports whether p lies within the walls, boundaries included.
func (w Walls) Contains(p r3.Vec) bool {
	return p.X >= w.Min.X && p.X <= w.Max.X &&
		p.Y >= w.Min.Y && p.Y <= w.Max.Y &&
		p.Z >= w.Min.Z && p.Z <= w.Max.Z
}

// SpringParams are the constants of the virtual spring model.
type SpringParams struct {
	Step     float64 // s, fixed integration step
	Damping  float64 // L, velocity retention per step
	Constant float64 // K
	Noise    float64 // sigma of the per-axis normal kick
}

// DefaultSpringParams returns dt = 0.1 s, L = 0, K = 0.05, sigma = 0.03.
func DefaultSpringParams() SpringParams {
	return SpringParams{Step: 0.1, Damping: 0, Constant: 0.05, Noise: 0.03}
}

// Config describes a simulator. The zero MaxStep and PlacementAttempts are
// replaced by 0.1 s and 10000.
type Config struct {
	Model             Model
	Walls             Walls
	Radius            float64
	MaxStep           float64 // s, upper bound on the constant velocity step
	Spring            SpringParams
	PlacementAttempts int
}

func (c Config) withDefaults() Config {
	if c.MaxStep <= 0 {
		c.MaxStep = 0.1
	}
	if c.PlacementAttempts <= 0 {
		c.PlacementAttempts = 10000
	}
	if c.Spring == (SpringParams{}) {
		c.Spring = DefaultSpringParams()
	}
	return c
}
