// Package tracker receives head-tracker marker positions and predicts them
// a short time ahead.
package tracker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/timeutil"
)

// MaxExtrapolation bounds how far past the newest sample a position is
// predicted.
const MaxExtrapolation = 0.1

// ErrNoSample is returned by parsers for an empty message.
var ErrNoSample = errors.New("empty tracker sample")

// Sample is one tracker measurement in tracker time (seconds).
type Sample struct {
	Time    float64
	Markers []r3.Vec
}

type samplePair struct {
	prev, last *Sample
	received   time.Time
}

// History keeps the two newest samples of a stream. One goroutine publishes
// and the frame loop reads without locking.
type History struct {
	clock timeutil.Clock
	pair  atomic.Pointer[samplePair]
	count atomic.Uint64
}

// NewHistory returns an empty history timed by clock.
func NewHistory(clock timeutil.Clock) *History {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &History{clock: clock}
}

// Publish makes s the newest sample. A sample older than the current newest
// one replaces it without a velocity estimate.
func (h *History) Publish(s *Sample) {
	old := h.pair.Load()
	next := &samplePair{last: s, received: h.clock.Now()}
	if old != nil && old.last.Time < s.Time {
		next.prev = old.last
	}
	h.pair.Store(next)
	h.count.Add(1)
}

// Count returns the number of samples published.
func (h *History) Count() uint64 { return h.count.Load() }

// Time estimates the current tracker time from the newest sample and the
// local time elapsed since it arrived. It is 0 before the first sample.
func (h *History) Time() float64 {
	p := h.pair.Load()
	if p == nil {
		return 0
	}
	return p.last.Time + timeutil.Seconds(h.clock.Since(p.received))
}

// Position extrapolates the marker positions linearly to tracker time t,
// at most MaxExtrapolation past the newest sample. It reports false before
// the first sample.
func (h *History) Position(t float64) ([]r3.Vec, bool) {
	p := h.pair.Load()
	if p == nil {
		return nil, false
	}
	out := make([]r3.Vec, len(p.last.Markers))
	copy(out, p.last.Markers)
	if p.prev == nil || len(p.prev.Markers) != len(out) {
		return out, true
	}
	span := p.last.Time - p.prev.Time
	dt := min(t-p.last.Time, MaxExtrapolation)
	dt = max(dt, -span)
	for i := range out {
		v := r3.Scale(1/span, r3.Sub(p.last.Markers[i], p.prev.Markers[i]))
		out[i] = r3.Add(out[i], r3.Scale(dt, v))
	}
	return out, true
}

// ParseLine parses "<time> <x> <y> <z> [<x> <y> <z> ...]".
func ParseLine(line string) (*Sample, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrNoSample
	}
	if (len(fields)-1)%3 != 0 || len(fields) < 4 {
		return nil, fmt.Errorf("want time and coordinate triples, got %d fields", len(fields))
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i] = v
	}
	s := &Sample{Time: vals[0]}
	for i := 1; i < len(vals); i += 3 {
		s.Markers = append(s.Markers, r3.Vec{X: vals[i], Y: vals[i+1], Z: vals[i+2]})
	}
	return s, nil
}
