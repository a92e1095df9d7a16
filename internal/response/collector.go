// Package response collects the subject's target selection at the end of a
// trial and scores it.
package response

import (
	"slices"
)

// Collector tracks the selection cursor and the confirmed choices of one
// response phase.
type Collector struct {
	nBalls  int
	targets []int

	enabled  bool
	cursor   int
	slot     int
	confirms int
	response []int
	chosen   []bool
	score    float64
}

// NewCollector returns a disabled collector for nBalls balls of which the
// given indices are targets.
func NewCollector(nBalls int, targets []int) *Collector {
	c := &Collector{}
	c.Reset(nBalls, targets)
	return c
}

// Reset clears all choices for a new trial and disables input.
func (c *Collector) Reset(nBalls int, targets []int) {
	c.nBalls = nBalls
	c.targets = slices.Clone(targets)
	c.enabled = false
	c.cursor = 0
	c.slot = 0
	c.confirms = 0
	c.response = make([]int, len(targets))
	for i := range c.response {
		c.response[i] = -1
	}
	c.chosen = make([]bool, nBalls)
	c.score = 0
}

// Enable accepts or rejects further input.
func (c *Collector) Enable(on bool) { c.enabled = on }

// Enabled reports whether input is accepted.
func (c *Collector) Enabled() bool { return c.enabled }

// Scroll moves the cursor by delta balls, wrapping in both directions.
func (c *Collector) Scroll(delta int) {
	if !c.enabled || c.nBalls == 0 {
		return
	}
	c.cursor = ((c.cursor+delta)%c.nBalls + c.nBalls) % c.nBalls
}

// Confirm stores the ball under the cursor in the next response slot.
// Slots are reused cyclically once all of them are filled.
func (c *Collector) Confirm() {
	if !c.enabled || len(c.response) == 0 {
		return
	}
	c.response[c.slot] = c.cursor
	c.chosen[c.cursor] = true
	c.slot = (c.slot + 1) % len(c.response)
	c.confirms++
	c.score = Score(c.response, c.targets)
}

// Complete reports whether every slot has been confirmed since the last
// reset.
func (c *Collector) Complete() bool {
	return c.confirms >= len(c.response)
}

// Cursor returns the ball index under the cursor.
func (c *Collector) Cursor() int { return c.cursor }

// Chosen reports whether ball i has been confirmed at least once.
func (c *Collector) Chosen(i int) bool {
	return i >= 0 && i < len(c.chosen) && c.chosen[i]
}

// Response returns a copy of the selected indices; unfilled slots are -1.
func (c *Collector) Response() []int { return slices.Clone(c.response) }

// Targets returns a copy of the target indices.
func (c *Collector) Targets() []int { return slices.Clone(c.targets) }

// Score returns the fraction correct of the latest confirm.
func (c *Collector) Score() float64 { return c.score }

// Score sorts both lists and returns the fraction of positions at which they
// agree. Lists of different length compare over the shorter one but divide
// by the number of targets.
func Score(response, targets []int) float64 {
	if len(targets) == 0 {
		return 0
	}
	r := slices.Clone(response)
	t := slices.Clone(targets)
	slices.Sort(r)
	slices.Sort(t)
	hits := 0
	for i := 0; i < len(r) && i < len(t); i++ {
		if r[i] == t[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(t))
}
