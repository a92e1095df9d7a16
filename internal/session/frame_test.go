package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/conditions"
	"github.com/wilberth/SledBalls/internal/config"
	"github.com/wilberth/SledBalls/internal/sled"
	"github.com/wilberth/SledBalls/internal/stereo"
)

func TestFrame_VisualModeFollowsSimulatedSled(t *testing.T) {
	var visual *sled.Simulator
	h := newHarness(t, []conditions.Trial{testTrial()}, func(o *Options) {
		visual = sled.NewSimulator(o.Clock)
		o.TrackingMode = config.TrackingVisual
		o.Visual = visual
	})
	h.step(0)
	h.c.Post(StartStopEvent())
	h.step(0)
	h.step(3 * time.Second)
	require.Equal(t, Start, h.c.State())
	assert.InDelta(t, 0, h.c.Viewer().X, 1e-9)

	// A quarter period after the start the sled is at full amplitude.
	h.step(400 * time.Millisecond)
	assert.InDelta(t, 0.1, h.c.Viewer().X, 1e-9)
	assert.Equal(t, 1.2, h.c.Viewer().Z)

	assert.Equal(t, []string{sled.LightsOn, sled.LightsOff}, h.platform.cmds,
		"the real sled stays put in visual mode")

	h.step(4 * time.Second)
	h.step(2 * time.Second)
	require.Equal(t, Response, h.c.State())
	x := visual.Position()
	h.step(time.Second)
	assert.Equal(t, x, visual.Position(), "the simulated sled holds after the trial")
}

func TestFrame_CombinedModeUsesTrackerWithLead(t *testing.T) {
	tracker := &fakeTracker{pos: r3.Vec{X: 0.05, Y: 0.02, Z: 3}}
	h := newHarness(t, []conditions.Trial{testTrial()}, func(o *Options) {
		o.Tracker = tracker
		o.TrackerLead = 20 * time.Millisecond
	})
	h.step(0)

	require.NotEmpty(t, tracker.asked)
	assert.InDelta(t, 100.02, tracker.asked[0], 1e-9)
	assert.Equal(t, r3.Vec{X: 0.05, Y: 0.02, Z: 1.2}, h.c.Viewer(), "distance to the screen is fixed")
}

func TestFrame_VestibularModeUsesTracker(t *testing.T) {
	tracker := &fakeTracker{pos: r3.Vec{X: -0.03}}
	h := newHarness(t, []conditions.Trial{testTrial()}, func(o *Options) {
		o.Tracker = tracker
		o.TrackingMode = config.TrackingVestibular
	})
	h.step(0)
	assert.InDelta(t, -0.03, h.c.Viewer().X, 1e-12)
}

func TestFrame_UnknownTrackingModeLeavesViewer(t *testing.T) {
	tracker := &fakeTracker{pos: r3.Vec{X: 0.05}}
	h := newHarness(t, []conditions.Trial{testTrial()}, func(o *Options) {
		o.Tracker = tracker
		o.TrackingMode = "bogus"
	})
	h.step(0)
	h.step(16 * time.Millisecond)
	assert.Equal(t, r3.Vec{Z: 1.2}, h.c.Viewer())
	assert.Empty(t, tracker.asked)
}

func TestFrame_PointerMovesViewerWithoutTracker(t *testing.T) {
	h := newHarness(t, []conditions.Trial{testTrial()}, nil)
	h.step(0)

	h.c.Post(PointerEvent(800, 150, 800, 600))
	h.step(16 * time.Millisecond)
	v := h.c.Viewer()
	assert.InDelta(t, labScreen.Width/2, v.X, 1e-12)
	assert.InDelta(t, labScreen.Height/4, v.Y, 1e-12)
	assert.Equal(t, 1.2, v.Z)
}

func TestFrame_PointerIgnoredWithTracker(t *testing.T) {
	h := newHarness(t, []conditions.Trial{testTrial()}, func(o *Options) {
		o.Tracker = &fakeTracker{}
	})
	h.step(0)
	h.c.Post(PointerEvent(0, 0, 800, 600))
	h.step(16 * time.Millisecond)
	assert.Equal(t, r3.Vec{Z: 1.2}, h.c.Viewer())
}

func TestFrame_PointerModeOverridesTrackingMode(t *testing.T) {
	for _, mode := range []string{config.TrackingVisual, config.TrackingCombined} {
		t.Run(mode, func(t *testing.T) {
			tracker := &fakeTracker{pos: r3.Vec{X: -0.5}}
			h := newHarness(t, []conditions.Trial{testTrial()}, func(o *Options) {
				o.TrackingMode = mode
				o.Visual = sled.NewSimulator(o.Clock)
				o.Tracker = tracker
				o.Pointer = true
			})
			h.step(0)

			h.c.Post(PointerEvent(800, 150, 800, 600))
			h.step(16 * time.Millisecond)
			assert.InDelta(t, labScreen.Width/2, h.c.Viewer().X, 1e-12)
			assert.InDelta(t, labScreen.Height/4, h.c.Viewer().Y, 1e-12)
			assert.Empty(t, tracker.asked)
		})
	}
}

func TestFrame_Leds(t *testing.T) {
	h := newHarness(t, []conditions.Trial{testTrial()}, nil)
	h.step(0)
	h.step(16 * time.Millisecond)

	mono := [8]bool{true, true}
	assert.Equal(t, mono, h.input.leds[0])
	assert.Equal(t, mono, h.input.leds[1])

	h.c.Post(ToggleStereoEvent(false))
	h.step(16 * time.Millisecond)
	require.Equal(t, stereo.Stereo, h.c.proj.ViewSet())
	h.step(16 * time.Millisecond)

	a, b := h.input.leds[2], h.input.leds[3]
	assert.NotEqual(t, a[0], a[1])
	assert.Equal(t, a[0], b[1], "shutters alternate every frame")
	assert.Equal(t, a[1], b[0])
	assert.Len(t, h.renderer.last.Views, 2)
}

func TestFrame_IntensityEvents(t *testing.T) {
	h := newHarness(t, []conditions.Trial{testTrial()}, nil)
	h.step(0)
	h.c.Post(IntensityEvent(1))
	h.c.Post(IntensityEvent(1))
	h.c.Post(IntensityEvent(-1))
	h.step(16 * time.Millisecond)
	assert.Equal(t, 1, h.c.proj.IntensityLevel())
	assert.Equal(t, 1, h.c.Snapshot().IntensityLevel)
}

func TestFrame_SnapshotTracksFrames(t *testing.T) {
	h := newHarness(t, []conditions.Trial{testTrial()}, nil)
	for range 3 {
		h.step(16 * time.Millisecond)
	}
	s := h.c.Snapshot()
	assert.Equal(t, uint64(3), s.Frame)
	assert.Equal(t, "sleep", s.State.String())
	assert.Equal(t, [3]float64{0, 0, 1.2}, s.Viewer)
	assert.Equal(t, 1, s.NTrial)
}
