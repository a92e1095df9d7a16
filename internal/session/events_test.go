package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wilberth/SledBalls/internal/buttonbox"
)

func TestKeyEvent(t *testing.T) {
	tests := []struct {
		line string
		want Event
		ok   bool
	}{
		{" ", StartStopEvent(), true},
		{"s", StartStopEvent(), true},
		{"c", ConfirmEvent(), true},
		{"+", ScrollEvent(1), true},
		{"-", ScrollEvent(-1), true},
		{"p", PauseEvent(), true},
		{"stereo", ToggleStereoEvent(false), true},
		{"sim", ToggleStereoEvent(true), true},
		{"<", IntensityEvent(-1), true},
		{">", IntensityEvent(1), true},
		{"q", QuitEvent(), true},
		{"x", Event{}, false},
		{"", Event{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := KeyEvent(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestButtonEvent(t *testing.T) {
	tests := []struct {
		button buttonbox.Button
		want   Event
		ok     bool
	}{
		{buttonbox.Confirm, ConfirmEvent(), true},
		{buttonbox.ScrollDown, ScrollEvent(-1), true},
		{buttonbox.ScrollUp, ScrollEvent(1), true},
		{buttonbox.StartStop, StartStopEvent(), true},
		{buttonbox.Button(7), Event{}, false},
	}
	for _, tt := range tests {
		got, ok := ButtonEvent(tt.button)
		assert.Equal(t, tt.ok, ok, "button %v", tt.button)
		assert.Equal(t, tt.want, got, "button %v", tt.button)
	}
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "scroll(-1)", ScrollEvent(-1).String())
	assert.Equal(t, "intensity(+1)", IntensityEvent(1).String())
	assert.Equal(t, "force(home)", ForceEvent(Home).String())
	assert.Equal(t, "confirm", ConfirmEvent().String())
	assert.Equal(t, "EventKind(99)", EventKind(99).String())
}

func TestParseState(t *testing.T) {
	s, err := ParseState("response")
	assert.NoError(t, err)
	assert.Equal(t, Response, s)

	s, err = ParseState("42")
	assert.NoError(t, err)
	assert.False(t, s.Valid())
	assert.Equal(t, "state(42)", s.String())

	_, err = ParseState("nap")
	assert.Error(t, err)
}

func TestPointerToScreen(t *testing.T) {
	x, y := PointerToScreen(labScreen, 400, 300, 800, 600)
	assert.Zero(t, x)
	assert.Zero(t, y)

	x, y = PointerToScreen(labScreen, 0, 600, 800, 600)
	assert.InDelta(t, -labScreen.Width/2, x, 1e-12)
	assert.InDelta(t, -labScreen.Height/2, y, 1e-12)

	x, y = PointerToScreen(labScreen, 10, 10, 0, 600)
	assert.Zero(t, x)
	assert.Zero(t, y)
}
