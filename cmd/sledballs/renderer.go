package main

import (
	"fmt"
	"io"
	"time"

	"github.com/wilberth/SledBalls/internal/monitoring"
	"github.com/wilberth/SledBalls/internal/session"
)

// consoleRenderer stands in for a display. It reports state changes on out
// and the achieved frame rate on the diag log.
type consoleRenderer struct {
	out      io.Writer
	now      func() time.Time
	interval time.Duration

	state      session.State
	seen       bool
	frames     int
	since      time.Time
	lastCursor int
}

func newConsoleRenderer(out io.Writer, now func() time.Time, interval time.Duration) *consoleRenderer {
	return &consoleRenderer{out: out, now: now, interval: interval, lastCursor: -1}
}

func (r *consoleRenderer) Render(fs *session.FrameState) error {
	if !r.seen || fs.State != r.state {
		r.seen = true
		r.state = fs.State
		if _, err := fmt.Fprintf(r.out, "%s\n", fs.State); err != nil {
			return err
		}
	}
	if fs.Cursor != r.lastCursor {
		r.lastCursor = fs.Cursor
		if fs.Cursor >= 0 {
			if _, err := fmt.Fprintf(r.out, "cursor on ball %d\n", fs.Cursor); err != nil {
				return err
			}
		}
	}

	now := r.now()
	if r.since.IsZero() {
		r.since = now
	}
	r.frames++
	if d := now.Sub(r.since); d >= r.interval && r.interval > 0 {
		monitoring.Diagf("%.1f frames/s, %d views, viewer (%.3f, %.3f, %.3f)",
			float64(r.frames)/d.Seconds(), len(fs.Views), fs.Viewer.X, fs.Viewer.Y, fs.Viewer.Z)
		r.frames = 0
		r.since = now
	}
	return nil
}
