package session

import (
	"net/http"
	"slices"

	"tailscale.com/tsweb"

	"github.com/wilberth/SledBalls/internal/conditions"
	"github.com/wilberth/SledBalls/internal/httputil"
)

// Snapshot is a read-only copy of the session state, refreshed every frame.
type Snapshot struct {
	SessionID      string              `json:"session_id"`
	State          State               `json:"state"`
	Generation     uint64              `json:"generation"`
	Frame          uint64              `json:"frame"`
	Trial          int                 `json:"trial"`
	NTrial         int                 `json:"n_trial"`
	Score          float64             `json:"score"`
	SleepRequested bool                `json:"sleep_requested"`
	Exhausted      bool                `json:"exhausted"`
	Viewer         [3]float64          `json:"viewer"`
	ViewSet        string              `json:"view_set"`
	IntensityLevel int                 `json:"intensity_level"`
	DroppedEvents  uint64              `json:"dropped_events"`
	Results        []conditions.Record `json:"results"`
}

func (c *Controller) publish() {
	v := c.viewer.Position()
	c.snapshot.Store(&Snapshot{
		SessionID:      c.id,
		State:          c.state,
		Generation:     c.sched.Generation(),
		Frame:          c.frame,
		Trial:          c.conditions.ITrial(),
		NTrial:         c.conditions.NTrial(),
		Score:          c.collector.Score(),
		SleepRequested: c.sleepRequested,
		Exhausted:      c.exhausted,
		Viewer:         [3]float64{v.X, v.Y, v.Z},
		ViewSet:        c.proj.ViewSet().String(),
		IntensityLevel: c.proj.IntensityLevel(),
		DroppedEvents:  c.dropped.Load(),
		Results:        slices.Clone(c.results),
	})
}

// Snapshot returns the state published after the last frame. It is safe for
// concurrent use.
func (c *Controller) Snapshot() *Snapshot { return c.snapshot.Load() }

// AttachAdminRoutes attaches the session endpoints to the debug handler on
// mux, served at /debug/.
func (c *Controller) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("session", "trial controller state as JSON", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, c.Snapshot())
	})

	debug.HandleSilentFunc("start-stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		if !c.Post(StartStopEvent()) {
			httputil.ServiceUnavailable(w, "event queue full")
			return
		}
		httputil.Accepted(w, "start-stop")
	})

	debug.HandleSilentFunc("force", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		s, err := ParseState(r.FormValue("state"))
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if !c.Post(ForceEvent(s)) {
			httputil.ServiceUnavailable(w, "event queue full")
			return
		}
		httputil.Accepted(w, ForceEvent(s).String())
	})
}
