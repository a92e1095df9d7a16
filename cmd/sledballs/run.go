package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wilberth/SledBalls/internal/balls"
	"github.com/wilberth/SledBalls/internal/buttonbox"
	"github.com/wilberth/SledBalls/internal/conditions"
	"github.com/wilberth/SledBalls/internal/config"
	"github.com/wilberth/SledBalls/internal/fsutil"
	"github.com/wilberth/SledBalls/internal/monitoring"
	"github.com/wilberth/SledBalls/internal/security"
	"github.com/wilberth/SledBalls/internal/session"
	"github.com/wilberth/SledBalls/internal/sled"
	"github.com/wilberth/SledBalls/internal/stereo"
	"github.com/wilberth/SledBalls/internal/timeutil"
	"github.com/wilberth/SledBalls/internal/tracker"
	"github.com/wilberth/SledBalls/internal/triallog"
)

const resultsSuffix = "_results.yaml"

// platform is what the session needs from the sled: commands plus the
// streamed position.
type platform interface {
	session.MotionPlatform
	session.PositionSource
}

// streamer is a position source with its own receive loop.
type streamer interface {
	session.PositionSource
	StartStream(ctx context.Context) error
	StopStream()
}

type app struct {
	opts   Options
	cfg    *config.SessionConfig
	clock  timeutil.Clock
	fsys   fsutil.FileSystem
	stdin  io.Reader
	stdout io.Writer
}

func loadConfig(o Options) (*config.SessionConfig, error) {
	cfg := config.DefaultSessionConfig()
	if o.Config != "" {
		var err error
		if cfg, err = config.LoadSessionConfig(o.Config); err != nil {
			return nil, err
		}
	}
	if err := o.Apply(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (a *app) loadConditions() (*conditions.Provider, error) {
	var p *conditions.Provider
	if a.opts.Experiment == "" {
		p = conditions.NewStatic(conditions.DefaultSubject, conditions.DefaultTrial())
	} else {
		p = conditions.NewProvider(a.fsys)
		if err := p.Load(a.opts.Experiment); err != nil {
			return nil, err
		}
	}
	if a.opts.Subject != "" {
		p.SetSubject(a.opts.Subject)
	}
	return p, nil
}

func (a *app) newSimulator() (*balls.Simulator, error) {
	model, err := balls.ParseModel(a.cfg.GetMotionModel())
	if err != nil {
		return nil, err
	}
	seed, ok := a.cfg.GetSeed()
	if !ok {
		seed = uint64(a.clock.Now().UnixNano())
	}
	monitoring.Opsf("ball simulation: %v, seed %d", model, seed)

	radius := a.cfg.GetBallRadius()
	return balls.NewSimulator(balls.Config{
		Model:   model,
		Walls:   balls.NewWalls(a.cfg.GetScreenWidth(), a.cfg.GetScreenHeight(), a.cfg.GetZNear(), a.cfg.GetZFar(), radius),
		Radius:  radius,
		MaxStep: timeutil.Seconds(a.cfg.GetMaxStep()),
		Spring: balls.SpringParams{
			Step:     timeutil.Seconds(a.cfg.GetSpringStep()),
			Damping:  a.cfg.GetSpringDamping(),
			Constant: a.cfg.GetSpringConstant(),
			Noise:    a.cfg.GetSpringNoise(),
		},
		PlacementAttempts: a.cfg.GetPlacementAttempts(),
	}, seed), nil
}

func (a *app) newProjector() *stereo.Projector {
	p := stereo.NewProjector(stereo.Screen{
		Width:  a.cfg.GetScreenWidth(),
		Height: a.cfg.GetScreenHeight(),
		ZNear:  a.cfg.GetZNear(),
		ZFar:   a.cfg.GetZFar(),
	}, a.cfg.GetEyeSeparation())
	p.SetIntensity(a.cfg.GetIntensityLevel())
	if a.opts.Stereo || a.opts.StereoSim {
		p.ToggleStereo(true, a.opts.StereoSim)
	}
	return p
}

// connectSled returns the sled client, or the simulator when no server is
// configured or it cannot be reached.
func (a *app) connectSled(ctx context.Context, simulator *sled.Simulator) (platform, func()) {
	if a.opts.SledServer == "" {
		monitoring.Diagf("no sled server, using the simulated sled")
		return simulator, func() {}
	}
	client := sled.NewClient(a.clock)
	if err := client.Connect(ctx, a.opts.SledServer); err != nil {
		monitoring.Opsf("warning: sled server %s unreachable, using the simulated sled: %v", a.opts.SledServer, err)
		return simulator, func() {}
	}
	if err := client.StartStream(ctx); err != nil {
		monitoring.Opsf("warning: sled %s does not stream positions: %v", a.opts.SledServer, err)
	}
	monitoring.Opsf("connected to sled server %s", a.opts.SledServer)
	return client, func() {
		client.StopStream()
		if err := client.Close(); err != nil {
			monitoring.Diagf("closing sled connection: %v", err)
		}
	}
}

// startTracker starts the position source named by -positionServer. A nil
// source means the viewer follows the pointer.
func (a *app) startTracker(ctx context.Context, sledSource session.PositionSource) (session.PositionSource, func(), error) {
	kind, addr, err := parsePositionServer(a.opts.PositionServer)
	if err != nil {
		return nil, nil, err
	}
	var s streamer
	switch kind {
	case positionSled:
		return sledSource, func() {}, nil
	case positionMouse:
		return nil, func() {}, nil
	case positionUDP:
		s = tracker.NewUDPClient(tracker.UDPClientConfig{Address: addr, Clock: a.clock})
	case positionWS:
		s = tracker.NewWSClient(addr, a.clock)
	case positionTCP:
		c := sled.NewClient(a.clock)
		if err := c.Connect(ctx, addr); err != nil {
			return nil, nil, fmt.Errorf("position server %s: %w", addr, err)
		}
		if err := c.StartStream(ctx); err != nil {
			c.Close()
			return nil, nil, fmt.Errorf("position server %s: %w", a.opts.PositionServer, err)
		}
		monitoring.Opsf("streaming viewer positions from %s (%v)", a.opts.PositionServer, kind)
		return c, func() {
			if err := c.Close(); err != nil {
				monitoring.Diagf("closing position server connection: %v", err)
			}
		}, nil
	}
	if err := s.StartStream(ctx); err != nil {
		return nil, nil, fmt.Errorf("position server %s: %w", a.opts.PositionServer, err)
	}
	monitoring.Opsf("streaming viewer positions from %s (%v)", a.opts.PositionServer, kind)
	return s, s.StopStream, nil
}

// homeSled sends the sled to the centre of the track and puts the
// simulated sled there at once.
func homeSled(plat session.MotionPlatform, simulated *sled.Simulator) {
	if err := plat.Goto(0); err != nil {
		monitoring.Opsf("warning: homing the sled failed: %v", err)
	}
	simulated.Warp(0)
}

func (a *app) openButtonBox() buttonbox.Box {
	if a.opts.ButtonBox == "" {
		return buttonbox.NewDisabled()
	}
	box, err := buttonbox.Open(a.opts.ButtonBox, buttonbox.PortOptions{})
	if err != nil {
		monitoring.Opsf("warning: button box %s unavailable, continuing without: %v", a.opts.ButtonBox, err)
		return buttonbox.NewDisabled()
	}
	monitoring.Opsf("button box on %s", a.opts.ButtonBox)
	return box
}

// wiring is what run assembles before the session is created.
type wiring struct {
	provider  *conditions.Provider
	sim       *balls.Simulator
	proj      *stereo.Projector
	log       *triallog.File
	plat      platform
	simulated *sled.Simulator
	tracker   session.PositionSource
	box       buttonbox.Box
}

// newController creates the session. Without a tracker the viewer follows
// the pointer in every tracking mode.
func (a *app) newController(w wiring) (*session.Controller, error) {
	pointer := w.tracker == nil
	if pointer {
		monitoring.Diagf("no position tracker, viewer follows the pointer")
	}
	return session.New(session.Options{
		Clock:          a.clock,
		Simulator:      w.sim,
		Projector:      w.proj,
		Conditions:     w.provider,
		Log:            w.log,
		LogPath:        w.log.Path(),
		Platform:       w.plat,
		Visual:         w.simulated,
		Tracker:        w.tracker,
		TrackingMode:   a.cfg.GetTrackingMode(),
		TrackerLead:    a.cfg.GetTrackerLead(),
		Pointer:        pointer,
		Input:          w.box,
		Renderer:       newConsoleRenderer(a.stdout, a.clock.Now, 10*time.Second),
		ViewerDistance: a.cfg.GetViewerDistance(),
		WaitDelay:      a.cfg.GetWaitDelay(),
		StartDelay:     a.cfg.GetStartDelay(),
		Running:        a.opts.Running,
	})
}

func (a *app) run(parent context.Context) error {
	provider, err := a.loadConditions()
	if err != nil {
		return err
	}
	sim, err := a.newSimulator()
	if err != nil {
		return err
	}
	proj := a.newProjector()

	logFile, err := triallog.OpenFile(a.fsys, a.opts.LogDir, provider.Subject())
	if err != nil {
		return err
	}
	defer func() {
		if err := logFile.Release(); err != nil {
			monitoring.Opsf("closing trial log: %v", err)
		}
	}()
	monitoring.Opsf("subject %s, %d trials, logging to %s", provider.Subject(), provider.NTrial(), logFile.Path())

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	simulated := sled.NewSimulator(a.clock)
	plat, closeSled := a.connectSled(ctx, simulated)
	defer closeSled()
	homeSled(plat, simulated)

	trk, stopTracker, err := a.startTracker(ctx, plat)
	if err != nil {
		return err
	}
	defer stopTracker()

	box := a.openButtonBox()
	defer box.Close()

	if a.opts.Fullscreen {
		monitoring.Diagf("fullscreen has no effect on the console display")
	}
	interval := time.Duration(float64(time.Second) / a.cfg.GetFrameRate())

	ctrl, err := a.newController(wiring{
		provider:  provider,
		sim:       sim,
		proj:      proj,
		log:       logFile,
		plat:      plat,
		simulated: simulated,
		tracker:   trk,
		box:       box,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := box.Monitor(gctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Opsf("button box monitor stopped: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		forwardButtons(gctx, box.Buttons(), ctrl)
		return nil
	})
	if a.opts.DebugListen != "" {
		mux := http.NewServeMux()
		ctrl.AttachAdminRoutes(mux)
		box.AttachAdminRoutes(mux)
		g.Go(func() error { return serveDebug(gctx, a.opts.DebugListen, mux) })
	}
	// stdin cannot be interrupted, so the reader is not part of the group.
	go readKeys(a.stdin, ctrl)

	g.Go(func() error {
		defer cancel()
		return ctrl.Run(gctx, interval)
	})

	runErr := g.Wait()
	return errors.Join(runErr, a.saveResults(provider, ctrl.ID()))
}

func (a *app) saveResults(p *conditions.Provider, sessionID string) error {
	results := p.Results()
	if len(results) == 0 {
		return nil
	}
	path, err := security.SubjectLogPath(a.opts.LogDir, p.Subject(), resultsSuffix)
	if err != nil {
		return err
	}
	w, err := a.fsys.OpenAppend(path)
	if err != nil {
		return fmt.Errorf("saving results: %w", err)
	}
	err = conditions.WriteResults(w, p.Subject(), sessionID, a.clock.Now(), results)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		monitoring.Opsf("%d results written to %s", len(results), path)
	}
	return err
}

func forwardButtons(ctx context.Context, buttons <-chan buttonbox.Button, ctrl *session.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-buttons:
			if !ok {
				return
			}
			if ev, ok := session.ButtonEvent(b); ok {
				ctrl.Post(ev)
			} else {
				monitoring.Diagf("ignoring button %v", b)
			}
		}
	}
}

// readKeys posts one event per recognised line of r. A line "x y w h"
// reports the pointer position in a w by h window.
func readKeys(r io.Reader, ctrl *session.Controller) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if ev, ok := session.KeyEvent(line); ok {
			ctrl.Post(ev)
			continue
		}
		if ev, ok := parsePointer(line); ok {
			ctrl.Post(ev)
			continue
		}
		if line != "" {
			monitoring.Diagf("unknown key %q", line)
		}
	}
}

// parsePointer reads "x y width height" in pixels.
func parsePointer(line string) (session.Event, bool) {
	var x, y, w, h float64
	n, err := fmt.Sscanf(line, "%g %g %g %g", &x, &y, &w, &h)
	if err != nil || n != 4 || w <= 0 || h <= 0 {
		return session.Event{}, false
	}
	return session.PointerEvent(x, y, w, h), true
}

func serveDebug(ctx context.Context, addr string, mux *http.ServeMux) error {
	server := &http.Server{Addr: addr, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	monitoring.Opsf("debug routes on http://%s/debug/", addr)

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("debug server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Diagf("debug server shutdown: %v", err)
		return server.Close()
	}
	return nil
}
