package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilberth/SledBalls/internal/buttonbox"
	"github.com/wilberth/SledBalls/internal/config"
	"github.com/wilberth/SledBalls/internal/fsutil"
	"github.com/wilberth/SledBalls/internal/session"
	"github.com/wilberth/SledBalls/internal/sled"
	"github.com/wilberth/SledBalls/internal/stereo"
	"github.com/wilberth/SledBalls/internal/timeutil"
	"github.com/wilberth/SledBalls/internal/triallog"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const shortExperiment = `
subject: s01
trials:
  - nBalls: 3
    nTargets: 1
    sBalls: 0.2
    lTrial: 0.05
    amplitude: 0.1
    period: 1.6
`

func testApp(t *testing.T, opts Options, stdin io.Reader) (*app, *fsutil.MemoryFileSystem, *syncBuffer) {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("/exp/short.yaml", []byte(shortExperiment))

	cfg := config.DefaultSessionConfig()
	fast := "10ms"
	rate := 500.0
	cfg.WaitDelay = &fast
	cfg.StartDelay = &fast
	cfg.FrameRate = &rate
	require.NoError(t, opts.Apply(cfg))

	out := &syncBuffer{}
	return &app{
		opts:   opts,
		cfg:    cfg,
		clock:  timeutil.RealClock{},
		fsys:   fsys,
		stdin:  stdin,
		stdout: out,
	}, fsys, out
}

func TestRun_QuitFromKeyboard(t *testing.T) {
	a, fsys, out := testApp(t, Options{LogDir: "/data", PositionServer: "mouse"}, strings.NewReader("q\n"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.run(ctx))

	assert.NotContains(t, out.String(), "wait")
	assert.True(t, fsys.Exists("/data/unknown"+triallog.Suffix))
	assert.False(t, fsys.Exists("/data/unknown"+resultsSuffix), "no results without a finished trial")
}

func TestRun_RunsTrialUntilResponse(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	defer stdinW.Close()
	a, fsys, out := testApp(t, Options{
		LogDir:     "/data",
		Experiment: "/exp/short.yaml",
		Subject:    "s02",
		Running:    true,
	}, stdinR)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "response")
	}, 5*time.Second, 5*time.Millisecond)

	_, err := io.WriteString(stdinW, "c\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		text := out.String()
		return strings.LastIndex(text, "sleep") > strings.Index(text, "response")
	}, 5*time.Second, 5*time.Millisecond, "one confirm answers a single target trial")

	_, err = io.WriteString(stdinW, "q\n")
	require.NoError(t, err)
	require.NoError(t, <-done)

	data, err := fsys.ReadFile("/data/s02" + triallog.Suffix)
	require.NoError(t, err)
	blocks, err := triallog.ReadBlocks(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.NotEmpty(t, blocks[0])
	assert.Len(t, blocks[0][0].Positions, 3)

	results, err := fsys.ReadFile("/data/s02" + resultsSuffix)
	require.NoError(t, err)
	assert.Contains(t, string(results), "subject: s02")
	assert.Contains(t, string(results), "trajectFile: /data/s02"+triallog.Suffix)
}

func TestRun_MalformedExperiment(t *testing.T) {
	a, fsys, _ := testApp(t, Options{LogDir: "/data", Experiment: "/exp/bad.yaml"}, strings.NewReader(""))
	fsys.WriteFile("/exp/bad.yaml", []byte("trials: [{nBalls: 0}]"))
	assert.Error(t, a.run(context.Background()))
}

func TestRun_SledFallsBackToSimulator(t *testing.T) {
	a, _, _ := testApp(t, Options{LogDir: "/data", SledServer: "127.0.0.1:1"}, strings.NewReader(""))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sim := sled.NewSimulator(timeutil.RealClock{})
	plat, closeFn := a.connectSled(ctx, sim)
	defer closeFn()
	assert.Same(t, sim, plat)
}

func TestNewProjector_StereoFlags(t *testing.T) {
	level := -2
	a, _, _ := testApp(t, Options{StereoSim: true, StereoIntensity: &level}, nil)
	p := a.newProjector()
	assert.Equal(t, stereo.StereoSim, p.ViewSet())
	assert.Equal(t, -2, p.IntensityLevel())
}

func TestParsePointer(t *testing.T) {
	ev, ok := parsePointer("400 300 800 600")
	require.True(t, ok)
	assert.Equal(t, session.PointerEvent(400, 300, 800, 600), ev)

	_, ok = parsePointer("400 300")
	assert.False(t, ok)
	_, ok = parsePointer("1 2 0 600")
	assert.False(t, ok)
}

func TestConsoleRenderer(t *testing.T) {
	var out bytes.Buffer
	now := time.Unix(0, 0)
	r := newConsoleRenderer(&out, func() time.Time { return now }, time.Second)

	states := []session.State{session.Sleep, session.Sleep, session.Wait, session.Response, session.Response}
	cursors := []int{-1, -1, -1, 0, 2}
	for i, s := range states {
		now = now.Add(100 * time.Millisecond)
		require.NoError(t, r.Render(&session.FrameState{State: s, Cursor: cursors[i]}))
	}
	assert.Equal(t, "sleep\nwait\nresponse\ncursor on ball 0\ncursor on ball 2\n", out.String())
}

func TestNewController_MouseModeFollowsPointer(t *testing.T) {
	a, fsys, _ := testApp(t, Options{LogDir: "/data", PositionServer: "mouse"}, nil)
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	a.clock = clock
	require.Equal(t, config.TrackingVisual, a.cfg.GetTrackingMode())

	provider, err := a.loadConditions()
	require.NoError(t, err)
	sim, err := a.newSimulator()
	require.NoError(t, err)
	logFile, err := triallog.OpenFile(fsys, a.opts.LogDir, provider.Subject())
	require.NoError(t, err)
	defer logFile.Release()

	ctx := context.Background()
	simulated := sled.NewSimulator(clock)
	plat, closeSled := a.connectSled(ctx, simulated)
	defer closeSled()
	trk, stopTracker, err := a.startTracker(ctx, plat)
	require.NoError(t, err)
	defer stopTracker()
	require.Nil(t, trk)

	ctrl, err := a.newController(wiring{
		provider:  provider,
		sim:       sim,
		proj:      a.newProjector(),
		log:       logFile,
		plat:      plat,
		simulated: simulated,
		tracker:   trk,
		box:       buttonbox.NewDisabled(),
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.Frame(clock.Now()))

	// The simulated sled moves, but the viewer only follows the pointer.
	require.NoError(t, simulated.SendCommand(sled.SinusoidStart(0.1, 1.6)))
	ctrl.Post(session.PointerEvent(800, 150, 800, 600))
	clock.Advance(400 * time.Millisecond)
	require.NoError(t, ctrl.Frame(clock.Now()))

	v := ctrl.Viewer()
	assert.InDelta(t, a.cfg.GetScreenWidth()/2, v.X, 1e-12)
	assert.InDelta(t, a.cfg.GetScreenHeight()/4, v.Y, 1e-12)
}

type gotoRecorder struct {
	positions []float64
	err       error
}

func (g *gotoRecorder) SendCommand(string) error { return nil }

func (g *gotoRecorder) Goto(position float64) error {
	g.positions = append(g.positions, position)
	return g.err
}

func TestHomeSled(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	simulated := sled.NewSimulator(clock)
	require.NoError(t, simulated.SendCommand(sled.SinusoidStart(0.1, 1.6)))
	clock.Advance(400 * time.Millisecond)
	require.NotZero(t, simulated.Position())

	plat := &gotoRecorder{err: errors.New("sled busy")}
	homeSled(plat, simulated)
	assert.Equal(t, []float64{0}, plat.positions)
	assert.Zero(t, simulated.Position(), "the simulated sled is warped home even if the sled refuses")

	clock.Advance(time.Second)
	assert.Zero(t, simulated.Position())
}

func TestStartTracker_TCPCleanupClosesConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	closed := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		io.Copy(io.Discard, conn)
		conn.Close()
		close(closed)
	}()

	a, _, _ := testApp(t, Options{PositionServer: ln.Addr().String()}, nil)
	src, cleanup, err := a.startTracker(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, src)

	cleanup()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("position server connection still open after cleanup")
	}
}
