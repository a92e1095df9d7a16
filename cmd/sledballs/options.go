package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/wilberth/SledBalls/internal/config"
)

// Options are the command line settings. Every field can also be set through
// its SLEDBALLS_* environment variable; flags given explicitly win.
type Options struct {
	SledServer      string  `env:"SLEDBALLS_SLED_SERVER"`
	PositionServer  string  `env:"SLEDBALLS_POSITION_SERVER"`
	TrackingMode    string  `env:"SLEDBALLS_TRACKING_MODE"`
	Stereo          bool    `env:"SLEDBALLS_STEREO"`
	StereoSim       bool    `env:"SLEDBALLS_STEREO_SIM"`
	StereoIntensity *int    `env:"SLEDBALLS_STEREO_INTENSITY"`
	Subject         string  `env:"SLEDBALLS_SUBJECT"`
	Experiment      string  `env:"SLEDBALLS_EXPERIMENT"`
	Fullscreen      bool    `env:"SLEDBALLS_FULLSCREEN"`
	Running         bool    `env:"SLEDBALLS_RUNNING"`
	Config          string  `env:"SLEDBALLS_CONFIG"`
	ButtonBox       string  `env:"SLEDBALLS_BUTTON_BOX"`
	LogDir          string  `env:"SLEDBALLS_LOG_DIR" envDefault:"data"`
	DebugListen     string  `env:"SLEDBALLS_DEBUG_LISTEN"`
	Seed            *uint64 `env:"SLEDBALLS_SEED"`
	MotionModel     string  `env:"SLEDBALLS_MOTION_MODEL"`
	Trace           bool    `env:"SLEDBALLS_TRACE"`
	Version         bool
}

// ParseOptions reads the environment and then the flags in args.
func ParseOptions(fs *flag.FlagSet, args []string) (Options, error) {
	var o Options
	if err := env.Parse(&o); err != nil {
		return Options{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&o.SledServer, "sledServer", o.SledServer, "sled server address; empty or unreachable runs the simulated sled")
	fs.StringVar(&o.PositionServer, "positionServer", o.PositionServer, "position tracker: host:port, udp://addr, ws://url or mouse (default: the sled server)")
	fs.StringVar(&o.TrackingMode, "trackingMode", o.TrackingMode, "visual, combined or vestibular (default from -config)")
	fs.BoolVar(&o.Stereo, "stereo", o.Stereo, "start in stereo mode")
	fs.BoolVar(&o.StereoSim, "stereoSim", o.StereoSim, "start in simulated (red/cyan) stereo mode")
	fs.Func("stereoIntensity", "left/right intensity balance, -9 to 9", func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		o.StereoIntensity = &v
		return nil
	})
	fs.StringVar(&o.Subject, "subject", o.Subject, "subject id, overrides the experiment file")
	fs.StringVar(&o.Experiment, "experiment", o.Experiment, "YAML file with the trial list")
	fs.BoolVar(&o.Fullscreen, "fullscreen", o.Fullscreen, "full screen display")
	fs.BoolVar(&o.Running, "running", o.Running, "start the first trial without waiting for start/stop")
	fs.StringVar(&o.Config, "config", o.Config, "session configuration JSON file")
	fs.StringVar(&o.ButtonBox, "buttonBox", o.ButtonBox, "serial device of the button box")
	fs.StringVar(&o.LogDir, "logDir", o.LogDir, "directory for trajectory logs and results")
	fs.StringVar(&o.DebugListen, "debugListen", o.DebugListen, "listen address of the /debug/ routes, empty to disable")
	fs.Func("seed", "random seed of the ball simulation (default from -config, else time based)", func(s string) error {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		o.Seed = &v
		return nil
	})
	fs.StringVar(&o.MotionModel, "motionModel", o.MotionModel, "constant_velocity or virtual_spring (default from -config)")
	fs.BoolVar(&o.Trace, "trace", o.Trace, "log per-frame telemetry")
	fs.BoolVar(&o.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if fs.NArg() > 0 {
		return Options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

// Apply copies the options that override the session configuration into cfg
// and validates the result.
func (o Options) Apply(cfg *config.SessionConfig) error {
	if o.TrackingMode != "" {
		cfg.TrackingMode = &o.TrackingMode
	}
	if o.MotionModel != "" {
		cfg.MotionModel = &o.MotionModel
	}
	if o.StereoIntensity != nil {
		cfg.IntensityLevel = o.StereoIntensity
	}
	if o.Seed != nil {
		cfg.Seed = o.Seed
	}
	return cfg.Validate()
}

type positionKind int

const (
	positionSled positionKind = iota
	positionTCP
	positionUDP
	positionWS
	positionMouse
)

func (k positionKind) String() string {
	switch k {
	case positionSled:
		return "sled"
	case positionTCP:
		return "tcp"
	case positionUDP:
		return "udp"
	case positionWS:
		return "websocket"
	case positionMouse:
		return "mouse"
	}
	return fmt.Sprintf("positionKind(%d)", int(k))
}

// parsePositionServer splits a -positionServer value into its kind and the
// address to connect to.
func parsePositionServer(s string) (positionKind, string, error) {
	switch {
	case s == "":
		return positionSled, "", nil
	case s == "mouse":
		return positionMouse, "", nil
	case strings.HasPrefix(s, "udp://"):
		addr := strings.TrimPrefix(s, "udp://")
		if addr == "" {
			return 0, "", errors.New("udp position server needs an address")
		}
		return positionUDP, addr, nil
	case strings.HasPrefix(s, "ws://"), strings.HasPrefix(s, "wss://"):
		u, err := url.Parse(s)
		if err != nil {
			return 0, "", fmt.Errorf("position server: %w", err)
		}
		if u.Host == "" {
			return 0, "", fmt.Errorf("position server %q has no host", s)
		}
		return positionWS, s, nil
	case strings.Contains(s, "://"):
		return 0, "", fmt.Errorf("unsupported position server %q", s)
	default:
		return positionTCP, s, nil
	}
}
