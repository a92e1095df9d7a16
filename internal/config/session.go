package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Motion model names accepted in the motion_model field.
const (
	MotionConstantVelocity = "constant_velocity"
	MotionVirtualSpring    = "virtual_spring"
)

// Tracking mode names accepted in the tracking_mode field.
const (
	TrackingVisual     = "visual"
	TrackingCombined   = "combined"
	TrackingVestibular = "vestibular"
)

// SessionConfig holds the experiment geometry and timing parameters. Every
// field is optional; the Get* accessors supply defaults for nil fields so a
// partial JSON file is safe.
type SessionConfig struct {
	// Geometry, metres. The physical screen lies in the plane z = 0.
	ScreenWidth    *float64 `json:"screen_width,omitempty"`
	ScreenHeight   *float64 `json:"screen_height,omitempty"`
	ViewerDistance *float64 `json:"viewer_distance,omitempty"`
	ZNear          *float64 `json:"z_near,omitempty"`
	ZFar           *float64 `json:"z_far,omitempty"`
	EyeSeparation  *float64 `json:"eye_separation,omitempty"`

	// Balls
	BallRadius        *float64 `json:"ball_radius,omitempty"`
	MotionModel       *string  `json:"motion_model,omitempty"`
	MaxStep           *string  `json:"max_step,omitempty"` // duration string like "100ms"
	SpringStep        *string  `json:"spring_step,omitempty"`
	SpringConstant    *float64 `json:"spring_constant,omitempty"`
	SpringDamping     *float64 `json:"spring_damping,omitempty"`
	SpringNoise       *float64 `json:"spring_noise,omitempty"`
	PlacementAttempts *int     `json:"placement_attempts,omitempty"`
	Seed              *uint64  `json:"seed,omitempty"`

	// Phases
	WaitDelay  *string `json:"wait_delay,omitempty"`
	StartDelay *string `json:"start_delay,omitempty"`

	// Display and tracking
	IntensityLevel *int     `json:"intensity_level,omitempty"`
	FrameRate      *float64 `json:"frame_rate,omitempty"`
	TrackingMode   *string  `json:"tracking_mode,omitempty"`
	TrackerLead    *string  `json:"tracker_lead,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySessionConfig returns a SessionConfig with all fields set to nil.
func EmptySessionConfig() *SessionConfig {
	return &SessionConfig{}
}

// DefaultSessionConfig returns a config with every field populated with the
// laboratory defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ScreenWidth:       ptrFloat64(2.728),
		ScreenHeight:      ptrFloat64(1.02),
		ViewerDistance:    ptrFloat64(1.2),
		ZNear:             ptrFloat64(0.6),
		ZFar:              ptrFloat64(-0.6),
		EyeSeparation:     ptrFloat64(0.063),
		BallRadius:        ptrFloat64(0.1),
		MotionModel:       ptrString(MotionConstantVelocity),
		MaxStep:           ptrString("100ms"),
		SpringStep:        ptrString("100ms"),
		SpringConstant:    ptrFloat64(0.05),
		SpringDamping:     ptrFloat64(0),
		SpringNoise:       ptrFloat64(0.03),
		PlacementAttempts: ptrInt(10000),
		WaitDelay:         ptrString("3000ms"),
		StartDelay:        ptrString("4000ms"),
		IntensityLevel:    ptrInt(0),
		FrameRate:         ptrFloat64(60),
		TrackingMode:      ptrString(TrackingVisual),
		TrackerLead:       ptrString("83.333ms"),
	}
}

// LoadSessionConfig loads a SessionConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySessionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *SessionConfig) Validate() error {
	if c.GetScreenWidth() <= 0 || c.GetScreenHeight() <= 0 {
		return fmt.Errorf("screen dimensions must be positive, got %gx%g", c.GetScreenWidth(), c.GetScreenHeight())
	}
	if c.GetViewerDistance() <= 0 {
		return fmt.Errorf("viewer_distance must be positive, got %g", c.GetViewerDistance())
	}
	// Objects are drawn between the near and far planes, which must both lie
	// in front of the viewer and leave room for at least one ball.
	if c.GetZNear() >= c.GetViewerDistance() {
		return fmt.Errorf("z_near (%g) must be smaller than viewer_distance (%g)", c.GetZNear(), c.GetViewerDistance())
	}
	if c.GetZNear()-c.GetZFar() <= 2*c.GetBallRadius() {
		return fmt.Errorf("z_near (%g) and z_far (%g) leave no room for balls of radius %g", c.GetZNear(), c.GetZFar(), c.GetBallRadius())
	}
	if c.GetBallRadius() <= 0 {
		return fmt.Errorf("ball_radius must be positive, got %g", c.GetBallRadius())
	}
	if 2*c.GetBallRadius() >= c.GetScreenHeight() || 2*c.GetBallRadius() >= c.GetScreenWidth() {
		return fmt.Errorf("ball_radius %g does not fit on the screen", c.GetBallRadius())
	}
	if c.EyeSeparation != nil && *c.EyeSeparation < 0 {
		return fmt.Errorf("eye_separation must be non-negative, got %g", *c.EyeSeparation)
	}

	switch c.GetMotionModel() {
	case MotionConstantVelocity, MotionVirtualSpring:
	default:
		return fmt.Errorf("unknown motion_model %q", c.GetMotionModel())
	}

	for name, v := range map[string]*string{
		"max_step":     c.MaxStep,
		"spring_step":  c.SpringStep,
		"wait_delay":   c.WaitDelay,
		"start_delay":  c.StartDelay,
		"tracker_lead": c.TrackerLead,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}

	if c.SpringNoise != nil && *c.SpringNoise < 0 {
		return fmt.Errorf("spring_noise must be non-negative, got %g", *c.SpringNoise)
	}
	if c.PlacementAttempts != nil && *c.PlacementAttempts < 1 {
		return fmt.Errorf("placement_attempts must be at least 1, got %d", *c.PlacementAttempts)
	}
	if c.IntensityLevel != nil && (*c.IntensityLevel < -9 || *c.IntensityLevel > 9) {
		return fmt.Errorf("intensity_level must be between -9 and 9, got %d", *c.IntensityLevel)
	}
	if c.FrameRate != nil && *c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %g", *c.FrameRate)
	}
	if c.TrackingMode != nil {
		switch *c.TrackingMode {
		case TrackingVisual, TrackingCombined, TrackingVestibular:
		default:
			return fmt.Errorf("unknown tracking_mode %q", *c.TrackingMode)
		}
	}

	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetScreenWidth returns the physical screen width in metres.
func (c *SessionConfig) GetScreenWidth() float64 {
	if c.ScreenWidth == nil {
		return 2.728
	}
	return *c.ScreenWidth
}

// GetScreenHeight returns the physical screen height in metres.
func (c *SessionConfig) GetScreenHeight() float64 {
	if c.ScreenHeight == nil {
		return 1.02
	}
	return *c.ScreenHeight
}

// GetViewerDistance returns the viewer's distance to the screen. It is the
// session-wide z coordinate of the viewer.
func (c *SessionConfig) GetViewerDistance() float64 {
	if c.ViewerDistance == nil {
		return 1.2
	}
	return *c.ViewerDistance
}

// GetZNear returns the nearest viewable z, defaulting to half the viewer distance.
func (c *SessionConfig) GetZNear() float64 {
	if c.ZNear == nil {
		return 0.5 * c.GetViewerDistance()
	}
	return *c.ZNear
}

// GetZFar returns the furthest viewable z, defaulting to minus half the viewer distance.
func (c *SessionConfig) GetZFar() float64 {
	if c.ZFar == nil {
		return -0.5 * c.GetViewerDistance()
	}
	return *c.ZFar
}

// GetEyeSeparation returns the interocular distance in metres.
func (c *SessionConfig) GetEyeSeparation() float64 {
	if c.EyeSeparation == nil {
		return 0.063
	}
	return *c.EyeSeparation
}

// GetBallRadius returns the ball radius in metres.
func (c *SessionConfig) GetBallRadius() float64 {
	if c.BallRadius == nil {
		return 0.1
	}
	return *c.BallRadius
}

// GetMotionModel returns the motion model name.
func (c *SessionConfig) GetMotionModel() string {
	if c.MotionModel == nil || *c.MotionModel == "" {
		return MotionConstantVelocity
	}
	return *c.MotionModel
}

// GetMaxStep returns the largest time step of the constant velocity model.
func (c *SessionConfig) GetMaxStep() time.Duration {
	return parseDurationOr(c.MaxStep, 100*time.Millisecond)
}

// GetSpringStep returns the fixed time step of the virtual spring model.
func (c *SessionConfig) GetSpringStep() time.Duration {
	return parseDurationOr(c.SpringStep, 100*time.Millisecond)
}

// GetSpringConstant returns K of the virtual spring model.
func (c *SessionConfig) GetSpringConstant() float64 {
	if c.SpringConstant == nil {
		return 0.05
	}
	return *c.SpringConstant
}

// GetSpringDamping returns L of the virtual spring model.
func (c *SessionConfig) GetSpringDamping() float64 {
	if c.SpringDamping == nil {
		return 0
	}
	return *c.SpringDamping
}

// GetSpringNoise returns sigma of the virtual spring model.
func (c *SessionConfig) GetSpringNoise() float64 {
	if c.SpringNoise == nil {
		return 0.03
	}
	return *c.SpringNoise
}

// GetPlacementAttempts returns the number of whole-batch placement retries.
func (c *SessionConfig) GetPlacementAttempts() int {
	if c.PlacementAttempts == nil {
		return 10000
	}
	return *c.PlacementAttempts
}

// GetSeed returns the random seed and whether one was configured.
func (c *SessionConfig) GetSeed() (uint64, bool) {
	if c.Seed == nil {
		return 0, false
	}
	return *c.Seed, true
}

// GetWaitDelay returns the duration of the Wait phase.
func (c *SessionConfig) GetWaitDelay() time.Duration {
	return parseDurationOr(c.WaitDelay, 3000*time.Millisecond)
}

// GetStartDelay returns the duration of the Start phase.
func (c *SessionConfig) GetStartDelay() time.Duration {
	return parseDurationOr(c.StartDelay, 4000*time.Millisecond)
}

// GetIntensityLevel returns the stereo intensity balance.
func (c *SessionConfig) GetIntensityLevel() int {
	if c.IntensityLevel == nil {
		return 0
	}
	return *c.IntensityLevel
}

// GetFrameRate returns the display refresh rate in Hz.
func (c *SessionConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 60
	}
	return *c.FrameRate
}

// GetTrackingMode returns how the viewer position is obtained.
func (c *SessionConfig) GetTrackingMode() string {
	if c.TrackingMode == nil || *c.TrackingMode == "" {
		return TrackingVisual
	}
	return *c.TrackingMode
}

// GetTrackerLead returns how far ahead the tracker position is extrapolated.
func (c *SessionConfig) GetTrackerLead() time.Duration {
	return parseDurationOr(c.TrackerLead, time.Second*5/60)
}
