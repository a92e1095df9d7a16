package stereo

// Crosstalk ramps. The left eye dims as the level rises, the right eye as it
// falls; at level 0 both are at full intensity.
var (
	leftRamp = [19]float64{
		1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0,
		0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1,
	}
	rightRamp = [19]float64{
		0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9,
		1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0,
	}
)

// Intensity level bounds.
const (
	MinIntensityLevel = -9
	MaxIntensityLevel = 9
)

// ClampIntensityLevel limits level to [-9, 9].
func ClampIntensityLevel(level int) int {
	return min(max(level, MinIntensityLevel), MaxIntensityLevel)
}

// intensityOrdinal is the 1-based table position of level: level+10 in [1, 19].
func intensityOrdinal(level int) int {
	return ClampIntensityLevel(level) + 10
}

// Intensity returns the crosstalk compensation factor for eye at level.
func Intensity(eye Eye, level int) float64 {
	idx := intensityOrdinal(level) - 1
	switch {
	case eye.IsLeft():
		return leftRamp[idx]
	case eye.IsRight():
		return rightRamp[idx]
	default:
		return 1
	}
}
