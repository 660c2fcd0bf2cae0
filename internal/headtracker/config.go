package headtracker

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned by New when a Config field is out of range.
var ErrInvalidConfig = errors.New("invalid head tracker config")

// GyroUnits selects the unit of the gyroscope fields of imu.Sample.
type GyroUnits int

const (
	GyroRadians GyroUnits = iota // rad/s, converted to deg/s before integration
	GyroDegrees                  // deg/s, integrated as is
)

// SmoothingPolicy selects the per-axis output smoother.
type SmoothingPolicy int

const (
	// SmoothingDeadzone freezes output inside a deadzone and catches up
	// with a quadratic speed law outside it.
	SmoothingDeadzone SmoothingPolicy = iota
	// SmoothingHysteresis starts moving above StartThreshold, snaps to the
	// target and stops below StopThreshold.
	SmoothingHysteresis
	// SmoothingNone passes the integrated angle through.
	SmoothingNone
)

func (p SmoothingPolicy) String() string {
	switch p {
	case SmoothingDeadzone:
		return "deadzone"
	case SmoothingHysteresis:
		return "hysteresis"
	case SmoothingNone:
		return "none"
	default:
		return fmt.Sprintf("SmoothingPolicy(%d)", int(p))
	}
}

// ParseSmoothingPolicy is the inverse of SmoothingPolicy.String.
func ParseSmoothingPolicy(s string) (SmoothingPolicy, error) {
	switch s {
	case "deadzone":
		return SmoothingDeadzone, nil
	case "hysteresis":
		return SmoothingHysteresis, nil
	case "none":
		return SmoothingNone, nil
	default:
		return 0, fmt.Errorf("unknown smoothing policy %q (want deadzone, hysteresis or none)", s)
	}
}

// Config is fixed at construction; the tracker never reloads it.
type Config struct {
	// Calibration
	CalibrationSamples int  // stationary samples averaged into the gyro bias
	SeedFromAccel      bool // seed pitch/roll from the last calibration sample's tilt
	ZeroOnCalibration  bool // capture the zero reference when calibration completes

	// Integration
	GyroUnits         GyroUnits
	Alpha             float64 // complementary filter gyro weight, 0..1
	AccelMinMagnitude float64 // accel fusion is skipped at or below this magnitude

	// Output scaling applied to the relative orientation (signed).
	PitchScale float64
	YawScale   float64
	RollScale  float64

	// Smoothing
	Smoothing      SmoothingPolicy
	Deadzone       float64 // degrees
	MaxSpeed       float64 // catch-up speed at full pressure, 1/s
	PressureRange  float64 // degrees past the deadzone where pressure reaches 1
	StartThreshold float64 // degrees
	StopThreshold  float64 // degrees
	SmoothSpeed    float64 // 1/s

	// Delta-time bounds, seconds.
	FallbackDeltaSeconds float64
	MaxDeltaSeconds      float64
}

// DefaultConfig returns the tuning used on the head-mounted display.
func DefaultConfig() Config {
	return Config{
		CalibrationSamples: 1500,
		SeedFromAccel:      true,
		ZeroOnCalibration:  true,

		GyroUnits:         GyroRadians,
		Alpha:             0.98,
		AccelMinMagnitude: 0.01,

		PitchScale: 1.5,
		YawScale:   -1.5,
		RollScale:  0.5,

		Smoothing:      SmoothingDeadzone,
		Deadzone:       1.5,
		MaxSpeed:       8.0,
		PressureRange:  8.0,
		StartThreshold: 0.5,
		StopThreshold:  0.1,
		SmoothSpeed:    4.0,

		FallbackDeltaSeconds: 0.01,
		MaxDeltaSeconds:      0.1,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validate checks the fields New relies on. Delta-time bounds are not
// checked: the resolver floors them itself.
func (c Config) validate() error {
	if !finite(c.Alpha) || c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be within [0, 1], got %v", ErrInvalidConfig, c.Alpha)
	}
	if !finite(c.AccelMinMagnitude) || c.AccelMinMagnitude < 0 {
		return fmt.Errorf("%w: accel min magnitude must be >= 0, got %v", ErrInvalidConfig, c.AccelMinMagnitude)
	}
	for name, v := range map[string]float64{"pitch": c.PitchScale, "yaw": c.YawScale, "roll": c.RollScale} {
		if !finite(v) {
			return fmt.Errorf("%w: %s scale must be finite, got %v", ErrInvalidConfig, name, v)
		}
	}
	if c.GyroUnits != GyroRadians && c.GyroUnits != GyroDegrees {
		return fmt.Errorf("%w: unknown gyro units %d", ErrInvalidConfig, c.GyroUnits)
	}

	switch c.Smoothing {
	case SmoothingDeadzone:
		if !finite(c.Deadzone) || c.Deadzone < 0 {
			return fmt.Errorf("%w: deadzone must be >= 0, got %v", ErrInvalidConfig, c.Deadzone)
		}
		if !finite(c.MaxSpeed) || c.MaxSpeed <= 0 {
			return fmt.Errorf("%w: max speed must be > 0, got %v", ErrInvalidConfig, c.MaxSpeed)
		}
		if !finite(c.PressureRange) || c.PressureRange <= 0 {
			return fmt.Errorf("%w: pressure range must be > 0, got %v", ErrInvalidConfig, c.PressureRange)
		}
	case SmoothingHysteresis:
		if !finite(c.StopThreshold) || c.StopThreshold < 0 {
			return fmt.Errorf("%w: stop threshold must be >= 0, got %v", ErrInvalidConfig, c.StopThreshold)
		}
		if !finite(c.StartThreshold) || c.StartThreshold < c.StopThreshold {
			return fmt.Errorf("%w: start threshold %v must be >= stop threshold %v", ErrInvalidConfig, c.StartThreshold, c.StopThreshold)
		}
		if !finite(c.SmoothSpeed) || c.SmoothSpeed <= 0 {
			return fmt.Errorf("%w: smooth speed must be > 0, got %v", ErrInvalidConfig, c.SmoothSpeed)
		}
	case SmoothingNone:
	default:
		return fmt.Errorf("%w: unknown smoothing policy %d", ErrInvalidConfig, int(c.Smoothing))
	}

	return nil
}
