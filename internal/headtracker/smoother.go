package headtracker

import (
	"math"

	"github.com/relabs-tech/headtracker/internal/orientation"
)

// Smoother de-jitters one axis of the integrated orientation.
// Implementations hold one angle of state and never allocate.
type Smoother interface {
	// Update moves the output towards target (degrees, wrapped) over dt
	// seconds and returns the new output.
	Update(target, dt float64) float64
	// Reset places the output at angle and clears any motion state.
	Reset(angle float64)
}

// NewSmoother builds the smoother selected by cfg.Smoothing.
func NewSmoother(cfg Config) Smoother {
	switch cfg.Smoothing {
	case SmoothingHysteresis:
		return &HysteresisSmoother{
			StartThreshold: cfg.StartThreshold,
			StopThreshold:  cfg.StopThreshold,
			Speed:          cfg.SmoothSpeed,
		}
	case SmoothingNone:
		return &passthrough{}
	default:
		return &DeadzoneSmoother{
			Deadzone:      cfg.Deadzone,
			MaxSpeed:      cfg.MaxSpeed,
			PressureRange: cfg.PressureRange,
		}
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// DeadzoneSmoother holds still inside Deadzone and otherwise catches up
// with speed MaxSpeed*pressure², where pressure ramps from 0 at the
// deadzone edge to 1 at Deadzone+PressureRange.
type DeadzoneSmoother struct {
	Deadzone      float64
	MaxSpeed      float64
	PressureRange float64

	current float64
}

func (s *DeadzoneSmoother) Update(target, dt float64) float64 {
	diff := orientation.WrapAngle(target - s.current)
	absDiff := math.Abs(diff)
	if absDiff < s.Deadzone {
		return s.current
	}

	pressure := clamp01((absDiff - s.Deadzone) / s.PressureRange)
	speed := s.MaxSpeed * pressure * pressure

	// Clamping the fraction keeps a dt spike from overshooting the target.
	s.current = orientation.WrapAngle(s.current + diff*clamp01(speed*dt))
	return s.current
}

func (s *DeadzoneSmoother) Reset(angle float64) {
	s.current = orientation.WrapAngle(angle)
}

// HysteresisSmoother starts following once the error exceeds
// StartThreshold and snaps onto the target when it drops below
// StopThreshold.
type HysteresisSmoother struct {
	StartThreshold float64
	StopThreshold  float64
	Speed          float64

	current float64
	moving  bool
}

func (s *HysteresisSmoother) Update(target, dt float64) float64 {
	diff := orientation.WrapAngle(target - s.current)
	absDiff := math.Abs(diff)

	if !s.moving && absDiff > s.StartThreshold {
		s.moving = true
	} else if s.moving && absDiff < s.StopThreshold {
		s.moving = false
		s.current = orientation.WrapAngle(target)
		return s.current
	}

	if s.moving {
		s.current = orientation.WrapAngle(s.current + diff*clamp01(s.Speed*dt))
	}
	return s.current
}

func (s *HysteresisSmoother) Reset(angle float64) {
	s.current = orientation.WrapAngle(angle)
	s.moving = false
}

// Moving reports whether the smoother is currently following its target.
func (s *HysteresisSmoother) Moving() bool { return s.moving }

type passthrough struct {
	current float64
}

func (s *passthrough) Update(target, _ float64) float64 {
	s.current = orientation.WrapAngle(target)
	return s.current
}

func (s *passthrough) Reset(angle float64) {
	s.current = orientation.WrapAngle(angle)
}
