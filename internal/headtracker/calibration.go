package headtracker

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/headtracker/internal/imu"
)

// CalibrationState is a value snapshot of the gyro calibration.
type CalibrationState struct {
	SampleCount int    `json:"sample_count"`
	Target      int    `json:"target"`
	Calibrated  bool   `json:"calibrated"`
	GyroBias    r3.Vec `json:"gyro_bias"`  // zero until Calibrated
	GyroNoise   r3.Vec `json:"gyro_noise"` // per-axis std-dev of the calibration window, diagnostic only
}

// ProgressPercent reports calibration progress in 0..100.
// A non-positive target counts as complete.
func (s CalibrationState) ProgressPercent() float64 {
	if s.Target <= 0 {
		return 100
	}
	p := float64(s.SampleCount) / float64(s.Target) * 100
	return math.Min(p, 100)
}

// calibrator averages stationary gyro samples with running sums.
type calibrator struct {
	target int
	count  int
	sum    r3.Vec
	sumSq  r3.Vec
	bias   r3.Vec
	noise  r3.Vec
	done   bool
}

func newCalibrator(target int) calibrator {
	return calibrator{target: target}
}

// accumulate adds one sample and reports whether this call completed
// calibration. Calls after completion change nothing.
func (c *calibrator) accumulate(s imu.Sample) (completed bool) {
	if c.done {
		return false
	}

	g := r3.Vec{X: s.Gx, Y: s.Gy, Z: s.Gz}
	c.sum = r3.Add(c.sum, g)
	c.sumSq = r3.Add(c.sumSq, r3.Vec{X: g.X * g.X, Y: g.Y * g.Y, Z: g.Z * g.Z})
	c.count++

	if c.count < c.target {
		return false
	}

	n := float64(c.count)
	c.bias = r3.Scale(1/n, c.sum)
	meanSq := r3.Scale(1/n, c.sumSq)
	c.noise = r3.Vec{
		X: stddev(meanSq.X, c.bias.X),
		Y: stddev(meanSq.Y, c.bias.Y),
		Z: stddev(meanSq.Z, c.bias.Z),
	}
	c.done = true
	return true
}

func stddev(meanSq, mean float64) float64 {
	v := meanSq - mean*mean
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

func (c *calibrator) reset() {
	*c = newCalibrator(c.target)
}

func (c *calibrator) state() CalibrationState {
	return CalibrationState{
		SampleCount: c.count,
		Target:      c.target,
		Calibrated:  c.done,
		GyroBias:    c.bias,
		GyroNoise:   c.noise,
	}
}
