// Package headtracker turns a stream of gyro + accel samples into a
// smoothed, drift-compensated head orientation for a VR viewport.
//
// A Tracker first averages CalibrationSamples stationary samples into a
// gyro bias, then integrates each sample with a per-axis complementary
// filter (yaw is gyro only), smooths the result per axis and reports it
// relative to a captured zero reference.
package headtracker

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/headtracker/internal/imu"
	"github.com/relabs-tech/headtracker/internal/orientation"
)

// Update is produced for every integrated sample.
type Update struct {
	DeltaSeconds float64          `json:"dt"`
	Raw          orientation.Pose `json:"raw"`      // integrator output
	Absolute     orientation.Pose `json:"absolute"` // smoothed
	Relative     orientation.Pose `json:"relative"` // smoothed, zeroed and scaled
}

// Tracker is safe for concurrent use: samples may be fed from a sensor
// goroutine while ZeroView and ResetCalibration arrive from elsewhere.
type Tracker struct {
	cfg        Config
	scale      orientation.Pose
	integrator integrator

	mu        sync.Mutex
	calib     calibrator
	raw       orientation.Pose
	display   orientation.Pose
	zero      orientation.Pose
	smoothers [3]Smoother // pitch, yaw, roll

	lastTimestamp int64
	haveTimestamp bool
}

// New validates cfg and returns an uncalibrated tracker.
func New(cfg Config) (*Tracker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	t := &Tracker{
		cfg:        cfg,
		scale:      orientation.Pose{Pitch: cfg.PitchScale, Yaw: cfg.YawScale, Roll: cfg.RollScale},
		integrator: newIntegrator(cfg),
		calib:      newCalibrator(cfg.CalibrationSamples),
	}
	for i := range t.smoothers {
		t.smoothers[i] = NewSmoother(cfg)
	}
	return t, nil
}

// Config returns the configuration the tracker was built with.
func (t *Tracker) Config() Config { return t.cfg }

// FeedSample consumes one sensor reading. While uncalibrated the sample is
// calibration input. The first sample after calibration only records the
// timestamp baseline. The boolean is true when an Update was produced.
func (t *Tracker) FeedSample(s imu.Sample, timestampNanos int64) (Update, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.calib.done {
		if t.calib.accumulate(s) {
			t.completeCalibration(s)
		}
		return Update{}, false
	}

	if !t.haveTimestamp {
		t.lastTimestamp = timestampNanos
		t.haveTimestamp = true
		return Update{}, false
	}

	dt := ResolveDeltaTime(t.lastTimestamp, timestampNanos, t.cfg.FallbackDeltaSeconds, t.cfg.MaxDeltaSeconds)
	t.lastTimestamp = timestampNanos

	t.raw = t.integrator.integrate(s, dt, t.calib.bias, t.raw)
	t.display = orientation.Pose{
		Pitch: t.smoothers[0].Update(t.raw.Pitch, dt),
		Yaw:   t.smoothers[1].Update(t.raw.Yaw, dt),
		Roll:  t.smoothers[2].Update(t.raw.Roll, dt),
	}

	return Update{
		DeltaSeconds: dt,
		Raw:          t.raw,
		Absolute:     t.display,
		Relative:     t.relativeLocked(),
	}, true
}

// Calibrate feeds one stationary sample to the calibration only and
// returns the resulting state. After completion it changes nothing.
func (t *Tracker) Calibrate(s imu.Sample) CalibrationState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.calib.accumulate(s) {
		t.completeCalibration(s)
	}
	return t.calib.state()
}

// completeCalibration runs once, on the sample that reached the target.
func (t *Tracker) completeCalibration(last imu.Sample) {
	t.raw = orientation.Pose{}
	if t.cfg.SeedFromAccel {
		if tilt, ok := orientation.TiltFromAccel(last.Ax, last.Ay, last.Az, t.cfg.AccelMinMagnitude); ok {
			t.raw = tilt
		}
	}
	t.resetSmoothersLocked(t.raw)
	t.haveTimestamp = false
	t.lastTimestamp = 0

	if t.cfg.ZeroOnCalibration {
		t.zero = t.display
	}
}

func (t *Tracker) resetSmoothersLocked(p orientation.Pose) {
	t.smoothers[0].Reset(p.Pitch)
	t.smoothers[1].Reset(p.Yaw)
	t.smoothers[2].Reset(p.Roll)
	t.display = p
}

// ResetCalibration returns the tracker to its freshly constructed state.
func (t *Tracker) ResetCalibration() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calib.reset()
	t.raw = orientation.Pose{}
	t.zero = orientation.Pose{}
	t.resetSmoothersLocked(orientation.Pose{})
	t.haveTimestamp = false
	t.lastTimestamp = 0
}

// ZeroView makes the current displayed orientation the forward reference.
func (t *Tracker) ZeroView() {
	t.mu.Lock()
	t.zero = t.display
	t.mu.Unlock()
}

func (t *Tracker) relativeLocked() orientation.Pose {
	return t.display.Sub(t.zero).Scale(t.scale).Wrapped()
}

// RelativeOrientation is the smoothed orientation relative to the zero
// reference, with the per-axis output scale applied.
func (t *Tracker) RelativeOrientation() orientation.Pose {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.relativeLocked()
}

// AbsoluteOrientation is the smoothed orientation before zeroing.
func (t *Tracker) AbsoluteOrientation() orientation.Pose {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.display
}

// RawOrientation is the integrator state before smoothing.
func (t *Tracker) RawOrientation() orientation.Pose {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.raw
}

// Calibration returns a snapshot of the calibration state.
func (t *Tracker) Calibration() CalibrationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calib.state()
}

// CalibrationProgress is Calibration().ProgressPercent().
func (t *Tracker) CalibrationProgress() float64 {
	return t.Calibration().ProgressPercent()
}

// IsCalibrated reports whether the gyro bias is known.
func (t *Tracker) IsCalibrated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calib.done
}

func (t *Tracker) String() string {
	st := t.Calibration()
	if !st.Calibrated {
		return fmt.Sprintf("headtracker(calibrating %d/%d)", st.SampleCount, st.Target)
	}
	p := t.RelativeOrientation()
	return fmt.Sprintf("headtracker(P=%.2f Y=%.2f R=%.2f)", p.Pitch, p.Yaw, p.Roll)
}
