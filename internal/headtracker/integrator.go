package headtracker

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/headtracker/internal/imu"
	"github.com/relabs-tech/headtracker/internal/orientation"
)

// integrator advances pitch/yaw/roll with bias-corrected gyro rates and
// pulls pitch and roll towards the accelerometer tilt. Axis mapping follows
// the headset frame: pitch <- gx, yaw <- gy, roll <- gz.
type integrator struct {
	alpha        float64
	minAccel     float64
	gyroToDegSec float64
}

func newIntegrator(cfg Config) integrator {
	conv := 1.0
	if cfg.GyroUnits == GyroRadians {
		conv = 180 / math.Pi
	}
	return integrator{
		alpha:        cfg.Alpha,
		minAccel:     cfg.AccelMinMagnitude,
		gyroToDegSec: conv,
	}
}

func (in integrator) integrate(s imu.Sample, dt float64, bias r3.Vec, prev orientation.Pose) orientation.Pose {
	rate := r3.Scale(in.gyroToDegSec, r3.Sub(r3.Vec{X: s.Gx, Y: s.Gy, Z: s.Gz}, bias))

	gyro := orientation.Pose{
		Pitch: prev.Pitch + rate.X*dt,
		Yaw:   prev.Yaw + rate.Y*dt,
		Roll:  prev.Roll + rate.Z*dt,
	}

	tilt, ok := orientation.TiltFromAccel(s.Ax, s.Ay, s.Az, in.minAccel)
	if !ok {
		// Free-fall or clipped accel: gyro only, drift accepted.
		return gyro.Wrapped()
	}

	// alpha*gyro + (1-alpha)*tilt, taken along the shortest arc so a
	// pose near the ±180 seam is not pulled the long way round.
	return orientation.Pose{
		Pitch: gyro.Pitch + (1-in.alpha)*orientation.WrapAngle(tilt.Pitch-gyro.Pitch),
		Yaw:   gyro.Yaw,
		Roll:  gyro.Roll + (1-in.alpha)*orientation.WrapAngle(tilt.Roll-gyro.Roll),
	}.Wrapped()
}
