// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/headtracker/internal/imu"
)

const degToRad = math.Pi / 180

type mockSource struct {
	start  time.Time
	warmup time.Duration
	bias   imu.Sample
	since  func(time.Time) time.Duration
}

// NewMockSource creates a mock IMU that holds still for warmup (long
// enough to calibrate) and then sweeps yaw and nods pitch smoothly.
// A constant gyro bias is added so calibration has something to remove.
func NewMockSource(warmup time.Duration) imu.Source {
	return &mockSource{
		start:  time.Now(),
		warmup: warmup,
		bias:   imu.Sample{Gx: 0.001, Gy: -0.002, Gz: 0.0015},
		since:  time.Since,
	}
}

// mockPose returns pitch/yaw in degrees and their rates in deg/s, tau
// seconds after the warm-up.
func mockPose(tau float64) (pitch, yaw, pitchRate, yawRate float64) {
	if tau <= 0 {
		return 0, 0, 0, 0
	}
	pitch = 15 * math.Sin(0.8*tau)
	pitchRate = 15 * 0.8 * math.Cos(0.8*tau)
	yaw = 40 * math.Sin(0.5*tau)
	yawRate = 40 * 0.5 * math.Cos(0.5*tau)
	return pitch, yaw, pitchRate, yawRate
}

func (m *mockSource) Next() (imu.Reading, error) {
	elapsed := m.since(m.start)
	tau := (elapsed - m.warmup).Seconds()

	pitch, _, pitchRate, yawRate := mockPose(tau)

	return imu.Reading{
		Source:         "mock",
		TimestampNanos: elapsed.Nanoseconds(),
		Sample: imu.Sample{
			Gx: pitchRate*degToRad + m.bias.Gx,
			Gy: yawRate*degToRad + m.bias.Gy,
			Gz: m.bias.Gz,
			// gravity seen by a head pitched nose down by pitch degrees
			Ax: -math.Sin(pitch * degToRad),
			Ay: 0,
			Az: math.Cos(pitch * degToRad),
		},
	}, nil
}
