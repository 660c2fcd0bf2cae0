// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/headtracker/internal/imu"
)

// Full-scale sensitivities indexed by the MPU9250 range setting.
var (
	accelLSBPerG   = [4]float64{16384, 8192, 4096, 2048} // ±2g, ±4g, ±8g, ±16g
	gyroLSBPerDegS = [4]float64{131, 65.5, 32.8, 16.4}   // ±250, ±500, ±1000, ±2000 °/s
)

// rawReader is the subset of the MPU9250 driver the source reads from.
type rawReader interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
	GetRotationX() (int16, error)
	GetRotationY() (int16, error)
	GetRotationZ() (int16, error)
}

type mpuSource struct {
	name       string
	dev        rawReader
	accelScale float64 // counts -> g
	gyroScale  float64 // counts -> rad/s
	start      time.Time
}

// NewMPU9250Source initializes an MPU9250 over SPI and returns an
// imu.Source delivering gyro in rad/s and accel in g.
func NewMPU9250Source(name, spiDev, csPin string, accelRange, gyroRange byte) (imu.Source, error) {
	if accelRange > 3 || gyroRange > 3 {
		return nil, fmt.Errorf("%s IMU: accel range %d / gyro range %d must be 0-3", name, accelRange, gyroRange)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", name, csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", name, spiDev, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", name, err)
	}

	if _, err := dev.SelfTest(); err != nil {
		log.Printf("Warning: %s IMU self-test failed: %v", name, err)
	} else {
		log.Printf("%s IMU self-test passed", name)
	}

	// The on-chip offset calibration only trims the factory offsets; the
	// head tracker still estimates the residual gyro bias itself.
	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: %s IMU calibration failed: %v", name, err)
	}

	if err := dev.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set accel range: %w", name, err)
	}
	log.Printf("%s IMU: accelerometer range set to %d (±%dg)", name, accelRange, []int{2, 4, 8, 16}[accelRange])

	if err := dev.SetGyroRange(gyroRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set gyro range: %w", name, err)
	}
	log.Printf("%s IMU: gyroscope range set to %d (±%d°/s)", name, gyroRange, []int{250, 500, 1000, 2000}[gyroRange])

	return newMPUSource(name, dev, accelRange, gyroRange), nil
}

func newMPUSource(name string, dev rawReader, accelRange, gyroRange byte) *mpuSource {
	return &mpuSource{
		name:       name,
		dev:        dev,
		accelScale: 1 / accelLSBPerG[accelRange],
		gyroScale:  math.Pi / 180 / gyroLSBPerDegS[gyroRange],
		start:      time.Now(),
	}
}

// Next reads one accelerometer + gyroscope sample.
func (s *mpuSource) Next() (imu.Reading, error) {
	var raw [6]int16
	reads := [6]struct {
		axis string
		fn   func() (int16, error)
	}{
		{"accel X", s.dev.GetAccelerationX},
		{"accel Y", s.dev.GetAccelerationY},
		{"accel Z", s.dev.GetAccelerationZ},
		{"gyro X", s.dev.GetRotationX},
		{"gyro Y", s.dev.GetRotationY},
		{"gyro Z", s.dev.GetRotationZ},
	}
	for i, r := range reads {
		v, err := r.fn()
		if err != nil {
			return imu.Reading{}, fmt.Errorf("%s IMU %s: %w", s.name, r.axis, err)
		}
		raw[i] = v
	}

	// time.Since uses the monotonic clock reading taken in start.
	ts := time.Since(s.start).Nanoseconds()

	return imu.Reading{
		Source:         s.name,
		TimestampNanos: ts,
		Sample: imu.Sample{
			Ax: float64(raw[0]) * s.accelScale,
			Ay: float64(raw[1]) * s.accelScale,
			Az: float64(raw[2]) * s.accelScale,
			Gx: float64(raw[3]) * s.gyroScale,
			Gy: float64(raw[4]) * s.gyroScale,
			Gz: float64(raw[5]) * s.gyroScale,
		},
	}, nil
}
