// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
)

const radToDeg = 180.0 / math.Pi

// Pose is the canonical representation of head orientation, in degrees.
type Pose struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// WrapAngle maps an angle in degrees into (-180, 180].
// Non-finite input is returned unchanged.
func WrapAngle(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return deg
	}
	a := math.Mod(deg, 360)
	if a > 180 {
		a -= 360
	} else if a <= -180 {
		a += 360
	}
	return a
}

// Wrapped returns p with every axis wrapped.
func (p Pose) Wrapped() Pose {
	return Pose{
		Pitch: WrapAngle(p.Pitch),
		Yaw:   WrapAngle(p.Yaw),
		Roll:  WrapAngle(p.Roll),
	}
}

// Sub returns the per-axis difference p - o, not wrapped.
func (p Pose) Sub(o Pose) Pose {
	return Pose{
		Pitch: p.Pitch - o.Pitch,
		Yaw:   p.Yaw - o.Yaw,
		Roll:  p.Roll - o.Roll,
	}
}

// Scale multiplies each axis of p by the matching axis of s.
func (p Pose) Scale(s Pose) Pose {
	return Pose{
		Pitch: p.Pitch * s.Pitch,
		Yaw:   p.Yaw * s.Yaw,
		Roll:  p.Roll * s.Roll,
	}
}

// TiltFromAccel computes pitch and roll from accelerometer data only.
// Yaw is unobservable from gravity and is always 0.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
//
// The second return value is false when the accel magnitude is at or below
// minMagnitude (free-fall, saturation), in which case the pose is zero.
func TiltFromAccel(ax, ay, az, minMagnitude float64) (Pose, bool) {
	if math.Sqrt(ax*ax+ay*ay+az*az) <= minMagnitude {
		return Pose{}, false
	}

	return Pose{
		Pitch: math.Atan2(-ax, math.Sqrt(ay*ay+az*az)) * radToDeg,
		Roll:  math.Atan2(ay, az) * radToDeg,
	}, true
}
