package headtracker

import "math"

// minDeltaSeconds floors the fallback so integration always advances.
const minDeltaSeconds = 1e-4

// ResolveDeltaTime converts two monotonic timestamps into an integration
// step in seconds. Non-positive or non-finite gaps resolve to the fallback
// (floored at 1e-4 s); large gaps are clamped to max(maxSeconds, fallback).
func ResolveDeltaTime(prevNanos, currNanos int64, fallbackSeconds, maxSeconds float64) float64 {
	safeFallback := fallbackSeconds
	if !(safeFallback >= minDeltaSeconds) { // also catches NaN
		safeFallback = minDeltaSeconds
	}
	safeMax := maxSeconds
	if !(safeMax >= safeFallback) {
		safeMax = safeFallback
	}

	deltaNanos := currNanos - prevNanos
	if deltaNanos <= 0 {
		return safeFallback
	}
	dt := float64(deltaNanos) / 1e9
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return safeFallback
	}
	return math.Min(dt, safeMax)
}
