package headtracker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDeltaTime(t *testing.T) {
	const ms = int64(1_000_000)

	tests := []struct {
		name          string
		prev, curr    int64
		fallback, max float64
		want          float64
	}{
		{"regular 10ms", 0, 10 * ms, 0.01, 0.1, 0.010},
		{"exactly max", 0, 100 * ms, 0.01, 0.1, 0.1},
		{"gap clamped to max", 0, 5000 * ms, 0.01, 0.1, 0.1},
		{"zero gap uses fallback", 7 * ms, 7 * ms, 0.01, 0.1, 0.01},
		{"rollback uses fallback", 20 * ms, 10 * ms, 0.02, 0.1, 0.02},
		{"tiny fallback floored", 10 * ms, 10 * ms, 0, 0.1, 1e-4},
		{"negative fallback floored", 10 * ms, 5 * ms, -1, 0.1, 1e-4},
		{"NaN fallback floored", 10 * ms, 5 * ms, math.NaN(), 0.1, 1e-4},
		{"max below fallback raised to fallback", 0, 1000 * ms, 0.05, 0.01, 0.05},
		{"large timestamps", 1_700_000_000_000_000_000, 1_700_000_000_016_000_000, 0.01, 0.1, 0.016},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveDeltaTime(tt.prev, tt.curr, tt.fallback, tt.max)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestResolveDeltaTimeAlwaysPositiveAndBounded(t *testing.T) {
	const maxSeconds = 0.25
	for gap := int64(-1e9); gap <= int64(2e9); gap += 12_345_678 {
		dt := ResolveDeltaTime(1e9, 1e9+gap, 0.01, maxSeconds)
		assert.Greater(t, dt, 0.0, "gap=%d", gap)
		assert.LessOrEqual(t, dt, maxSeconds, "gap=%d", gap)
	}
}
