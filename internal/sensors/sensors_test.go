package sensors

import (
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/headtracker/internal/headtracker"
	"github.com/relabs-tech/headtracker/internal/imu"
)

type fakeMPU struct {
	vals [6]int16
	err  error
}

func (f *fakeMPU) GetAccelerationX() (int16, error) { return f.vals[0], f.err }
func (f *fakeMPU) GetAccelerationY() (int16, error) { return f.vals[1], nil }
func (f *fakeMPU) GetAccelerationZ() (int16, error) { return f.vals[2], nil }
func (f *fakeMPU) GetRotationX() (int16, error)     { return f.vals[3], nil }
func (f *fakeMPU) GetRotationY() (int16, error)     { return f.vals[4], nil }
func (f *fakeMPU) GetRotationZ() (int16, error)     { return f.vals[5], nil }

func TestMPUSourceScalesCounts(t *testing.T) {
	dev := &fakeMPU{vals: [6]int16{0, -8192, 16384, 131, -262, 0}}
	src := newMPUSource("left", dev, 0, 0)

	r, err := src.Next()
	require.NoError(t, err)

	assert.Equal(t, "left", r.Source)
	assert.InDelta(t, 0, r.Ax, 1e-12)
	assert.InDelta(t, -0.5, r.Ay, 1e-12)
	assert.InDelta(t, 1, r.Az, 1e-12)
	assert.InDelta(t, 1*degToRad, r.Gx, 1e-12)
	assert.InDelta(t, -2*degToRad, r.Gy, 1e-12)
	assert.GreaterOrEqual(t, r.TimestampNanos, int64(0))
}

func TestMPUSourceRangeSelectsSensitivity(t *testing.T) {
	dev := &fakeMPU{vals: [6]int16{2048, 0, 0, 164, 0, 0}}
	src := newMPUSource("right", dev, 3, 3)

	r, err := src.Next()
	require.NoError(t, err)
	assert.InDelta(t, 1, r.Ax, 1e-12)
	assert.InDelta(t, 10*degToRad, r.Gx, 1e-12)
}

func TestMPUSourceWrapsReadErrors(t *testing.T) {
	busErr := errors.New("spi timeout")
	src := newMPUSource("left", &fakeMPU{err: busErr}, 0, 0)

	_, err := src.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, busErr)
	assert.Contains(t, err.Error(), "left IMU accel X")
}

func TestParseIMUSentence(t *testing.T) {
	line := FormatIMUSentence(imu.Reading{
		TimestampNanos: 123456789,
		Sample:         imu.Sample{Gx: 0.01, Gy: -0.5, Gz: 1.25, Ax: 0.1, Ay: -0.2, Az: 0.98},
	})
	assert.True(t, strings.HasPrefix(line, "$HTIMU,123456789,"))

	m, err := ParseIMUSentence(line)
	require.NoError(t, err)
	assert.Equal(t, "HT", m.TalkerID())
	assert.Equal(t, TypeIMU, m.DataType())
	assert.Equal(t, int64(123456789), m.TimestampNanos)
	assert.InDelta(t, -0.5, m.Gy, 1e-9)
	assert.InDelta(t, 0.98, m.Az, 1e-9)
}

func TestParseIMUSentenceRejectsBadInput(t *testing.T) {
	good := FormatIMUSentence(imu.Reading{TimestampNanos: 1, Sample: imu.Sample{Az: 1}})

	tests := map[string]string{
		"bad checksum": good[:len(good)-2] + "00",
		"no checksum":  strings.Split(good, "*")[0],
		"bad field":    "$HTIMU,1,x,0,0,0,0,1*00",
		"other type":   "$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70",
		"not nmea":     "hello",
		"empty":        "",
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseIMUSentence(line)
			assert.Error(t, err)
		})
	}
}

type nopCloser struct {
	io.Reader
	closed bool
}

func (n *nopCloser) Close() error {
	n.closed = true
	return nil
}

func TestSerialSourceSkipsNoise(t *testing.T) {
	first := FormatIMUSentence(imu.Reading{TimestampNanos: 10, Sample: imu.Sample{Gy: 0.2, Az: 1}})
	second := FormatIMUSentence(imu.Reading{TimestampNanos: 20, Sample: imu.Sample{Gy: 0.3, Az: 1}})
	stream := strings.Join([]string{
		"garbage",
		"$HTIMU,5,0,0,0,0,0,1*FF", // corrupted
		first,
		"",
		"  " + second + "\r",
		"$HTIMU,30,0,0", // partial, then EOF
	}, "\n")
	port := &nopCloser{Reader: strings.NewReader(stream)}
	src := newSerialSource("glasses", port)

	r, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.TimestampNanos)
	assert.Equal(t, "glasses", r.Source)
	assert.InDelta(t, 0.2, r.Gy, 1e-9)

	r, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(20), r.TimestampNanos)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, src.Close())
	assert.True(t, port.closed)
}

// The mock drives a tracker end to end: calibration removes the mock
// bias and the integrated pose follows the synthetic head motion.
func TestMockSourceDrivesTracker(t *testing.T) {
	const period = 10 * time.Millisecond
	warmup := 20 * time.Second

	src := NewMockSource(warmup).(*mockSource)
	var elapsed time.Duration
	src.since = func(time.Time) time.Duration { return elapsed }

	cfg := headtracker.DefaultConfig()
	cfg.Smoothing = headtracker.SmoothingNone
	tr, err := headtracker.New(cfg)
	require.NoError(t, err)

	end := warmup + 10*time.Second
	for ; elapsed <= end; elapsed += period {
		r, err := src.Next()
		require.NoError(t, err)
		tr.FeedSample(r.Sample, r.TimestampNanos)
	}
	require.True(t, tr.IsCalibrated())

	bias := tr.Calibration().GyroBias
	assert.InDelta(t, src.bias.Gy, bias.Y, 1e-12)

	wantPitch, wantYaw, _, _ := mockPose((end - warmup).Seconds())
	got := tr.RawOrientation()
	assert.InDelta(t, wantPitch, got.Pitch, 1.0)
	assert.InDelta(t, wantYaw, got.Yaw, 1.0)
	assert.InDelta(t, 0, got.Roll, 1e-6)
	assert.False(t, math.IsNaN(got.Yaw))
}
