package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/headtracker/internal/headtracker"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadKeyValue(t *testing.T) {
	path := writeConfig(t, "headtracker_config.txt", `
# broker
MQTT_BROKER=tcp://10.0.0.2:1883
TOPIC_CONTROL = glasses/control

IMU_SOURCE=mpu9250
IMU_SPI_DEVICE=/dev/spidev6.0
IMU_CS_PIN=18
IMU_GYRO_RANGE=3

PUBLISH_INTERVAL=16
TRACKER_CALIBRATION_SAMPLES=500
TRACKER_ALPHA=0.95
TRACKER_YAW_SCALE=-1
TRACKER_SMOOTHING=hysteresis
TRACKER_GYRO_UNITS=deg
TRACKER_SEED_FROM_ACCEL=false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.2:1883", cfg.MQTTBroker)
	assert.Equal(t, "glasses/control", cfg.TopicControl)
	assert.Equal(t, "headtracker/orientation", cfg.TopicOrientation, "unset keys keep defaults")
	assert.Equal(t, SourceMPU9250, cfg.IMUSource)
	assert.Equal(t, byte(3), cfg.IMUGyroRange)
	assert.Equal(t, 16, cfg.PublishInterval)

	want := headtracker.DefaultConfig()
	want.CalibrationSamples = 500
	want.Alpha = 0.95
	want.YawScale = -1
	want.Smoothing = headtracker.SmoothingHysteresis
	want.GyroUnits = headtracker.GyroDegrees
	want.SeedFromAccel = false
	assert.Equal(t, want, cfg.Tracker)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "headtracker.yaml", `
MQTT_BROKER: tcp://broker:1883
IMU_SOURCE: serial
IMU_SERIAL_PORT: /dev/ttyACM0
IMU_BAUD_RATE: 921600
TRACKER_DEADZONE: 2.5
TRACKER_ZERO_ON_CALIBRATION: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, SourceSerial, cfg.IMUSource)
	assert.Equal(t, "/dev/ttyACM0", cfg.IMUSerialPort)
	assert.Equal(t, 921600, cfg.IMUBaudRate)
	assert.Equal(t, 2.5, cfg.Tracker.Deadzone)
	assert.False(t, cfg.Tracker.ZeroOnCalibration)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, file, content, wantErr string
	}{
		{"unknown key", "c.txt", "NOPE=1", `unknown config key: "NOPE"`},
		{"missing equals", "c.txt", "MQTT_BROKER", "invalid config line 1"},
		{"bad range", "c.txt", "IMU_ACCEL_RANGE=7", "IMU_ACCEL_RANGE must be 0-3"},
		{"bad source", "c.txt", "IMU_SOURCE=usb", "IMU_SOURCE must be"},
		{"bad float", "c.txt", "TRACKER_ALPHA=high", "invalid TRACKER_ALPHA"},
		{"bad bool", "c.txt", "TRACKER_SEED_FROM_ACCEL=maybe", "TRACKER_SEED_FROM_ACCEL"},
		{"bad units", "c.txt", "TRACKER_GYRO_UNITS=rpm", "TRACKER_GYRO_UNITS must be"},
		{"zero interval", "c.txt", "PUBLISH_INTERVAL=0", "PUBLISH_INTERVAL must be > 0"},
		{"alpha out of range", "c.txt", "TRACKER_ALPHA=2", "tracker settings"},
		{"mpu without spi", "c.txt", "IMU_SOURCE=mpu9250", "IMU_SPI_DEVICE is required"},
		{"serial without port", "c.txt", "IMU_SOURCE=serial", "IMU_SERIAL_PORT is required"},
		{"empty broker", "c.txt", "MQTT_BROKER=", "MQTT_BROKER is required"},
		{"yaml not a mapping", "c.yml", "- a\n- b\n", "must be a mapping"},
		{"yaml nested value", "c.yml", "MQTT_BROKER:\n  host: x\n", "must be a scalar"},
		{"yaml unknown key", "c.yml", "\nFOO: 1\n", `config line 2: unknown config key: "FOO"`},
		{"yaml empty", "c.yml", "", "config file is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, Defaults().validate())
}
