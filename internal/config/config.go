package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/headtracker/internal/headtracker"
)

// IMU source kinds accepted by IMU_SOURCE.
const (
	SourceMPU9250 = "mpu9250"
	SourceSerial  = "serial"
	SourceMock    = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDTracker string
	MQTTClientIDWeb     string
	MQTTClientIDConsole string
	MQTTClientIDDisplay string

	// Topics
	TopicOrientation string
	TopicCalibration string
	TopicControl     string

	// IMU source
	IMUSource string // "mpu9250", "serial" or "mock"

	// MPU9250 over SPI
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Serial IMU ($HTIMU sentences)
	IMUSerialPort string
	IMUBaudRate   int

	// Timing
	IMUSampleInterval int // milliseconds, polling sources only
	PublishInterval   int // milliseconds between orientation publishes
	MockWarmup        int // milliseconds the mock source holds still

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds

	// Head tracker tuning; unset keys keep headtracker.DefaultConfig values.
	Tracker headtracker.Config
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through Get.
//   - configOnce: InitGlobal loads at most once.
//   - configMu: write lock while loading, read lock in Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns a Config with every optional value filled in.
func Defaults() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDTracker: "headtracker-producer",
		MQTTClientIDWeb:     "headtracker-web",
		MQTTClientIDConsole: "headtracker-console",
		MQTTClientIDDisplay: "headtracker-display",

		TopicOrientation: "headtracker/orientation",
		TopicCalibration: "headtracker/calibration",
		TopicControl:     "headtracker/control",

		IMUSource:     SourceMock,
		IMUAccelRange: 0,
		IMUGyroRange:  1,
		IMUBaudRate:   115200,

		IMUSampleInterval: 10,
		PublishInterval:   33,
		MockWarmup:        20000,

		WebServerPort: 8080,

		DisplayUpdateInterval: 200,

		Tracker: headtracker.DefaultConfig(),
	}
}

// Load reads a configuration file and returns a Config struct. Files
// ending in .yaml or .yml hold a flat mapping of the same keys; anything
// else is read as KEY=VALUE lines.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return parseYAML(file)
	default:
		return parse(file)
	}
}

// parse reads KEY=VALUE lines. Blank lines and # comments are skipped.
func parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseYAML accepts a flat mapping (KEY: value) with the KEY=VALUE keys.
func parseYAML(r io.Reader) (*Config, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("config file is empty")
		}
		return nil, fmt.Errorf("error reading yaml config: %w", err)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("yaml config must be a mapping of KEY: value")
	}

	cfg := Defaults()
	pairs := doc.Content[0].Content
	for i := 0; i+1 < len(pairs); i += 2 {
		k, v := pairs[i], pairs[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("config line %d: value of %q must be a scalar", k.Line, k.Value)
		}
		if err := cfg.setValue(k.Value, v.Value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", k.Line, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseMillis(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be > 0, got %d", key, v)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	t := &c.Tracker

	// Float-valued tracker keys share one parse path.
	floats := map[string]*float64{
		"TRACKER_ALPHA":               &t.Alpha,
		"TRACKER_ACCEL_MIN_MAGNITUDE": &t.AccelMinMagnitude,
		"TRACKER_PITCH_SCALE":         &t.PitchScale,
		"TRACKER_YAW_SCALE":           &t.YawScale,
		"TRACKER_ROLL_SCALE":          &t.RollScale,
		"TRACKER_DEADZONE":            &t.Deadzone,
		"TRACKER_MAX_SPEED":           &t.MaxSpeed,
		"TRACKER_PRESSURE_RANGE":      &t.PressureRange,
		"TRACKER_START_THRESHOLD":     &t.StartThreshold,
		"TRACKER_STOP_THRESHOLD":      &t.StopThreshold,
		"TRACKER_SMOOTH_SPEED":        &t.SmoothSpeed,
		"TRACKER_FALLBACK_DT":         &t.FallbackDeltaSeconds,
		"TRACKER_MAX_DT":              &t.MaxDeltaSeconds,
	}
	if dst, ok := floats[key]; ok {
		v, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_ORIENTATION":
		c.TopicOrientation = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value
	case "TOPIC_CONTROL":
		c.TopicControl = value

	// IMU source
	case "IMU_SOURCE":
		switch value {
		case SourceMPU9250, SourceSerial, SourceMock:
			c.IMUSource = value
		default:
			return fmt.Errorf("IMU_SOURCE must be %s, %s or %s, got %q", SourceMPU9250, SourceSerial, SourceMock, value)
		}
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)
	case "IMU_SERIAL_PORT":
		c.IMUSerialPort = value
	case "IMU_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_BAUD_RATE %q: %w", value, err)
		}
		c.IMUBaudRate = rate

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		c.IMUSampleInterval, err = parseMillis(key, value)
	case "PUBLISH_INTERVAL":
		c.PublishInterval, err = parseMillis(key, value)
	case "MOCK_WARMUP":
		c.MockWarmup, err = parseMillis(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseMillis(key, value)

	// Head tracker
	case "TRACKER_CALIBRATION_SAMPLES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TRACKER_CALIBRATION_SAMPLES %q: %w", value, err)
		}
		t.CalibrationSamples = n
	case "TRACKER_SEED_FROM_ACCEL":
		t.SeedFromAccel, err = strconv.ParseBool(value)
	case "TRACKER_ZERO_ON_CALIBRATION":
		t.ZeroOnCalibration, err = strconv.ParseBool(value)
	case "TRACKER_GYRO_UNITS":
		switch value {
		case "rad", "rad/s":
			t.GyroUnits = headtracker.GyroRadians
		case "deg", "deg/s":
			t.GyroUnits = headtracker.GyroDegrees
		default:
			return fmt.Errorf("TRACKER_GYRO_UNITS must be rad or deg, got %q", value)
		}
	case "TRACKER_SMOOTHING":
		t.Smoothing, err = headtracker.ParseSmoothingPolicy(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// validate checks that the fields required by the selected source are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicOrientation == "" || c.TopicControl == "" {
		return fmt.Errorf("TOPIC_ORIENTATION and TOPIC_CONTROL are required")
	}
	switch c.IMUSource {
	case SourceMPU9250:
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required for IMU_SOURCE=%s", SourceMPU9250)
		}
		if c.IMUCSPin == "" {
			return fmt.Errorf("IMU_CS_PIN is required for IMU_SOURCE=%s", SourceMPU9250)
		}
	case SourceSerial:
		if c.IMUSerialPort == "" {
			return fmt.Errorf("IMU_SERIAL_PORT is required for IMU_SOURCE=%s", SourceSerial)
		}
		if c.IMUBaudRate <= 0 {
			return fmt.Errorf("IMU_BAUD_RATE must be > 0, got %d", c.IMUBaudRate)
		}
	}
	if _, err := headtracker.New(c.Tracker); err != nil {
		return fmt.Errorf("tracker settings: %w", err)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
