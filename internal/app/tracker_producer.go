package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/headtracker/internal/config"
	"github.com/relabs-tech/headtracker/internal/headtracker"
	"github.com/relabs-tech/headtracker/internal/imu"
	"github.com/relabs-tech/headtracker/internal/sensors"
)

// trackerLoop feeds readings into the tracker and publishes the result.
type trackerLoop struct {
	tracker          *headtracker.Tracker
	client           publisher
	topicOrientation string
	topicCalibration string
	interval         time.Duration

	lastPublish   time.Time
	wasCalibrated bool
}

func newTrackerLoop(tr *headtracker.Tracker, client publisher, cfg *config.Config) *trackerLoop {
	return &trackerLoop{
		tracker:          tr,
		client:           client,
		topicOrientation: cfg.TopicOrientation,
		topicCalibration: cfg.TopicCalibration,
		interval:         time.Duration(cfg.PublishInterval) * time.Millisecond,
	}
}

// handle processes one reading; now is the wall clock used for rate
// limiting and message time stamps.
func (l *trackerLoop) handle(r imu.Reading, now time.Time) {
	u, ok := l.tracker.FeedSample(r.Sample, r.TimestampNanos)
	calib := l.tracker.Calibration()

	// A reset from the control topic shows up as a calibrated -> not
	// calibrated transition.
	if l.wasCalibrated && !calib.Calibrated {
		log.Printf("tracker: calibration reset, keep the headset still")
	}
	justCalibrated := calib.Calibrated && !l.wasCalibrated
	l.wasCalibrated = calib.Calibrated

	if justCalibrated {
		log.Printf("tracker: calibrated after %d samples, gyro bias X=%.5f Y=%.5f Z=%.5f noise X=%.5f Y=%.5f Z=%.5f",
			calib.SampleCount,
			calib.GyroBias.X, calib.GyroBias.Y, calib.GyroBias.Z,
			calib.GyroNoise.X, calib.GyroNoise.Y, calib.GyroNoise.Z)
	}

	if !justCalibrated && now.Sub(l.lastPublish) < l.interval {
		return
	}

	if !calib.Calibrated || justCalibrated {
		if l.topicCalibration != "" {
			if err := publishJSON(l.client, l.topicCalibration, true, calib); err != nil {
				log.Printf("tracker: %v", err)
			}
		}
		st := Status{
			Calibrated: calib.Calibrated,
			Progress:   calib.ProgressPercent(),
			Relative:   l.tracker.RelativeOrientation(),
			Absolute:   l.tracker.AbsoluteOrientation(),
			Raw:        l.tracker.RawOrientation(),
			Time:       now.Format(time.RFC3339Nano),
		}
		if err := publishJSON(l.client, l.topicOrientation, true, st); err != nil {
			log.Printf("tracker: %v", err)
		}
		l.lastPublish = now
		return
	}

	if !ok {
		// timestamp baseline sample, nothing new to report
		return
	}

	if err := publishJSON(l.client, l.topicOrientation, true, statusFromUpdate(u, 100, now)); err != nil {
		log.Printf("tracker: %v", err)
		return
	}
	l.lastPublish = now
}

// openSource builds the configured IMU source. The closer is nil for
// sources that need no cleanup; paced reports whether the caller must
// poll the source on a ticker.
func openSource(cfg *config.Config) (src imu.Source, closer io.Closer, paced bool, err error) {
	switch cfg.IMUSource {
	case config.SourceMPU9250:
		src, err = sensors.NewMPU9250Source("headset", cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange, cfg.IMUGyroRange)
		return src, nil, true, err
	case config.SourceSerial:
		src, closer, err = sensors.NewSerialSource("headset", cfg.IMUSerialPort, cfg.IMUBaudRate)
		return src, closer, false, err
	case config.SourceMock:
		return sensors.NewMockSource(time.Duration(cfg.MockWarmup) * time.Millisecond), nil, true, nil
	default:
		return nil, nil, false, fmt.Errorf("unknown IMU source %q", cfg.IMUSource)
	}
}

// RunTracker reads the configured IMU, runs the head tracker and publishes
// orientation to MQTT until SIGINT/SIGTERM. Recenter and reset requests
// arrive on the control topic.
func RunTracker() error {
	log.Println("starting head tracker producer (IMU -> tracker -> MQTT)")
	cfg := config.Get()

	tr, err := headtracker.New(cfg.Tracker)
	if err != nil {
		return err
	}
	log.Printf("tracker: %d calibration samples, alpha=%.3f, smoothing=%s",
		cfg.Tracker.CalibrationSamples, cfg.Tracker.Alpha, cfg.Tracker.Smoothing)

	src, closer, paced, err := openSource(cfg)
	if err != nil {
		return err
	}
	log.Printf("tracker: using %s IMU source", cfg.IMUSource)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDTracker)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("tracker: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Control requests run on the MQTT callback goroutine; the tracker
	// serializes them against the sample loop.
	token := client.Subscribe(cfg.TopicControl, 1, func(_ mqtt.Client, msg mqtt.Message) {
		action, err := applyControl(tr, msg.Payload())
		if err != nil {
			log.Printf("tracker: %v", err)
			return
		}
		log.Printf("tracker: control %s applied", action)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("tracker: subscribed to %s", cfg.TopicControl)

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(stop)
		if closer != nil {
			// unblocks a pending serial read
			closer.Close()
		}
	}()

	tick := alwaysReady
	if paced {
		ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
		defer ticker.Stop()
		tick = ticker.C
	}

	loop := newTrackerLoop(tr, client, cfg)
	for {
		select {
		case <-stop:
			log.Println("tracker: shutting down")
			return nil
		case <-tick:
		}

		r, err := src.Next()
		if err != nil {
			select {
			case <-stop:
				log.Println("tracker: shutting down")
				return nil
			default:
			}
			if !paced {
				return err
			}
			log.Printf("tracker: IMU read error: %v", err)
			continue
		}

		loop.handle(r, time.Now())
	}
}

// alwaysReady never blocks a receive; blocking sources pace themselves.
var alwaysReady = func() <-chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}()
