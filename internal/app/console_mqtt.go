package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/headtracker/internal/config"
	"github.com/relabs-tech/headtracker/internal/headtracker"
)

// printStatus writes one console line for an orientation message.
func printStatus(w io.Writer, st Status) {
	if !st.Calibrated {
		fmt.Fprintf(w, "[CAL ]  %5.1f%%  keep the headset still\n", st.Progress)
		return
	}
	fmt.Fprintf(w,
		"[REL ]  PITCH=%7.2f  YAW=%7.2f  ROLL=%7.2f   [ABS ]  PITCH=%7.2f  YAW=%7.2f  ROLL=%7.2f\n",
		st.Relative.Pitch, st.Relative.Yaw, st.Relative.Roll,
		st.Absolute.Pitch, st.Absolute.Yaw, st.Absolute.Roll,
	)
}

func printCalibration(w io.Writer, cs headtracker.CalibrationState) {
	if !cs.Calibrated {
		fmt.Fprintf(w, "[CAL ]  %d/%d samples\n", cs.SampleCount, cs.Target)
		return
	}
	fmt.Fprintf(w, "[CAL ]  done, gyro bias X=%.5f Y=%.5f Z=%.5f  noise X=%.5f Y=%.5f Z=%.5f\n",
		cs.GyroBias.X, cs.GyroBias.Y, cs.GyroBias.Z,
		cs.GyroNoise.X, cs.GyroNoise.Y, cs.GyroNoise.Z)
}

// RunConsoleMQTT prints the tracker's MQTT output until Ctrl+C.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	orientationToken := client.Subscribe(cfg.TopicOrientation, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("console: orientation unmarshal error: %v", err)
			return
		}
		printStatus(os.Stdout, st)
	})
	orientationToken.Wait()
	if orientationToken.Error() != nil {
		return orientationToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicOrientation)

	calibrationToken := client.Subscribe(cfg.TopicCalibration, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var cs headtracker.CalibrationState
		if err := json.Unmarshal(msg.Payload(), &cs); err != nil {
			log.Printf("console: calibration unmarshal error: %v", err)
			return
		}
		printCalibration(os.Stdout, cs)
	})
	calibrationToken.Wait()
	if calibrationToken.Error() != nil {
		return calibrationToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicCalibration)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
