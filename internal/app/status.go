// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/headtracker/internal/headtracker"
	"github.com/relabs-tech/headtracker/internal/orientation"
)

// Status is the orientation message published on TOPIC_ORIENTATION.
type Status struct {
	Calibrated   bool             `json:"calibrated"`
	Progress     float64          `json:"progress"` // calibration, 0..100
	DeltaSeconds float64          `json:"dt,omitempty"`
	Relative     orientation.Pose `json:"relative"`
	Absolute     orientation.Pose `json:"absolute"`
	Raw          orientation.Pose `json:"raw"`
	Time         string           `json:"time"`
}

// Control actions accepted on TOPIC_CONTROL and over the web API.
const (
	ActionRecenter = "recenter"
	ActionReset    = "reset"
)

// ControlMessage is the payload of TOPIC_CONTROL.
type ControlMessage struct {
	Action string `json:"action"`
}

// controller is the part of the tracker that control messages drive.
type controller interface {
	ZeroView()
	ResetCalibration()
}

// applyControl decodes a control payload and applies it to tr.
func applyControl(tr controller, payload []byte) (string, error) {
	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", fmt.Errorf("control payload: %w", err)
	}
	switch msg.Action {
	case ActionRecenter:
		tr.ZeroView()
	case ActionReset:
		tr.ResetCalibration()
	default:
		return msg.Action, fmt.Errorf("unknown control action %q", msg.Action)
	}
	return msg.Action, nil
}

func validAction(action string) bool {
	return action == ActionRecenter || action == ActionReset
}

// statusFromUpdate builds the published message for an integrated sample.
func statusFromUpdate(u headtracker.Update, progress float64, t time.Time) Status {
	return Status{
		Calibrated:   true,
		Progress:     progress,
		DeltaSeconds: u.DeltaSeconds,
		Relative:     u.Relative,
		Absolute:     u.Absolute,
		Raw:          u.Raw,
		Time:         t.Format(time.RFC3339Nano),
	}
}

// publisher is the subset of mqtt.Client used for publishing.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

func publishJSON(client publisher, topic string, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	if token := client.Publish(topic, 0, retained, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", topic, token.Error())
	}
	return nil
}

// clientID appends a short random suffix so several copies of a binary can
// share a broker without kicking each other off.
func clientID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// connectMQTT connects to broker with a unique client id.
func connectMQTT(broker, idPrefix string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID(idPrefix)).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	return client, nil
}
