// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry carries weight events and status messages over MQTT.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status messages published on the status topic.
const (
	StatusConnected       = "connected"
	StatusDisconnected    = "disconnected"
	StatusCalibrationDone = "calibration done."
	StatusScaleNotFound   = "Scale not found."
)

// WeightMessage is published once per occupancy session.
type WeightMessage struct {
	Weight    float64 `json:"weight"`
	Device    string  `json:"device"`
	SessionID string  `json:"session_id"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// StatusMessage reports lifecycle and calibration events.
type StatusMessage struct {
	Message   string `json:"message"`
	Device    string `json:"device"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Time parses the message timestamp, or returns the zero time.
func (m WeightMessage) Time() time.Time { return parseTimestamp(m.Timestamp) }

func (m StatusMessage) Time() time.Time { return parseTimestamp(m.Timestamp) }

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DecodeWeight unmarshals a weight payload.
func DecodeWeight(payload []byte) (WeightMessage, error) {
	var m WeightMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return m, fmt.Errorf("decode weight message: %w", err)
	}
	return m, nil
}

// DecodeStatus unmarshals a status payload.
func DecodeStatus(payload []byte) (StatusMessage, error) {
	var m StatusMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return m, fmt.Errorf("decode status message: %w", err)
	}
	return m, nil
}

// Topics holds the MQTT topics of one scale.
type Topics struct {
	Weight string
	Status string
}

// NewTopics builds <base>/weight_data/<device> and <base>/status/<device>.
// A device of "+" matches every scale.
func NewTopics(base, device string) Topics {
	return Topics{
		Weight: fmt.Sprintf("%s/weight_data/%s", base, device),
		Status: fmt.Sprintf("%s/status/%s", base, device),
	}
}
