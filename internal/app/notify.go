// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/catscale/internal/telemetry"
)

// Severity decides how a notification is highlighted.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityGood
	SeverityWarn
)

// Notification is a human-readable rendering of a scale message.
type Notification struct {
	Device   string
	Text     string
	Severity Severity
}

// WeightNotification renders a weight event for the named pet.
func WeightNotification(pet string, m telemetry.WeightMessage) Notification {
	return Notification{
		Device:   m.Device,
		Text:     fmt.Sprintf("%s's weight is %.1f g.", pet, m.Weight),
		Severity: SeverityGood,
	}
}

// StatusNotification renders a status message. Power events get the
// wording of the phone notifications; anything else is passed through.
func StatusNotification(m telemetry.StatusMessage) Notification {
	n := Notification{Device: m.Device}
	switch m.Message {
	case telemetry.StatusConnected:
		n.Text = "The scale was powered on."
	case telemetry.StatusDisconnected:
		n.Text = "The scale was powered off."
		n.Severity = SeverityWarn
	case telemetry.StatusScaleNotFound:
		n.Text = "The scale cannot read its load cells."
		n.Severity = SeverityWarn
	default:
		n.Text = "Scale status: " + strings.TrimSuffix(m.Message, ".") + "."
		if strings.HasPrefix(m.Message, "weight estimate failed") {
			n.Severity = SeverityWarn
		}
	}
	return n
}
