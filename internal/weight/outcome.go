// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package weight

// Event identifies what a single reading did to the detector state.
type Event int

const (
	// EventCalibrating: the reading was accumulated into the baseline.
	EventCalibrating Event = iota
	// EventCalibrated: the reading completed the baseline.
	EventCalibrated
	// EventIdle: platform empty and stable.
	EventIdle
	// EventDrift: the reading deviates from baseline below the occupancy threshold.
	EventDrift
	// EventRecalibration: drift persisted too long and the baseline was discarded.
	EventRecalibration
	// EventSessionOpened: an occupancy session started.
	EventSessionOpened
	// EventSampled: a session sample was collected.
	EventSampled
	// EventOccupancy: a session closed with a weight above the occupancy threshold.
	EventOccupancy
	// EventDisturbance: a session closed with a weight below the occupancy threshold.
	EventDisturbance
	// EventEstimateFailed: a session closed but no estimate could be computed.
	EventEstimateFailed
	// EventUncalibrated: a session reading arrived without a baseline.
	EventUncalibrated
)

var eventNames = map[Event]string{
	EventCalibrating:    "calibrating",
	EventCalibrated:     "calibrated",
	EventIdle:           "idle",
	EventDrift:          "drift",
	EventRecalibration:  "recalibration",
	EventSessionOpened:  "session_opened",
	EventSampled:        "sampled",
	EventOccupancy:      "occupancy",
	EventDisturbance:    "disturbance",
	EventEstimateFailed: "estimate_failed",
	EventUncalibrated:   "uncalibrated",
}

func (e Event) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return "unknown"
}

// SessionClosed reports whether e ends an occupancy session.
func (e Event) SessionClosed() bool {
	return e == EventOccupancy || e == EventDisturbance || e == EventEstimateFailed
}

// Outcome describes the result of feeding one reading to the detector.
// The detector itself never publishes anything; callers act on outcomes.
type Outcome struct {
	Event    Event
	Reading  int64
	Baseline int64
	// DeltaGrams is abs(reading-baseline)/scale for calibrated readings.
	DeltaGrams float64
	// Drift is the drift counter after the reading was processed.
	Drift int
	// Elapsed is the number of samples collected in the current session.
	Elapsed int
	// CalibrationCount is the number of readings accumulated so far while calibrating.
	CalibrationCount int
	// Weight is the session estimate for EventOccupancy and EventDisturbance.
	Weight float64
	// Err is set for EventEstimateFailed.
	Err error
}
