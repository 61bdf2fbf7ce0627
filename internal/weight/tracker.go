// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package weight implements the litter box weight event detector: baseline
// calibration, drift-triggered recalibration, occupancy sessions and the
// trimmed-mean weight estimate.
//
// Everything here is pure state. Each reading yields an Outcome and the
// caller decides what to publish.
package weight

// Tracker owns the calibrator and the session detector and routes each
// reading to whichever is in charge.
type Tracker struct {
	params   Params
	cal      *Calibrator
	sessions *SessionDetector
}

// NewTracker validates p and returns an uncalibrated Tracker.
func NewTracker(p Params) (*Tracker, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		params:   p,
		cal:      NewCalibrator(p.CalibrationTimes),
		sessions: NewSessionDetector(p),
	}, nil
}

// Process feeds one combined reading to the detector.
func (t *Tracker) Process(reading int64) Outcome {
	if !t.cal.Calibrated() {
		return t.cal.Observe(reading)
	}
	return t.sessions.Observe(reading, t.cal)
}

// Reset discards the baseline and any session in progress.
func (t *Tracker) Reset() {
	t.cal.ForceRecalibrate()
	t.sessions.Reset()
}

// RequestRecalibration discards the baseline if the platform is calibrated
// and idle. It reports whether recalibration started.
func (t *Tracker) RequestRecalibration() bool {
	if !t.cal.Calibrated() || t.sessions.Phase() != PhaseIdle {
		return false
	}
	t.cal.ForceRecalibrate()
	t.sessions.Reset()
	return true
}

func (t *Tracker) Calibrated() bool { return t.cal.Calibrated() }

func (t *Tracker) Baseline() (int64, bool) { return t.cal.Baseline() }

func (t *Tracker) Phase() Phase { return t.sessions.Phase() }

func (t *Tracker) Params() Params { return t.params }

// Progress returns how many calibration readings have been collected.
func (t *Tracker) Progress() int { return t.cal.Progress() }
