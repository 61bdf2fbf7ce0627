// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package weight

import "math"

// Phase is the occupancy state of the platform.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseActive Phase = "active"
)

// SessionDetector decides whether the platform is occupied, collects
// samples while it is and estimates the weight when the window closes.
type SessionDetector struct {
	params Params

	phase   Phase
	elapsed int
	buf     *SampleBuffer
	drift   int
}

// NewSessionDetector returns an idle detector.
func NewSessionDetector(p Params) *SessionDetector {
	return &SessionDetector{
		params: p,
		phase:  PhaseIdle,
		buf:    NewSampleBuffer(p.BufferCapacity()),
	}
}

// Observe processes one reading against the baseline held by cal. The
// detector may call cal.ForceRecalibrate when drift persists.
func (d *SessionDetector) Observe(reading int64, cal *Calibrator) Outcome {
	baseline, ok := cal.Baseline()
	if !ok {
		return Outcome{Event: EventUncalibrated, Reading: reading, Drift: d.drift, Elapsed: d.elapsed}
	}

	diff := reading - baseline
	grams := math.Abs(float64(diff)) / d.params.ScaleFactor
	out := Outcome{Reading: reading, Baseline: baseline, DeltaGrams: grams}

	if d.phase == PhaseActive {
		return d.sample(grams, out)
	}

	switch {
	case diff > 0 && grams > d.params.OccupancyThresholdGrams:
		d.phase = PhaseActive
		d.elapsed = 0
		d.buf.Reset()
		d.drift = 0
		out.Event = EventSessionOpened

	case grams > d.params.DriftThresholdGrams:
		d.drift++
		out.Event = EventDrift
		if d.drift > d.params.DriftResetCount {
			cal.ForceRecalibrate()
			d.drift = 0
			out.Event = EventRecalibration
		}

	default:
		d.drift = 0
		out.Event = EventIdle
	}

	out.Drift = d.drift
	return out
}

func (d *SessionDetector) sample(grams float64, out Outcome) Outcome {
	d.buf.Append(grams)
	d.elapsed++
	out.Elapsed = d.elapsed

	if d.elapsed <= d.params.SessionWindow {
		out.Event = EventSampled
		return out
	}

	estimate, err := Estimate(d.buf.Samples())
	d.close()

	switch {
	case err != nil:
		out.Event = EventEstimateFailed
		out.Err = err
	case estimate > d.params.OccupancyThresholdGrams:
		out.Event = EventOccupancy
		out.Weight = estimate
	default:
		out.Event = EventDisturbance
		out.Weight = estimate
	}
	return out
}

func (d *SessionDetector) close() {
	d.phase = PhaseIdle
	d.elapsed = 0
	d.buf.Reset()
}

// Reset returns the detector to idle with a cleared drift counter.
func (d *SessionDetector) Reset() {
	d.close()
	d.drift = 0
}

func (d *SessionDetector) Phase() Phase { return d.phase }

func (d *SessionDetector) Drift() int { return d.drift }

func (d *SessionDetector) Elapsed() int { return d.elapsed }
