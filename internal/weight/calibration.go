// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package weight

// Calibrator maintains the empty-platform baseline. While uncalibrated it
// accumulates readings; after CalibrationTimes readings the baseline is their
// mean and the calibrator stays complete until ForceRecalibrate.
type Calibrator struct {
	times int

	sum   int64
	count int

	baseline int64
	complete bool
}

// NewCalibrator returns an uncalibrated Calibrator averaging times readings.
func NewCalibrator(times int) *Calibrator {
	if times < 1 {
		times = 1
	}
	return &Calibrator{times: times}
}

// Observe accumulates reading into the baseline. It returns EventCalibrated
// with the new baseline on the reading that completes calibration, and
// EventCalibrating otherwise. Calling Observe on a complete calibrator does
// not change the baseline.
func (c *Calibrator) Observe(reading int64) Outcome {
	if c.complete {
		return Outcome{Event: EventCalibrated, Reading: reading, Baseline: c.baseline, CalibrationCount: c.times}
	}

	c.sum += reading
	c.count++
	if c.count < c.times {
		return Outcome{Event: EventCalibrating, Reading: reading, CalibrationCount: c.count}
	}

	// Integer mean, truncated toward zero.
	c.baseline = c.sum / int64(c.times)
	c.complete = true
	count := c.count
	c.sum, c.count = 0, 0
	return Outcome{Event: EventCalibrated, Reading: reading, Baseline: c.baseline, CalibrationCount: count}
}

// ForceRecalibrate discards the baseline and starts a fresh calibration.
func (c *Calibrator) ForceRecalibrate() {
	c.sum = 0
	c.count = 0
	c.baseline = 0
	c.complete = false
}

// Calibrated reports whether the baseline is valid.
func (c *Calibrator) Calibrated() bool { return c.complete }

// Baseline returns the baseline and whether it is valid.
func (c *Calibrator) Baseline() (int64, bool) {
	return c.baseline, c.complete
}

// Progress returns the number of readings accumulated in the current calibration.
func (c *Calibrator) Progress() int { return c.count }

// Times returns the number of readings averaged per calibration.
func (c *Calibrator) Times() int { return c.times }
