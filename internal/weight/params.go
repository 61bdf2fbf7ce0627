// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package weight

import "fmt"

// Params holds the fixed tuning constants of the detector.
type Params struct {
	// CalibrationTimes is the number of readings averaged into a baseline.
	CalibrationTimes int
	// DriftResetCount is the number of consecutive drifting polls tolerated
	// before the baseline is recomputed.
	DriftResetCount int
	// ScaleFactor is the number of raw sensor units per gram.
	ScaleFactor float64
	// OccupancyThresholdGrams opens a session and classifies its result.
	OccupancyThresholdGrams float64
	// DriftThresholdGrams is the deviation from baseline counted as drift.
	DriftThresholdGrams float64
	// SessionWindow is the nominal number of samples taken per session.
	SessionWindow int
}

// DefaultParams returns the values the scale ships with.
func DefaultParams() Params {
	return Params{
		CalibrationTimes:        5,
		DriftResetCount:         5,
		ScaleFactor:             419.527,
		OccupancyThresholdGrams: 1000,
		DriftThresholdGrams:     30,
		SessionWindow:           15,
	}
}

// BufferCapacity is the number of samples a session actually collects.
// The window closes only once the elapsed count exceeds SessionWindow,
// so one extra sample is taken.
func (p Params) BufferCapacity() int {
	return p.SessionWindow + 1
}

// Validate checks that the parameters describe a usable detector.
func (p Params) Validate() error {
	if p.CalibrationTimes < 1 {
		return fmt.Errorf("calibration times must be >= 1, got %d", p.CalibrationTimes)
	}
	if p.DriftResetCount < 0 {
		return fmt.Errorf("drift reset count must be >= 0, got %d", p.DriftResetCount)
	}
	if p.ScaleFactor <= 0 {
		return fmt.Errorf("scale factor must be > 0, got %g", p.ScaleFactor)
	}
	if p.OccupancyThresholdGrams <= 0 {
		return fmt.Errorf("occupancy threshold must be > 0, got %g", p.OccupancyThresholdGrams)
	}
	if p.DriftThresholdGrams < 0 || p.DriftThresholdGrams >= p.OccupancyThresholdGrams {
		return fmt.Errorf("drift threshold must be in [0, %g), got %g", p.OccupancyThresholdGrams, p.DriftThresholdGrams)
	}
	if p.SessionWindow < MinSamples {
		return fmt.Errorf("session window must be >= %d, got %d", MinSamples, p.SessionWindow)
	}
	return nil
}
