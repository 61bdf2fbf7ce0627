// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package weight

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseline = 10000

// raw converts a gram delta to a raw reading above the test baseline.
func raw(p Params, grams float64) int64 {
	return testBaseline + int64(math.Round(grams*p.ScaleFactor))
}

func calibratedTracker(t *testing.T, p Params) *Tracker {
	t.Helper()
	tr, err := NewTracker(p)
	require.NoError(t, err)
	for i := 0; i < p.CalibrationTimes; i++ {
		tr.Process(testBaseline)
	}
	require.True(t, tr.Calibrated())
	return tr
}

func TestCalibratorMean(t *testing.T) {
	c := NewCalibrator(5)
	readings := []int64{9990, 10010, 10000, 9995, 10005}
	for i, r := range readings[:4] {
		out := c.Observe(r)
		assert.Equal(t, EventCalibrating, out.Event)
		assert.Equal(t, i+1, out.CalibrationCount)
		assert.False(t, c.Calibrated())
	}
	out := c.Observe(readings[4])
	assert.Equal(t, EventCalibrated, out.Event)
	assert.Equal(t, int64(10000), out.Baseline)

	baseline, ok := c.Baseline()
	assert.True(t, ok)
	assert.Equal(t, int64(10000), baseline)
}

func TestCalibratorTruncatesMean(t *testing.T) {
	c := NewCalibrator(3)
	c.Observe(1)
	c.Observe(1)
	out := c.Observe(2)
	assert.Equal(t, int64(1), out.Baseline)

	c.ForceRecalibrate()
	c.Observe(-1)
	c.Observe(-1)
	out = c.Observe(-2)
	assert.Equal(t, int64(-1), out.Baseline)
}

func TestCalibratorRecalibrationIgnoresPreviousBaseline(t *testing.T) {
	c := NewCalibrator(5)
	for i := 0; i < 5; i++ {
		c.Observe(123456)
	}
	c.ForceRecalibrate()
	assert.False(t, c.Calibrated())
	assert.Equal(t, 0, c.Progress())

	var out Outcome
	for _, r := range []int64{200, 400, 600, 800, 1000} {
		out = c.Observe(r)
	}
	assert.Equal(t, EventCalibrated, out.Event)
	assert.Equal(t, int64(600), out.Baseline)
}

func TestSessionOpensOnlyOnPositiveOccupancy(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name    string
		reading int64
		want    Event
	}{
		{name: "empty", reading: testBaseline, want: EventIdle},
		{name: "small noise", reading: raw(p, 10), want: EventIdle},
		{name: "drift up", reading: raw(p, 50), want: EventDrift},
		{name: "drift down", reading: raw(p, -50), want: EventDrift},
		{name: "just below threshold", reading: raw(p, 999), want: EventDrift},
		{name: "large decrease", reading: raw(p, -1500), want: EventDrift},
		{name: "occupancy", reading: testBaseline + 500000, want: EventSessionOpened},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := calibratedTracker(t, p)
			out := tr.Process(tt.reading)
			assert.Equal(t, tt.want, out.Event)
		})
	}
}

func TestOccupancySessionEndToEnd(t *testing.T) {
	p := DefaultParams()
	tr := calibratedTracker(t, p)

	out := tr.Process(testBaseline + 500000)
	require.Equal(t, EventSessionOpened, out.Event)
	assert.InDelta(t, 1191.8, out.DeltaGrams, 0.1)
	assert.Equal(t, PhaseActive, tr.Phase())

	// The window closes strictly after SessionWindow samples.
	for i := 1; i <= p.SessionWindow; i++ {
		out = tr.Process(raw(p, 1200))
		require.Equal(t, EventSampled, out.Event, "sample %d", i)
		assert.Equal(t, i, out.Elapsed)
	}

	out = tr.Process(raw(p, 1200))
	require.Equal(t, EventOccupancy, out.Event)
	assert.InDelta(t, 1200, out.Weight, 0.01)
	assert.Equal(t, PhaseIdle, tr.Phase())

	out = tr.Process(testBaseline)
	assert.Equal(t, EventIdle, out.Event)
}

func TestSessionTrimsJumpAndSettle(t *testing.T) {
	p := DefaultParams()
	tr := calibratedTracker(t, p)

	require.Equal(t, EventSessionOpened, tr.Process(raw(p, 2500)).Event)
	grams := []float64{3100, 2800, 4200, 4100, 4200, 4150, 4200, 4250, 4200, 4200, 4200, 4200, 4200, 4200, 900, 300}
	require.Len(t, grams, p.BufferCapacity())

	var out Outcome
	for _, g := range grams {
		out = tr.Process(raw(p, g))
	}
	require.Equal(t, EventOccupancy, out.Event)

	want, err := Estimate(grams)
	require.NoError(t, err)
	assert.InDelta(t, want, out.Weight, 0.01)
}

func TestSessionClassifiesDisturbance(t *testing.T) {
	p := DefaultParams()
	tr := calibratedTracker(t, p)

	require.Equal(t, EventSessionOpened, tr.Process(raw(p, 1100)).Event)
	var out Outcome
	for i := 0; i < p.BufferCapacity(); i++ {
		out = tr.Process(raw(p, 450))
	}
	assert.Equal(t, EventDisturbance, out.Event)
	assert.InDelta(t, 450, out.Weight, 0.01)
	assert.Equal(t, PhaseIdle, tr.Phase())
	assert.True(t, tr.Calibrated())
}

func TestDriftTriggersSingleRecalibration(t *testing.T) {
	p := DefaultParams()
	tr := calibratedTracker(t, p)

	for i := 1; i <= p.DriftResetCount; i++ {
		out := tr.Process(raw(p, 50))
		require.Equal(t, EventDrift, out.Event)
		assert.Equal(t, i, out.Drift)
	}

	out := tr.Process(raw(p, 50))
	assert.Equal(t, EventRecalibration, out.Event)
	assert.Equal(t, 0, out.Drift)
	assert.False(t, tr.Calibrated())

	// The next readings feed the new calibration.
	var recalibrations int
	for i := 0; i < p.CalibrationTimes; i++ {
		out = tr.Process(raw(p, 50))
		if out.Event == EventRecalibration {
			recalibrations++
		}
	}
	assert.Zero(t, recalibrations)
	assert.Equal(t, EventCalibrated, out.Event)
	assert.Equal(t, raw(p, 50), out.Baseline)
}

func TestDriftCounterResetsOnStableReading(t *testing.T) {
	p := DefaultParams()
	tr := calibratedTracker(t, p)

	for i := 0; i < p.DriftResetCount; i++ {
		tr.Process(raw(p, 50))
	}
	out := tr.Process(testBaseline)
	assert.Equal(t, EventIdle, out.Event)
	assert.Equal(t, 0, out.Drift)

	for i := 0; i < p.DriftResetCount; i++ {
		out = tr.Process(raw(p, -45))
		assert.Equal(t, EventDrift, out.Event)
	}
	assert.True(t, tr.Calibrated())
}

func TestDriftCounterRestartsAfterSession(t *testing.T) {
	p := DefaultParams()
	cal := NewCalibrator(p.CalibrationTimes)
	for i := 0; i < cal.Times(); i++ {
		cal.Observe(testBaseline)
	}
	d := NewSessionDetector(p)

	for i := 0; i < p.DriftResetCount; i++ {
		d.Observe(raw(p, 50), cal)
	}
	require.Equal(t, p.DriftResetCount, d.Drift())

	require.Equal(t, EventSessionOpened, d.Observe(testBaseline+500000, cal).Event)
	assert.Equal(t, 0, d.Drift())
	for i := 1; i <= p.SessionWindow; i++ {
		d.Observe(raw(p, 1200), cal)
		assert.Equal(t, i, d.Elapsed())
	}
	require.Equal(t, EventOccupancy, d.Observe(raw(p, 1200), cal).Event)
	assert.Equal(t, 0, d.Elapsed())

	// Drift seen before the visit does not count toward a recalibration.
	for i := 1; i <= p.DriftResetCount; i++ {
		out := d.Observe(raw(p, 50), cal)
		require.Equal(t, EventDrift, out.Event)
		assert.Equal(t, i, out.Drift)
	}
	assert.True(t, cal.Calibrated())
	assert.Equal(t, EventRecalibration, d.Observe(raw(p, 50), cal).Event)
	assert.False(t, cal.Calibrated())
}

func TestEstimateFailureIsReported(t *testing.T) {
	p := DefaultParams()
	p.SessionWindow = 2 // below MinSamples, bypassing validation

	cal := NewCalibrator(1)
	cal.Observe(testBaseline)
	d := NewSessionDetector(p)

	require.Equal(t, EventSessionOpened, d.Observe(raw(p, 1500), cal).Event)
	require.Equal(t, EventSampled, d.Observe(raw(p, 1500), cal).Event)
	require.Equal(t, EventSampled, d.Observe(raw(p, 1500), cal).Event)
	out := d.Observe(raw(p, 1500), cal)
	assert.Equal(t, EventEstimateFailed, out.Event)
	assert.ErrorIs(t, out.Err, ErrInsufficientSamples)
	assert.Equal(t, PhaseIdle, d.Phase())
}

func TestTrackerReset(t *testing.T) {
	p := DefaultParams()
	tr := calibratedTracker(t, p)
	tr.Process(raw(p, 1500))
	require.Equal(t, PhaseActive, tr.Phase())

	tr.Reset()
	assert.False(t, tr.Calibrated())
	assert.Equal(t, PhaseIdle, tr.Phase())
	assert.Equal(t, EventCalibrating, tr.Process(testBaseline).Event)
}

func TestRequestRecalibration(t *testing.T) {
	p := DefaultParams()

	tr, err := NewTracker(p)
	require.NoError(t, err)
	assert.Equal(t, p, tr.Params())
	assert.False(t, tr.RequestRecalibration(), "not calibrated yet")

	tr = calibratedTracker(t, p)
	tr.Process(raw(p, 1500))
	assert.False(t, tr.RequestRecalibration(), "session in progress")
	assert.True(t, tr.Calibrated())

	tr = calibratedTracker(t, p)
	assert.True(t, tr.RequestRecalibration())
	assert.False(t, tr.Calibrated())
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"calibration times", func(p *Params) { p.CalibrationTimes = 0 }},
		{"scale factor", func(p *Params) { p.ScaleFactor = 0 }},
		{"occupancy threshold", func(p *Params) { p.OccupancyThresholdGrams = -1 }},
		{"drift above occupancy", func(p *Params) { p.DriftThresholdGrams = 2000 }},
		{"short window", func(p *Params) { p.SessionWindow = MinSamples - 1 }},
		{"negative reset count", func(p *Params) { p.DriftResetCount = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
			_, err := NewTracker(p)
			assert.Error(t, err)
		})
	}
}
