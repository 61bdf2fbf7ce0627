// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/catscale/internal/sensors"
	"github.com/relabs-tech/catscale/internal/telemetry"
	"github.com/relabs-tech/catscale/internal/weight"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoopConfig wires the detection loop to its collaborators.
type LoopConfig struct {
	Reader    sensors.Reader
	Publisher telemetry.Publisher
	Params    weight.Params

	DetectInterval      time.Duration
	CalibrationInterval time.Duration

	// Sleep defaults to a context-aware timer.
	Sleep SleepFunc
	// OnOutcome, if set, sees every processed reading.
	OnOutcome func(weight.Outcome)
}

// DetectionLoop polls the sensor, drives the tracker and publishes results.
// All tracker state is touched only from the goroutine running Run.
type DetectionLoop struct {
	reader    sensors.Reader
	publisher telemetry.Publisher
	tracker   *weight.Tracker

	detectInterval      time.Duration
	calibrationInterval time.Duration
	sleep               SleepFunc
	onOutcome           func(weight.Outcome)

	recalibrate chan struct{}
	pending     bool
}

func NewDetectionLoop(cfg LoopConfig) (*DetectionLoop, error) {
	if cfg.Reader == nil || cfg.Publisher == nil {
		return nil, fmt.Errorf("detection loop needs a reader and a publisher")
	}
	tracker, err := weight.NewTracker(cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("detection loop: %w", err)
	}
	if cfg.DetectInterval <= 0 {
		cfg.DetectInterval = time.Second
	}
	if cfg.CalibrationInterval <= 0 {
		cfg.CalibrationInterval = 100 * time.Millisecond
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &DetectionLoop{
		reader:              cfg.Reader,
		publisher:           cfg.Publisher,
		tracker:             tracker,
		detectInterval:      cfg.DetectInterval,
		calibrationInterval: cfg.CalibrationInterval,
		sleep:               cfg.Sleep,
		onOutcome:           cfg.OnOutcome,
		recalibrate:         make(chan struct{}, 1),
	}, nil
}

// RequestRecalibration queues a recalibration. It is safe to call from any
// goroutine; requests made before the loop consumes one are coalesced.
func (l *DetectionLoop) RequestRecalibration() {
	select {
	case l.recalibrate <- struct{}{}:
	default:
	}
}

// Run cycles until ctx is done. It only returns at a sleep boundary.
func (l *DetectionLoop) Run(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"detectInterval":      l.detectInterval,
		"calibrationInterval": l.calibrationInterval,
		"sessionWindow":       l.tracker.Params().SessionWindow,
	}).Info("detection loop started")
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.sleep(ctx, l.Cycle()); err != nil {
			logrus.Info("detection loop stopped")
			return nil
		}
	}
}

// Cycle runs one poll-process step and returns how long to sleep before the
// next one.
func (l *DetectionLoop) Cycle() time.Duration {
	l.applyRecalibrationRequest()

	if !l.reader.IsReady() {
		l.sensorUnavailable(sensors.ErrSensorUnavailable)
		return l.detectInterval
	}
	reading, err := l.reader.ReadCombined()
	if err != nil {
		l.sensorUnavailable(err)
		return l.detectInterval
	}

	out := l.tracker.Process(reading)
	if l.onOutcome != nil {
		l.onOutcome(out)
	}
	return l.handle(out)
}

func (l *DetectionLoop) applyRecalibrationRequest() {
	select {
	case <-l.recalibrate:
		l.pending = true
	default:
	}
	if !l.pending {
		return
	}
	if !l.tracker.Calibrated() {
		// Already calibrating.
		l.pending = false
		return
	}
	if l.tracker.RequestRecalibration() {
		l.pending = false
		logrus.Info("scheduled recalibration started")
	}
}

func (l *DetectionLoop) sensorUnavailable(cause error) {
	logrus.WithError(cause).Warn("scale not found, resetting sensor and calibration")
	l.publishStatus(telemetry.StatusScaleNotFound)
	if err := l.reader.Reset(); err != nil {
		logrus.WithError(err).Error("sensor reset failed")
	}
	l.tracker.Reset()
}

func (l *DetectionLoop) handle(out weight.Outcome) time.Duration {
	log := logrus.WithFields(logrus.Fields{
		"event":   out.Event.String(),
		"reading": out.Reading,
	})

	switch out.Event {
	case weight.EventCalibrating:
		log.WithField("count", out.CalibrationCount).Debug("calibrating")
	case weight.EventCalibrated:
		log.WithField("baseline", out.Baseline).Info("calibration done")
		l.publishStatus(telemetry.StatusCalibrationDone)
		return l.calibrationInterval
	case weight.EventIdle:
		log.WithField("delta_g", out.DeltaGrams).Debug("idle")
	case weight.EventDrift:
		log.WithFields(logrus.Fields{"delta_g": out.DeltaGrams, "drift": out.Drift}).Info("baseline drift")
	case weight.EventRecalibration:
		log.WithField("delta_g", out.DeltaGrams).Warn("baseline drifted too long, recalibrating")
	case weight.EventSessionOpened:
		log.WithFields(logrus.Fields{"baseline": out.Baseline, "delta_g": out.DeltaGrams}).Info("session opened")
	case weight.EventSampled:
		log.WithFields(logrus.Fields{"delta_g": out.DeltaGrams, "elapsed": out.Elapsed}).Debug("sampled")
	case weight.EventOccupancy:
		log.WithField("weight_g", out.Weight).Info("occupancy event")
		if err := l.publisher.PublishWeight(out.Weight); err != nil {
			log.WithError(err).Error("publish weight failed")
		}
	case weight.EventDisturbance:
		log.WithField("weight_g", out.Weight).Info("disturbance, no weight published")
	case weight.EventEstimateFailed:
		log.WithError(out.Err).Error("weight estimate failed")
		l.publishStatus(fmt.Sprintf("weight estimate failed: %v", out.Err))
	default:
		log.Warn("unexpected detector outcome")
	}
	return l.detectInterval
}

func (l *DetectionLoop) publishStatus(msg string) {
	if err := l.publisher.PublishStatus(msg); err != nil {
		logrus.WithError(err).WithField("status", msg).Error("publish status failed")
	}
}

// Tracker exposes the detector state for tests and the simulator.
func (l *DetectionLoop) Tracker() *weight.Tracker { return l.tracker }
