// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/catscale/internal/config"
	"github.com/relabs-tech/catscale/internal/sensors"
	"github.com/relabs-tech/catscale/internal/telemetry"
	"github.com/relabs-tech/catscale/internal/weight"
)

// consolePublisher prints what the producer would publish.
type consolePublisher struct {
	printer *consolePrinter
	device  string
	pet     string
	now     func() time.Time
}

func (p *consolePublisher) PublishWeight(grams float64) error {
	p.printer.print(p.now(), WeightNotification(p.pet, telemetry.WeightMessage{Weight: grams, Device: p.device}))
	return nil
}

func (p *consolePublisher) PublishStatus(msg string) error {
	p.printer.print(p.now(), StatusNotification(telemetry.StatusMessage{Message: msg, Device: p.device}))
	return nil
}

// virtualClock runs speed times faster than the wall clock.
type virtualClock struct {
	mu    sync.Mutex
	start time.Time
	real  time.Time
	speed float64
}

func newVirtualClock(speed float64) *virtualClock {
	now := time.Now()
	return &virtualClock{start: now, real: now, speed: speed}
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.real)
	return c.start.Add(time.Duration(float64(elapsed) * c.speed))
}

// RunSimulate drives the detection loop with the simulated platform and
// prints the events. speed > 1 compresses time.
func RunSimulate(ctx context.Context, cfg *config.Config, speed float64, out io.Writer) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be > 0, got %g", speed)
	}
	clock := newVirtualClock(speed)
	reader := sensors.NewMockPlatformWithClock(sensors.MockConfigFor(cfg), clock.Now)

	scaled := func(ms int) time.Duration {
		return time.Duration(float64(ms) * float64(time.Millisecond) / speed)
	}

	loop, err := NewDetectionLoop(LoopConfig{
		Reader: reader,
		Publisher: &consolePublisher{
			printer: &consolePrinter{out: out},
			device:  cfg.DeviceName,
			pet:     cfg.PetName,
			now:     clock.Now,
		},
		Params:              cfg.WeightParams(),
		DetectInterval:      scaled(cfg.DetectIntervalMS),
		CalibrationInterval: scaled(cfg.CalibrationIntervalMS),
		OnOutcome: func(o weight.Outcome) {
			grams := o.Weight
			switch {
			case o.Event == weight.EventSessionOpened:
				grams = o.DeltaGrams
			case !o.Event.SessionClosed():
				return
			}
			fmt.Fprintf(out, "%s %s\n", clock.Now().Format("15:04:05"), color.CyanString("%s %.1f g", o.Event, grams))
		},
	})
	if err != nil {
		return err
	}
	logrus.WithField("speed", speed).Info("simulation started")
	return loop.Run(ctx)
}
