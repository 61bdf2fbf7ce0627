// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RecalibrationScheduler fires recalibration requests on a cron schedule.
type RecalibrationScheduler struct {
	cron *cron.Cron
	spec string
}

// NewRecalibrationScheduler parses spec (standard 5-field cron or a
// descriptor such as "@daily") and calls request on every tick.
func NewRecalibrationScheduler(spec string, request func()) (*RecalibrationScheduler, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		logrus.WithField("schedule", spec).Info("requesting scheduled recalibration")
		request()
	}); err != nil {
		return nil, fmt.Errorf("invalid RECALIBRATE_CRON %q: %w", spec, err)
	}
	return &RecalibrationScheduler{cron: c, spec: spec}, nil
}

// Run starts the scheduler and stops it when ctx is done.
func (s *RecalibrationScheduler) Run(ctx context.Context) {
	s.cron.Start()
	logrus.WithField("schedule", s.spec).Info("recalibration scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
