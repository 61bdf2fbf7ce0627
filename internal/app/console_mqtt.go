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
	"github.com/relabs-tech/catscale/internal/telemetry"
)

// consolePrinter writes notifications from concurrent MQTT callbacks.
type consolePrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *consolePrinter) print(at time.Time, n Notification) {
	var paint func(format string, a ...interface{}) string
	switch n.Severity {
	case SeverityGood:
		paint = color.GreenString
	case SeverityWarn:
		paint = color.YellowString
	default:
		paint = fmt.Sprintf
	}
	if at.IsZero() {
		at = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s [%s] %s\n", at.Local().Format("15:04:05"), n.Device, paint("%s", n.Text))
}

// RunConsoleMQTT prints notifications for every scale under TOPIC_BASE
// until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config) error {
	cc, err := clientConfig(cfg, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	topics := telemetry.NewTopics(cfg.TopicBase, "+")
	printer := &consolePrinter{out: color.Output}

	sub := telemetry.NewSubscriber(cc)
	if err := sub.OnWeight(topics.Weight, func(_ string, m telemetry.WeightMessage) {
		printer.print(m.Time(), WeightNotification(cfg.PetName, m))
	}); err != nil {
		return err
	}
	if err := sub.OnStatus(topics.Status, func(_ string, m telemetry.StatusMessage) {
		printer.print(m.Time(), StatusNotification(m))
	}); err != nil {
		return err
	}
	if err := sub.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.MQTTBroker, err)
	}
	logrus.WithFields(logrus.Fields{"weight": topics.Weight, "status": topics.Status}).Info("console: listening")

	<-ctx.Done()
	logrus.Info("console: shutting down")
	sub.Close()
	return nil
}
