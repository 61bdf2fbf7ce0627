// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/catscale/internal/config"
	"github.com/relabs-tech/catscale/internal/sensors"
	"github.com/relabs-tech/catscale/internal/telemetry"
)

// clientConfig builds the MQTT settings for one of the binaries.
func clientConfig(cfg *config.Config, clientID string) (telemetry.ClientConfig, error) {
	tlsCfg, err := telemetry.LoadTLSConfig(cfg.MQTTCACert, cfg.MQTTClientCert, cfg.MQTTClientKey)
	if err != nil {
		return telemetry.ClientConfig{}, err
	}
	return telemetry.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: clientID,
		Device:   cfg.DeviceName,
		TLS:      tlsCfg,
	}, nil
}

// RunWeightProducer reads the load cells, detects occupancy sessions and
// publishes weights and status messages until ctx is done.
func RunWeightProducer(ctx context.Context, cfg *config.Config) error {
	logrus.WithFields(cfg.LogrusFields()).Info("starting weight producer")

	cc, err := clientConfig(cfg, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	pub, err := telemetry.NewMQTTPublisher(cc, telemetry.NewTopics(cfg.TopicBase, cfg.DeviceName))
	if err != nil {
		return err
	}
	if err := pub.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.MQTTBroker, err)
	}
	defer pub.Close()

	// A bridge that is not plugged in yet opens unconnected and is retried by
	// the loop; errors here are configuration errors.
	reader, err := sensors.Open(cfg)
	if err != nil {
		if perr := pub.PublishStatus(telemetry.StatusScaleNotFound); perr != nil {
			logrus.WithError(perr).Error("publish status failed")
		}
		return fmt.Errorf("open load cells: %w", err)
	}
	defer reader.Close()

	loop, err := NewDetectionLoop(LoopConfig{
		Reader:              reader,
		Publisher:           pub,
		Params:              cfg.WeightParams(),
		DetectInterval:      time.Duration(cfg.DetectIntervalMS) * time.Millisecond,
		CalibrationInterval: time.Duration(cfg.CalibrationIntervalMS) * time.Millisecond,
	})
	if err != nil {
		return err
	}

	if cfg.RecalibrateCron != "" {
		sched, err := NewRecalibrationScheduler(cfg.RecalibrateCron, loop.RequestRecalibration)
		if err != nil {
			return err
		}
		go sched.Run(ctx)
	}

	return loop.Run(ctx)
}
