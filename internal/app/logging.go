// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/relabs-tech/catscale/internal/config"
)

// SetupLogger configures the global logrus logger. Timestamps are only
// shortened when stderr is an interactive terminal.
func SetupLogger(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}
	return nil
}

// Bootstrap loads the global configuration and sets up logging. A non-empty
// logLevel overrides LOG_LEVEL from the file.
func Bootstrap(configPath, logLevel string) (*config.Config, error) {
	if err := config.InitGlobal(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	if err := SetupLogger(logLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}
