// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/catscale/internal/app"
)

var (
	configPath = "catscale_config.txt"
	logLevel   = ""
	grams      = 1000.0
	samples    = 20
)

func main() {
	cmd := &cobra.Command{
		Use:          "scale_factor",
		Short:        "Measure WEIGHT_PER_GRAM with a known reference mass",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.Bootstrap(configPath, logLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunScaleFactor(ctx, cfg, grams, samples, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "path to the KEY=VALUE config file")
	cmd.Flags().StringVarP(&logLevel, "log-level", "l", logLevel, "log level (overrides LOG_LEVEL)")
	cmd.Flags().Float64VarP(&grams, "grams", "g", grams, "reference mass in grams")
	cmd.Flags().IntVarP(&samples, "samples", "n", samples, "readings averaged per measurement")

	if err := cmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}
