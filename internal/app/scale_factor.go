// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/catscale/internal/config"
	"github.com/relabs-tech/catscale/internal/sensors"
)

// ErrNoLoadChange is returned when the known mass did not move the reading.
var ErrNoLoadChange = errors.New("reading did not increase with the reference mass")

// ComputeScaleFactor returns raw counts per gram from an empty and a loaded
// average reading.
func ComputeScaleFactor(empty, loaded, grams float64) (float64, error) {
	if grams <= 0 {
		return 0, fmt.Errorf("reference mass must be > 0 g, got %g", grams)
	}
	if loaded <= empty {
		return 0, ErrNoLoadChange
	}
	return (loaded - empty) / grams, nil
}

// measure averages n successful readings, pausing interval between them.
// It returns the mean and the standard deviation in raw counts.
func measure(ctx context.Context, r sensors.Reader, n int, interval time.Duration, sleep SleepFunc) (mean, stddev float64, err error) {
	values := make([]float64, 0, n)
	failures := 0
	for len(values) < n {
		if r.IsReady() {
			v, err := r.ReadCombined()
			if err == nil {
				values = append(values, float64(v))
			} else {
				failures++
			}
		} else {
			failures++
		}
		if failures > n {
			return 0, 0, fmt.Errorf("too many failed reads: %w", sensors.ErrSensorUnavailable)
		}
		if err := sleep(ctx, interval); err != nil {
			return 0, 0, err
		}
	}
	mean, stddev = stat.MeanStdDev(values, nil)
	return mean, stddev, nil
}

// RunScaleFactor walks the user through measuring WEIGHT_PER_GRAM with a
// known reference mass.
func RunScaleFactor(ctx context.Context, cfg *config.Config, grams float64, samples int, in io.Reader, out io.Writer) error {
	reader, err := sensors.Open(cfg)
	if err != nil {
		return fmt.Errorf("open load cells: %w", err)
	}
	defer reader.Close()
	return scaleFactorSession(ctx, reader, grams, samples, sleepContext, in, out)
}

func scaleFactorSession(ctx context.Context, r sensors.Reader, grams float64, samples int, sleep SleepFunc, in io.Reader, out io.Writer) error {
	interval := 100 * time.Millisecond
	prompt := bufio.NewReader(in)

	fmt.Fprintln(out, "Empty the platform and press Enter.")
	if _, err := prompt.ReadString('\n'); err != nil && err != io.EOF {
		return err
	}
	empty, emptySD, err := measure(ctx, r, samples, interval, sleep)
	if err != nil {
		return fmt.Errorf("measure empty platform: %w", err)
	}
	logrus.WithFields(logrus.Fields{"mean": empty, "stddev": emptySD}).Info("empty platform measured")

	fmt.Fprintf(out, "Place the %.1f g reference mass and press Enter.\n", grams)
	if _, err := prompt.ReadString('\n'); err != nil && err != io.EOF {
		return err
	}
	loaded, loadedSD, err := measure(ctx, r, samples, interval, sleep)
	if err != nil {
		return fmt.Errorf("measure reference mass: %w", err)
	}
	logrus.WithFields(logrus.Fields{"mean": loaded, "stddev": loadedSD}).Info("reference mass measured")

	factor, err := ComputeScaleFactor(empty, loaded, grams)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", color.GreenString("WEIGHT_PER_GRAM=%.3f", factor))
	if loadedSD > 0 {
		fmt.Fprintf(out, "noise: +/- %.1f g\n", loadedSD/factor)
	}
	return nil
}
