// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package weight

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MinSamples is the smallest sample set Estimate accepts.
const MinSamples = 5

// trimCount samples are dropped from each end before averaging.
const trimCount = 2

// ErrInsufficientSamples is returned when a sample set is too short to trim.
var ErrInsufficientSamples = errors.New("insufficient samples for weight estimate")

// Estimate returns the trimmed mean of samples: the two smallest and two
// largest values are discarded and the rest averaged. A jumping or settling
// animal produces spikes in both directions, so trimming both ends keeps the
// static weight. samples is not modified.
func Estimate(samples []float64) (float64, error) {
	if len(samples) < MinSamples {
		return 0, fmt.Errorf("%w: got %d, need at least %d", ErrInsufficientSamples, len(samples), MinSamples)
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	return stat.Mean(sorted[trimCount:len(sorted)-trimCount], nil), nil
}
