// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/catscale/internal/telemetry"
)

func TestDisplayLines(t *testing.T) {
	d := &DisplayData{}
	assert.Equal(t, [4]string{"Mochi", "No weight yet", "", "Waiting..."}, d.Lines("Mochi"))

	at := time.Date(2026, 6, 7, 8, 9, 0, 0, time.Local)
	d.setWeight("", telemetry.WeightMessage{Weight: 4213.6, Timestamp: at.Format(time.RFC3339)})
	d.setStatus("", telemetry.StatusMessage{Message: telemetry.StatusCalibrationDone})

	assert.Equal(t, [4]string{"Mochi", "4214 g", "Jun 7 08:09", "calibration done."}, d.Lines("Mochi"))
}

func TestRenderLinesDrawsText(t *testing.T) {
	img := renderLines([4]string{"", "", "", ""})
	for _, b := range img.Pix {
		assert.Zero(t, b)
	}

	img = renderLines([4]string{"4214 g", "", "", ""})
	lit := 0
	for _, b := range img.Pix {
		if b != 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}
