// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides the combined load cell readers that feed the
// weight detector: a pair of HX711 amplifiers on GPIO, a serial bridge to a
// microcontroller that owns the amplifiers, and a simulated platform.
package sensors

import (
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/catscale/internal/config"
)

// ErrSensorUnavailable is returned when an amplifier does not answer in time.
var ErrSensorUnavailable = errors.New("load cell amplifier not ready")

// Reader returns the sum of both load cell channels as a raw signed count.
type Reader interface {
	// IsReady reports whether both amplifiers have a conversion pending.
	IsReady() bool
	// ReadCombined returns the averaged raw reading of both channels added
	// together. It wraps ErrSensorUnavailable when a channel is not ready.
	ReadCombined() (int64, error)
	// Reset re-initializes the amplifiers after a failed cycle.
	Reset() error
	Close() error
}

// Open builds the reader selected by SENSOR_BACKEND.
func Open(cfg *config.Config) (Reader, error) {
	switch cfg.SensorBackend {
	case config.BackendHX711:
		return NewHX711Pair(HX711PairConfig{
			Channels: [2]ChannelPins{
				{Data: cfg.LoadCell1DoutPin, Clock: cfg.LoadCell1SckPin},
				{Data: cfg.LoadCell2DoutPin, Clock: cfg.LoadCell2SckPin},
			},
			Average: cfg.SensorReadAverage,
			Timeout: time.Duration(cfg.SensorReadTimeoutMS) * time.Millisecond,
		})
	case config.BackendSerial:
		return NewSerialBridge(SerialBridgeConfig{
			PortName: cfg.SerialPort,
			BaudRate: cfg.SerialBaudRate,
			Timeout:  time.Duration(cfg.SensorReadTimeoutMS) * time.Millisecond,
		}, nil)
	case config.BackendMock:
		return NewMockPlatform(MockConfigFor(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown sensor backend %q", cfg.SensorBackend)
	}
}

// MockConfigFor returns the simulated platform used by the mock backend.
func MockConfigFor(cfg *config.Config) MockPlatformConfig {
	return MockPlatformConfig{
		ScaleFactor:  cfg.WeightPerGram,
		PetGrams:     4200,
		VisitEvery:   90 * time.Second,
		VisitLength:  30 * time.Second,
		NoiseCounts:  400,
		OffsetCounts: 8_388_000,
	}
}

// averageCounts returns the integer mean of n readings, truncated toward zero.
func averageCounts(sum int64, n int) int64 {
	if n <= 0 {
		return 0
	}
	return sum / int64(n)
}
