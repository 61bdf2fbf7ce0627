// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/hx711"
	"periph.io/x/host/v3"
)

// ChannelPins names the GPIO pins of one HX711 amplifier.
type ChannelPins struct {
	Data  string // DOUT
	Clock string // PD_SCK
}

// HX711PairConfig describes the two amplifiers under the platform.
type HX711PairConfig struct {
	Channels [2]ChannelPins
	Average  int
	Timeout  time.Duration
}

// amplifier is the part of *hx711.Dev the pair uses.
type amplifier interface {
	IsReady() bool
	ReadTimeout(timeout time.Duration) (int32, error)
	Halt() error
}

type openAmplifierFunc func(pins ChannelPins) (amplifier, error)

// HX711Pair reads two HX711 amplifiers and adds their channels.
type HX711Pair struct {
	cfg  HX711PairConfig
	open openAmplifierFunc
	amps [2]amplifier
}

// NewHX711Pair initializes the periph host and both amplifiers.
func NewHX711Pair(cfg HX711PairConfig) (*HX711Pair, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hx711: periph host init: %w", err)
	}
	return newHX711Pair(cfg, openHX711)
}

func newHX711Pair(cfg HX711PairConfig, open openAmplifierFunc) (*HX711Pair, error) {
	if cfg.Average < 1 {
		cfg.Average = 1
	}
	p := &HX711Pair{cfg: cfg, open: open}
	if err := p.openAll(); err != nil {
		return nil, err
	}
	return p, nil
}

func openHX711(pins ChannelPins) (amplifier, error) {
	clk := gpioreg.ByName(pins.Clock)
	if clk == nil {
		return nil, fmt.Errorf("hx711: clock pin %q not found", pins.Clock)
	}
	data := gpioreg.ByName(pins.Data)
	if data == nil {
		return nil, fmt.Errorf("hx711: data pin %q not found", pins.Data)
	}
	if err := clk.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("hx711: clock pin %s: %w", pins.Clock, err)
	}
	dev, err := hx711.New(clk, data)
	if err != nil {
		return nil, fmt.Errorf("hx711: device on %s/%s: %w", pins.Data, pins.Clock, err)
	}
	return dev, nil
}

func (p *HX711Pair) openAll() error {
	for i, pins := range p.cfg.Channels {
		amp, err := p.open(pins)
		if err != nil {
			return fmt.Errorf("load cell %d: %w", i+1, err)
		}
		p.amps[i] = amp
		logrus.WithFields(logrus.Fields{
			"channel": i + 1,
			"dout":    pins.Data,
			"sck":     pins.Clock,
		}).Debug("hx711 amplifier initialized")
	}
	return nil
}

func (p *HX711Pair) IsReady() bool {
	for _, amp := range p.amps {
		if amp == nil || !amp.IsReady() {
			return false
		}
	}
	return true
}

// ReadCombined averages cfg.Average conversions per channel and returns the
// sum of both channel averages.
func (p *HX711Pair) ReadCombined() (int64, error) {
	var combined int64
	for i, amp := range p.amps {
		if amp == nil || !amp.IsReady() {
			return 0, fmt.Errorf("load cell %d: %w", i+1, ErrSensorUnavailable)
		}
		var sum int64
		for n := 0; n < p.cfg.Average; n++ {
			v, err := amp.ReadTimeout(p.cfg.Timeout)
			if err != nil {
				return 0, fmt.Errorf("load cell %d: %w: %v", i+1, ErrSensorUnavailable, err)
			}
			sum += int64(v)
		}
		combined += averageCounts(sum, p.cfg.Average)
	}
	return combined, nil
}

// Reset powers both amplifiers down and opens them again.
func (p *HX711Pair) Reset() error {
	if err := p.halt(); err != nil {
		logrus.WithError(err).Warn("hx711 halt before reset failed")
	}
	return p.openAll()
}

func (p *HX711Pair) Close() error {
	return p.halt()
}

func (p *HX711Pair) halt() error {
	var errs []error
	for i, amp := range p.amps {
		if amp == nil {
			continue
		}
		if err := amp.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("load cell %d: %w", i+1, err))
		}
		p.amps[i] = nil
	}
	return errors.Join(errs...)
}
