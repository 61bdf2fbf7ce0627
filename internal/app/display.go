// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/catscale/internal/config"
	"github.com/relabs-tech/catscale/internal/telemetry"
)

// DisplayData holds the latest messages for the OLED.
type DisplayData struct {
	mu sync.RWMutex

	status     telemetry.StatusMessage
	haveStatus bool
	weight     telemetry.WeightMessage
	haveWeight bool
}

func (d *DisplayData) setStatus(_ string, m telemetry.StatusMessage) {
	d.mu.Lock()
	d.status, d.haveStatus = m, true
	d.mu.Unlock()
}

func (d *DisplayData) setWeight(_ string, m telemetry.WeightMessage) {
	d.mu.Lock()
	d.weight, d.haveWeight = m, true
	d.mu.Unlock()
}

// Lines returns the four text rows shown on the display.
func (d *DisplayData) Lines(pet string) [4]string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lines := [4]string{pet, "", "", ""}
	if d.haveWeight {
		lines[1] = fmt.Sprintf("%.0f g", d.weight.Weight)
		if t := d.weight.Time(); !t.IsZero() {
			lines[2] = t.Local().Format("Jan 2 15:04")
		}
	} else {
		lines[1] = "No weight yet"
	}
	if d.haveStatus {
		lines[3] = d.status.Message
	} else {
		lines[3] = "Waiting..."
	}
	return lines
}

// renderLines draws up to four rows of 7x13 text on a 128x64 frame.
func renderLines(lines [4]string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}

// fixedAddrBus sends every transaction to addr, for controllers strapped
// to something other than the driver's default address.
type fixedAddrBus struct {
	i2c.Bus
	addr uint16
}

func (b fixedAddrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// RunDisplay shows the last weight and status on an SSD1306 until ctx is
// done.
func RunDisplay(ctx context.Context, cfg *config.Config) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(fixedAddrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display at 0x%02X: %w", cfg.DisplayI2CAddr, err)
	}
	defer func() {
		if err := dev.Halt(); err != nil {
			logrus.WithError(err).Warn("display: halt")
		}
	}()
	logrus.Infof("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderLines([4]string{"Cat Scale", "", cfg.DeviceName, "Connecting..."}), image.Point{}); err != nil {
		logrus.WithError(err).Warn("display: splash")
	}

	data := &DisplayData{}
	cc, err := clientConfig(cfg, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	topics := telemetry.NewTopics(cfg.TopicBase, cfg.DeviceName)
	sub := telemetry.NewSubscriber(cc)
	if err := sub.OnWeight(topics.Weight, data.setWeight); err != nil {
		return err
	}
	if err := sub.OnStatus(topics.Status, data.setStatus); err != nil {
		return err
	}
	if err := sub.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.MQTTBroker, err)
	}
	defer sub.Close()

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	var last [4]string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		lines := data.Lines(cfg.PetName)
		if lines == last {
			continue
		}
		if err := dev.Draw(dev.Bounds(), renderLines(lines), image.Point{}); err != nil {
			logrus.WithError(err).Warn("display: update")
			continue
		}
		last = lines
	}
}
