// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

// SerialBridgeConfig selects the port of a microcontroller that streams
// $PLCEL sentences.
type SerialBridgeConfig struct {
	PortName string
	BaudRate int
	Timeout  time.Duration
}

// OpenPortFunc opens the serial port. serial.Open is used when nil.
type OpenPortFunc func(serial.OpenOptions) (io.ReadWriteCloser, error)

// SerialBridge reads combined readings from a microcontroller that owns the
// amplifiers and reports them over a serial line.
type SerialBridge struct {
	cfg  SerialBridgeConfig
	open OpenPortFunc

	mu     sync.Mutex
	port   io.ReadWriteCloser
	latest chan CellSentence
	ready  bool
}

// NewSerialBridge opens the port and starts reading sentences. A port that
// cannot be opened yet leaves the bridge unconnected and not ready; Reset
// retries the open. Only a missing port name is an error.
func NewSerialBridge(cfg SerialBridgeConfig, open OpenPortFunc) (*SerialBridge, error) {
	if cfg.PortName == "" {
		return nil, fmt.Errorf("serial bridge: no port name configured")
	}
	if open == nil {
		open = serial.Open
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	b := &SerialBridge{cfg: cfg, open: open}
	if err := b.connect(); err != nil {
		logrus.WithError(err).Warn("serial bridge not available, will retry on reset")
	}
	return b, nil
}

func (b *SerialBridge) connect() error {
	opts := serial.OpenOptions{
		PortName:              b.cfg.PortName,
		BaudRate:              uint(b.cfg.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := b.open(opts)
	if err != nil {
		return fmt.Errorf("serial bridge: open %s: %w", b.cfg.PortName, err)
	}
	latest := make(chan CellSentence, 1)

	b.mu.Lock()
	b.port = port
	b.latest = latest
	// Ready until the bridge reports otherwise; ReadCombined waits for data.
	b.ready = true
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"port": b.cfg.PortName,
		"baud": b.cfg.BaudRate,
	}).Info("serial bridge opened")

	go b.readLoop(port, latest)
	return nil
}

// readLoop keeps only the newest sentence in latest.
func (b *SerialBridge) readLoop(port io.Reader, latest chan CellSentence) {
	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				logrus.WithError(err).Debug("serial bridge read loop stopped")
			}
			return
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := ParseCellSentence(line)
		if err != nil {
			logrus.WithError(err).WithField("line", line).Debug("serial bridge: skipping sentence")
			continue
		}

		b.mu.Lock()
		if b.latest == latest {
			b.ready = sentence.Ready
		}
		b.mu.Unlock()

		select {
		case <-latest:
		default:
		}
		latest <- sentence
	}
}

func (b *SerialBridge) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// ReadCombined waits up to the configured timeout for the next sentence.
func (b *SerialBridge) ReadCombined() (int64, error) {
	b.mu.Lock()
	latest := b.latest
	connected := b.port != nil
	b.mu.Unlock()
	if !connected {
		return 0, fmt.Errorf("serial bridge: %s not open: %w", b.cfg.PortName, ErrSensorUnavailable)
	}

	timer := time.NewTimer(b.cfg.Timeout)
	defer timer.Stop()

	select {
	case s := <-latest:
		if !s.Ready {
			return 0, fmt.Errorf("serial bridge: %w", ErrSensorUnavailable)
		}
		return s.Combined(), nil
	case <-timer.C:
		return 0, fmt.Errorf("serial bridge: no sentence within %s: %w", b.cfg.Timeout, ErrSensorUnavailable)
	}
}

// Reset closes the port and opens it again.
func (b *SerialBridge) Reset() error {
	if err := b.Close(); err != nil {
		logrus.WithError(err).Warn("serial bridge close before reset failed")
	}
	return b.connect()
}

func (b *SerialBridge) Close() error {
	b.mu.Lock()
	port := b.port
	b.port = nil
	b.ready = false
	b.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}
