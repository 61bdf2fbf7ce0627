// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockPlatformConfig shapes the simulated litter box.
type MockPlatformConfig struct {
	ScaleFactor  float64       // raw counts per gram
	PetGrams     float64       // weight of the simulated cat
	VisitEvery   time.Duration // period between visits
	VisitLength  time.Duration // time spent on the platform
	NoiseCounts  float64       // peak-to-peak noise in raw counts
	OffsetCounts int64         // empty platform reading
	Seed         int64
}

type mockPlatform struct {
	cfg   MockPlatformConfig
	now   func() time.Time
	mu    sync.Mutex
	start time.Time
	rng   *rand.Rand
}

// NewMockPlatform creates a reader that simulates periodic visits of a cat
// with a jump on entry and a settle on exit.
func NewMockPlatform(cfg MockPlatformConfig) Reader {
	return newMockPlatform(cfg, time.Now)
}

// NewMockPlatformWithClock is NewMockPlatform driven by a custom clock, for
// running the simulation faster than real time.
func NewMockPlatformWithClock(cfg MockPlatformConfig, now func() time.Time) Reader {
	return newMockPlatform(cfg, now)
}

func newMockPlatform(cfg MockPlatformConfig, now func() time.Time) *mockPlatform {
	if cfg.VisitEvery <= 0 {
		cfg.VisitEvery = 90 * time.Second
	}
	if cfg.VisitLength <= 0 || cfg.VisitLength >= cfg.VisitEvery {
		cfg.VisitLength = cfg.VisitEvery / 3
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = now().UnixNano()
	}
	return &mockPlatform{
		cfg:   cfg,
		now:   now,
		start: now(),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (m *mockPlatform) IsReady() bool { return true }

func (m *mockPlatform) ReadCombined() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	grams := m.load(m.now().Sub(m.start))
	noise := (m.rng.Float64() - 0.5) * m.cfg.NoiseCounts
	return m.cfg.OffsetCounts + int64(math.Round(grams*m.cfg.ScaleFactor+noise)), nil
}

// load returns the grams on the platform at elapsed time t. The first and
// last seconds of a visit overshoot and undershoot the cat's weight.
func (m *mockPlatform) load(t time.Duration) float64 {
	// Start each cycle empty so the detector can calibrate.
	phase := t % m.cfg.VisitEvery
	empty := m.cfg.VisitEvery - m.cfg.VisitLength
	if phase < empty {
		return 0
	}
	in := phase - empty
	switch {
	case in < 2*time.Second:
		return m.cfg.PetGrams * 1.6
	case in > m.cfg.VisitLength-2*time.Second:
		return m.cfg.PetGrams * 0.3
	default:
		// Small sway while the cat digs.
		return m.cfg.PetGrams + 40*math.Sin(in.Seconds())
	}
}

// Reset restarts the simulated timeline.
func (m *mockPlatform) Reset() error {
	m.mu.Lock()
	m.start = m.now()
	m.mu.Unlock()
	return nil
}

func (m *mockPlatform) Close() error { return nil }
