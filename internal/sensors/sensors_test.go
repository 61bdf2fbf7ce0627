// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/catscale/internal/config"
)

type fakeAmplifier struct {
	values []int32
	next   int
	ready  bool
	err    error
	halted bool
}

func (f *fakeAmplifier) IsReady() bool { return f.ready }

func (f *fakeAmplifier) ReadTimeout(time.Duration) (int32, error) {
	if f.err != nil {
		return 0, f.err
	}
	v := f.values[f.next%len(f.values)]
	f.next++
	return v, nil
}

func (f *fakeAmplifier) Halt() error {
	f.halted = true
	return nil
}

func pairWith(t *testing.T, average int, amps ...*fakeAmplifier) (*HX711Pair, *int) {
	t.Helper()
	opened := 0
	open := func(pins ChannelPins) (amplifier, error) {
		amp := amps[opened%len(amps)]
		opened++
		return amp, nil
	}
	p, err := newHX711Pair(HX711PairConfig{Average: average, Timeout: time.Millisecond}, open)
	require.NoError(t, err)
	return p, &opened
}

func TestHX711PairAveragesAndSums(t *testing.T) {
	a := &fakeAmplifier{values: []int32{100, 101, 103}, ready: true}
	b := &fakeAmplifier{values: []int32{-10, -11, -12}, ready: true}
	p, _ := pairWith(t, 3, a, b)

	assert.True(t, p.IsReady())
	got, err := p.ReadCombined()
	require.NoError(t, err)
	// 304/3 = 101 and -33/3 = -11
	assert.Equal(t, int64(90), got)
}

func TestHX711PairNotReady(t *testing.T) {
	a := &fakeAmplifier{values: []int32{1}, ready: true}
	b := &fakeAmplifier{values: []int32{1}, ready: false}
	p, _ := pairWith(t, 1, a, b)

	assert.False(t, p.IsReady())
	_, err := p.ReadCombined()
	assert.ErrorIs(t, err, ErrSensorUnavailable)
}

func TestHX711PairReadTimeout(t *testing.T) {
	a := &fakeAmplifier{ready: true, err: errors.New("timed out")}
	b := &fakeAmplifier{values: []int32{1}, ready: true}
	p, _ := pairWith(t, 1, a, b)

	_, err := p.ReadCombined()
	assert.ErrorIs(t, err, ErrSensorUnavailable)
}

func TestHX711PairReset(t *testing.T) {
	a := &fakeAmplifier{values: []int32{5}, ready: true}
	b := &fakeAmplifier{values: []int32{7}, ready: true}
	p, opened := pairWith(t, 1, a, b)
	require.Equal(t, 2, *opened)

	require.NoError(t, p.Reset())
	assert.True(t, a.halted)
	assert.True(t, b.halted)
	assert.Equal(t, 4, *opened)

	got, err := p.ReadCombined()
	require.NoError(t, err)
	assert.Equal(t, int64(12), got)
}

func TestHX711PairOpenFailure(t *testing.T) {
	open := func(ChannelPins) (amplifier, error) { return nil, errors.New("no such pin") }
	_, err := newHX711Pair(HX711PairConfig{}, open)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load cell 1")
}

func cellLine(body string) string {
	return fmt.Sprintf("$%s*%s", body, nmea.Checksum(body))
}

func TestParseCellSentence(t *testing.T) {
	s, err := ParseCellSentence(cellLine("PLCEL,250100,-4200,1"))
	require.NoError(t, err)
	assert.Equal(t, int64(250100), s.Cell1)
	assert.Equal(t, int64(-4200), s.Cell2)
	assert.True(t, s.Ready)
	assert.Equal(t, int64(245900), s.Combined())

	s, err = ParseCellSentence(cellLine("PLCEL,0,0,0"))
	require.NoError(t, err)
	assert.False(t, s.Ready)
}

func TestParseCellSentenceErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"bad checksum", "$PLCEL,1,2,1*00"},
		{"field count", cellLine("PLCEL,1,2")},
		{"not a number", cellLine("PLCEL,abc,2,1")},
		{"other sentence", cellLine("GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCellSentence(tt.line)
			assert.Error(t, err)
		})
	}
}

type pipePort struct {
	*io.PipeReader
}

func (pipePort) Write(b []byte) (int, error) { return len(b), nil }

func bridgeWithPipe(t *testing.T, timeout time.Duration) (*SerialBridge, func() *io.PipeWriter) {
	t.Helper()
	var writers []*io.PipeWriter
	open := func(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
		assert.Equal(t, "/dev/ttyTEST", opts.PortName)
		r, w := io.Pipe()
		writers = append(writers, w)
		return pipePort{r}, nil
	}
	b, err := NewSerialBridge(SerialBridgeConfig{PortName: "/dev/ttyTEST", BaudRate: 115200, Timeout: timeout}, open)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, func() *io.PipeWriter { return writers[len(writers)-1] }
}

func TestSerialBridgeReadsSentences(t *testing.T) {
	b, writer := bridgeWithPipe(t, 2*time.Second)
	assert.True(t, b.IsReady())

	w := writer()
	go func() {
		_, _ = io.WriteString(w, "garbage\r\n")
		_, _ = io.WriteString(w, cellLine("PLCEL,100,250,1")+"\r\n")
	}()
	got, err := b.ReadCombined()
	require.NoError(t, err)
	assert.Equal(t, int64(350), got)

	go func() { _, _ = io.WriteString(w, cellLine("PLCEL,0,0,0")+"\r\n") }()
	_, err = b.ReadCombined()
	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.False(t, b.IsReady())
}

func TestSerialBridgeTimeoutAndReset(t *testing.T) {
	b, writer := bridgeWithPipe(t, 20*time.Millisecond)
	first := writer()

	_, err := b.ReadCombined()
	assert.ErrorIs(t, err, ErrSensorUnavailable)

	require.NoError(t, b.Reset())
	assert.NotSame(t, first, writer())

	w := writer()
	go func() { _, _ = io.WriteString(w, cellLine("PLCEL,7,8,1")+"\n") }()
	b.cfg.Timeout = 2 * time.Second
	got, err := b.ReadCombined()
	require.NoError(t, err)
	assert.Equal(t, int64(15), got)
}

func TestSerialBridgeStartsUnplugged(t *testing.T) {
	var writers []*io.PipeWriter
	plugged := false
	open := func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		if !plugged {
			return nil, errors.New("no such file or directory")
		}
		r, w := io.Pipe()
		writers = append(writers, w)
		return pipePort{r}, nil
	}
	b, err := NewSerialBridge(SerialBridgeConfig{PortName: "/dev/ttyTEST", BaudRate: 115200, Timeout: time.Second}, open)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.False(t, b.IsReady())
	_, err = b.ReadCombined()
	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.Error(t, b.Reset())
	assert.False(t, b.IsReady())

	plugged = true
	require.NoError(t, b.Reset())
	assert.True(t, b.IsReady())

	w := writers[0]
	go func() { _, _ = io.WriteString(w, cellLine("PLCEL,40,2,1")+"\n") }()
	got, err := b.ReadCombined()
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestOpenSerialBackendWithMissingPort(t *testing.T) {
	cfg := config.Defaults()
	cfg.SensorBackend = config.BackendSerial
	cfg.SerialPort = filepath.Join(t.TempDir(), "ttyUSB-not-plugged")

	r, err := Open(cfg)
	require.NoError(t, err)
	require.NotNil(t, r)
	defer r.Close()
	assert.False(t, r.IsReady())

	cfg.SerialPort = ""
	_, err = Open(cfg)
	assert.Error(t, err)
}

func TestMockPlatformVisit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	m := newMockPlatform(MockPlatformConfig{
		ScaleFactor:  419.527,
		PetGrams:     4000,
		VisitEvery:   60 * time.Second,
		VisitLength:  20 * time.Second,
		OffsetCounts: 1000,
		Seed:         1,
	}, clock)

	assert.True(t, m.IsReady())
	got, err := m.ReadCombined()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got, "empty platform without noise")

	now = now.Add(41 * time.Second) // one second into the visit
	assert.InDelta(t, 6400, m.load(41*time.Second), 1e-9)

	now = now.Add(9 * time.Second)
	got, err = m.ReadCombined()
	require.NoError(t, err)
	grams := float64(got-1000) / 419.527
	assert.InDelta(t, 4000, grams, 41)

	require.NoError(t, m.Reset())
	got, err = m.ReadCombined()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got)
}
