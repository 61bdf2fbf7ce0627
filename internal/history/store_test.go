// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWeightsNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	_, err := s.LatestWeight(ctx)
	assert.ErrorIs(t, err, ErrNoRecords)

	for i, g := range []float64{4100, 4150, 4125} {
		_, err := s.RecordWeight(ctx, WeightRecord{
			Device:    "WeightMonitor",
			SessionID: "s" + string(rune('a'+i)),
			Grams:     g,
			At:        base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	latest, err := s.LatestWeight(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 4125, latest.Grams, 1e-9)
	assert.Equal(t, "sc", latest.SessionID)
	assert.True(t, base.Add(2*time.Hour).Equal(latest.At))

	rs, err := s.Weights(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.InDelta(t, 4125, rs[0].Grams, 1e-9)
	assert.InDelta(t, 4150, rs[1].Grams, 1e-9)

	rs, err = s.Weights(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rs, 3)
}

func TestLatestStatus(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	_, err := s.LatestStatus(ctx)
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = s.RecordStatus(ctx, StatusRecord{Device: "WeightMonitor", Message: "connected", At: now})
	require.NoError(t, err)
	_, err = s.RecordStatus(ctx, StatusRecord{Device: "WeightMonitor", Message: "calibration done.", At: now.Add(time.Second)})
	require.NoError(t, err)

	st, err := s.LatestStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "calibration done.", st.Message)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.RecordWeight(context.Background(), WeightRecord{Device: "d", SessionID: "x", Grams: 1, At: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	rs, err := s.Weights(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestRecordWeightOncePerSession(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	r := WeightRecord{Device: "WeightMonitor", SessionID: "visit-1", Grams: 4200, At: time.Now()}

	id, err := s.RecordWeight(ctx, r)
	require.NoError(t, err)
	assert.NotZero(t, id)

	id, err = s.RecordWeight(ctx, r)
	require.NoError(t, err)
	assert.Zero(t, id)

	rs, err := s.Weights(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}
