// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package history keeps received weight events and status messages in a
// local sqlite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoRecords is returned by the Latest queries on an empty table.
var ErrNoRecords = errors.New("no records")

// WeightRecord is one stored weight event.
type WeightRecord struct {
	ID        int64     `json:"id"`
	Device    string    `json:"device"`
	SessionID string    `json:"session_id"`
	Grams     float64   `json:"weight"`
	At        time.Time `json:"timestamp"`
}

// StatusRecord is one stored status message.
type StatusRecord struct {
	ID      int64     `json:"id"`
	Device  string    `json:"device"`
	Message string    `json:"message"`
	At      time.Time `json:"timestamp"`
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS weights (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			device      TEXT NOT NULL,
			session_id  TEXT NOT NULL,
			grams       DOUBLE NOT NULL,
			at_ms       BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS weights_at ON weights(at_ms);
		CREATE UNIQUE INDEX IF NOT EXISTS weights_session ON weights(session_id);
		CREATE TABLE IF NOT EXISTS statuses (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			device      TEXT NOT NULL,
			message     TEXT NOT NULL,
			at_ms       BIGINT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create history tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordWeight stores r once per session id. A redelivered session is
// ignored and reported with id 0.
func (s *Store) RecordWeight(ctx context.Context, r WeightRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO weights (device, session_id, grams, at_ms) VALUES (?, ?, ?, ?)`,
		r.Device, r.SessionID, r.Grams, r.At.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert weight: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert weight: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	return res.LastInsertId()
}

func (s *Store) RecordStatus(ctx context.Context, r StatusRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO statuses (device, message, at_ms) VALUES (?, ?, ?)`,
		r.Device, r.Message, r.At.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert status: %w", err)
	}
	return res.LastInsertId()
}

// Weights returns up to limit weight records, newest first.
func (s *Store) Weights(ctx context.Context, limit int) ([]WeightRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device, session_id, grams, at_ms FROM weights ORDER BY at_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query weights: %w", err)
	}
	defer rows.Close()

	out := make([]WeightRecord, 0, limit)
	for rows.Next() {
		var r WeightRecord
		var atMs int64
		if err := rows.Scan(&r.ID, &r.Device, &r.SessionID, &r.Grams, &atMs); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		r.At = time.UnixMilli(atMs).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) LatestWeight(ctx context.Context) (WeightRecord, error) {
	rs, err := s.Weights(ctx, 1)
	if err != nil {
		return WeightRecord{}, err
	}
	if len(rs) == 0 {
		return WeightRecord{}, ErrNoRecords
	}
	return rs[0], nil
}

func (s *Store) LatestStatus(ctx context.Context) (StatusRecord, error) {
	var r StatusRecord
	var atMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, device, message, at_ms FROM statuses ORDER BY at_ms DESC, id DESC LIMIT 1`).
		Scan(&r.ID, &r.Device, &r.Message, &atMs)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNoRecords
	}
	if err != nil {
		return r, fmt.Errorf("query status: %w", err)
	}
	r.At = time.UnixMilli(atMs).UTC()
	return r, nil
}
