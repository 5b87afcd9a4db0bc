// Package db persists working hours, availability blocks, bookings, and
// challenge check-ins in sqlite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// DB wraps sql.DB for the availability service.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// One rule row per professional+weekday; a settings update replaces
		// the professional's rows wholesale.
		`CREATE TABLE IF NOT EXISTS working_hours (
			professional_id TEXT NOT NULL,
			weekday INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (professional_id, weekday)
		)`,

		`CREATE TABLE IF NOT EXISTS availability_blocks (
			id TEXT PRIMARY KEY,
			professional_id TEXT NOT NULL,
			block_type TEXT NOT NULL,
			start_date TEXT,
			end_date TEXT,
			date TEXT,
			start_time TEXT,
			end_time TEXT,
			is_external_event BOOLEAN NOT NULL DEFAULT 0,
			external_event_id TEXT,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS booked_intervals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			professional_id TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (professional_id, date, start_time)
		)`,

		`CREATE TABLE IF NOT EXISTS calendar_links (
			professional_id TEXT PRIMARY KEY,
			calendar_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS challenge_schedules (
			challenge_id TEXT PRIMARY KEY,
			schedule_days TEXT NOT NULL,
			started_at TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS challenge_checkins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			challenge_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (challenge_id, user_id, date)
		)`,

		// Indexes
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_blocks_external_event
			ON availability_blocks(professional_id, external_event_id)
			WHERE external_event_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_professional ON availability_blocks(professional_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_range ON availability_blocks(professional_id, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_booked_times ON booked_intervals(professional_id, date, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_checkins_user ON challenge_checkins(challenge_id, user_id, date)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// PingContext checks database liveness for readiness probes.
func (db *DB) PingContext(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}
