// Package store implements the RiskGuard persistence layer: blocked numbers,
// blocking settings, call history, saved contacts, and small durable
// application state, all backed by a single on-device SQLite database file.
//
// Each concern is exposed through its own typed accessor ([Store.Blocklist],
// [Store.History], [Store.Contacts], [Store.Settings]) sharing one
// [database/sql] pool, so every operation is independently atomic and safe
// for concurrent use from the coordinator, notification actions, and the
// digest scheduler simultaneously. No multi-store transaction exists
// anywhere in the design.
//
// Unique-key conflicts (blocked number, saved contact phone number) resolve
// as replace-on-conflict. Reads of missing rows report "absent" via a bool,
// never an error.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schema is applied in full on every open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS blocked_numbers (
    phone_number  TEXT    PRIMARY KEY,
    blocked_at    INTEGER NOT NULL,
    reason        TEXT    NOT NULL DEFAULT '',
    auto_blocked  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS blocking_settings (
    id                    INTEGER PRIMARY KEY,
    auto_block_enabled    INTEGER NOT NULL DEFAULT 0,
    auto_block_threshold  INTEGER NOT NULL DEFAULT 70,
    send_auto_response    INTEGER NOT NULL DEFAULT 0,
    auto_response_message TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS call_history (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    phone_number   TEXT    NOT NULL,
    caller_name    TEXT    NOT NULL DEFAULT '',
    call_type      TEXT    NOT NULL,
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    timestamp      INTEGER NOT NULL,
    risk_score     INTEGER NOT NULL DEFAULT 0,
    risk_level     TEXT    NOT NULL DEFAULT '',
    ai_probability REAL    NOT NULL DEFAULT 0.0,
    was_blocked    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_call_history_phone_number ON call_history (phone_number);
CREATE INDEX IF NOT EXISTS idx_call_history_timestamp    ON call_history (timestamp);
CREATE INDEX IF NOT EXISTS idx_call_history_risk_score   ON call_history (risk_score);

CREATE TABLE IF NOT EXISTS saved_contacts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    phone_number TEXT    NOT NULL UNIQUE,
    name         TEXT    NOT NULL DEFAULT '',
    email        TEXT    NOT NULL DEFAULT '',
    category     TEXT    NOT NULL DEFAULT '',
    company      TEXT    NOT NULL DEFAULT '',
    notes        TEXT    NOT NULL DEFAULT '',
    tags         TEXT    NOT NULL DEFAULT '',
    saved_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS app_state (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// defaultAutoResponseMessage is inserted with the singleton settings row on
// first initialization.
const defaultAutoResponseMessage = "This number is blocked. Please do not call again."

// Store owns the SQLite database and hands out per-concern accessors.
// Obtain one via [Open]; call [Store.Close] during shutdown.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and migrates the database at path, inserting the
// default blocking-settings row when none exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	// Singleton settings row, created with defaults on first initialization.
	_, err = db.Exec(`
		INSERT INTO blocking_settings (id, auto_block_enabled, auto_block_threshold, send_auto_response, auto_response_message)
		VALUES (1, 0, 70, 0, ?)
		ON CONFLICT(id) DO NOTHING`,
		defaultAutoResponseMessage,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: seed settings: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Blocklist returns the blocked-numbers accessor.
func (s *Store) Blocklist() *Blocklist { return &Blocklist{db: s.db} }

// History returns the call-history accessor.
func (s *Store) History() *History { return &History{db: s.db} }

// Contacts returns the saved-contacts accessor.
func (s *Store) Contacts() *Contacts { return &Contacts{db: s.db} }

// Settings returns the settings/app-state accessor.
func (s *Store) Settings() *Settings { return &Settings{db: s.db} }
