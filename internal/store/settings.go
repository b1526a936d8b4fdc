package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// BlockingSettings is the singleton auto-block configuration. Exactly one
// row exists at all times; it is created with defaults on first
// initialization and mutated only via a full-replace [Settings.UpdateBlocking].
type BlockingSettings struct {
	// AutoBlockEnabled turns the auto-block policy on.
	AutoBlockEnabled bool

	// AutoBlockThreshold is the risk score in [0, 100] at or above which a
	// caller is blocked automatically.
	AutoBlockThreshold int

	// SendAutoResponse enables the advisory auto-response text on rejected
	// calls.
	SendAutoResponse bool

	// AutoResponseMessage is the text sent when SendAutoResponse is on.
	AutoResponseMessage string
}

// DigestSchedule is the durable daily-digest configuration.
type DigestSchedule struct {
	Enabled bool
	Hour    int
	Minute  int
}

// app_state keys.
const (
	keyProtectionEnabled = "protection_enabled"
	keyDigestEnabled     = "digest_enabled"
	keyDigestHour        = "digest_hour"
	keyDigestMinute      = "digest_minute"
)

// Settings provides access to the blocking_settings singleton row and the
// app_state key/value table. All methods are safe for concurrent use.
type Settings struct {
	db *sql.DB
}

// Blocking returns the singleton blocking settings.
func (s *Settings) Blocking(ctx context.Context) (BlockingSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT auto_block_enabled, auto_block_threshold, send_auto_response, auto_response_message
		FROM   blocking_settings
		WHERE  id = 1`)

	var (
		bs       BlockingSettings
		enabled  int
		sendResp int
	)
	if err := row.Scan(&enabled, &bs.AutoBlockThreshold, &sendResp, &bs.AutoResponseMessage); err != nil {
		return BlockingSettings{}, fmt.Errorf("settings: blocking: %w", err)
	}
	bs.AutoBlockEnabled = enabled != 0
	bs.SendAutoResponse = sendResp != 0
	return bs, nil
}

// UpdateBlocking replaces the singleton blocking settings in full.
func (s *Settings) UpdateBlocking(ctx context.Context, bs BlockingSettings) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE blocking_settings
		SET    auto_block_enabled    = ?,
		       auto_block_threshold  = ?,
		       send_auto_response    = ?,
		       auto_response_message = ?
		WHERE  id = 1`,
		boolToInt(bs.AutoBlockEnabled),
		bs.AutoBlockThreshold,
		boolToInt(bs.SendAutoResponse),
		bs.AutoResponseMessage,
	)
	if err != nil {
		return fmt.Errorf("settings: update blocking: %w", err)
	}
	return nil
}

// ProtectionEnabled returns the persisted protection flag. Defaults to false
// when never set.
func (s *Settings) ProtectionEnabled(ctx context.Context) (bool, error) {
	v, ok, err := s.getState(ctx, keyProtectionEnabled)
	if err != nil || !ok {
		return false, err
	}
	return v == "1", nil
}

// SetProtectionEnabled persists the protection flag so monitoring state
// survives process restarts and device reboots.
func (s *Settings) SetProtectionEnabled(ctx context.Context, enabled bool) error {
	return s.setState(ctx, keyProtectionEnabled, strconv.Itoa(boolToInt(enabled)))
}

// Digest returns the persisted digest schedule. Defaults to disabled at
// 20:00 when never set.
func (s *Settings) Digest(ctx context.Context) (DigestSchedule, error) {
	ds := DigestSchedule{Hour: 20}

	if v, ok, err := s.getState(ctx, keyDigestEnabled); err != nil {
		return DigestSchedule{}, err
	} else if ok {
		ds.Enabled = v == "1"
	}
	if v, ok, err := s.getState(ctx, keyDigestHour); err != nil {
		return DigestSchedule{}, err
	} else if ok {
		if h, err := strconv.Atoi(v); err == nil {
			ds.Hour = h
		}
	}
	if v, ok, err := s.getState(ctx, keyDigestMinute); err != nil {
		return DigestSchedule{}, err
	} else if ok {
		if m, err := strconv.Atoi(v); err == nil {
			ds.Minute = m
		}
	}
	return ds, nil
}

// SetDigest persists the digest schedule.
func (s *Settings) SetDigest(ctx context.Context, ds DigestSchedule) error {
	if err := s.setState(ctx, keyDigestEnabled, strconv.Itoa(boolToInt(ds.Enabled))); err != nil {
		return err
	}
	if err := s.setState(ctx, keyDigestHour, strconv.Itoa(ds.Hour)); err != nil {
		return err
	}
	return s.setState(ctx, keyDigestMinute, strconv.Itoa(ds.Minute))
}

// getState reads one app_state value. The bool reports whether the key exists.
func (s *Settings) getState(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, key)
	var v string
	err := row.Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: get %q: %w", key, err)
	}
	return v, true, nil
}

// setState upserts one app_state value.
func (s *Settings) setState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("settings: set %q: %w", key, err)
	}
	return nil
}
