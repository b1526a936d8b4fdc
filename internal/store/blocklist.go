package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BlockEntry is one blocked phone number. At most one live entry exists per
// number; re-blocking replaces the prior entry's reason and timestamp.
type BlockEntry struct {
	// PhoneNumber is the normalized number and the unique key.
	PhoneNumber string

	// BlockedAt is when the entry was created or last replaced.
	BlockedAt time.Time

	// Reason is optional free text ("Reported as spam", ...).
	Reason string

	// AutoBlocked marks entries created by the auto-block policy rather
	// than explicit user action.
	AutoBlocked bool
}

// Blocklist provides access to the blocked_numbers table.
// All methods are safe for concurrent use.
type Blocklist struct {
	db *sql.DB
}

// Block upserts an entry for number. An existing entry for the same number
// is replaced (reason and timestamp overwritten), never duplicated.
func (b *Blocklist) Block(ctx context.Context, number, reason string, autoBlocked bool) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO blocked_numbers (phone_number, blocked_at, reason, auto_blocked)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(phone_number) DO UPDATE SET
		    blocked_at   = excluded.blocked_at,
		    reason       = excluded.reason,
		    auto_blocked = excluded.auto_blocked`,
		number, time.Now().UnixMilli(), reason, boolToInt(autoBlocked),
	)
	if err != nil {
		return fmt.Errorf("blocklist: block %q: %w", number, err)
	}
	return nil
}

// Unblock deletes the entry for number. Deleting a number that is not
// blocked is a no-op.
func (b *Blocklist) Unblock(ctx context.Context, number string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM blocked_numbers WHERE phone_number = ?`, number)
	if err != nil {
		return fmt.Errorf("blocklist: unblock %q: %w", number, err)
	}
	return nil
}

// Get returns the entry for number. The bool reports whether an entry exists.
func (b *Blocklist) Get(ctx context.Context, number string) (BlockEntry, bool, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT phone_number, blocked_at, reason, auto_blocked
		FROM   blocked_numbers
		WHERE  phone_number = ?`, number)

	e, err := scanBlockEntry(row.Scan)
	if err == sql.ErrNoRows {
		return BlockEntry{}, false, nil
	}
	if err != nil {
		return BlockEntry{}, false, fmt.Errorf("blocklist: get %q: %w", number, err)
	}
	return e, true, nil
}

// IsBlocked reports whether number has a live block entry.
func (b *Blocklist) IsBlocked(ctx context.Context, number string) (bool, error) {
	_, ok, err := b.Get(ctx, number)
	return ok, err
}

// List returns all entries ordered by blocked_at descending.
func (b *Blocklist) List(ctx context.Context) ([]BlockEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT phone_number, blocked_at, reason, auto_blocked
		FROM   blocked_numbers
		ORDER  BY blocked_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("blocklist: list: %w", err)
	}
	defer rows.Close()

	entries := []BlockEntry{}
	for rows.Next() {
		e, err := scanBlockEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("blocklist: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("blocklist: list: %w", err)
	}
	return entries, nil
}

// scanBlockEntry scans one blocked_numbers row via the given scan func.
func scanBlockEntry(scan func(...any) error) (BlockEntry, error) {
	var (
		e         BlockEntry
		blockedAt int64
		auto      int
	)
	if err := scan(&e.PhoneNumber, &blockedAt, &e.Reason, &auto); err != nil {
		return BlockEntry{}, err
	}
	e.BlockedAt = time.UnixMilli(blockedAt)
	e.AutoBlocked = auto != 0
	return e, nil
}

// boolToInt maps a bool onto the 0/1 convention used by the SQLite schema.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
