package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MrWong99/riskguard/pkg/telephony"
)

// CallRecord is the immutable snapshot of one completed call session.
// Records are append-only; nothing mutates them after the session ends.
type CallRecord struct {
	// ID is the monotonic surrogate key assigned on insert.
	ID int64

	// PhoneNumber is the remote number of the call.
	PhoneNumber string

	// CallerName is the saved-contact name, when one was known at close.
	CallerName string

	// CallType is the session direction.
	CallType telephony.Direction

	// Duration is how long the call was connected; zero if never answered.
	Duration time.Duration

	// Timestamp is when the session closed.
	Timestamp time.Time

	// RiskScore is the last risk score in [0, 100] seen during the call.
	RiskScore int

	// RiskLevel is the last risk label seen during the call, if any.
	RiskLevel string

	// AIProbability is the last AI-voice probability in [0.0, 1.0].
	AIProbability float64

	// WasBlocked reports whether the number was on the block list when the
	// call rang.
	WasBlocked bool
}

// History provides access to the call_history table.
// All methods are safe for concurrent use.
type History struct {
	db *sql.DB
}

// Add appends a record and returns its assigned ID.
func (h *History) Add(ctx context.Context, r CallRecord) (int64, error) {
	res, err := h.db.ExecContext(ctx, `
		INSERT INTO call_history
		    (phone_number, caller_name, call_type, duration_ms, timestamp, risk_score, risk_level, ai_probability, was_blocked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PhoneNumber,
		r.CallerName,
		string(r.CallType),
		r.Duration.Milliseconds(),
		r.Timestamp.UnixMilli(),
		r.RiskScore,
		r.RiskLevel,
		r.AIProbability,
		boolToInt(r.WasBlocked),
	)
	if err != nil {
		return 0, fmt.Errorf("history: add: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: add: %w", err)
	}
	return id, nil
}

// All returns every record ordered by timestamp descending.
func (h *History) All(ctx context.Context) ([]CallRecord, error) {
	return h.query(ctx, `
		SELECT id, phone_number, caller_name, call_type, duration_ms, timestamp, risk_score, risk_level, ai_probability, was_blocked
		FROM   call_history
		ORDER  BY timestamp DESC`)
}

// Search returns records whose phone number or caller name contains the
// given substring, ordered by timestamp descending.
func (h *History) Search(ctx context.Context, query string) ([]CallRecord, error) {
	pattern := "%" + query + "%"
	return h.query(ctx, `
		SELECT id, phone_number, caller_name, call_type, duration_ms, timestamp, risk_score, risk_level, ai_probability, was_blocked
		FROM   call_history
		WHERE  phone_number LIKE ? OR caller_name LIKE ?
		ORDER  BY timestamp DESC`, pattern, pattern)
}

// FilterByRisk returns records with risk_score >= minScore, ordered by
// timestamp descending.
func (h *History) FilterByRisk(ctx context.Context, minScore int) ([]CallRecord, error) {
	return h.query(ctx, `
		SELECT id, phone_number, caller_name, call_type, duration_ms, timestamp, risk_score, risk_level, ai_probability, was_blocked
		FROM   call_history
		WHERE  risk_score >= ?
		ORDER  BY timestamp DESC`, minScore)
}

// Since returns records with timestamp >= t, ordered by timestamp
// descending. The digest scheduler uses this with start-of-today.
func (h *History) Since(ctx context.Context, t time.Time) ([]CallRecord, error) {
	return h.query(ctx, `
		SELECT id, phone_number, caller_name, call_type, duration_ms, timestamp, risk_score, risk_level, ai_probability, was_blocked
		FROM   call_history
		WHERE  timestamp >= ?
		ORDER  BY timestamp DESC`, t.UnixMilli())
}

// Delete removes the record with the given ID. Unknown IDs are a no-op.
func (h *History) Delete(ctx context.Context, id int64) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM call_history WHERE id = ?`, id); err != nil {
		return fmt.Errorf("history: delete %d: %w", id, err)
	}
	return nil
}

// Clear removes all records.
func (h *History) Clear(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM call_history`); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}

// query runs q and scans the result set into records.
func (h *History) query(ctx context.Context, q string, args ...any) ([]CallRecord, error) {
	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	records := []CallRecord{}
	for rows.Next() {
		var (
			r          CallRecord
			callType   string
			durationMS int64
			timestamp  int64
			blocked    int
		)
		if err := rows.Scan(
			&r.ID,
			&r.PhoneNumber,
			&r.CallerName,
			&callType,
			&durationMS,
			&timestamp,
			&r.RiskScore,
			&r.RiskLevel,
			&r.AIProbability,
			&blocked,
		); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		r.CallType = telephony.Direction(callType)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Timestamp = time.UnixMilli(timestamp)
		r.WasBlocked = blocked != 0
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	return records, nil
}
