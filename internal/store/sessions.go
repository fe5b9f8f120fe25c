package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SessionEntry is one line of the rolling session index: a compact
// summary of what happened in a session. Entries never decay; the log is
// bounded by age alone.
type SessionEntry struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Bullets   []string  `json:"bullets"`
	Ref       string    `json:"ref,omitempty"` // e.g. a commit hash
	CreatedAt time.Time `json:"created_at"`
}

// AppendSession adds an entry to the session index.
func (db *DB) AppendSession(date string, bullets []string, ref string) (*SessionEntry, error) {
	if len(bullets) == 0 {
		return nil, Validationf("session entry needs at least one bullet")
	}
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, Validationf("bad date %q, want YYYY-MM-DD", date)
	}

	bulletsJSON, err := json.Marshal(bullets)
	if err != nil {
		return nil, fmt.Errorf("marshal bullets: %w", err)
	}

	now := time.Now()
	id := db.newID()
	_, err = db.Exec(`
		INSERT INTO session_index (id, date, bullets, ref, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)
	`, id, date, string(bulletsJSON), ref, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("append session: %w", err)
	}

	return &SessionEntry{ID: id, Date: date, Bullets: bullets, Ref: ref, CreatedAt: now}, nil
}

// RecentSessions returns the newest entries first, up to limit.
func (db *DB) RecentSessions(limit int) ([]SessionEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := db.Query(`
		SELECT id, date, bullets, ref, created_at
		FROM session_index ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()

	var entries []SessionEntry
	for rows.Next() {
		var e SessionEntry
		var bulletsJSON string
		var ref sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Date, &bulletsJSON, &ref, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session entry: %w", err)
		}
		if err := json.Unmarshal([]byte(bulletsJSON), &e.Bullets); err != nil {
			e.Bullets = nil
		}
		e.Ref = ref.String
		e.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TrimSessions removes entries older than retentionDays, unconditionally.
// No significance check: the session index is intentionally ephemeral.
func (db *DB) TrimSessions(retentionDays int, now time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, Validationf("retention days must be positive, got %d", retentionDays)
	}
	cutoff := now.AddDate(0, 0, -retentionDays).UnixMilli()
	result, err := db.Exec("DELETE FROM session_index WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("trim sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
