package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// StaleFlag marks an existing record as stale with the oracle's reason.
type StaleFlag struct {
	ID     string
	Reason string
}

// ApplyReconciliation applies a pre-computed reconciliation report in a
// single transaction: new recovered records are inserted and stale
// records flagged, all-or-nothing. A failure at any point rolls back
// every change, so an interrupted run never leaves the store
// half-mutated. Nothing is ever deleted here.
func (db *DB) ApplyReconciliation(adds []AddParams, stale []StaleFlag, now time.Time) error {
	for _, p := range adds {
		if !p.Category.Valid() {
			return Validationf("unknown category %q", p.Category)
		}
		if p.Significance < 1 || p.Significance > 10 {
			return Validationf("significance %d out of range 1-10", p.Significance)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin reconciliation apply: %w", err)
	}

	for _, p := range adds {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal tags: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO records (id, category, title, body, tags, significance,
				base_strength, last_accessed_at, access_count, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?, 1.0, ?, 0, ?, ?)
		`, db.newID(), string(p.Category), p.Title, p.Body, string(tagsJSON),
			p.Significance, now.UnixMilli(), p.Source, now.UnixMilli())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert recovered record %q: %w", p.Title, err)
		}
	}

	for _, f := range stale {
		result, err := tx.Exec(`
			UPDATE records SET stale_at = ?, stale_reason = ? WHERE id = ?
		`, now.UnixMilli(), f.Reason, f.ID)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("flag stale record %s: %w", f.ID, err)
		}
		n, _ := result.RowsAffected()
		if n == 0 {
			tx.Rollback()
			return &NotFoundError{ID: f.ID}
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES ('last_reconciliation', ?)",
		now.Format(time.RFC3339),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("record reconciliation time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconciliation apply: %w", err)
	}
	return nil
}
