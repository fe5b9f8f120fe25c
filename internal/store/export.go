package store

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/engram/engram/internal/decay"
)

// exportFile is the JSON envelope written by ExportJSON.
type exportFile struct {
	ExportedAt time.Time      `json:"exported_at"`
	Records    []*Record      `json:"records"`
	Sessions   []SessionEntry `json:"sessions"`
}

// ExportJSON writes all non-pruned records and session entries as JSON.
// Reimporting into a fresh store reproduces identical (category,
// significance, title, body, tags) for every record.
func (db *DB) ExportJSON(w io.Writer) error {
	now := time.Now()
	records, err := db.All(now)
	if err != nil {
		return err
	}
	sessions, err := db.RecentSessions(1000)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exportFile{ExportedAt: now, Records: records, Sessions: sessions})
}

// ImportJSON reads an export and stores its records and sessions in a
// single transaction: a bad entry anywhere in the file imports nothing.
// Returns the number of records imported. Imported records start at
// full strength.
func (db *DB) ImportJSON(r io.Reader) (int, error) {
	var export exportFile
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return 0, Validationf("bad export file: %v", err)
	}

	// Validate the whole file before touching the store.
	for _, rec := range export.Records {
		if !rec.Category.Valid() {
			return 0, Validationf("record %q: unknown category %q", rec.Title, rec.Category)
		}
		if rec.Significance < 1 || rec.Significance > 10 {
			return 0, Validationf("record %q: significance %d out of range 1-10", rec.Title, rec.Significance)
		}
		if rec.Title == "" {
			return 0, Validationf("record with empty title")
		}
	}
	for _, s := range export.Sessions {
		if len(s.Bullets) == 0 {
			return 0, Validationf("session entry %s has no bullets", s.Date)
		}
		if _, err := time.Parse("2006-01-02", s.Date); err != nil {
			return 0, Validationf("session entry has bad date %q, want YYYY-MM-DD", s.Date)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}

	now := time.Now()
	for _, rec := range export.Records {
		source := rec.Source
		if source == "" {
			source = "manual"
		}
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("marshal tags: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO records (id, category, title, body, tags, significance,
				base_strength, last_accessed_at, access_count, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?, 1.0, ?, 0, ?, ?)
		`, db.newID(), string(rec.Category), rec.Title, rec.Body, string(tagsJSON),
			rec.Significance, now.UnixMilli(), source, now.UnixMilli())
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("import record %q: %w", rec.Title, err)
		}
	}
	for _, s := range export.Sessions {
		bulletsJSON, err := json.Marshal(s.Bullets)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("marshal bullets: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO session_index (id, date, bullets, ref, created_at)
			VALUES (?, ?, ?, NULLIF(?, ''), ?)
		`, db.newID(), s.Date, string(bulletsJSON), s.Ref, now.UnixMilli())
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("import session %s: %w", s.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(export.Records), nil
}

// ExportText renders every record, including Fading ones, as a flat
// document. This is the memory side of a reconciliation run.
func (db *DB) ExportText(now time.Time) (string, error) {
	records, err := db.All(now)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# Memory Export\n\n")
	for _, r := range records {
		fmt.Fprintf(&b, "## [%s] %s (sig=%d, strength=%.2f, status=%s)\n",
			r.Category, r.Title, r.Significance, r.Strength, r.Status)
		b.WriteString(r.Body)
		b.WriteString("\n")
		if len(r.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n", strings.Join(r.Tags, ", "))
		}
		if r.StaleAt != nil {
			fmt.Fprintf(&b, "Flagged stale: %s (%s)\n", r.StaleAt.Format("2006-01-02"), r.StaleReason)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Stats summarises the store for the status command.
type Stats struct {
	Total       int
	Clear       int
	Fuzzy       int
	Fading      int
	ByCategory  map[string]int
	AvgStrength float64
	Sessions    int
	LastDecay   string
	LastRecon   string
}

// GetStats computes store statistics with strength projected as of now.
func (db *DB) GetStats(now time.Time) (*Stats, error) {
	records, err := db.All(now)
	if err != nil {
		return nil, err
	}

	s := &Stats{ByCategory: make(map[string]int)}
	var sum float64
	for _, r := range records {
		s.Total++
		s.ByCategory[string(r.Category)]++
		sum += r.Strength
		switch r.Status {
		case decay.Clear:
			s.Clear++
		case decay.Fuzzy:
			s.Fuzzy++
		default:
			s.Fading++
		}
	}
	if s.Total > 0 {
		s.AvgStrength = sum / float64(s.Total)
	}

	if err := db.QueryRow("SELECT COUNT(*) FROM session_index").Scan(&s.Sessions); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	s.LastDecay, _ = db.GetMeta("last_decay")
	if s.LastDecay == "" {
		s.LastDecay = "never"
	}
	s.LastRecon, _ = db.GetMeta("last_reconciliation")
	if s.LastRecon == "" {
		s.LastRecon = "never"
	}
	return s, nil
}
