package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/engram/engram/internal/decay"
)

// Record is a single memory record. Strength and Status are read-time
// projections computed by the decay package; they are never persisted.
type Record struct {
	ID             string         `json:"id"`
	Category       decay.Category `json:"category"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Tags           []string       `json:"tags"`
	Significance   int            `json:"significance"`
	BaseStrength   float64        `json:"base_strength"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	AccessCount    int            `json:"access_count"`
	Source         string         `json:"source"`
	StaleAt        *time.Time     `json:"stale_at,omitempty"`
	StaleReason    string         `json:"stale_reason,omitempty"`

	Strength float64      `json:"strength"`
	Status   decay.Status `json:"status"`

	// lastStatus is the band recorded by the previous sweep, kept only
	// so Sweep can count band transitions.
	lastStatus decay.Status
}

// PruneEligible reports whether the record may be permanently deleted,
// using its projected strength.
func (r *Record) PruneEligible() bool {
	return decay.PruneEligible(r.Category, r.Significance, r.Strength)
}

// AddParams holds the caller-supplied fields for a new record.
type AddParams struct {
	Category     decay.Category
	Significance int
	Title        string
	Body         string
	Tags         []string
	Source       string // "manual" unless set; reconciliation passes "reconciliation"
}

// Add creates a new record with base strength 1.0 and zero accesses.
// Structural violations are rejected with a ValidationError.
func (db *DB) Add(p AddParams) (*Record, error) {
	if !p.Category.Valid() {
		return nil, Validationf("unknown category %q", p.Category)
	}
	if p.Significance < 1 || p.Significance > 10 {
		return nil, Validationf("significance %d out of range 1-10", p.Significance)
	}
	if p.Title == "" {
		return nil, Validationf("title is required")
	}
	source := p.Source
	if source == "" {
		source = "manual"
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	now := time.Now()
	id := db.newID()
	_, err = db.Exec(`
		INSERT INTO records (id, category, title, body, tags, significance,
			base_strength, last_accessed_at, access_count, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1.0, ?, 0, ?, ?)
	`, id, string(p.Category), p.Title, p.Body, string(tagsJSON), p.Significance,
		now.UnixMilli(), source, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	return &Record{
		ID:             id,
		Category:       p.Category,
		Title:          p.Title,
		Body:           p.Body,
		Tags:           tags,
		Significance:   p.Significance,
		BaseStrength:   1.0,
		CreatedAt:      now,
		LastAccessedAt: now,
		Source:         source,
		Strength:       1.0,
		Status:         decay.Clear,
	}, nil
}

// Get returns a record by id with its current strength, and applies the
// recall boost: strength + 0.15 (capped at 1.0) becomes the new base,
// the access clock resets, and access_count increments. This is the only
// operation that boosts; search hits do not count as access.
func (db *DB) Get(id string) (*Record, error) {
	now := time.Now()
	r, err := db.Peek(id, now)
	if err != nil {
		return nil, err
	}

	boosted := decay.Boost(r.Strength)
	_, err = db.Exec(`
		UPDATE records
		SET base_strength = ?, last_accessed_at = ?, access_count = access_count + 1
		WHERE id = ?
	`, boosted, now.UnixMilli(), id)
	if err != nil {
		return nil, fmt.Errorf("boost record: %w", err)
	}

	r.BaseStrength = boosted
	r.LastAccessedAt = now
	r.AccessCount++
	r.Strength = boosted
	r.Status = decay.StatusOf(boosted)
	return r, nil
}

// Peek returns a record by id with strength projected as of now, without
// boosting or touching the access clock.
func (db *DB) Peek(id string, now time.Time) (*Record, error) {
	row := db.QueryRow(selectRecord+" WHERE id = ?", id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	r.project(now)
	return r, nil
}

// ListByCategory returns all records in a category, strongest first.
func (db *DB) ListByCategory(category decay.Category, now time.Time) ([]*Record, error) {
	if !category.Valid() {
		return nil, Validationf("unknown category %q", category)
	}
	rows, err := db.Query(selectRecord+`
		WHERE category = ?
		ORDER BY significance DESC, created_at ASC
	`, string(category))
	if err != nil {
		return nil, fmt.Errorf("list by category: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows, now)
}

// All returns every record, including Fading ones, ordered by category
// then significance. Used by export and reconciliation.
func (db *DB) All(now time.Time) ([]*Record, error) {
	rows, err := db.Query(selectRecord + `
		ORDER BY category, significance DESC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows, now)
}

// Delete removes a record permanently. Only prune-eligible records
// (significance < 5, strength below the prune floor) may be deleted.
func (db *DB) Delete(id string) error {
	now := time.Now()
	r, err := db.Peek(id, now)
	if err != nil {
		return err
	}
	if !r.PruneEligible() {
		return Validationf("record %s is not prune-eligible (significance %d, strength %.2f)",
			id, r.Significance, r.Strength)
	}
	if _, err := db.Exec("DELETE FROM records WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// MarkStale flags a record as stale without deleting it. Deletion still
// requires standard prune eligibility over time.
func (db *DB) MarkStale(id, reason string, now time.Time) error {
	result, err := db.Exec(`
		UPDATE records SET stale_at = ?, stale_reason = ? WHERE id = ?
	`, now.UnixMilli(), reason, id)
	if err != nil {
		return fmt.Errorf("mark stale: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// SweepResult summarises one decay sweep.
type SweepResult struct {
	Total         int
	StatusChanged int
	PruneEligible int
}

// Sweep recomputes every record's status band as of now and records the
// new band. Running it twice with no intervening access yields the same
// strengths and zero further changes: strength is a pure function of the
// stored fields, not of sweep count.
func (db *DB) Sweep(now time.Time) (*SweepResult, error) {
	records, err := db.All(now)
	if err != nil {
		return nil, err
	}

	res := &SweepResult{Total: len(records)}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin sweep: %w", err)
	}
	for _, r := range records {
		if r.PruneEligible() {
			res.PruneEligible++
		}
		if r.lastStatus == r.Status {
			continue
		}
		if _, err := tx.Exec("UPDATE records SET last_status = ? WHERE id = ?", string(r.Status), r.ID); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("update status: %w", err)
		}
		res.StatusChanged++
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sweep: %w", err)
	}

	if err := db.SetMeta("last_decay", now.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	return res, nil
}

// Prune deletes every prune-eligible record and returns how many were
// removed. Significance >= 5 and permanent categories are never touched.
func (db *DB) Prune(now time.Time) (int, error) {
	records, err := db.All(now)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, r := range records {
		if !r.PruneEligible() {
			continue
		}
		if _, err := db.Exec("DELETE FROM records WHERE id = ?", r.ID); err != nil {
			return pruned, fmt.Errorf("prune record %s: %w", r.ID, err)
		}
		pruned++
	}
	return pruned, nil
}

const selectRecord = `
	SELECT id, category, title, body, tags, significance, base_strength,
	       last_accessed_at, access_count, last_status, stale_at, stale_reason,
	       source, created_at
	FROM records`

// project fills in the derived Strength and Status fields as of now.
func (r *Record) project(now time.Time) {
	r.Strength = decay.Strength(r.Category, r.Significance, r.BaseStrength, r.LastAccessedAt, now)
	r.Status = decay.StatusOf(r.Strength)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var category, lastStatus, tagsJSON string
	var staleAt sql.NullInt64
	var staleReason sql.NullString
	var lastAccessed, createdAt int64

	err := row.Scan(&r.ID, &category, &r.Title, &r.Body, &tagsJSON, &r.Significance,
		&r.BaseStrength, &lastAccessed, &r.AccessCount, &lastStatus,
		&staleAt, &staleReason, &r.Source, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Category = decay.Category(category)
	r.LastAccessedAt = time.UnixMilli(lastAccessed)
	r.CreatedAt = time.UnixMilli(createdAt)
	if staleAt.Valid {
		t := time.UnixMilli(staleAt.Int64)
		r.StaleAt = &t
	}
	r.StaleReason = staleReason.String
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
		r.Tags = nil
	}
	r.lastStatus = decay.Status(lastStatus)
	return &r, nil
}

func scanRecords(rows *sql.Rows, now time.Time) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.project(now)
		records = append(records, r)
	}
	return records, rows.Err()
}
