package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "records: significance-decayed memory records",
		SQL: `
CREATE TABLE records (
    id               TEXT PRIMARY KEY,
    category         TEXT NOT NULL CHECK (category IN ('knowledge', 'current_state', 'decision', 'session', 'recovered')),
    title            TEXT NOT NULL,
    body             TEXT NOT NULL,
    tags             TEXT NOT NULL DEFAULT '[]',
    significance     INTEGER NOT NULL CHECK (significance BETWEEN 1 AND 10),

    -- Decay inputs. base_strength is the strength at last_accessed_at,
    -- re-anchored by the recall boost; current strength is always
    -- recomputed from these fields, never stored.
    base_strength    REAL NOT NULL DEFAULT 1.0,
    last_accessed_at INTEGER NOT NULL,
    access_count     INTEGER NOT NULL DEFAULT 0,

    -- Band snapshot from the last sweep, for status-change counting.
    last_status      TEXT NOT NULL DEFAULT 'clear' CHECK (last_status IN ('clear', 'fuzzy', 'fading')),

    -- Reconciliation flags. Stale records are flagged, never deleted here.
    stale_at         INTEGER,
    stale_reason     TEXT,

    source           TEXT NOT NULL DEFAULT 'manual',
    created_at       INTEGER NOT NULL
);

CREATE INDEX idx_records_category     ON records(category);
CREATE INDEX idx_records_significance ON records(significance DESC);
CREATE INDEX idx_records_created      ON records(created_at);
`,
	},
	{
		Version:     2,
		Description: "records_fts: full-text index over title/body/tags",
		SQL: `
CREATE VIRTUAL TABLE records_fts USING fts5(
    title, body, tags,
    content='records',
    content_rowid='rowid'
);

CREATE TRIGGER records_ai AFTER INSERT ON records BEGIN
    INSERT INTO records_fts(rowid, title, body, tags)
    VALUES (new.rowid, new.title, new.body, new.tags);
END;

CREATE TRIGGER records_ad AFTER DELETE ON records BEGIN
    INSERT INTO records_fts(records_fts, rowid, title, body, tags)
    VALUES ('delete', old.rowid, old.title, old.body, old.tags);
END;

CREATE TRIGGER records_au AFTER UPDATE ON records BEGIN
    INSERT INTO records_fts(records_fts, rowid, title, body, tags)
    VALUES ('delete', old.rowid, old.title, old.body, old.tags);
    INSERT INTO records_fts(rowid, title, body, tags)
    VALUES (new.rowid, new.title, new.body, new.tags);
END;
`,
	},
	{
		Version:     3,
		Description: "session_index: rolling per-session summary log",
		SQL: `
CREATE TABLE session_index (
    id         TEXT PRIMARY KEY,
    date       TEXT NOT NULL,
    bullets    TEXT NOT NULL DEFAULT '[]',
    ref        TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_session_index_created ON session_index(created_at DESC);
`,
	},
	{
		Version:     4,
		Description: "meta: sweep and reconciliation bookkeeping",
		SQL: `
CREATE TABLE meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
