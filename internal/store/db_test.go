package store

import (
	"testing"
)

func TestOpenMemory(t *testing.T) {
	db := openTestDB(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := openTestDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 4 {
		t.Errorf("SchemaVersion = %d, want 4", v)
	}
}

func TestTablesExist(t *testing.T) {
	db := openTestDB(t)

	tables := []string{"schema_versions", "records", "records_fts", "session_index", "meta"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestRecordConstraints(t *testing.T) {
	db := openTestDB(t)

	// Valid insert
	_, err := db.Exec(`
		INSERT INTO records (id, category, title, body, significance, last_accessed_at, created_at)
		VALUES ('t1', 'knowledge', 'ok', '', 5, 1000, 1000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	// Invalid category
	_, err = db.Exec(`
		INSERT INTO records (id, category, title, body, significance, last_accessed_at, created_at)
		VALUES ('t2', 'opinion', 'bad', '', 5, 1000, 1000)
	`)
	if err == nil {
		t.Error("expected error for invalid category, got nil")
	}

	// Significance out of range
	_, err = db.Exec(`
		INSERT INTO records (id, category, title, body, significance, last_accessed_at, created_at)
		VALUES ('t3', 'decision', 'bad', '', 11, 1000, 1000)
	`)
	if err == nil {
		t.Error("expected error for significance 11, got nil")
	}
}

func TestULIDsMonotonic(t *testing.T) {
	db := openTestDB(t)

	prev := ""
	for i := 0; i < 50; i++ {
		id := db.newID()
		if id <= prev {
			t.Fatalf("id %q not greater than %q", id, prev)
		}
		prev = id
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)

	if v, err := db.GetMeta("missing"); err != nil || v != "" {
		t.Errorf("GetMeta(missing) = %q, %v", v, err)
	}
	if err := db.SetMeta("k", "v1"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if err := db.SetMeta("k", "v2"); err != nil {
		t.Fatalf("SetMeta overwrite: %v", err)
	}
	if v, _ := db.GetMeta("k"); v != "v2" {
		t.Errorf("GetMeta = %q, want v2", v)
	}
}
