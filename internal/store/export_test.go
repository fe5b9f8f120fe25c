package store

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/engram/engram/internal/decay"
)

func TestExportImportRoundTrip(t *testing.T) {
	src := openTestDB(t)

	mustAdd(t, src, AddParams{Category: decay.Knowledge, Significance: 8, Title: "ships in UTC", Body: "all timestamps", Tags: []string{"time"}})
	mustAdd(t, src, AddParams{Category: decay.Decision, Significance: 6, Title: "sqlite over postgres"})
	if _, err := src.AppendSession("2026-08-20", []string{"migrated schema"}, "d4f2"); err != nil {
		t.Fatalf("AppendSession: %v", err)
	}

	var buf bytes.Buffer
	if err := src.ExportJSON(&buf); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	dst := openTestDB(t)
	n, err := dst.ImportJSON(&buf)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d records, want 2", n)
	}

	records, _ := dst.All(time.Now())
	byTitle := map[string]*Record{}
	for _, r := range records {
		byTitle[r.Title] = r
	}
	k := byTitle["ships in UTC"]
	if k == nil || k.Category != decay.Knowledge || k.Significance != 8 || k.Tags[0] != "time" {
		t.Errorf("knowledge record mangled: %+v", k)
	}

	sessions, _ := dst.RecentSessions(10)
	if len(sessions) != 1 || sessions[0].Ref != "d4f2" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	db := openTestDB(t)

	_, err := db.ImportJSON(strings.NewReader("not json"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("got %v, want ValidationError", err)
	}
}

func TestImportAllOrNothing(t *testing.T) {
	db := openTestDB(t)

	// One valid record followed by one invalid: nothing may land.
	doc := `{
		"records": [
			{"category": "knowledge", "significance": 7, "title": "good record"},
			{"category": "opinion", "significance": 7, "title": "bad record"}
		]
	}`
	n, err := db.ImportJSON(strings.NewReader(doc))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if n != 0 {
		t.Errorf("reported %d imported on failure", n)
	}
	all, _ := db.All(time.Now())
	if len(all) != 0 {
		t.Errorf("partial import committed %d records", len(all))
	}

	// A bad session entry also rejects the file's valid records.
	doc = `{
		"records": [{"category": "knowledge", "significance": 7, "title": "good record"}],
		"sessions": [{"date": "28/08/2026", "bullets": ["x"]}]
	}`
	if _, err := db.ImportJSON(strings.NewReader(doc)); !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	all, _ = db.All(time.Now())
	if len(all) != 0 {
		t.Errorf("record committed despite invalid session entry: %d", len(all))
	}
}

func TestExportTextIncludesFading(t *testing.T) {
	db := openTestDB(t)

	faded := mustAdd(t, db, AddParams{Category: decay.Session, Significance: 2, Title: "long gone detail"})
	backdate(t, db, faded.ID, 8*decay.Week)

	doc, err := db.ExportText(time.Now())
	if err != nil {
		t.Fatalf("ExportText: %v", err)
	}
	if !strings.Contains(doc, "# Memory Export") {
		t.Error("missing export header")
	}
	if !strings.Contains(doc, "long gone detail") {
		t.Error("fading record omitted from export")
	}
	if !strings.Contains(doc, "status=fading") {
		t.Error("status annotation missing")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	mustAdd(t, db, AddParams{Category: decay.Knowledge, Significance: 8, Title: "clear one"})
	faded := mustAdd(t, db, AddParams{Category: decay.Session, Significance: 2, Title: "fading one"})
	backdate(t, db, faded.ID, 8*decay.Week)
	if _, err := db.AppendSession("2026-08-21", []string{"x"}, ""); err != nil {
		t.Fatalf("AppendSession: %v", err)
	}

	s, err := db.GetStats(time.Now())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if s.Total != 2 || s.Clear != 1 || s.Fading != 1 {
		t.Errorf("stats = %+v", s)
	}
	if s.ByCategory["knowledge"] != 1 || s.ByCategory["session"] != 1 {
		t.Errorf("ByCategory = %v", s.ByCategory)
	}
	if s.Sessions != 1 {
		t.Errorf("Sessions = %d, want 1", s.Sessions)
	}
	if s.LastDecay != "never" || s.LastRecon != "never" {
		t.Errorf("timestamps = %q / %q, want never/never", s.LastDecay, s.LastRecon)
	}
}
