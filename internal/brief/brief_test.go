package brief

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/engram/engram/internal/decay"
	"github.com/engram/engram/internal/store"
)

var now = time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

func record(category decay.Category, sig int, title string, strength float64) *store.Record {
	return &store.Record{
		ID:           title,
		Category:     category,
		Title:        title,
		Significance: sig,
		Strength:     strength,
		Status:       decay.StatusOf(strength),
		CreatedAt:    now.Add(-time.Hour),
	}
}

func TestCompileSectionsAndMarkers(t *testing.T) {
	in := Input{
		Records: []*store.Record{
			record(decay.Knowledge, 8, "prefers table tests", 1.0),
			record(decay.Decision, 6, "sqlite for storage", 0.9),
		},
		Now: now,
	}
	doc := Compile(in, Options{})

	for _, heading := range []string{
		"## Permanent Knowledge", "## Current State", "## Decisions", "## Recovered", "## Session History",
	} {
		if !strings.Contains(doc, heading) {
			t.Errorf("missing section %q", heading)
		}
	}

	// Empty sections render an explicit marker, never vanish.
	if strings.Count(doc, "(none)") != 3 {
		t.Errorf("got %d (none) markers, want 3 (current state, recovered, history):\n%s",
			strings.Count(doc, "(none)"), doc)
	}
	if !strings.Contains(doc, "prefers table tests") || !strings.Contains(doc, "sqlite for storage") {
		t.Error("populated sections missing their records")
	}
}

func TestSectionBudgetSelectsTopRanked(t *testing.T) {
	var records []*store.Record
	titles := []string{"a", "b", "c", "d", "e", "f", "g"}
	for i, title := range titles {
		records = append(records, record(decay.Decision, 9-i, title, 0.9)) // sig 9..3
	}

	doc := Compile(Input{Records: records, Now: now}, Options{SectionLines: 5})

	for _, title := range titles[:5] {
		if !strings.Contains(doc, "**"+title+"**") {
			t.Errorf("top-ranked %q missing", title)
		}
	}
	for _, title := range titles[5:] {
		if strings.Contains(doc, "**"+title+"**") {
			t.Errorf("over-budget %q rendered", title)
		}
	}
}

func TestFadingOmittedFuzzyOnlyInTopSection(t *testing.T) {
	in := Input{
		Records: []*store.Record{
			record(decay.Decision, 6, "fuzzy decision", 0.5),
			record(decay.Decision, 6, "fading decision", 0.2),
			record(decay.Recovered, 5, "fading recovery", 0.3),
		},
		Now: now,
	}
	doc := Compile(in, Options{})

	if strings.Contains(doc, "fuzzy decision") {
		t.Error("fuzzy record rendered outside the top section")
	}
	if strings.Contains(doc, "fading decision") || strings.Contains(doc, "fading recovery") {
		t.Error("fading records must be omitted from the brief")
	}
}

func TestDeterministicTieBreak(t *testing.T) {
	older := record(decay.Decision, 6, "older", 0.9)
	older.CreatedAt = now.Add(-48 * time.Hour)
	newer := record(decay.Decision, 6, "newer", 0.9)
	newer.CreatedAt = now.Add(-time.Hour)

	in := Input{Records: []*store.Record{newer, older}, Now: now}
	first := Compile(in, Options{SectionLines: 1})
	second := Compile(in, Options{SectionLines: 1})

	if first != second {
		t.Error("output not deterministic for unchanged input")
	}
	// Equal significance, strength, recency: earliest-created wins.
	if !strings.Contains(first, "**older**") {
		t.Errorf("tie should go to the earlier record:\n%s", first)
	}
}

func TestRecordRendersOneLine(t *testing.T) {
	r := record(decay.Decision, 7, "multi line body", 0.9)
	r.Body = "first line\nsecond line that should not appear"
	r.Tags = []string{"x", "y"}

	line := renderRecord(r)
	if strings.Contains(line, "\n") {
		t.Error("record rendered across multiple lines")
	}
	if strings.Contains(line, "second line") {
		t.Error("body not truncated to its first line")
	}
	if !strings.Contains(line, "_[x, y]_") {
		t.Errorf("tags missing: %s", line)
	}
	if !strings.Contains(line, "*****") {
		t.Errorf("significance stars capped at 5 missing: %s", line)
	}
}

func TestFirstLineKeepsUTF8Intact(t *testing.T) {
	// The cut point at 157 lands inside 日: truncation must back up to
	// the rune boundary instead of splitting it.
	s := strings.Repeat("a", 156) + "日本語"
	got := firstLine(s, 160)
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis: %q", got)
	}
	if len(got) > 160 {
		t.Errorf("len = %d, want <= 160", len(got))
	}

	if got := firstLine("short", 160); got != "short" {
		t.Errorf("firstLine(short) = %q", got)
	}
}

func TestSessionHistory(t *testing.T) {
	in := Input{
		Sessions: []store.SessionEntry{
			{Date: "2026-08-27", Bullets: []string{"shipped decay sweep", "fixed lock test"}, Ref: "9bd1"},
		},
		Now: now,
	}
	doc := Compile(in, Options{})

	if !strings.Contains(doc, "- 2026-08-27: shipped decay sweep; fixed lock test (9bd1)") {
		t.Errorf("session line malformed:\n%s", doc)
	}
}

func TestTokenCapTrimsFromEnd(t *testing.T) {
	var records []*store.Record
	for i := 0; i < 30; i++ {
		records = append(records, record(decay.Decision, 6, strings.Repeat("x", 40), 0.9))
	}
	in := Input{Records: records, Now: now}

	uncapped := Compile(in, Options{})
	capped := Compile(in, Options{MaxTokens: 50, Counter: estimateCounter{}})

	if len(capped) >= len(uncapped) {
		t.Error("token cap did not shrink the document")
	}
	if !strings.HasPrefix(uncapped, capped[:len("# Session Brief")]) {
		t.Error("cap must trim from the end, keeping the header")
	}
}

func TestBuildFromStore(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if _, err := db.Add(store.AddParams{Category: decay.Knowledge, Significance: 8, Title: "likes short PRs"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := db.AppendSession("2026-08-27", []string{"reviewed brief compiler"}, ""); err != nil {
		t.Fatalf("AppendSession: %v", err)
	}

	doc, err := Build(db, Options{}, time.Now())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(doc, "likes short PRs") || !strings.Contains(doc, "reviewed brief compiler") {
		t.Errorf("store contents missing from brief:\n%s", doc)
	}
	if !strings.Contains(doc, "*Memories: 1 total") {
		t.Errorf("stats header missing:\n%s", doc)
	}
}
