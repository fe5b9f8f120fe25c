package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/engram/engram/internal/decay"
	"github.com/engram/engram/internal/store"
)

func testCorpus(t *testing.T) CollectorConfig {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatalf("write corpus file: %v", err)
	}
	return CollectorConfig{Root: root, Extensions: []string{".go"}}
}

func TestEngineAppliesVerdict(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	target, err := db.Add(store.AddParams{Category: decay.Decision, Significance: 6, Title: "Uses RabbitMQ"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	oracle := &MockOracle{Result: &Classification{
		Recovered: []NewMemory{{Title: "Config lives in TOML", Body: "seen in config.go", Significance: 6, Evidence: "config.go"}},
		Gaps:      []NewMemory{{Title: "Deploy script undocumented", Significance: 5}},
		Stale:     []StaleItem{{MemoryTitle: "uses rabbitmq", Reason: "no broker code remains"}},
		Summary:   "drift in messaging and config",
	}}

	reportDir := t.TempDir()
	eng := NewEngine(db, oracle, testCorpus(t), reportDir, 0)

	sum, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Recovered != 1 || sum.Gaps != 1 || sum.Stale != 1 {
		t.Errorf("summary = %+v", sum)
	}

	now := time.Now()
	records, _ := db.All(now)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (gap must not be auto-created)", len(records))
	}

	var recovered *store.Record
	for _, r := range records {
		if r.Title == "Config lives in TOML" {
			recovered = r
		}
	}
	if recovered == nil || recovered.Category != decay.Recovered || recovered.Source != "reconciliation" {
		t.Errorf("recovered record wrong: %+v", recovered)
	}

	// Stale resolution is case-insensitive on title.
	flagged, _ := db.Peek(target.ID, now)
	if flagged.StaleAt == nil || flagged.StaleReason != "no broker code remains" {
		t.Errorf("stale flag not applied: %+v", flagged)
	}

	// The run leaves an artifact with the full verdict.
	var rep Report
	data, err := os.ReadFile(sum.ReportPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("parse artifact: %v", err)
	}
	if !rep.Applied || len(rep.Findings) != 3 {
		t.Errorf("artifact = applied %v, %d findings", rep.Applied, len(rep.Findings))
	}
}

func TestEngineOracleFailureMutatesNothing(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if _, err := db.Add(store.AddParams{Category: decay.Decision, Significance: 6, Title: "only record"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	oracle := &MockOracle{Err: &OracleError{Err: errors.New("timeout")}}
	eng := NewEngine(db, oracle, testCorpus(t), t.TempDir(), 2)

	_, err = eng.Run(context.Background())
	var oerr *OracleError
	if !errors.As(err, &oerr) {
		t.Fatalf("Run = %v, want OracleError", err)
	}
	if oracle.Calls != 3 {
		t.Errorf("oracle called %d times, want initial + 2 retries", oracle.Calls)
	}

	records, _ := db.All(time.Now())
	if len(records) != 1 {
		t.Errorf("store mutated on oracle failure: %d records", len(records))
	}
	if v, _ := db.GetMeta("last_reconciliation"); v != "" {
		t.Errorf("last_reconciliation set on failed run: %q", v)
	}
}

func TestEngineClampsOracleSignificance(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	oracle := &MockOracle{Result: &Classification{
		Recovered: []NewMemory{{Title: "wild claim", Significance: 99}},
	}}
	eng := NewEngine(db, oracle, testCorpus(t), "", 0)

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	records, _ := db.All(time.Now())
	if len(records) != 1 || records[0].Significance != 5 {
		t.Errorf("out-of-range significance should fall back to 5, got %+v", records)
	}
}

func TestEngineUnresolvedStaleIsReportOnly(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	oracle := &MockOracle{Result: &Classification{
		Stale: []StaleItem{{MemoryTitle: "never existed", Reason: "n/a"}},
	}}
	eng := NewEngine(db, oracle, testCorpus(t), t.TempDir(), 0)

	sum, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Stale != 1 {
		t.Errorf("unresolved stale finding should still be reported, got %d", sum.Stale)
	}
}

func TestEngineWritesArtifactBeforeApply(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	// Break the apply step: the meta write inside the transaction fails,
	// rolling everything back.
	if _, err := db.Exec("DROP TABLE meta"); err != nil {
		t.Fatalf("drop meta: %v", err)
	}

	oracle := &MockOracle{Result: &Classification{
		Recovered: []NewMemory{{Title: "doomed recovery", Significance: 5}},
		Summary:   "apply will fail",
	}}
	reportDir := t.TempDir()
	eng := NewEngine(db, oracle, testCorpus(t), reportDir, 0)

	if _, err := eng.Run(context.Background()); err == nil {
		t.Fatal("Run should fail when the apply transaction cannot commit")
	}

	// The verdict must survive the failed apply, marked as not applied.
	entries, err := os.ReadDir(reportDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("artifacts on disk = %d (%v), want 1", len(entries), err)
	}
	data, err := os.ReadFile(filepath.Join(reportDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("parse artifact: %v", err)
	}
	if rep.Applied {
		t.Error("artifact claims applied after a rolled-back apply")
	}
	if len(rep.Findings) != 1 || rep.Findings[0].Title != "doomed recovery" {
		t.Errorf("artifact findings = %+v", rep.Findings)
	}
}

func TestWriteArtifactNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	rep := &Report{RunAt: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)}

	if _, err := WriteArtifact(dir, rep); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	if _, err := WriteArtifact(dir, rep); err == nil {
		t.Error("second write for the same run must fail, not overwrite")
	}
}
