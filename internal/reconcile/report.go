package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Class is a discrepancy classification.
type Class string

const (
	ClassRecovered Class = "recovered"
	ClassGap       Class = "gap"
	ClassStale     Class = "stale"
)

// Finding is one classified discrepancy. Recovered and gap findings
// describe proposed memory items; stale findings reference an existing
// record by id (empty if the oracle's title could not be resolved).
type Finding struct {
	Class        Class    `json:"class"`
	RecordID     string   `json:"record_id,omitempty"`
	Title        string   `json:"title"`
	Body         string   `json:"content,omitempty"`
	Significance int      `json:"significance,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Evidence     string   `json:"evidence,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// Report is the full result of one reconciliation run. It is built in
// its entirety before anything is applied; Applied records whether the
// apply step committed.
type Report struct {
	RunAt    time.Time `json:"run_at"`
	Findings []Finding `json:"findings"`
	Summary  string    `json:"summary,omitempty"`
	Applied  bool      `json:"applied"`
}

// Counts returns the number of findings per class.
func (r *Report) Counts() (recovered, gaps, stale int) {
	for _, f := range r.Findings {
		switch f.Class {
		case ClassRecovered:
			recovered++
		case ClassGap:
			gaps++
		case ClassStale:
			stale++
		}
	}
	return
}

// WriteArtifact persists the report as a new JSON file in dir. One file
// per run, never overwritten, so past reconciliation decisions remain
// auditable.
func WriteArtifact(dir string, rep *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	name := fmt.Sprintf("reconcile-%s.json", rep.RunAt.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create report artifact: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return "", fmt.Errorf("write report artifact: %w", err)
	}
	return path, nil
}

// markApplied rewrites the current run's artifact with its final apply
// outcome. Only this run's file is touched; earlier artifacts stay
// immutable.
func markApplied(path string, rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("update report artifact: %w", err)
	}
	return nil
}
