// Package reconcile cross-checks the memory store against an external
// ground-truth corpus and safely reintegrates the differences.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Oracle is the large-context reasoning capability behind a
// reconciliation run: one blocking call that classifies discrepancies
// between a memory export and a corpus export. The real implementation
// is an external service; tests use MockOracle.
type Oracle interface {
	Classify(ctx context.Context, memoryExport, corpusExport string) (*Classification, error)
}

// Classification is the oracle's verdict on one run.
type Classification struct {
	// Recovered: evidenced by the corpus but decayed out of memory.
	// Reintroduced as new recovered-category records.
	Recovered []NewMemory `json:"recovered"`
	// Gaps: evidenced by the corpus but never recorded. Flagged for
	// human review in the report; never auto-created.
	Gaps []NewMemory `json:"gaps"`
	// Stale: remembered but no longer evidenced. Flagged, never deleted.
	Stale   []StaleItem `json:"stale"`
	Summary string      `json:"summary"`
}

// NewMemory is an oracle-proposed memory item.
type NewMemory struct {
	Title        string   `json:"title"`
	Body         string   `json:"content"`
	Significance int      `json:"significance"`
	Tags         []string `json:"tags"`
	Evidence     string   `json:"evidence"`
}

// StaleItem references an existing memory by title.
type StaleItem struct {
	MemoryTitle string `json:"memory_title"`
	Reason      string `json:"reason"`
}

// OracleError wraps any network, timeout, or malformed-response failure
// from the external reasoning call. A run that ends with an OracleError
// has applied no mutation.
type OracleError struct {
	Err error
}

func (e *OracleError) Error() string { return "reconciliation oracle: " + e.Err.Error() }
func (e *OracleError) Unwrap() error { return e.Err }

// MockOracle is a deterministic test double.
type MockOracle struct {
	Result *Classification
	Err    error
	Calls  int
}

func (m *MockOracle) Classify(ctx context.Context, memoryExport, corpusExport string) (*Classification, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// classifyPrompt instructs the oracle to emit strict JSON.
const classifyPrompt = `You are analyzing a project's current artifacts against its assistant's memory database.

The memory system uses significance-based decay: memories fade over time unless important enough to persist. Find discrepancies between the two documents.

Classify each finding as one of:
- recovered: the corpus still evidences something memory has lost to decay. Propose re-adding it.
- gaps: the corpus shows something that was never recorded.
- stale: a memory references something the corpus no longer contains.

Respond with strict JSON only, no prose:
{
  "recovered": [{"title": "...", "content": "...", "significance": 5, "tags": ["..."], "evidence": "file or line that proves this"}],
  "gaps": [{"title": "...", "content": "...", "significance": 5, "tags": ["..."], "evidence": "..."}],
  "stale": [{"memory_title": "title from the memory export", "reason": "..."}],
  "summary": "1-2 sentences"
}

Only include items with significance >= 5. Be concise: 1-2 sentences per item.

=== CORPUS ===
%s

=== MEMORY DATABASE ===
%s

=== RESULT (JSON) ===`

// buildPrompt assembles the full oracle prompt.
func buildPrompt(memoryExport, corpusExport string) string {
	return fmt.Sprintf(classifyPrompt, corpusExport, memoryExport)
}

// parseClassification decodes the oracle's response, tolerating a
// markdown code fence around the JSON.
func parseClassification(text string) (*Classification, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
	}

	var c Classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return nil, fmt.Errorf("malformed oracle response: %w", err)
	}
	return &c, nil
}
