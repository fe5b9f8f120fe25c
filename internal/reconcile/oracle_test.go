package reconcile

import (
	"strings"
	"testing"
)

func TestParseClassification(t *testing.T) {
	text := `{
		"recovered": [{"title": "auth flow", "content": "uses PKCE", "significance": 6, "tags": ["auth"], "evidence": "auth.go"}],
		"gaps": [{"title": "deploy script", "content": "undocumented", "significance": 5}],
		"stale": [{"memory_title": "old queue", "reason": "module removed"}],
		"summary": "one of each"
	}`

	c, err := parseClassification(text)
	if err != nil {
		t.Fatalf("parseClassification: %v", err)
	}
	if len(c.Recovered) != 1 || c.Recovered[0].Body != "uses PKCE" {
		t.Errorf("Recovered = %+v", c.Recovered)
	}
	if len(c.Gaps) != 1 || len(c.Stale) != 1 || c.Summary != "one of each" {
		t.Errorf("parsed = %+v", c)
	}
}

func TestParseClassificationStripsCodeFence(t *testing.T) {
	text := "```json\n{\"recovered\": [], \"gaps\": [], \"stale\": [], \"summary\": \"clean\"}\n```"
	c, err := parseClassification(text)
	if err != nil {
		t.Fatalf("parseClassification: %v", err)
	}
	if c.Summary != "clean" {
		t.Errorf("Summary = %q", c.Summary)
	}
}

func TestParseClassificationRejectsProse(t *testing.T) {
	if _, err := parseClassification("I found several discrepancies..."); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

func TestBuildPromptOrdersDocuments(t *testing.T) {
	p := buildPrompt("MEMORY-DOC", "CORPUS-DOC")
	ci := strings.Index(p, "CORPUS-DOC")
	mi := strings.Index(p, "MEMORY-DOC")
	if ci < 0 || mi < 0 || ci > mi {
		t.Errorf("corpus must precede memory in the prompt (corpus at %d, memory at %d)", ci, mi)
	}
	if !strings.Contains(p, "strict JSON") {
		t.Error("prompt missing the strict-JSON instruction")
	}
}
